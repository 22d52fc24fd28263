package access

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid accessibility request")
	ErrNoOracle       = errors.New("travel-time oracle is required")
)

// TooLargeError rejects a grid before any travel-time query is made.
type TooLargeError struct {
	Count int
	Limit int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("grid of %d samples exceeds the limit of %d; reduce precision or radius", e.Count, e.Limit)
}
