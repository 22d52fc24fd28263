package kafka

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// OpReload announces a new dataset version for a profile.
	OpReload = "reload"
	// OpPurge drops cached answers for a profile regardless of version.
	OpPurge = "purge"
)

// Event is published when the routing dataset behind a profile changes.
type Event struct {
	Profile string    `json:"profile"`
	Version uint64    `json:"version"`
	TS      time.Time `json:"ts"`
	Op      string    `json:"op"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Profile) == "" {
		return errors.New("profile is required")
	}
	switch e.Op {
	case OpReload:
		if e.Version == 0 {
			return errors.New("reload requires a version")
		}
	case OpPurge:
	default:
		return fmt.Errorf("op must be %s|%s, got %q", OpReload, OpPurge, e.Op)
	}
	return nil
}
