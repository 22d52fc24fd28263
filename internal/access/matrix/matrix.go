// Package matrix assembles origin x destination travel-time matrices from an
// oracle that only accepts a bounded number of coordinates per request.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyInput    = errors.New("origins and destinations must be non-empty")
	ErrBatchTooSmall = errors.New("max batch must be at least 2")
)

// Coord is a coordinate labelled with a caller-chosen identifier.
type Coord struct {
	ID    string
	Point orb.Point
}

// Table is one oracle answer, aligned positionally with the query. Unreachable
// pairs hold NaN.
type Table struct {
	Durations    *mat.Dense
	Sources      []orb.Point
	Destinations []orb.Point
}

// Oracle answers travel times from every source to every destination.
//
// Assembly budgets calls in distinct coordinates: one call never names more
// than max_batch distinct points. Sources also appear among the destinations
// of a batched call, so srcs and dsts together may hold up to 1.5*max_batch
// entries. Implementations with a per-request coordinate limit must
// deduplicate before sending.
type Oracle interface {
	TravelTimes(ctx context.Context, srcs, dsts []orb.Point) (Table, error)
}

type OracleFunc func(ctx context.Context, srcs, dsts []orb.Point) (Table, error)

func (f OracleFunc) TravelTimes(ctx context.Context, srcs, dsts []orb.Point) (Table, error) {
	return f(ctx, srcs, dsts)
}

// Matrix is a travel-cost matrix with labelled rows (origins) and columns
// (destinations).
type Matrix struct {
	Origins      []string
	Destinations []string
	Data         *mat.Dense

	// Locations the oracle snapped each origin and destination to. Nil when
	// the oracle does not report them.
	SnappedOrigins      []orb.Point
	SnappedDestinations []orb.Point
}

func (m *Matrix) Shape() (rows, cols int) {
	if m == nil || m.Data == nil {
		return 0, 0
	}
	return m.Data.Dims()
}

// At returns the cost from origin to destination by identifier.
func (m *Matrix) At(origin, destination string) (float64, bool) {
	r, c := -1, -1
	for i, id := range m.Origins {
		if id == origin {
			r = i
			break
		}
	}
	for j, id := range m.Destinations {
		if id == destination {
			c = j
			break
		}
	}
	if r < 0 || c < 0 {
		return math.NaN(), false
	}
	return m.Data.At(r, c), true
}

func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.Data)
}

// OracleFailure reports a failed oracle query. Batched failures name the
// group pair whose block could not be fetched.
type OracleFailure struct {
	Pair    [2]int
	Batched bool
	Err     error
}

func (e *OracleFailure) Error() string {
	if !e.Batched {
		return fmt.Sprintf("oracle query failed: %v", e.Err)
	}
	return fmt.Sprintf("oracle query for group pair (%d,%d) failed: %v", e.Pair[0], e.Pair[1], e.Err)
}

func (e *OracleFailure) Unwrap() error { return e.Err }

func checkShape(t Table, rows, cols int) error {
	if t.Durations == nil {
		return errors.New("oracle returned no durations")
	}
	r, c := t.Durations.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("oracle returned %dx%d matrix, want %dx%d", r, c, rows, cols)
	}
	return nil
}

func points(cs []Coord) []orb.Point {
	out := make([]orb.Point, len(cs))
	for i, c := range cs {
		out[i] = c.Point
	}
	return out
}

func ids(cs []Coord) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func sameCoords(a, b []Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
