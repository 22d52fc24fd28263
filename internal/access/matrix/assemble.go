package matrix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"

	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
)

type Assembler struct {
	oracle   Oracle
	maxBatch int
	workers  int
	logger   *slog.Logger
}

type Option func(*Assembler)

// WithWorkers bounds how many group-pair queries may be in flight at once.
// One (the default) issues them sequentially.
func WithWorkers(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAssembler(oracle Oracle, maxBatch int, opts ...Option) *Assembler {
	a := &Assembler{
		oracle:   oracle,
		maxBatch: maxBatch,
		workers:  1,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble is a sequential one-off assembly.
func Assemble(ctx context.Context, origins, destinations []Coord, maxBatch int, oracle Oracle) (*Matrix, error) {
	return NewAssembler(oracle, maxBatch).Assemble(ctx, origins, destinations)
}

// Assemble returns the len(origins) x len(destinations) matrix. When the
// distinct coordinate count fits maxBatch a single oracle call is made;
// otherwise the coordinates are split into groups of maxBatch/2 and every
// ordered group pair is queried once. Any failed query fails the assembly.
func (a *Assembler) Assemble(ctx context.Context, origins, destinations []Coord) (*Matrix, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return nil, ErrEmptyInput
	}
	if a.maxBatch < 2 {
		return nil, fmt.Errorf("max batch %d: %w", a.maxBatch, ErrBatchTooSmall)
	}

	same := sameCoords(origins, destinations)
	combined := origins
	if !same {
		combined = make([]Coord, 0, len(origins)+len(destinations))
		combined = append(combined, origins...)
		combined = append(combined, destinations...)
	}

	if len(combined) <= a.maxBatch {
		observability.IncMatrixAssembly("single")
		t, err := a.query(ctx, points(origins), points(destinations))
		if err == nil {
			err = checkShape(t, len(origins), len(destinations))
		}
		if err != nil {
			return nil, &OracleFailure{Err: err}
		}
		m := &Matrix{
			Origins:      ids(origins),
			Destinations: ids(destinations),
			Data:         mat.DenseCopyOf(t.Durations),
		}
		if len(t.Sources) == len(origins) && len(t.Destinations) == len(destinations) {
			m.SnappedOrigins = append([]orb.Point(nil), t.Sources...)
			m.SnappedDestinations = append([]orb.Point(nil), t.Destinations...)
		}
		return m, nil
	}

	observability.IncMatrixAssembly("batched")
	groups := Partition(len(combined), a.maxBatch/2)
	pairs := Pairs(len(groups))
	a.logger.Debug("batched matrix assembly",
		"coords", len(combined),
		"groups", len(groups),
		"queries", len(pairs))

	blocks, err := a.fetch(ctx, combined, groups, pairs)
	if err != nil {
		return nil, err
	}

	n := len(combined)
	full := mat.NewDense(n, n, nil)
	filled := make([]bool, n*n)
	snapped := newSnapper(n)
	for bi, p := range pairs {
		rows := groups[p[0]]
		cols := blockColumns(groups[p[0]], groups[p[1]])
		snapped.record(blocks[bi], rows, cols)
		d := blocks[bi].Durations
		for r := rows.Start; r < rows.End; r++ {
			for ci, c := range cols {
				if filled[r*n+c] {
					continue
				}
				full.Set(r, c, d.At(r-rows.Start, ci))
				filled[r*n+c] = true
			}
		}
	}
	for i, ok := range filled {
		if !ok {
			return nil, fmt.Errorf("matrix cell (%d,%d) not covered by any group pair", i/n, i%n)
		}
	}

	colOffset := 0
	if !same {
		colOffset = len(origins)
	}
	out := mat.NewDense(len(origins), len(destinations), nil)
	for r := range origins {
		for c := range destinations {
			out.Set(r, c, full.At(r, colOffset+c))
		}
	}
	return &Matrix{
		Origins:             ids(origins),
		Destinations:        ids(destinations),
		Data:                out,
		SnappedOrigins:      snapped.slice(0, len(origins)),
		SnappedDestinations: snapped.slice(colOffset, colOffset+len(destinations)),
	}, nil
}

// snapper collects the first snapped location reported for each combined
// coordinate across the group-pair answers.
type snapper struct {
	pts  []orb.Point
	seen []bool
}

func newSnapper(n int) *snapper {
	return &snapper{pts: make([]orb.Point, n), seen: make([]bool, n)}
}

func (s *snapper) set(i int, p orb.Point) {
	if !s.seen[i] {
		s.pts[i] = p
		s.seen[i] = true
	}
}

func (s *snapper) record(t Table, rows Range, cols []int) {
	if len(t.Sources) == rows.Len() {
		for i, p := range t.Sources {
			s.set(rows.Start+i, p)
		}
	}
	if len(t.Destinations) == len(cols) {
		for i, p := range t.Destinations {
			s.set(cols[i], p)
		}
	}
}

// slice returns nil unless every index in [from, to) was reported.
func (s *snapper) slice(from, to int) []orb.Point {
	for _, ok := range s.seen[from:to] {
		if !ok {
			return nil
		}
	}
	return append([]orb.Point(nil), s.pts[from:to]...)
}

func (a *Assembler) query(ctx context.Context, srcs, dsts []orb.Point) (Table, error) {
	start := time.Now()
	t, err := a.oracle.TravelTimes(ctx, srcs, dsts)
	observability.ObserveOracleCall(err, time.Since(start).Seconds())
	return t, err
}

func (a *Assembler) fetchOne(ctx context.Context, combined []Coord, groups []Range, p [2]int) (Table, error) {
	src := groups[p[0]]
	cols := blockColumns(src, groups[p[1]])
	srcs := points(combined[src.Start:src.End])
	dsts := make([]orb.Point, len(cols))
	for i, c := range cols {
		dsts[i] = combined[c].Point
	}
	t, err := a.query(ctx, srcs, dsts)
	if err == nil {
		err = checkShape(t, len(srcs), len(dsts))
	}
	if err != nil {
		return Table{}, &OracleFailure{Pair: p, Batched: true, Err: err}
	}
	return t, nil
}

// fetch runs every group-pair query. Results are indexed like pairs so the
// merge order does not depend on completion order.
func (a *Assembler) fetch(ctx context.Context, combined []Coord, groups []Range, pairs [][2]int) ([]Table, error) {
	out := make([]Table, len(pairs))
	if a.workers <= 1 {
		for i, p := range pairs {
			t, err := a.fetchOne(ctx, combined, groups, p)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(pairs))
	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p [2]int) {
			defer wg.Done()
			defer func() { <-sem }()
			if ctx.Err() != nil {
				errs[i] = &OracleFailure{Pair: p, Batched: true, Err: ctx.Err()}
				return
			}
			t, err := a.fetchOne(ctx, combined, groups, p)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			out[i] = t
		}(i, p)
	}
	wg.Wait()

	// report the root failure, not the cancellations it caused
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if first == nil {
			first = err
		}
	}
	if first != nil {
		return nil, first
	}
	return out, nil
}
