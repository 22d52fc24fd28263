// Package access builds accessibility surfaces: a sampling grid around an
// origin, one travel-time query from the origin to every grid point, and
// any number of contour renderings of the cached result.
package access

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access/grid"
	"github.com/mohammed-shakir/osrm-access/internal/access/interp"
	"github.com/mohammed-shakir/osrm-access/internal/access/isoline"
	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
)

const (
	DefaultMaxGridPoints = 3500
	DefaultMaxBatch      = 10000
	DefaultCRS           = "EPSG:4326"
)

// Config is the policy side of a surface. The zero value is usable.
type Config struct {
	// MaxGridPoints rejects larger grids with TooLargeError. Zero means
	// DefaultMaxGridPoints, negative disables the check.
	MaxGridPoints int
	// MaxBatch is the largest coordinate count one oracle call accepts.
	MaxBatch   int
	Resolution int
	Workers    int
	CRS        string
}

func (c Config) withDefaults() Config {
	if c.MaxGridPoints == 0 {
		c.MaxGridPoints = DefaultMaxGridPoints
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.Resolution <= 0 {
		c.Resolution = interp.DefaultResolution
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.CRS == "" {
		c.CRS = DefaultCRS
	}
	return c
}

// Request describes the grid. Exactly one of Points, Precision or H3Res
// selects the sampling: a square lattice of about Points centers, square
// cells of Precision degrees, or H3 cells at resolution H3Res. Zero leaves a
// selector unset and negative values are invalid.
type Request struct {
	Origin    orb.Point
	Radius    float64
	Points    int
	Precision float64
	// H3Res 0 is unset rather than the coarsest resolution: a resolution 0
	// cell spans more than a thousand kilometres and never samples a
	// radius-sized region.
	H3Res int
}

func (r Request) validate() error {
	if !(r.Radius > 0) || math.IsInf(r.Radius, 0) {
		return fmt.Errorf("radius %v: %w", r.Radius, ErrInvalidRequest)
	}
	if math.IsNaN(r.Origin[0]) || math.IsNaN(r.Origin[1]) {
		return fmt.Errorf("origin %v: %w", r.Origin, ErrInvalidRequest)
	}
	if r.Points < 0 || r.Precision < 0 || math.IsNaN(r.Precision) || r.H3Res < 0 {
		return fmt.Errorf("negative grid selector: %w", ErrInvalidRequest)
	}
	set := 0
	for _, on := range []bool{r.Points > 0, r.Precision > 0, r.H3Res > 0} {
		if on {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of points, precision or h3 resolution is required: %w", ErrInvalidRequest)
	}
	return nil
}

// SampleCount reports how many grid samples req produces, without querying
// anything.
func SampleCount(req Request) (int, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}
	region := grid.RegionAround(req.Origin, req.Radius)
	switch {
	case req.Points > 0:
		rows, cols := grid.SizeForCount(req.Points)
		return rows * cols, nil
	case req.Precision > 0:
		rows, cols, err := grid.SizeFor(region, req.Precision)
		if err != nil {
			return 0, err
		}
		return rows * cols, nil
	default:
		g, err := grid.MakeGridH3(region, req.H3Res)
		if err != nil {
			return 0, err
		}
		return g.Len(), nil
	}
}

func buildGrid(req Request, crs string) (grid.Grid, error) {
	region := grid.RegionAround(req.Origin, req.Radius)
	switch {
	case req.Points > 0:
		return grid.MakeGridN(region, req.Points, crs)
	case req.Precision > 0:
		return grid.MakeGrid(region, req.Precision, crs)
	default:
		g, err := grid.MakeGridH3(region, req.H3Res)
		g.CRS = crs
		return g, err
	}
}

// Surface is a queried accessibility surface. It never calls the oracle
// again after New returns, and is safe for concurrent RenderContour calls.
type Surface struct {
	req       Request
	cfg       Config
	origin    orb.Point
	grid      grid.Grid
	samples   []interp.Sample
	extractor *isoline.Extractor
	logger    *slog.Logger
}

// New builds the grid, rejects it with TooLargeError when it exceeds the
// configured ceiling, then queries origin-to-grid travel times once.
func New(ctx context.Context, oracle matrix.Oracle, req Request, cfg Config, logger *slog.Logger) (*Surface, error) {
	start := time.Now()
	s, err := build(ctx, oracle, req, cfg, logger)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ObserveIsochrone(outcome, time.Since(start).Seconds())
	return s, err
}

func build(ctx context.Context, oracle matrix.Oracle, req Request, cfg Config, logger *slog.Logger) (*Surface, error) {
	if oracle == nil {
		return nil, ErrNoOracle
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg = cfg.withDefaults()

	count, err := SampleCount(req)
	if err != nil {
		return nil, err
	}
	if cfg.MaxGridPoints > 0 && count > cfg.MaxGridPoints {
		return nil, &TooLargeError{Count: count, Limit: cfg.MaxGridPoints}
	}

	g, err := buildGrid(req, cfg.CRS)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}

	dests := make([]matrix.Coord, g.Len())
	for i, p := range g.Points {
		dests[i] = matrix.Coord{ID: strconv.Itoa(i), Point: p}
	}
	asm := matrix.NewAssembler(oracle, cfg.MaxBatch,
		matrix.WithWorkers(cfg.Workers),
		matrix.WithLogger(logger))
	m, err := asm.Assemble(ctx, []matrix.Coord{{ID: "origin", Point: req.Origin}}, dests)
	if err != nil {
		return nil, err
	}

	origin := req.Origin
	if len(m.SnappedOrigins) == 1 {
		origin = m.SnappedOrigins[0]
	}
	locs := g.Points
	if len(m.SnappedDestinations) == len(dests) {
		locs = m.SnappedDestinations
	}

	row := m.Row(0)
	samples := make([]interp.Sample, 0, len(row))
	for i, sec := range row {
		v := minutes(sec)
		if v == 0 || math.IsNaN(v) {
			continue
		}
		samples = append(samples, interp.Sample{Point: locs[i], Value: v})
	}

	logger.Info("accessibility surface ready",
		"origin", origin,
		"grid", g.Len(),
		"samples", len(samples))

	return &Surface{
		req:       req,
		cfg:       cfg,
		origin:    origin,
		grid:      g,
		samples:   samples,
		extractor: isoline.New(logger),
		logger:    logger,
	}, nil
}

// minutes converts seconds to minutes rounded to two decimals.
func minutes(sec float64) float64 {
	return math.Round(sec/60*100) / 100
}

// Origin is the origin as snapped by the oracle.
func (s *Surface) Origin() orb.Point { return s.origin }

func (s *Surface) Grid() grid.Grid { return s.grid }

func (s *Surface) Request() Request { return s.req }

// Samples returns a copy of the usable travel-time samples, in minutes.
func (s *Surface) Samples() []interp.Sample {
	return append([]interp.Sample(nil), s.samples...)
}

// RenderContour interpolates the cached samples and extracts nClass
// equal-interval contour bands. Each call returns a fresh result.
func (s *Surface) RenderContour(nClass int) (isoline.Result, error) {
	if nClass < 1 {
		return isoline.Result{}, isoline.ErrInvalidClassCount
	}
	r, err := interp.Interpolate(s.samples, s.cfg.Resolution)
	if err != nil {
		return isoline.Result{}, err
	}
	return s.extractor.Extract(r, nClass)
}
