// Command isochrone queries one accessibility surface and prints its
// contours as a GeoJSON FeatureCollection or as WKT lines.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/core/httpclient"
	"github.com/mohammed-shakir/osrm-access/internal/logger"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
)

var Version = "dev"

type options struct {
	osrm      string
	lon, lat  float64
	radius    float64
	points    int
	precision float64
	h3        int
	classes   int
	format    string
	maxGrid   int
	maxBatch  int
	workers   int
	timeout   time.Duration
	logLevel  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("isochrone", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.osrm, "osrm", "http://localhost:5000/v1/driving", "OSRM endpoint as host/version/profile")
	fs.Float64Var(&o.lon, "lon", 0, "origin longitude")
	fs.Float64Var(&o.lat, "lat", 0, "origin latitude")
	fs.Float64Var(&o.radius, "radius", 0.4, "half-width of the sampled square, in degrees")
	fs.IntVar(&o.points, "points", 0, "approximate number of grid points")
	fs.Float64Var(&o.precision, "precision", 0, "grid cell size in degrees")
	fs.IntVar(&o.h3, "h3", 0, "H3 resolution 1..15 for a hexagonal grid (0 leaves it unset)")
	fs.IntVar(&o.classes, "classes", 8, "number of contour classes")
	fs.StringVar(&o.format, "format", "geojson", "output format: geojson|wkt")
	fs.IntVar(&o.maxGrid, "max-grid", access.DefaultMaxGridPoints, "largest accepted grid, negative disables")
	fs.IntVar(&o.maxBatch, "max-batch", access.DefaultMaxBatch, "largest coordinate count per table request")
	fs.IntVar(&o.workers, "workers", 1, "concurrent table requests")
	fs.DurationVar(&o.timeout, "timeout", 2*time.Minute, "overall deadline")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.points == 0 && o.precision == 0 && o.h3 == 0 {
		o.points = 100
	}
	switch o.format {
	case "geojson", "wkt":
	default:
		return o, fmt.Errorf("format %q: want geojson or wkt", o.format)
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	reqCfg, err := osrm.ParseRequestConfig(o.osrm)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     o.logLevel,
		Console:   true,
		Profile:   reqCfg.Profile,
		Component: "isochrone",
	}, stderr)
	log := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client, err := osrm.New(log, httpclient.NewOutbound(o.timeout, "osrm-access-isochrone/"+Version), reqCfg)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	s, err := access.New(ctx, client, access.Request{
		Origin:    orb.Point{o.lon, o.lat},
		Radius:    o.radius,
		Points:    o.points,
		Precision: o.precision,
		H3Res:     o.h3,
	}, access.Config{
		MaxGridPoints: o.maxGrid,
		MaxBatch:      o.maxBatch,
		Workers:       o.workers,
	}, log)
	if err != nil {
		log.Error("surface query failed", "err", err)
		return 1
	}

	res, err := s.RenderContour(o.classes)
	if err != nil {
		log.Error("contour extraction failed", "err", err)
		return 1
	}
	for _, d := range res.Skipped {
		log.Warn("contour level skipped", "level", d.Level)
	}

	if o.format == "wkt" {
		for i, g := range res.WKT() {
			_, _ = fmt.Fprintf(stdout, "%g\t%s\n", res.Levels[i], g)
		}
		return 0
	}

	enc := json.NewEncoder(stdout)
	if err := enc.Encode(res.FeatureCollection("time")); err != nil {
		log.Error("encode feature collection", "err", err)
		return 1
	}
	return 0
}
