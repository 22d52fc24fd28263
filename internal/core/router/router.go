// Package router serves the accessibility and routing API.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/cache/sessions"
	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
)

// Routing is the part of the OSRM client the pass-through endpoints use.
type Routing interface {
	Nearest(ctx context.Context, point orb.Point, number int) (osrm.NearestResponse, error)
	Route(ctx context.Context, r osrm.RouteRequest) (osrm.RouteResponse, error)
	Match(ctx context.Context, r osrm.MatchRequest) (osrm.MatchResponse, error)
	Trip(ctx context.Context, r osrm.TripRequest) (osrm.TripResponse, error)
}

// Defaults fill isochrone parameters the caller leaves out.
type Defaults struct {
	Radius  float64
	Points  int
	Classes int
}

type Deps struct {
	Logger  *slog.Logger
	Profile string
	Routing Routing
	// Oracle answers travel-time queries, usually the OSRM client behind
	// the table cache.
	Oracle matrix.Oracle
	// Sessions may be nil, in which case every isochrone is queried afresh.
	Sessions *sessions.Cache
	Access   access.Config
	Defaults Defaults
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Access.MaxBatch <= 0 {
		d.Access.MaxBatch = access.DefaultMaxBatch
	}
	if d.Defaults.Radius <= 0 {
		d.Defaults.Radius = 0.4
	}
	if d.Defaults.Points <= 0 {
		d.Defaults.Points = 100
	}
	if d.Defaults.Classes <= 0 {
		d.Defaults.Classes = 8
	}
	return d
}

// Mount registers the API routes on r.
func Mount(r chi.Router, d Deps) {
	d = d.withDefaults()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/isochrone", instrument("/v1/isochrone", HandleIsochrone(d)))
		r.Get("/table", instrument("/v1/table", HandleTable(d)))
		r.Get("/route", instrument("/v1/route", HandleRoute(d)))
		r.Get("/nearest", instrument("/v1/nearest", HandleNearest(d)))
		r.Get("/match", instrument("/v1/match", HandleMatch(d)))
		r.Get("/trip", instrument("/v1/trip", HandleTrip(d)))
	})
}

func instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
