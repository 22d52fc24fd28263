package router

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
)

type tableBody struct {
	Units        string       `json:"units"`
	Durations    [][]*float64 `json:"durations"`
	Sources      []orb.Point  `json:"sources,omitempty"`
	Destinations []orb.Point  `json:"destinations,omitempty"`
}

// HandleTable returns the sources x destinations travel-time matrix,
// splitting it into bounded queries when it exceeds the backend table size.
// Without destinations the matrix is square over the sources.
func HandleTable(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		srcs, err := parseCoords(q, "sources", 1)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		dsts, err := parseCoords(q, "destinations", 0)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if len(dsts) == 0 {
			dsts = srcs
		}
		inMinutes, err := optBool(q, "minutes")
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		asm := matrix.NewAssembler(d.Oracle, d.Access.MaxBatch,
			matrix.WithWorkers(d.Access.Workers),
			matrix.WithLogger(d.Logger))
		m, err := asm.Assemble(r.Context(), labelled(srcs), labelled(dsts))
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		rows, _ := m.Shape()
		body := tableBody{
			Units:        "seconds",
			Durations:    make([][]*float64, rows),
			Sources:      m.SnappedOrigins,
			Destinations: m.SnappedDestinations,
		}
		if inMinutes {
			body.Units = "minutes"
		}
		for i := range rows {
			body.Durations[i] = nullable(m.Row(i), inMinutes)
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func labelled(ps []orb.Point) []matrix.Coord {
	out := make([]matrix.Coord, len(ps))
	for i, p := range ps {
		out[i] = matrix.Coord{ID: strconv.Itoa(i), Point: p}
	}
	return out
}

func nullable(row []float64, inMinutes bool) []*float64 {
	out := make([]*float64, len(row))
	for j, v := range row {
		if math.IsNaN(v) {
			continue
		}
		if inMinutes {
			v = math.Round(v/60*100) / 100
		}
		out[j] = &v
	}
	return out
}

func HandleNearest(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p, err := parseOrigin(q)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		n, err := optInt(q, "number", 1)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if n < 1 || n > 100 {
			writeError(w, r, d.Logger, invalid("number must be in [1,100]"))
			return
		}
		resp, err := d.Routing.Nearest(r.Context(), p, n)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// geometryFormat resolves the format parameter into what to ask OSRM for
// and how to render the answer.
func geometryFormat(q map[string][]string) (request, render string, err error) {
	f := ""
	if v := q["format"]; len(v) > 0 {
		f = strings.ToLower(strings.TrimSpace(v[0]))
	}
	switch f {
	case "", osrm.GeometryPolyline:
		return osrm.GeometryPolyline, "json", nil
	case osrm.GeometryPolyline6:
		return osrm.GeometryPolyline6, "json", nil
	case osrm.GeometryGeoJSON:
		return osrm.GeometryGeoJSON, "json", nil
	case "wkt", "wkb":
		return osrm.GeometryPolyline6, f, nil
	}
	return "", "", invalid(fmt.Sprintf("format %q: want polyline, polyline6, geojson, wkt or wkb", f))
}

// writeRoutes renders routes in the requested shape. WKT writes one line
// per route; WKB writes the first route only.
func writeRoutes(w http.ResponseWriter, r *http.Request, d Deps, render string, routes []osrm.Route, payload any) {
	switch render {
	case "wkt":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, rt := range routes {
			s, err := rt.WKT()
			if err != nil {
				d.Logger.WarnContext(r.Context(), "route without geometry", "err", err)
				continue
			}
			_, _ = fmt.Fprintln(w, s)
		}
	case "wkb":
		if len(routes) == 0 {
			writeError(w, r, d.Logger, osrm.ErrNoGeometry)
			return
		}
		b, err := routes[0].WKB()
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(b)
	default:
		writeJSON(w, http.StatusOK, payload)
	}
}

func HandleRoute(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		coords, err := parseCoords(q, "coords", 2)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		alternatives, err := optBool(q, "alternatives")
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		steps, err := optBool(q, "steps")
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		geoms, render, err := geometryFormat(q)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		resp, err := d.Routing.Route(r.Context(), osrm.RouteRequest{
			Coordinates:  coords,
			Alternatives: alternatives,
			Steps:        steps,
			Overview:     osrm.OverviewFull,
			Geometries:   geoms,
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeRoutes(w, r, d, render, resp.Routes, resp)
	}
}

func HandleMatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		coords, err := parseCoords(q, "coords", 2)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		timestamps, err := parseList(q, "timestamps", len(coords), parseInt64)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		radiuses, err := parseList(q, "radiuses", len(coords), parseFloat)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		geoms, render, err := geometryFormat(q)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		resp, err := d.Routing.Match(r.Context(), osrm.MatchRequest{
			Points:     coords,
			Timestamps: timestamps,
			Radiuses:   radiuses,
			Overview:   osrm.OverviewFull,
			Geometries: geoms,
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeRoutes(w, r, d, render, resp.Matchings, resp)
	}
}

type tripBody struct {
	osrm.TripResponse
	Order []osrm.TripStop `json:"order"`
}

func HandleTrip(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		coords, err := parseCoords(q, "coords", 2)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		geoms, render, err := geometryFormat(q)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		resp, err := d.Routing.Trip(r.Context(), osrm.TripRequest{
			Coordinates: coords,
			Overview:    osrm.OverviewFull,
			Geometries:  geoms,
		})
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeRoutes(w, r, d, render, resp.Trips, tripBody{TripResponse: resp, Order: resp.Order()})
	}
}
