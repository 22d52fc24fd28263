package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	mylog "github.com/mohammed-shakir/osrm-access/internal/logger"
)

type isochroneQuery struct {
	req     access.Request
	classes int
	format  string
}

func parseIsochrone(r *http.Request, d Deps) (isochroneQuery, error) {
	q := r.URL.Query()
	origin, err := parseOrigin(q)
	if err != nil {
		return isochroneQuery{}, err
	}
	radius, err := optFloat(q, "radius", d.Defaults.Radius)
	if err != nil {
		return isochroneQuery{}, err
	}
	points, err := optInt(q, "points", 0)
	if err != nil {
		return isochroneQuery{}, err
	}
	precision, err := optFloat(q, "precision", 0)
	if err != nil {
		return isochroneQuery{}, err
	}
	h3Res, err := optInt(q, "h3", 0)
	if err != nil {
		return isochroneQuery{}, err
	}
	if points == 0 && precision == 0 && h3Res == 0 {
		points = d.Defaults.Points
	}
	classes, err := optInt(q, "classes", d.Defaults.Classes)
	if err != nil {
		return isochroneQuery{}, err
	}
	if classes < 1 {
		return isochroneQuery{}, invalid("classes must be at least 1")
	}
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	switch format {
	case "":
		format = "geojson"
	case "geojson", "wkt":
	default:
		return isochroneQuery{}, invalid(fmt.Sprintf("format %q: want geojson or wkt", format))
	}
	return isochroneQuery{
		req: access.Request{
			Origin:    origin,
			Radius:    radius,
			Points:    points,
			Precision: precision,
			H3Res:     h3Res,
		},
		classes: classes,
		format:  format,
	}, nil
}

// HandleIsochrone renders accessibility contours around lon,lat. A surface
// already queried for the same origin and grid is reused, so changing only
// classes or format costs no routing queries.
func HandleIsochrone(d Deps) http.HandlerFunc {
	build := func(ctx context.Context, req access.Request) (*access.Surface, error) {
		return access.New(ctx, d.Oracle, req, d.Access, d.Logger)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		iq, err := parseIsochrone(r, d)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		var (
			s   *access.Surface
			hit bool
		)
		if d.Sessions != nil {
			s, hit, err = d.Sessions.GetOrBuild(r.Context(), d.Profile, iq.req, build)
		} else {
			s, err = build(r.Context(), iq.req)
		}
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		ctx := mylog.WithCacheOutcome(r.Context(), outcome)
		w.Header().Set("X-Cache", outcome)

		res, err := s.RenderContour(iq.classes)
		if err != nil {
			writeError(w, r.WithContext(ctx), d.Logger, err)
			return
		}
		d.Logger.InfoContext(ctx, "isochrone rendered",
			"classes", iq.classes,
			"levels", len(res.Levels),
			"skipped", len(res.Skipped))

		if iq.format == "wkt" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			for i, g := range res.WKT() {
				_, _ = fmt.Fprintf(w, "%g\t%s\n", res.Levels[i], g)
			}
			return
		}

		fc := res.FeatureCollection("time")
		o := s.Origin()
		fc.ExtraMembers = geojson.Properties{
			"origin":  []float64{o[0], o[1]},
			"samples": len(s.Samples()),
			"grid":    s.Grid().Len(),
		}
		b, err := json.Marshal(fc)
		if err != nil {
			writeError(w, r, d.Logger, fmt.Errorf("encode feature collection: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write(b)
	}
}
