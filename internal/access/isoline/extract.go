// Package isoline extracts filled contour polygons, with holes, from an
// interpolated raster.
package isoline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/mohammed-shakir/osrm-access/internal/access/interp"
	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
)

var (
	ErrInvalidClassCount = errors.New("class count must be at least 1")
	ErrEmptyRaster       = errors.New("raster has no positive values")
)

// minRingLen counts the closing vertex.
const minRingLen = 4

// DegenerateContour marks a level that produced no polygon with at least
// four vertices. It is reported, not returned as a failure.
type DegenerateContour struct {
	Level float64
}

func (e *DegenerateContour) Error() string {
	return fmt.Sprintf("contour level %g produced no polygon with at least %d vertices", e.Level, minRingLen)
}

// Result pairs each populated level with its polygon. Levels and Polygons
// always have the same length and ascend together.
type Result struct {
	Levels   []float64
	Polygons []orb.Geometry
	Skipped  []*DegenerateContour
}

type Contour struct {
	Level    float64
	Geometry orb.Geometry
}

func (r Result) Contours() []Contour {
	out := make([]Contour, len(r.Levels))
	for i := range r.Levels {
		out[i] = Contour{Level: r.Levels[i], Geometry: r.Polygons[i]}
	}
	return out
}

// FeatureCollection renders one feature per level with the level stored
// under field.
func (r Result) FeatureCollection(field string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, g := range r.Polygons {
		f := geojson.NewFeature(g)
		f.Properties[field] = r.Levels[i]
		fc.Append(f)
	}
	return fc
}

func (r Result) WKT() []string {
	out := make([]string, len(r.Polygons))
	for i, g := range r.Polygons {
		out[i] = wkt.MarshalString(g)
	}
	return out
}

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{logger: logger}
}

func Extract(r interp.Raster, nClass int) (Result, error) {
	return New(nil).Extract(r, nClass)
}

// Extract splits [0, max] into nClass equal bands and returns one polygon or
// multipolygon per band, labelled with the band's upper breakpoint. The zero
// breakpoint is never reported. Bands without a non-degenerate ring are
// dropped from both Levels and Polygons and listed in Skipped.
func (e *Extractor) Extract(r interp.Raster, nClass int) (Result, error) {
	if nClass < 1 {
		return Result{}, ErrInvalidClassCount
	}
	top := r.Max()
	if math.IsNaN(top) || top <= 0 {
		return Result{}, ErrEmptyRaster
	}

	bp := Breakpoints(top, nClass)
	var res Result
	for i := 1; i < len(bp); i++ {
		level := bp[i]
		b := newBand(r, bp[i-1], level, i == len(bp)-1)
		geom := assemble(b.rings())
		if geom == nil {
			d := &DegenerateContour{Level: level}
			res.Skipped = append(res.Skipped, d)
			observability.IncDegenerateContour()
			e.logger.Warn("degenerate contour level dropped", "level", level, "class", i, "classes", nClass)
			continue
		}
		res.Levels = append(res.Levels, level)
		res.Polygons = append(res.Polygons, geom)
	}
	return res, nil
}

// assemble turns traced rings into a Polygon, a MultiPolygon, or nil when no
// ring is usable. Each hole goes to the smallest outer ring containing it.
func assemble(rings []orb.Ring) orb.Geometry {
	var outers, holes []orb.Ring
	for _, ring := range rings {
		if len(ring) < minRingLen {
			continue
		}
		switch ring.Orientation() {
		case orb.CCW:
			outers = append(outers, ring)
		case orb.CW:
			holes = append(holes, ring)
		}
	}
	if len(outers) == 0 {
		return nil
	}

	polys := make([]orb.Polygon, len(outers))
	areas := make([]float64, len(outers))
	for i, o := range outers {
		polys[i] = orb.Polygon{o}
		areas[i] = math.Abs(planar.Area(o))
	}
	for _, h := range holes {
		best := -1
		for i, o := range outers {
			if !ringInside(h, o) {
				continue
			}
			if best < 0 || areas[i] < areas[best] {
				best = i
			}
		}
		if best >= 0 {
			polys[best] = append(polys[best], h)
		}
	}

	if len(polys) == 1 {
		return polys[0]
	}
	return orb.MultiPolygon(polys)
}

// ringInside reports whether inner lies in outer, judged by the first of its
// vertices that is not on outer's boundary.
func ringInside(inner, outer orb.Ring) bool {
	if !outer.Bound().Contains(inner.Bound().Min) || !outer.Bound().Contains(inner.Bound().Max) {
		return false
	}
	for _, p := range inner {
		if onRing(p, outer) {
			continue
		}
		return planar.RingContains(outer, p)
	}
	return false
}

func onRing(p orb.Point, r orb.Ring) bool {
	for _, q := range r {
		if p == q {
			return true
		}
	}
	return false
}
