// Package interp turns scattered travel-time samples into a dense raster by
// linear interpolation over a Delaunay triangulation.
package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/floats"
)

const DefaultResolution = 200

// barycentric tolerance for raster nodes lying on triangle edges
const edgeEps = 1e-9

// triangles thinner than this (in normalized units) carry no raster nodes
const degenerateArea = 1e-12

var ErrInvalidResolution = errors.New("raster resolution must be at least 2")

type Sample struct {
	Point orb.Point
	Value float64
}

// Raster holds Values[row][col] at (X[col], Y[row]). X and Y ascend. Nodes
// outside the convex hull of the samples are NaN.
type Raster struct {
	X      []float64
	Y      []float64
	Values [][]float64
}

// Max is the largest defined value, NaN when the raster is empty.
func (r Raster) Max() float64 {
	m := math.NaN()
	for _, row := range r.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(m) || v > m {
				m = v
			}
		}
	}
	return m
}

func (r Raster) Defined() int {
	n := 0
	for _, row := range r.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

type InsufficientSamplesError struct {
	Usable int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("insufficient samples: %d usable, need at least 3 non-collinear", e.Usable)
}

// Usable drops samples whose value is zero or undefined (zero encodes the
// origin itself or an unreachable point) and repeated locations.
func Usable(samples []Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	seen := make(map[orb.Point]struct{}, len(samples))
	for _, s := range samples {
		if s.Value == 0 || math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		if math.IsNaN(s.Point[0]) || math.IsNaN(s.Point[1]) {
			continue
		}
		if _, dup := seen[s.Point]; dup {
			continue
		}
		seen[s.Point] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Interpolate builds a resolution x resolution raster spanning the extent of
// the usable samples.
func Interpolate(samples []Sample, resolution int) (Raster, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	if resolution < 2 {
		return Raster{}, ErrInvalidResolution
	}
	usable := Usable(samples)
	if len(usable) < 3 {
		return Raster{}, &InsufficientSamplesError{Usable: len(usable)}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range usable {
		minX, maxX = math.Min(minX, s.Point[0]), math.Max(maxX, s.Point[0])
		minY, maxY = math.Min(minY, s.Point[1]), math.Max(maxY, s.Point[1])
	}
	span := math.Max(maxX-minX, maxY-minY)

	pts := make([]delaunay.Point, len(usable))
	for i, s := range usable {
		pts[i] = delaunay.Point{X: (s.Point[0] - minX) / span, Y: (s.Point[1] - minY) / span}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil || len(tri.Triangles) == 0 {
		// collinear input has no triangulation
		return Raster{}, &InsufficientSamplesError{Usable: len(usable)}
	}

	r := Raster{
		X:      floats.Span(make([]float64, resolution), minX, maxX),
		Y:      floats.Span(make([]float64, resolution), minY, maxY),
		Values: make([][]float64, resolution),
	}
	for i := range r.Values {
		row := make([]float64, resolution)
		for j := range row {
			row[j] = math.NaN()
		}
		r.Values[i] = row
	}

	nx := make([]float64, resolution)
	ny := make([]float64, resolution)
	for i := range nx {
		nx[i] = (r.X[i] - minX) / span
		ny[i] = (r.Y[i] - minY) / span
	}
	stepX, stepY := nx[1]-nx[0], ny[1]-ny[0]

	for k := 0; k+2 < len(tri.Triangles); k += 3 {
		ia, ib, ic := tri.Triangles[k], tri.Triangles[k+1], tri.Triangles[k+2]
		det := orient(pts[ia], pts[ib], pts[ic])
		if det < 0 {
			ib, ic = ic, ib
			det = -det
		}
		if det < degenerateArea {
			continue
		}
		a, b, c := pts[ia], pts[ib], pts[ic]
		c0, c1 := nodeRange(math.Min(a.X, math.Min(b.X, c.X)), math.Max(a.X, math.Max(b.X, c.X)), stepX, resolution)
		r0, r1 := nodeRange(math.Min(a.Y, math.Min(b.Y, c.Y)), math.Max(a.Y, math.Max(b.Y, c.Y)), stepY, resolution)
		va, vb, vc := usable[ia].Value, usable[ib].Value, usable[ic].Value
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				if !math.IsNaN(r.Values[row][col]) {
					continue
				}
				p := delaunay.Point{X: nx[col], Y: ny[row]}
				la := orient(b, c, p) / det
				lb := orient(c, a, p) / det
				lc := 1 - la - lb
				if la < -edgeEps || lb < -edgeEps || lc < -edgeEps {
					continue
				}
				r.Values[row][col] = la*va + lb*vb + lc*vc
			}
		}
	}
	return r, nil
}

// nodeRange returns the raster indices whose normalized coordinate falls in
// [lo, hi], widened by one node to absorb rounding.
func nodeRange(lo, hi, step float64, n int) (int, int) {
	i0 := int(math.Floor(lo/step)) - 1
	i1 := int(math.Ceil(hi/step)) + 1
	return max(i0, 0), min(i1, n-1)
}

// orient is twice the signed area of abc, positive when counter-clockwise.
func orient(a, b, c delaunay.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}
