// Package grid builds regular sampling lattices over a region.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrEmptyRegion       = errors.New("region has zero width or height")
	ErrInvalidResolution = errors.New("invalid grid resolution")
)

// ceil tolerance so that 0.8/0.1 counts as 8 cells
const ratioEps = 1e-9

// Grid is an ordered set of sample points, column-major from the top-left
// corner of Bound. Cells is only populated by MakeGrid.
type Grid struct {
	Bound  orb.Bound
	Rows   int
	Cols   int
	CellW  float64
	CellH  float64
	CRS    string
	Cells  []orb.Polygon
	Points []orb.Point
}

func (g Grid) Len() int { return len(g.Points) }

// RegionAround returns the bounding box of a circular buffer of radius
// around origin.
func RegionAround(origin orb.Point, radius float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{origin[0] - radius, origin[1] - radius},
		Max: orb.Point{origin[0] + radius, origin[1] + radius},
	}
}

// SizeFor reports the lattice dimensions MakeGrid would produce.
func SizeFor(region orb.Geometry, size float64) (rows, cols int, err error) {
	if !(size > 0) || math.IsInf(size, 0) {
		return 0, 0, fmt.Errorf("cell size %v: %w", size, ErrInvalidResolution)
	}
	b := region.Bound()
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if !(w > 0) || !(h > 0) {
		return 0, 0, ErrEmptyRegion
	}
	return ceilRatio(h, size), ceilRatio(w, size), nil
}

// SizeForCount reports the lattice dimensions MakeGridN would produce.
func SizeForCount(count int) (rows, cols int) {
	n := int(math.Floor(math.Sqrt(float64(count))))
	return n, n
}

func ceilRatio(a, b float64) int {
	return int(math.Ceil(a/b - ratioEps))
}

// MakeGrid tiles the bounding box of region with square cells of the given
// size, starting at the top-left corner. The last row and column may extend
// past the region when its extent is not a multiple of size.
func MakeGrid(region orb.Geometry, size float64, crs string) (Grid, error) {
	rows, cols, err := SizeFor(region, size)
	if err != nil {
		return Grid{}, err
	}
	b := region.Bound()
	g := Grid{
		Bound:  b,
		Rows:   rows,
		Cols:   cols,
		CellW:  size,
		CellH:  size,
		CRS:    crs,
		Cells:  make([]orb.Polygon, 0, rows*cols),
		Points: make([]orb.Point, 0, rows*cols),
	}

	left := b.Min[0]
	for c := 0; c < cols; c++ {
		right := left + size
		top := b.Max[1]
		for r := 0; r < rows; r++ {
			bottom := top - size
			ring := orb.Ring{
				{left, top}, {right, top}, {right, bottom}, {left, bottom}, {left, top},
			}
			g.Cells = append(g.Cells, orb.Polygon{ring})
			g.Points = append(g.Points, orb.Point{(left + right) / 2, (top + bottom) / 2})
			top = bottom
		}
		left = right
	}
	return g, nil
}

// MakeGridN lays floor(sqrt(count)) x floor(sqrt(count)) cell centers over
// the bounding box of region.
func MakeGridN(region orb.Geometry, count int, crs string) (Grid, error) {
	n, _ := SizeForCount(count)
	if n < 1 {
		return Grid{}, fmt.Errorf("point count %d: %w", count, ErrInvalidResolution)
	}
	b := region.Bound()
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if !(w > 0) || !(h > 0) {
		return Grid{}, ErrEmptyRegion
	}
	cw, ch := w/float64(n), h/float64(n)
	g := Grid{
		Bound:  b,
		Rows:   n,
		Cols:   n,
		CellW:  cw,
		CellH:  ch,
		CRS:    crs,
		Points: make([]orb.Point, 0, n*n),
	}
	for c := 0; c < n; c++ {
		x := b.Min[0] + (float64(c)+0.5)*cw
		for r := 0; r < n; r++ {
			y := b.Max[1] - (float64(r)+0.5)*ch
			g.Points = append(g.Points, orb.Point{x, y})
		}
	}
	return g, nil
}
