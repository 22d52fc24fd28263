package isoline

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access/interp"
)

// edgeID names the grid edge leaving node (r, c) rightwards (horizontal) or
// upwards (vertical). Indices may be -1 or n for the padding ring.
type edgeID struct {
	vertical bool
	r, c     int
}

type segment struct {
	from orb.Point
	to   edgeID
}

// band classifies raster nodes against [lo, hi), or [lo, hi] when closed.
type band struct {
	r      interp.Raster
	lo, hi float64
	closed bool
	mask   [][]bool
}

func newBand(r interp.Raster, lo, hi float64, closed bool) *band {
	b := &band{r: r, lo: lo, hi: hi, closed: closed, mask: make([][]bool, len(r.Values))}
	for i, row := range r.Values {
		m := make([]bool, len(row))
		for j, v := range row {
			m[j] = b.contains(v)
		}
		b.mask[i] = m
	}
	return b
}

func (b *band) contains(v float64) bool {
	if math.IsNaN(v) || v < b.lo {
		return false
	}
	return v < b.hi || (b.closed && v <= b.hi)
}

func (b *band) inGrid(row, col int) bool {
	return row >= 0 && col >= 0 && row < len(b.mask) && col < len(b.mask[row])
}

func (b *band) in(row, col int) bool {
	return b.inGrid(row, col) && b.mask[row][col]
}

// cross places the boundary on the edge between an inside and an outside
// node. Padding nodes pin it to the inside node, no-data nodes to the midpoint.
func (b *band) cross(in, out [2]int) orb.Point {
	pin := orb.Point{b.r.X[in[1]], b.r.Y[in[0]]}
	if !b.inGrid(out[0], out[1]) {
		return pin
	}
	pout := orb.Point{b.r.X[out[1]], b.r.Y[out[0]]}
	vi, vo := b.r.Values[in[0]][in[1]], b.r.Values[out[0]][out[1]]
	if math.IsNaN(vo) {
		return orb.Point{(pin[0] + pout[0]) / 2, (pin[1] + pout[1]) / 2}
	}
	thr := b.hi
	if vo < b.lo {
		thr = b.lo
	}
	t := (thr - vi) / (vo - vi)
	t = math.Max(0, math.Min(1, t))
	return orb.Point{pin[0] + t*(pout[0]-pin[0]), pin[1] + t*(pout[1]-pin[1])}
}

func (b *band) centerIn(row, col int) bool {
	sum := 0.0
	for _, n := range [4][2]int{{row, col}, {row, col + 1}, {row + 1, col + 1}, {row + 1, col}} {
		if !b.inGrid(n[0], n[1]) {
			return false
		}
		v := b.r.Values[n[0]][n[1]]
		if math.IsNaN(v) {
			return false
		}
		sum += v
	}
	return b.contains(sum / 4)
}

// rings traces the closed boundaries of the band with marching squares over
// a raster padded by one outside node on every side. Boundaries keep the
// band on their left, so outer rings come out counter-clockwise and holes
// clockwise.
func (b *band) rings() []orb.Ring {
	ny := len(b.mask)
	if ny == 0 {
		return nil
	}
	nx := len(b.mask[0])

	next := map[edgeID]segment{}
	var starts []edgeID

	for row := -1; row < ny; row++ {
		for col := -1; col < nx; col++ {
			// corners counter-clockwise from bottom-left, edge k joins corner k to k+1
			corners := [4][2]int{{row, col}, {row, col + 1}, {row + 1, col + 1}, {row + 1, col}}
			edges := [4]edgeID{
				{false, row, col},
				{true, row, col + 1},
				{false, row + 1, col},
				{true, row, col},
			}
			var inside [4]bool
			anyIn := false
			for k, c := range corners {
				inside[k] = b.in(c[0], c[1])
				anyIn = anyIn || inside[k]
			}
			if !anyIn {
				continue
			}

			var crossings []int
			for k := 0; k < 4; k++ {
				if inside[k] != inside[(k+1)%4] {
					crossings = append(crossings, k)
				}
			}
			if len(crossings) == 0 {
				continue
			}

			step := -1
			if len(crossings) == 4 && b.centerIn(row, col) {
				step = 1
			}
			for i, k := range crossings {
				if !inside[k] {
					continue // entry
				}
				j := crossings[(i+step+len(crossings))%len(crossings)]
				from := b.cross(corners[k], corners[(k+1)%4])
				next[edges[k]] = segment{from: from, to: edges[j]}
				starts = append(starts, edges[k])
			}
		}
	}

	var out []orb.Ring
	used := make(map[edgeID]bool, len(next))
	for _, s := range starts {
		if used[s] {
			continue
		}
		var ring orb.Ring
		cur := s
		for !used[cur] {
			used[cur] = true
			seg, ok := next[cur]
			if !ok {
				break
			}
			if n := len(ring); n == 0 || ring[n-1] != seg.from {
				ring = append(ring, seg.from)
			}
			cur = seg.to
		}
		for len(ring) > 1 && ring[0] == ring[len(ring)-1] {
			ring = ring[:len(ring)-1]
		}
		if len(ring) == 0 {
			continue
		}
		out = append(out, append(ring, ring[0]))
	}
	return out
}
