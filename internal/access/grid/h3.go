package grid

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("h3 resolution %d (must be 0..15): %w", res, ErrInvalidResolution)
	}
	return nil
}

// MakeGridH3 samples the bounding box of region at the centers of the H3
// cells whose centroids fall inside it. Points are ordered by cell index so
// the output is deterministic. Rows is the point count and Cols is 1.
func MakeGridH3(region orb.Geometry, res int) (Grid, error) {
	if err := validateRes(res); err != nil {
		return Grid{}, err
	}
	b := region.Bound()
	if !(b.Max[0] > b.Min[0]) || !(b.Max[1] > b.Min[1]) {
		return Grid{}, ErrEmptyRegion
	}
	loop := h3.GeoLoop{
		{Lat: b.Min[1], Lng: b.Min[0]},
		{Lat: b.Min[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Min[0]},
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, res)
	if err != nil {
		return Grid{}, fmt.Errorf("h3 polyfill: %w", err)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	g := Grid{
		Bound:  b,
		Cols:   1,
		CRS:    "EPSG:4326",
		Points: make([]orb.Point, 0, len(cells)),
	}
	var prev h3.Cell
	for i, c := range cells {
		if i > 0 && c == prev {
			continue
		}
		prev = c
		ll, err := c.LatLng()
		if err != nil {
			return Grid{}, fmt.Errorf("h3 cell center %s: %w", c, err)
		}
		g.Points = append(g.Points, orb.Point{ll.Lng, ll.Lat})
	}
	g.Rows = len(g.Points)
	return g, nil
}
