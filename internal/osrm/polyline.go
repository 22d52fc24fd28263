package osrm

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"
)

func codec(precision int) polyline.Codec {
	return polyline.Codec{Dim: 2, Scale: math.Pow10(precision)}
}

// DecodePolyline decodes an encoded polyline of the given precision (5 for
// "polyline", 6 for "polyline6") into lon/lat points.
func DecodePolyline(s string, precision int) (orb.LineString, error) {
	coords, rest, err := codec(precision).DecodeCoords([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}
	ls := make(orb.LineString, len(coords))
	for i, c := range coords {
		ls[i] = orb.Point{c[1], c[0]}
	}
	return ls, nil
}

func EncodePolyline(ls orb.LineString, precision int) string {
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p[1], p[0]}
	}
	return string(codec(precision).EncodeCoords(nil, coords))
}
