package osrm

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
)

// TravelTimes answers one travel-time oracle query with a single table
// request. Repeated coordinates are sent once, so a request never carries
// more coordinates than the distinct points of srcs and dsts together.
func (c *Client) TravelTimes(ctx context.Context, srcs, dsts []orb.Point) (matrix.Table, error) {
	if len(srcs) == 0 || len(dsts) == 0 {
		return matrix.Table{}, fmt.Errorf("osrm table: empty sources or destinations")
	}
	var coords []orb.Point
	index := make(map[orb.Point]int, len(srcs)+len(dsts))
	at := func(p orb.Point) int {
		if i, ok := index[p]; ok {
			return i
		}
		index[p] = len(coords)
		coords = append(coords, p)
		return len(coords) - 1
	}
	src := make([]int, len(srcs))
	for i, p := range srcs {
		src[i] = at(p)
	}
	dst := make([]int, len(dsts))
	for i, p := range dsts {
		dst[i] = at(p)
	}

	resp, err := c.table(ctx, coords, src, dst)
	if err != nil {
		return matrix.Table{}, err
	}
	d, err := resp.Matrix()
	if err != nil {
		return matrix.Table{}, err
	}
	if r, cols := d.Dims(); r != len(srcs) || cols != len(dsts) {
		return matrix.Table{}, fmt.Errorf("osrm table: got %dx%d durations for %dx%d query", r, cols, len(srcs), len(dsts))
	}
	return matrix.Table{
		Durations:    d,
		Sources:      resp.SourceLocations(),
		Destinations: resp.DestinationLocations(),
	}, nil
}

var _ matrix.Oracle = (*Client)(nil)
