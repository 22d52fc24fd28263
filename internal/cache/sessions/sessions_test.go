package sessions

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
)

type hypotOracle struct{ calls atomic.Int32 }

func (o *hypotOracle) TravelTimes(_ context.Context, srcs, dsts []orb.Point) (matrix.Table, error) {
	o.calls.Add(1)
	d := mat.NewDense(len(srcs), len(dsts), nil)
	for i, s := range srcs {
		for j, t := range dsts {
			d.Set(i, j, math.Hypot(s[0]-t[0], s[1]-t[1])*1e5)
		}
	}
	return matrix.Table{Durations: d}, nil
}

func builder(o matrix.Oracle) Builder {
	return func(ctx context.Context, req access.Request) (*access.Surface, error) {
		return access.New(ctx, o, req, access.Config{}, nil)
	}
}

var req = access.Request{Origin: orb.Point{21.0566, 42.0041}, Radius: 0.4, Points: 25}

func TestGetOrBuild_ReusesSurface(t *testing.T) {
	c := New(4, time.Minute)
	o := &hypotOracle{}
	ctx := context.Background()

	s1, hit, err := c.GetOrBuild(ctx, "driving", req, builder(o))
	if err != nil || hit {
		t.Fatalf("first GetOrBuild hit=%v err=%v", hit, err)
	}
	s2, hit, err := c.GetOrBuild(ctx, "driving", req, builder(o))
	if err != nil || !hit {
		t.Fatalf("second GetOrBuild hit=%v err=%v", hit, err)
	}
	if s1 != s2 {
		t.Fatalf("expected the same surface back")
	}
	for _, n := range []int{3, 5, 8} {
		if _, err := s2.RenderContour(n); err != nil {
			t.Fatalf("RenderContour(%d): %v", n, err)
		}
	}
	if got := o.calls.Load(); got != 1 {
		t.Fatalf("oracle calls=%d want 1", got)
	}

	other := req
	other.Radius = 0.3
	if _, hit, _ := c.GetOrBuild(ctx, "driving", other, builder(o)); hit {
		t.Fatalf("different radius must miss")
	}
	if _, hit, _ := c.GetOrBuild(ctx, "foot", req, builder(o)); hit {
		t.Fatalf("different profile must miss")
	}
}

func TestGetOrBuild_DoesNotCacheFailures(t *testing.T) {
	c := New(4, time.Minute)
	boom := errors.New("boom")
	fail := func(context.Context, access.Request) (*access.Surface, error) { return nil, boom }

	if _, _, err := c.GetOrBuild(context.Background(), "driving", req, fail); !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed build was cached")
	}
}

func TestPurgeProfile(t *testing.T) {
	c := New(8, time.Minute)
	o := &hypotOracle{}
	ctx := context.Background()
	for _, p := range []string{"driving", "foot"} {
		for _, r := range []float64{0.2, 0.3} {
			q := req
			q.Radius = r
			if _, _, err := c.GetOrBuild(ctx, p, q, builder(o)); err != nil {
				t.Fatalf("GetOrBuild: %v", err)
			}
		}
	}
	if n := c.PurgeProfile("driving"); n != 2 {
		t.Fatalf("purged=%d want 2", n)
	}
	if _, ok := c.Get("driving", req); ok {
		t.Fatalf("driving entry survived purge")
	}
	q := req
	q.Radius = 0.2
	if _, ok := c.Get("foot", q); !ok {
		t.Fatalf("foot entry should survive")
	}
}

func TestEntriesExpire(t *testing.T) {
	c := New(4, 20*time.Millisecond)
	if _, _, err := c.GetOrBuild(context.Background(), "driving", req, builder(&hypotOracle{})); err != nil {
		t.Fatalf("GetOrBuild: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("driving", req); ok {
		t.Fatalf("entry should have expired")
	}
}
