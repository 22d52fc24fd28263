package tablecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"

	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
	"github.com/mohammed-shakir/osrm-access/internal/cache/redisstore"
)

var ns = Namespace{Host: "http://osrm:5000", Version: "v1", Profile: "driving"}

// countingOracle answers with seconds = 100*(x distance) and snaps every
// point 0.001 east. Destinations at x=99 are unreachable.
type countingOracle struct {
	mu    sync.Mutex
	calls [][]orb.Point
	err   error
}

func (o *countingOracle) TravelTimes(_ context.Context, srcs, dsts []orb.Point) (matrix.Table, error) {
	o.mu.Lock()
	o.calls = append(o.calls, append([]orb.Point(nil), srcs...))
	o.mu.Unlock()
	if o.err != nil {
		return matrix.Table{}, o.err
	}
	d := mat.NewDense(len(srcs), len(dsts), nil)
	for i, s := range srcs {
		for j, t := range dsts {
			if t[0] == 99 {
				d.Set(i, j, math.NaN())
				continue
			}
			d.Set(i, j, 100*math.Abs(t[0]-s[0]))
		}
	}
	return matrix.Table{Durations: d, Sources: snap(srcs), Destinations: snap(dsts)}, nil
}

func (o *countingOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

func snap(ps []orb.Point) []orb.Point {
	out := make([]orb.Point, len(ps))
	for i, p := range ps {
		out[i] = orb.Point{p[0] + 0.001, p[1]}
	}
	return out
}

func newStore(t *testing.T) (*redisstore.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func tablesEqual(t *testing.T, got, want matrix.Table) {
	t.Helper()
	if !mat.Equal(nanToNeg(got.Durations), nanToNeg(want.Durations)) {
		t.Fatalf("durations differ:\n got=%v\nwant=%v", mat.Formatted(got.Durations), mat.Formatted(want.Durations))
	}
	if len(got.Sources) != len(want.Sources) || len(got.Destinations) != len(want.Destinations) {
		t.Fatalf("snapped lengths differ: got %d/%d want %d/%d",
			len(got.Sources), len(got.Destinations), len(want.Sources), len(want.Destinations))
	}
	for i := range want.Sources {
		if got.Sources[i] != want.Sources[i] {
			t.Fatalf("source %d = %v want %v", i, got.Sources[i], want.Sources[i])
		}
	}
	for i := range want.Destinations {
		if got.Destinations[i] != want.Destinations[i] {
			t.Fatalf("destination %d = %v want %v", i, got.Destinations[i], want.Destinations[i])
		}
	}
}

// nanToNeg makes NaN cells comparable.
func nanToNeg(d *mat.Dense) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if math.IsNaN(v) {
			return -1
		}
		return v
	}, d)
	return out
}

func TestOracle_SecondCallServedFromCache(t *testing.T) {
	rc, _ := newStore(t)
	next := &countingOracle{}
	o := New(next, rc, ns, Config{}, discard())

	srcs := []orb.Point{{0, 0}, {1, 0}}
	dsts := []orb.Point{{2, 0}, {99, 0}, {3, 0}}
	ctx := context.Background()

	first, err := o.TravelTimes(ctx, srcs, dsts)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	want, _ := (&countingOracle{}).TravelTimes(ctx, srcs, dsts)
	tablesEqual(t, first, want)

	second, err := o.TravelTimes(ctx, srcs, dsts)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if n := next.callCount(); n != 1 {
		t.Fatalf("oracle calls=%d want 1", n)
	}
	tablesEqual(t, second, want)
	if !math.IsNaN(second.Durations.At(0, 1)) {
		t.Fatalf("unreachable cell should stay NaN, got %v", second.Durations.At(0, 1))
	}
}

func TestOracle_QueriesOnlyMissingSources(t *testing.T) {
	rc, _ := newStore(t)
	next := &countingOracle{}
	o := New(next, rc, ns, Config{}, discard())
	ctx := context.Background()
	dsts := []orb.Point{{5, 5}, {6, 6}}

	if _, err := o.TravelTimes(ctx, []orb.Point{{0, 0}, {1, 1}}, dsts); err != nil {
		t.Fatalf("warm: %v", err)
	}
	srcs := []orb.Point{{1, 1}, {2, 2}, {0, 0}}
	got, err := o.TravelTimes(ctx, srcs, dsts)
	if err != nil {
		t.Fatalf("TravelTimes: %v", err)
	}
	if n := next.callCount(); n != 2 {
		t.Fatalf("oracle calls=%d want 2", n)
	}
	if q := next.calls[1]; len(q) != 1 || q[0] != (orb.Point{2, 2}) {
		t.Fatalf("second query sources=%v want [[2 2]]", q)
	}
	want, _ := (&countingOracle{}).TravelTimes(ctx, srcs, dsts)
	tablesEqual(t, got, want)
}

func TestOracle_DestinationsArePartOfTheKey(t *testing.T) {
	rc, _ := newStore(t)
	next := &countingOracle{}
	o := New(next, rc, ns, Config{}, discard())
	ctx := context.Background()
	srcs := []orb.Point{{0, 0}}

	_, _ = o.TravelTimes(ctx, srcs, []orb.Point{{1, 0}})
	_, _ = o.TravelTimes(ctx, srcs, []orb.Point{{1, 0}, {2, 0}})
	if n := next.callCount(); n != 2 {
		t.Fatalf("oracle calls=%d want 2", n)
	}

	other := New(next, rc, Namespace{Host: ns.Host, Version: ns.Version, Profile: "foot"}, Config{}, discard())
	_, _ = other.TravelTimes(ctx, srcs, []orb.Point{{1, 0}})
	if n := next.callCount(); n != 3 {
		t.Fatalf("profiles must not share rows: calls=%d want 3", n)
	}
}

func TestOracle_FailsOpenWhenRedisIsDown(t *testing.T) {
	rc, mr := newStore(t)
	mr.Close()

	next := &countingOracle{}
	o := New(next, rc, ns, Config{OpTimeout: 50 * time.Millisecond}, discard())
	srcs := []orb.Point{{0, 0}}
	dsts := []orb.Point{{1, 0}, {2, 0}}

	got, err := o.TravelTimes(context.Background(), srcs, dsts)
	if err != nil {
		t.Fatalf("TravelTimes: %v", err)
	}
	want, _ := (&countingOracle{}).TravelTimes(context.Background(), srcs, dsts)
	tablesEqual(t, got, want)
}

func TestOracle_UnreadableEntryIsAMiss(t *testing.T) {
	rc, mr := newStore(t)
	srcs := []orb.Point{{0, 0}}
	dsts := []orb.Point{{1, 0}}
	k := keys.TableKey(ns.Host, ns.Version, ns.Profile, srcs, dsts)
	if err := mr.Set(k, "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	next := &countingOracle{}
	o := New(next, rc, ns, Config{}, discard())
	got, err := o.TravelTimes(context.Background(), srcs, dsts)
	if err != nil {
		t.Fatalf("TravelTimes: %v", err)
	}
	if next.callCount() != 1 || got.Durations.At(0, 0) != 100 {
		t.Fatalf("calls=%d value=%v", next.callCount(), got.Durations.At(0, 0))
	}
	if v, _ := mr.Get(k); v == "not-json" {
		t.Fatalf("bad entry should have been replaced")
	}
}

func TestOracle_ErrorsPropagateAndAreNotCached(t *testing.T) {
	rc, mr := newStore(t)
	boom := errors.New("backend down")
	next := &countingOracle{err: boom}
	o := New(next, rc, ns, Config{}, discard())

	_, err := o.TravelTimes(context.Background(), []orb.Point{{0, 0}}, []orb.Point{{1, 0}})
	if !errors.Is(err, boom) {
		t.Fatalf("want backend error, got %v", err)
	}
	if n := len(mr.Keys()); n != 0 {
		t.Fatalf("nothing should be cached, found %d keys", n)
	}
}

func TestOracle_InsideBatchedAssembly(t *testing.T) {
	rc, _ := newStore(t)
	next := &countingOracle{}
	o := New(next, rc, ns, Config{}, discard())

	var cs []matrix.Coord
	for i := range 10 {
		cs = append(cs, matrix.Coord{ID: string(rune('a' + i)), Point: orb.Point{float64(i), 0}})
	}
	ctx := context.Background()
	m1, err := matrix.Assemble(ctx, cs, cs, 4, o)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	calls := next.callCount()
	m2, err := matrix.Assemble(ctx, cs, cs, 4, o)
	if err != nil {
		t.Fatalf("Assemble again: %v", err)
	}
	if next.callCount() != calls {
		t.Fatalf("second assembly hit the oracle: %d -> %d calls", calls, next.callCount())
	}
	if !mat.Equal(m1.Data, m2.Data) {
		t.Fatalf("matrices differ")
	}
}
