// Package tablecache puts a shared Redis cache in front of a travel-time
// oracle. Answers are stored one source row at a time, so overlapping
// queries reuse the rows they have in common.
package tablecache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"

	"github.com/mohammed-shakir/osrm-access/internal/access/matrix"
	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
)

const (
	DefaultTTL       = 24 * time.Hour
	DefaultOpTimeout = 150 * time.Millisecond
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
}

// Namespace scopes keys to one routing dataset.
type Namespace struct {
	Host    string
	Version string
	Profile string
}

type Config struct {
	TTL       time.Duration
	OpTimeout time.Duration
}

type Oracle struct {
	next   matrix.Oracle
	store  Store
	ns     Namespace
	cfg    Config
	logger *slog.Logger
}

func New(next matrix.Oracle, store Store, ns Namespace, cfg Config, logger *slog.Logger) *Oracle {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{next: next, store: store, ns: ns, cfg: cfg, logger: logger}
}

// row is the cached answer for one source against a destination list.
// Unreachable entries are stored as null.
type row struct {
	Durations    []*float64   `json:"d"`
	Source       *[2]float64  `json:"s,omitempty"`
	Destinations [][2]float64 `json:"t,omitempty"`
}

// TravelTimes serves cached rows and asks the wrapped oracle only for the
// sources it has not seen with this destination list. Cache failures are
// logged and treated as misses.
func (o *Oracle) TravelTimes(ctx context.Context, srcs, dsts []orb.Point) (matrix.Table, error) {
	if len(srcs) == 0 || len(dsts) == 0 {
		return o.next.TravelTimes(ctx, srcs, dsts)
	}

	rowKeys := make([]string, len(srcs))
	for i, p := range srcs {
		rowKeys[i] = keys.TableKey(o.ns.Host, o.ns.Version, o.ns.Profile, []orb.Point{p}, dsts)
	}

	cached := o.lookup(ctx, rowKeys, len(dsts))

	var missing []int
	for i := range srcs {
		if _, ok := cached[i]; !ok {
			missing = append(missing, i)
		}
	}

	var fresh matrix.Table
	if len(missing) > 0 {
		sub := make([]orb.Point, len(missing))
		for k, i := range missing {
			sub[k] = srcs[i]
		}
		var err error
		fresh, err = o.next.TravelTimes(ctx, sub, dsts)
		if err != nil {
			return matrix.Table{}, err
		}
		if fresh.Durations == nil {
			return matrix.Table{}, fmt.Errorf("tablecache: oracle returned no durations")
		}
		if r, c := fresh.Durations.Dims(); r != len(missing) || c != len(dsts) {
			return matrix.Table{}, fmt.Errorf("tablecache: oracle returned %dx%d matrix, want %dx%d", r, c, len(missing), len(dsts))
		}
		o.save(ctx, rowKeys, missing, fresh)
	}

	return merge(len(srcs), dsts, cached, missing, fresh), nil
}

func (o *Oracle) lookup(ctx context.Context, rowKeys []string, width int) map[int]row {
	out := make(map[int]row, len(rowKeys))
	cctx, cancel := context.WithTimeout(ctx, o.cfg.OpTimeout)
	defer cancel()

	raw, err := o.store.MGet(cctx, rowKeys)
	if err != nil {
		o.logger.Warn("table cache read failed", "err", err, "rows", len(rowKeys))
		return out
	}
	for i, k := range rowKeys {
		b, ok := raw[k]
		if !ok {
			continue
		}
		var r row
		if err := json.Unmarshal(b, &r); err != nil {
			o.logger.Warn("table cache entry unreadable", "key", k, "err", err)
			continue
		}
		if len(r.Durations) != width || (len(r.Destinations) != 0 && len(r.Destinations) != width) {
			o.logger.Warn("table cache entry has wrong width", "key", k, "width", len(r.Durations), "want", width)
			continue
		}
		out[i] = r
	}
	return out
}

func (o *Oracle) save(ctx context.Context, rowKeys []string, missing []int, t matrix.Table) {
	kv := make(map[string][]byte, len(missing))
	for k, i := range missing {
		r := row{Durations: encodeRow(mat.Row(nil, k, t.Durations))}
		if len(t.Sources) == len(missing) {
			s := [2]float64(t.Sources[k])
			r.Source = &s
		}
		if len(t.Destinations) > 0 {
			r.Destinations = make([][2]float64, len(t.Destinations))
			for j, p := range t.Destinations {
				r.Destinations[j] = [2]float64(p)
			}
		}
		b, err := json.Marshal(r)
		if err != nil {
			o.logger.Warn("table cache encode failed", "err", err)
			return
		}
		kv[rowKeys[i]] = b
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.OpTimeout)
	defer cancel()
	if err := o.store.MSetWithTTL(cctx, kv, o.cfg.TTL); err != nil {
		o.logger.Warn("table cache write failed", "err", err, "rows", len(kv))
	}
}

// merge stitches cached and freshly queried rows back into query order.
// Snapped locations are kept only when every row carries them.
func merge(n int, dsts []orb.Point, cached map[int]row, missing []int, fresh matrix.Table) matrix.Table {
	d := mat.NewDense(n, len(dsts), nil)
	srcs := make([]orb.Point, n)
	allSources := true

	var snappedDsts []orb.Point
	if len(fresh.Destinations) == len(dsts) {
		snappedDsts = fresh.Destinations
	}

	for i, r := range cached {
		d.SetRow(i, decodeRow(r.Durations))
		if r.Source == nil {
			allSources = false
		} else {
			srcs[i] = orb.Point(*r.Source)
		}
		if snappedDsts == nil && len(r.Destinations) == len(dsts) {
			snappedDsts = make([]orb.Point, len(dsts))
			for j, p := range r.Destinations {
				snappedDsts[j] = orb.Point(p)
			}
		}
	}
	for k, i := range missing {
		d.SetRow(i, mat.Row(nil, k, fresh.Durations))
		if len(fresh.Sources) == len(missing) {
			srcs[i] = fresh.Sources[k]
		} else {
			allSources = false
		}
	}

	t := matrix.Table{Durations: d, Destinations: snappedDsts}
	if allSources {
		t.Sources = srcs
	}
	return t
}

func encodeRow(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = &vs[i]
	}
	return out
}

func decodeRow(vs []*float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

var _ matrix.Oracle = (*Oracle)(nil)
