package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
)

// seedRows stores n table rows of width cols, one per source, the way the
// table cache lays them out.
func seedRows(b *testing.B, n, cols int) (*Client, []string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		b.Fatalf("New: %v", err)
	}

	dsts := make([]orb.Point, cols)
	for j := range dsts {
		dsts[j] = orb.Point{13 + float64(j)*0.001, 52.5}
	}
	row := []byte(fmt.Sprintf(`{"d":[%s]}`, repeat("123.4", cols)))

	ks := make([]string, n)
	kv := make(map[string][]byte, n)
	for i := range n {
		ks[i] = keys.TableKey("http://osrm:5000", "v1", "driving", []orb.Point{{13, 52 + float64(i)*0.001}}, dsts)
		kv[ks[i]] = row
	}
	if err := rc.MSetWithTTL(ctx, kv, time.Hour); err != nil {
		b.Fatalf("MSetWithTTL: %v", err)
	}

	cleanup := func() {
		cancel()
		_ = rc.Close()
		mr.Close()
	}
	return rc, ks, cleanup
}

func repeat(v string, n int) string {
	out := make([]byte, 0, n*(len(v)+1))
	for i := range n {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, v...)
	}
	return string(out)
}

func benchMGet(b *testing.B, n int) {
	rc, ks, cleanup := seedRows(b, n, 100)
	defer cleanup()

	ctx := context.Background()
	b.ReportAllocs()

	for b.Loop() {
		if _, err := rc.MGet(ctx, ks); err != nil {
			b.Fatal(err)
		}
	}
}

func benchGetLoop(b *testing.B, n int) {
	rc, ks, cleanup := seedRows(b, n, 100)
	defer cleanup()

	ctx := context.Background()
	b.ReportAllocs()

	for b.Loop() {
		for _, k := range ks {
			if _, _, err := rc.Get(ctx, k); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkRows_16(b *testing.B) {
	b.Run("MGET", func(b *testing.B) { benchMGet(b, 16) })
	b.Run("GETx16", func(b *testing.B) { benchGetLoop(b, 16) })
}

func BenchmarkRows_256(b *testing.B) {
	b.Run("MGET", func(b *testing.B) { benchMGet(b, 256) })
	b.Run("GETx256", func(b *testing.B) { benchGetLoop(b, 256) })
}
