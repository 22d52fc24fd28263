package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
)

func TestTTLExpiry_TableRowsAge(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	dsts := []orb.Point{{13.40, 52.50}, {13.41, 52.51}}
	short := keys.TableKey("http://osrm:5000", "v1", "foot", []orb.Point{{13.39, 52.49}}, dsts)
	long := keys.TableKey("http://osrm:5000", "v1", "driving", []orb.Point{{13.39, 52.49}}, dsts)

	if err := rc.MSetWithTTL(ctx, map[string][]byte{short: []byte(`{"d":[60,120]}`)}, time.Hour); err != nil {
		t.Fatalf("MSetWithTTL short: %v", err)
	}
	if err := rc.MSetWithTTL(ctx, map[string][]byte{long: []byte(`{"d":[30,45]}`)}, 24*time.Hour); err != nil {
		t.Fatalf("MSetWithTTL long: %v", err)
	}

	got, err := rc.MGet(ctx, []string{short, long})
	if err != nil || len(got) != 2 {
		t.Fatalf("pre expiry got=%v err=%v", got, err)
	}

	mr.FastForward(2 * time.Hour)

	got, err = rc.MGet(ctx, []string{short, long})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if _, ok := got[short]; ok {
		t.Fatalf("foot row should have expired; got=%v", got)
	}
	if string(got[long]) != `{"d":[30,45]}` {
		t.Fatalf("driving row should survive; got=%q", got[long])
	}

	if _, ok, err := rc.Get(ctx, short); err != nil || ok {
		t.Fatalf("Get expired: ok=%v err=%v", ok, err)
	}
}
