package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
	"github.com/mohammed-shakir/osrm-access/internal/metrics"
)

func TestRedisMetrics_TableRowLookups(t *testing.T) {
	mr, _ := miniredis.Run()
	defer mr.Close()

	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)
	observability.SetProfile("redis-hitmiss")

	ctx := context.Background()
	c, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("new redis: %v", err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			t.Fatalf("close redis client: %v", cerr)
		}
	}()

	_ = c.Set(ctx, "table:foot:v1:hit", []byte("v"), time.Minute)

	_, _ = c.MGet(ctx, []string{"table:foot:v1:hit", "table:foot:v1:miss"})
	if n, err := c.DelPrefix(ctx, "table:foot:"); err != nil || n != 1 {
		t.Fatalf("DelPrefix n=%d err=%v", n, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	if !strings.Contains(body, `redis_operation_duration_seconds_count`) {
		t.Fatalf("missing redis_operation_duration_seconds_count\n%s", body)
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_count{op="del_prefix"}`) {
		t.Fatalf("missing del_prefix timing\n%s", body)
	}
	if !strings.Contains(body, `cache_results_total{outcome="hit",profile="redis-hitmiss"} 1`) {
		t.Fatalf("expected 1 hit\n%s", body)
	}
	if !strings.Contains(body, `cache_results_total{outcome="miss",profile="redis-hitmiss"} 1`) {
		t.Fatalf("expected 1 miss\n%s", body)
	}
}
