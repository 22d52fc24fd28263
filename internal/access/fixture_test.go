package access_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/osrm"
)

// table_origin_64.json is a recorded OSRM answer for one origin near Skopje
// against the 8x8 grid of a 0.1 degree lattice with radius 0.4.
func TestSurface_RecordedOSRMTable(t *testing.T) {
	body, err := os.ReadFile("testdata/table_origin_64.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/table/v1/driving/") {
			t.Errorf("path=%q", r.URL.Path)
		}
		if !strings.Contains(r.URL.RawQuery, "sources=0&") {
			t.Errorf("query=%q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := osrm.New(logger, srv.Client(), osrm.DefaultRequestConfig().WithHost(srv.URL))
	if err != nil {
		t.Fatalf("osrm.New: %v", err)
	}

	req := access.Request{Origin: orb.Point{21.0566163803209, 42.004088575972}, Radius: 0.4, Precision: 0.1}
	if n, err := access.SampleCount(req); err != nil || n != 64 {
		t.Fatalf("SampleCount=%d err=%v want 64", n, err)
	}

	s, err := access.New(context.Background(), client, req, access.Config{}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("table requests=%d want 1", got)
	}
	if o := s.Origin(); o != (orb.Point{21.056615, 42.004087}) {
		t.Fatalf("origin not snapped: %v", o)
	}
	if len(s.Samples()) != 64 {
		t.Fatalf("samples=%d want 64", len(s.Samples()))
	}

	res, err := s.RenderContour(8)
	if err != nil {
		t.Fatalf("RenderContour: %v", err)
	}
	if len(res.Levels) != 8 || len(res.Polygons) != 8 {
		t.Fatalf("levels=%d polygons=%d want 8/8", len(res.Levels), len(res.Polygons))
	}
	for i := 1; i < len(res.Levels); i++ {
		if res.Levels[i] <= res.Levels[i-1] {
			t.Fatalf("levels not ascending: %v", res.Levels)
		}
	}
	if _, err := s.RenderContour(4); err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("re-render queried OSRM: requests=%d", got)
	}
}
