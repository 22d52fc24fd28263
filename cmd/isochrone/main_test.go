package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// fakeTable answers /table requests with one hour per degree of straight
// line distance.
func fakeTable(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, coordStr, ok := strings.Cut(r.URL.Path, "/table/v1/driving/")
		if !ok {
			http.Error(w, `{"code":"InvalidService","message":"unexpected"}`, http.StatusBadRequest)
			return
		}
		var pts [][2]float64
		for c := range strings.SplitSeq(coordStr, ";") {
			lon, lat, _ := strings.Cut(c, ",")
			x, _ := strconv.ParseFloat(lon, 64)
			y, _ := strconv.ParseFloat(lat, 64)
			pts = append(pts, [2]float64{x, y})
		}
		// url.Query drops values containing ';', which OSRM lists use.
		params := map[string]string{}
		for kv := range strings.SplitSeq(r.URL.RawQuery, "&") {
			k, v, _ := strings.Cut(kv, "=")
			params[k] = v
		}
		idx := func(name string) []int {
			var out []int
			for s := range strings.SplitSeq(params[name], ";") {
				n, _ := strconv.Atoi(s)
				out = append(out, n)
			}
			return out
		}
		src, dst := idx("sources"), idx("destinations")
		rows := make([][]float64, len(src))
		for i, s := range src {
			rows[i] = make([]float64, len(dst))
			for j, d := range dst {
				rows[i][j] = 3600 * math.Hypot(pts[s][0]-pts[d][0], pts[s][1]-pts[d][1])
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": "Ok", "durations": rows})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_GeoJSON(t *testing.T) {
	srv := fakeTable(t)
	var out, errOut bytes.Buffer
	code := run([]string{
		"-osrm", srv.URL + "/v1/driving",
		"-lon", "13.4", "-lat", "52.5",
		"-radius", "0.2", "-points", "400", "-classes", "4",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, errOut.String())
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]float64 `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(out.Bytes(), &fc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) == 0 || len(fc.Features) > 4 {
		t.Fatalf("type=%q features=%d", fc.Type, len(fc.Features))
	}
	prev := 0.0
	for _, f := range fc.Features {
		lvl := f.Properties["time"]
		if lvl <= prev {
			t.Fatalf("levels not ascending: %v after %v", lvl, prev)
		}
		prev = lvl
	}
}

func TestRun_WKT(t *testing.T) {
	srv := fakeTable(t)
	var out, errOut bytes.Buffer
	code := run([]string{
		"-osrm", srv.URL + "/v1/driving",
		"-lon", "13.4", "-lat", "52.5",
		"-radius", "0.2", "-points", "400", "-classes", "3", "-format", "wkt",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit=%d stderr=%s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || len(lines) > 3 {
		t.Fatalf("lines=%d", len(lines))
	}
	for _, l := range lines {
		lvl, geom, ok := strings.Cut(l, "\t")
		if !ok || !strings.Contains(geom, "POLYGON") {
			t.Fatalf("bad line %q", l)
		}
		if _, err := strconv.ParseFloat(lvl, 64); err != nil {
			t.Fatalf("level %q: %v", lvl, err)
		}
	}
}

func TestRun_TooLargeGrid(t *testing.T) {
	srv := fakeTable(t)
	var out, errOut bytes.Buffer
	code := run([]string{
		"-osrm", srv.URL + "/v1/driving",
		"-points", "5000", "-max-grid", "100",
	}, &out, &errOut)
	if code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRun_BadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"-format", "kml"},
		{"-osrm", "localhost"},
		{"-nope"},
	} {
		t.Run(fmt.Sprint(args), func(t *testing.T) {
			var out, errOut bytes.Buffer
			if code := run(args, &out, &errOut); code != 2 {
				t.Fatalf("exit=%d want 2", code)
			}
		})
	}
}
