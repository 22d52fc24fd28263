// Package osrm is an HTTP client for the OSRM routing services: nearest,
// route, table, match and trip. It also adapts the table service into a
// travel-time oracle for matrix assembly.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
)

// bodyExcerpt bounds how much of a failed response ends up in errors.
const bodyExcerpt = 8 << 10

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	cfg      RequestConfig
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, cfg RequestConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{logger: logger, client: client, cfg: cfg, startNow: time.Now}, nil
}

func (c *Client) Config() RequestConfig { return c.cfg }

// WithConfig returns a client sharing the transport but targeting cfg.
func (c *Client) WithConfig(cfg RequestConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cp := *c
	cp.cfg = cfg
	return &cp, nil
}

// param is one query parameter. Values are written verbatim so that OSRM
// separators (';' and ',') reach the server unescaped.
type param struct {
	key, value string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatCoords(pts []orb.Point) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(formatFloat(p[0]))
		b.WriteByte(',')
		b.WriteString(formatFloat(p[1]))
	}
	return b.String()
}

func joinInts(n []int) string {
	s := make([]string, len(n))
	for i, v := range n {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ";")
}

func (c *Client) buildURL(service string, coords []orb.Point, params []param) string {
	var b strings.Builder
	b.WriteString(c.cfg.endpoint(service))
	b.WriteByte('/')
	b.WriteString(formatCoords(coords))
	for i, p := range params {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

// do issues one GET and decodes the answer into out. OSRM reports errors
// with a JSON code even on 4xx, so the body is decoded before the status is
// judged.
func (c *Client) do(ctx context.Context, service string, coords []orb.Point, params []param, out any) error {
	if len(coords) == 0 {
		return fmt.Errorf("osrm %s: no coordinates", service)
	}
	u := c.buildURL(service, coords, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("osrm %s: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("osrm_"+service, dur.Seconds())
	c.logger.Debug("osrm request done",
		"service", service,
		"coords", len(coords),
		"status", resp.StatusCode,
		"duration", dur.String())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("osrm %s: read body: %w", service, err)
	}

	var st status
	if jerr := json.Unmarshal(body, &st); jerr != nil || st.Code == "" {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode, Body: excerpt(body)}
		}
		return fmt.Errorf("osrm %s: malformed response: %s", service, excerpt(body))
	}
	if err := st.err(); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("osrm %s: decode: %w", service, err)
	}
	return nil
}

func excerpt(b []byte) string {
	if len(b) > bodyExcerpt {
		b = b[:bodyExcerpt]
	}
	return string(b)
}

// Nearest snaps point to the number closest road segments.
func (c *Client) Nearest(ctx context.Context, point orb.Point, number int) (NearestResponse, error) {
	var params []param
	if number > 1 {
		params = append(params, param{"number", strconv.Itoa(number)})
	}
	var out NearestResponse
	err := c.do(ctx, "nearest", []orb.Point{point}, params, &out)
	return out, err
}

type RouteRequest struct {
	Coordinates  []orb.Point
	Alternatives bool
	Steps        bool
	Overview     string
	Geometries   string
}

func geometryDefaults(overview, geometries string) (string, string) {
	if overview == "" {
		overview = OverviewSimplified
	}
	if geometries == "" {
		geometries = GeometryPolyline
	}
	return overview, geometries
}

func tagRoutes(rs []Route, format string) {
	for i := range rs {
		rs[i].format = format
	}
}

// Route computes the fastest route through the coordinates in order.
func (c *Client) Route(ctx context.Context, r RouteRequest) (RouteResponse, error) {
	if len(r.Coordinates) < 2 {
		return RouteResponse{}, fmt.Errorf("osrm route: need at least 2 coordinates, got %d", len(r.Coordinates))
	}
	overview, geoms := geometryDefaults(r.Overview, r.Geometries)
	params := []param{
		{"overview", overview},
		{"steps", strconv.FormatBool(r.Steps)},
		{"alternatives", strconv.FormatBool(r.Alternatives)},
		{"geometries", geoms},
	}
	var out RouteResponse
	if err := c.do(ctx, "route", r.Coordinates, params, &out); err != nil {
		return RouteResponse{}, err
	}
	tagRoutes(out.Routes, geoms)
	return out, nil
}

type TableRequest struct {
	Sources []orb.Point
	// Destinations may be empty for a square matrix over Sources.
	Destinations []orb.Point
}

// Table computes travel durations between every source and destination.
func (c *Client) Table(ctx context.Context, r TableRequest) (TableResponse, error) {
	if len(r.Sources) == 0 {
		return TableResponse{}, fmt.Errorf("osrm table: no sources")
	}
	if len(r.Destinations) == 0 {
		var out TableResponse
		err := c.do(ctx, "table", r.Sources, nil, &out)
		return out, err
	}

	coords := make([]orb.Point, 0, len(r.Sources)+len(r.Destinations))
	coords = append(coords, r.Sources...)
	coords = append(coords, r.Destinations...)
	src := make([]int, len(r.Sources))
	for i := range src {
		src[i] = i
	}
	dst := make([]int, len(r.Destinations))
	for i := range dst {
		dst[i] = len(r.Sources) + i
	}
	return c.table(ctx, coords, src, dst)
}

func (c *Client) table(ctx context.Context, coords []orb.Point, src, dst []int) (TableResponse, error) {
	params := []param{
		{"sources", joinInts(src)},
		{"destinations", joinInts(dst)},
	}
	var out TableResponse
	err := c.do(ctx, "table", coords, params, &out)
	return out, err
}

type MatchRequest struct {
	Points []orb.Point
	// Timestamps are UNIX seconds, one per point when set.
	Timestamps []int64
	// Radiuses are GPS precisions in meters, one per point when set.
	Radiuses   []float64
	Steps      bool
	Overview   string
	Geometries string
}

// Match snaps a noisy GPS trace to the road network.
func (c *Client) Match(ctx context.Context, r MatchRequest) (MatchResponse, error) {
	if len(r.Points) < 2 {
		return MatchResponse{}, fmt.Errorf("osrm match: need at least 2 points, got %d", len(r.Points))
	}
	if len(r.Timestamps) != 0 && len(r.Timestamps) != len(r.Points) {
		return MatchResponse{}, fmt.Errorf("osrm match: %d timestamps for %d points", len(r.Timestamps), len(r.Points))
	}
	if len(r.Radiuses) != 0 && len(r.Radiuses) != len(r.Points) {
		return MatchResponse{}, fmt.Errorf("osrm match: %d radiuses for %d points", len(r.Radiuses), len(r.Points))
	}
	overview, geoms := geometryDefaults(r.Overview, r.Geometries)
	params := []param{
		{"overview", overview},
		{"steps", strconv.FormatBool(r.Steps)},
		{"geometries", geoms},
	}
	if len(r.Radiuses) > 0 {
		s := make([]string, len(r.Radiuses))
		for i, v := range r.Radiuses {
			s[i] = formatFloat(v)
		}
		params = append(params, param{"radiuses", strings.Join(s, ";")})
	}
	if len(r.Timestamps) > 0 {
		s := make([]string, len(r.Timestamps))
		for i, v := range r.Timestamps {
			s[i] = strconv.FormatInt(v, 10)
		}
		params = append(params, param{"timestamps", strings.Join(s, ";")})
	}
	var out MatchResponse
	if err := c.do(ctx, "match", r.Points, params, &out); err != nil {
		return MatchResponse{}, err
	}
	tagRoutes(out.Matchings, geoms)
	return out, nil
}

type TripRequest struct {
	Coordinates []orb.Point
	Steps       bool
	Overview    string
	Geometries  string
}

// Trip solves the travelling salesman problem over the coordinates.
func (c *Client) Trip(ctx context.Context, r TripRequest) (TripResponse, error) {
	if len(r.Coordinates) < 2 {
		return TripResponse{}, fmt.Errorf("osrm trip: need at least 2 coordinates, got %d", len(r.Coordinates))
	}
	overview, geoms := geometryDefaults(r.Overview, r.Geometries)
	params := []param{
		{"steps", strconv.FormatBool(r.Steps)},
		{"geometries", geoms},
		{"overview", overview},
	}
	var out TripResponse
	if err := c.do(ctx, "trip", r.Coordinates, params, &out); err != nil {
		return TripResponse{}, err
	}
	tagRoutes(out.Trips, geoms)
	return out, nil
}
