package osrm

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/gonum/mat"
)

// Geometry formats OSRM can return.
const (
	GeometryPolyline  = "polyline"
	GeometryPolyline6 = "polyline6"
	GeometryGeoJSON   = "geojson"
)

// Overview levels for route, match and trip geometries.
const (
	OverviewSimplified = "simplified"
	OverviewFull       = "full"
	OverviewFalse      = "false"
)

var ErrNoGeometry = errors.New("osrm: route has no geometry")

type status struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s status) err() error {
	if s.Code == "Ok" {
		return nil
	}
	return &ResponseError{Code: s.Code, Message: s.Message}
}

// Waypoint is an input coordinate snapped to the road network.
type Waypoint struct {
	Hint     string    `json:"hint"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance"`
	Location orb.Point `json:"location"`

	// set by match and trip only
	WaypointIndex  int `json:"waypoint_index"`
	MatchingsIndex int `json:"matchings_index"`
	TripsIndex     int `json:"trips_index"`
}

type NearestResponse struct {
	Waypoints []Waypoint `json:"waypoints"`
}

type Step struct {
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Name     string          `json:"name"`
	Mode     string          `json:"mode"`
	Geometry json.RawMessage `json:"geometry"`
}

type Leg struct {
	Steps    []Step  `json:"steps"`
	Summary  string  `json:"summary"`
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
}

// Route is a route, a matching or a trip. Geometry is kept raw because its
// shape depends on the requested geometries format.
type Route struct {
	Geometry   json.RawMessage `json:"geometry"`
	Legs       []Leg           `json:"legs"`
	Duration   float64         `json:"duration"`
	Distance   float64         `json:"distance"`
	Weight     float64         `json:"weight"`
	WeightName string          `json:"weight_name"`
	Confidence float64         `json:"confidence"`

	format string
}

// LineString decodes the route geometry whatever format it was requested in.
func (r Route) LineString() (orb.LineString, error) {
	raw := bytes.TrimSpace(r.Geometry)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoGeometry
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("route geometry: %w", err)
		}
		precision := 5
		if r.format == GeometryPolyline6 {
			precision = 6
		}
		return DecodePolyline(s, precision)
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("route geometry: %w", err)
	}
	ls, ok := g.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("route geometry: unexpected %s", g.Geometry().GeoJSONType())
	}
	return ls, nil
}

func (r Route) WKT() (string, error) {
	ls, err := r.LineString()
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(ls), nil
}

func (r Route) WKB() ([]byte, error) {
	ls, err := r.LineString()
	if err != nil {
		return nil, err
	}
	b, err := wkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("route wkb: %w", err)
	}
	return b, nil
}

type RouteResponse struct {
	Routes    []Route    `json:"routes"`
	Waypoints []Waypoint `json:"waypoints"`
}

// MatchResponse carries one matching per sub-trace. Tracepoints that could
// not be matched are nil.
type MatchResponse struct {
	Matchings   []Route     `json:"matchings"`
	Tracepoints []*Waypoint `json:"tracepoints"`
}

type TripResponse struct {
	Trips     []Route    `json:"trips"`
	Waypoints []Waypoint `json:"waypoints"`
}

// TripStop places an input coordinate within the computed trips.
type TripStop struct {
	Waypoint int `json:"waypoint"`
	Trip     int `json:"trip"`
}

// Order lists, for each input coordinate, its position in its trip.
func (r TripResponse) Order() []TripStop {
	out := make([]TripStop, len(r.Waypoints))
	for i, w := range r.Waypoints {
		out[i] = TripStop{Waypoint: w.WaypointIndex, Trip: w.TripsIndex}
	}
	return out
}

// Cost is a table entry; JSON null (no route) decodes to NaN.
type Cost float64

func (c *Cost) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*c = Cost(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*c = Cost(f)
	return nil
}

type TableResponse struct {
	Durations    [][]Cost   `json:"durations"`
	Distances    [][]Cost   `json:"distances"`
	Sources      []Waypoint `json:"sources"`
	Destinations []Waypoint `json:"destinations"`
}

// Matrix returns the durations in seconds. Unreachable pairs are NaN.
func (r TableResponse) Matrix() (*mat.Dense, error) {
	return dense(r.Durations)
}

// Minutes returns the durations in minutes rounded to two decimals.
func (r TableResponse) Minutes() (*mat.Dense, error) {
	m, err := dense(r.Durations)
	if err != nil {
		return nil, err
	}
	m.Apply(func(_, _ int, v float64) float64 {
		return math.Round(v/60*100) / 100
	}, m)
	return m, nil
}

func (r TableResponse) SourceLocations() []orb.Point { return locations(r.Sources) }

func (r TableResponse) DestinationLocations() []orb.Point { return locations(r.Destinations) }

func locations(ws []Waypoint) []orb.Point {
	out := make([]orb.Point, len(ws))
	for i, w := range ws {
		out[i] = w.Location
	}
	return out
}

func dense(rows [][]Cost) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("osrm: empty table")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("osrm: ragged table row %d: %d columns, want %d", i, len(row), c)
		}
		for _, v := range row {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(len(rows), c, data), nil
}
