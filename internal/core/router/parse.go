package router

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

const maxCoords = 10000

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parse float: %q is not finite", v)
	}
	return f, nil
}

func validLonLat(p orb.Point) error {
	if !(p[0] >= -180 && p[0] <= 180) {
		return fmt.Errorf("longitude %v must be in [-180,180]", p[0])
	}
	if !(p[1] >= -90 && p[1] <= 90) {
		return fmt.Errorf("latitude %v must be in [-90,90]", p[1])
	}
	return nil
}

// parsePoint reads "lon,lat".
func parsePoint(s string) (orb.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("expected lon,lat, got %q", s)
	}
	lon, err := parseFloat(parts[0])
	if err != nil {
		return orb.Point{}, fmt.Errorf("lon: %w", err)
	}
	lat, err := parseFloat(parts[1])
	if err != nil {
		return orb.Point{}, fmt.Errorf("lat: %w", err)
	}
	p := orb.Point{lon, lat}
	return p, validLonLat(p)
}

// parseCoords reads "lon,lat;lon,lat;...", the OSRM coordinate syntax.
func parseCoords(q url.Values, name string, minCount int) ([]orb.Point, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		if minCount == 0 {
			return nil, nil
		}
		return nil, invalid("missing required parameter: " + name)
	}
	parts := strings.Split(raw, ";")
	if len(parts) > maxCoords {
		return nil, invalid(fmt.Sprintf("%s: at most %d coordinates", name, maxCoords))
	}
	out := make([]orb.Point, 0, len(parts))
	for i, s := range parts {
		p, err := parsePoint(s)
		if err != nil {
			return nil, invalid(fmt.Sprintf("%s[%d]: %v", name, i, err))
		}
		out = append(out, p)
	}
	if len(out) < minCount {
		return nil, invalid(fmt.Sprintf("%s: need at least %d coordinates, got %d", name, minCount, len(out)))
	}
	return out, nil
}

// parseOrigin reads the lon and lat parameters.
func parseOrigin(q url.Values) (orb.Point, error) {
	if q.Get("lon") == "" || q.Get("lat") == "" {
		return orb.Point{}, invalid("missing required parameters: lon, lat")
	}
	lon, err := parseFloat(q.Get("lon"))
	if err != nil {
		return orb.Point{}, invalid("lon: " + err.Error())
	}
	lat, err := parseFloat(q.Get("lat"))
	if err != nil {
		return orb.Point{}, invalid("lat: " + err.Error())
	}
	p := orb.Point{lon, lat}
	if err := validLonLat(p); err != nil {
		return orb.Point{}, invalid(err.Error())
	}
	return p, nil
}

func optFloat(q url.Values, name string, def float64) (float64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	f, err := parseFloat(v)
	if err != nil {
		return 0, invalid(name + ": " + err.Error())
	}
	return f, nil
}

func optInt(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid(fmt.Sprintf("%s: %q is not an integer", name, v))
	}
	return n, nil
}

func optBool(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalid(fmt.Sprintf("%s: %q is not a boolean", name, v))
	}
	return b, nil
}

// parseList splits a ";"-separated list of numbers, requiring want entries
// when present.
func parseList[T any](q url.Values, name string, want int, conv func(string) (T, error)) ([]T, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ";")
	if len(parts) != want {
		return nil, invalid(fmt.Sprintf("%s: %d values for %d coordinates", name, len(parts), want))
	}
	out := make([]T, len(parts))
	for i, s := range parts {
		v, err := conv(strings.TrimSpace(s))
		if err != nil {
			return nil, invalid(fmt.Sprintf("%s[%d]: %v", name, i, err))
		}
		out[i] = v
	}
	return out, nil
}

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
