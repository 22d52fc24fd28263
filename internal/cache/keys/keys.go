// Package keys builds cache keys for travel-time tables and accessibility
// surfaces.
package keys

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
)

const tablePrefix = "table"

// TableKey identifies one table answer:
// table:{profile}:{version}:h={host digest}:n={sources}x{destinations}:f={coords digest}.
// Sources and destinations are hashed separately so swapping them changes
// the key.
func TableKey(host, version, profile string, srcs, dsts []orb.Point) string {
	d := xxhash.New()
	writePoints(d, srcs)
	_, _ = d.Write([]byte{'|'})
	writePoints(d, dsts)

	return fmt.Sprintf("%s:h=%08x:n=%dx%d:f=%016x",
		versionPrefix(profile, version),
		uint32(xxhash.Sum64String(strings.TrimSpace(host))),
		len(srcs), len(dsts), d.Sum64())
}

// ProfilePrefix matches every table key of a profile, across versions.
func ProfilePrefix(profile string) string {
	return fmt.Sprintf("%s:%s:", tablePrefix, sanitize(profile))
}

func versionPrefix(profile, version string) string {
	return ProfilePrefix(profile) + sanitize(version)
}

// SurfaceKey identifies an accessibility surface by its profile, origin and
// grid specification. Coordinates are rounded to 1e-7 degrees.
func SurfaceKey(profile string, origin orb.Point, radius float64, points int, precision float64, h3Res int) string {
	return fmt.Sprintf("%s%s,%s:r=%s:p=%d:s=%s:h3=%d",
		SurfacePrefix(profile),
		round7(origin[0]), round7(origin[1]),
		round7(radius), points, round7(precision), h3Res)
}

// SurfacePrefix matches every surface key of a profile.
func SurfacePrefix(profile string) string {
	return "surface:" + sanitize(profile) + ":"
}

func round7(f float64) string {
	return fmt.Sprintf("%.7f", math.Round(f*1e7)/1e7)
}

func writePoints(d *xxhash.Digest, pts []orb.Point) {
	var buf [16]byte
	for _, p := range pts {
		binary.LittleEndian.PutUint64(buf[:8], math.Float64bits(p[0]))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(p[1]))
		_, _ = d.Write(buf[:])
	}
}

// sanitize keeps key segments to [A-Za-z0-9_-]; anything else becomes '-'.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := r
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
