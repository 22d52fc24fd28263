package interp

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

func plane(p orb.Point) float64 { return 2*p[0] + 3*p[1] + 1 }

func planeSamples(n int) []Sample {
	var out []Sample
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			p := orb.Point{21 + float64(i)*0.1, 42 + float64(j)*0.1}
			out = append(out, Sample{Point: p, Value: plane(p)})
		}
	}
	return out
}

func TestInterpolate_ReproducesPlane(t *testing.T) {
	r, err := Interpolate(planeSamples(5), 41)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if len(r.X) != 41 || len(r.Y) != 41 || len(r.Values) != 41 {
		t.Fatalf("raster dims x=%d y=%d rows=%d", len(r.X), len(r.Y), len(r.Values))
	}
	if r.X[0] != 21 || math.Abs(r.X[40]-21.4) > 1e-9 {
		t.Fatalf("x axis [%v..%v] want [21..21.4]", r.X[0], r.X[40])
	}
	if got := r.Defined(); got != 41*41 {
		t.Fatalf("defined nodes=%d want %d (samples cover their bounding box)", got, 41*41)
	}
	for i, row := range r.Values {
		for j, v := range row {
			want := plane(orb.Point{r.X[j], r.Y[i]})
			if math.Abs(v-want) > 1e-6 {
				t.Fatalf("node (%d,%d)=%v want %v", i, j, v, want)
			}
		}
	}
}

func TestInterpolate_SingleTriangleEitherWinding(t *testing.T) {
	for name, pts := range map[string][]orb.Point{
		"ccw": {{0, 0}, {1, 0}, {0, 1}},
		"cw":  {{0, 0}, {0, 1}, {1, 0}},
	} {
		t.Run(name, func(t *testing.T) {
			samples := make([]Sample, len(pts))
			for i, p := range pts {
				samples[i] = Sample{Point: p, Value: plane(p)}
			}
			r, err := Interpolate(samples, 11)
			if err != nil {
				t.Fatalf("Interpolate: %v", err)
			}
			// lower-left half of an 11x11 lattice, diagonal included
			if got := r.Defined(); got != 66 {
				t.Fatalf("defined nodes=%d want 66", got)
			}
			if v := r.Values[2][3]; math.Abs(v-plane(orb.Point{0.3, 0.2})) > 1e-9 {
				t.Fatalf("node (2,3)=%v want %v", v, plane(orb.Point{0.3, 0.2}))
			}
			if v := r.Values[9][9]; !math.IsNaN(v) {
				t.Fatalf("node outside the hull=%v want NaN", v)
			}
		})
	}
}

func TestInterpolate_RandomSamplesStayWithinRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var samples []Sample
	for i := 0; i < 150; i++ {
		p := orb.Point{rng.Float64(), rng.Float64()}
		samples = append(samples, Sample{Point: p, Value: 1 + 10*math.Hypot(p[0]-0.5, p[1]-0.5)})
	}
	r, err := Interpolate(samples, 60)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range samples {
		lo, hi = math.Min(lo, s.Value), math.Max(hi, s.Value)
	}
	for _, row := range r.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v < lo-1e-9 || v > hi+1e-9 {
				t.Fatalf("interpolated %v outside sample range [%v,%v]", v, lo, hi)
			}
		}
	}
	if r.Defined() < 60*60/2 {
		t.Fatalf("too few defined nodes: %d", r.Defined())
	}
}

func TestInterpolate_OutsideHullIsNaN(t *testing.T) {
	samples := []Sample{
		{Point: orb.Point{0, 0}, Value: 1},
		{Point: orb.Point{1, 0}, Value: 2},
		{Point: orb.Point{0, 1}, Value: 3},
	}
	r, err := Interpolate(samples, 11)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if !math.IsNaN(r.Values[10][10]) {
		t.Fatalf("node (1,1) is outside the hull, got %v", r.Values[10][10])
	}
	if math.Abs(r.Values[0][0]-1) > 1e-9 || math.Abs(r.Values[0][10]-2) > 1e-9 || math.Abs(r.Values[10][0]-3) > 1e-9 {
		t.Fatalf("vertex values not reproduced: %v %v %v", r.Values[0][0], r.Values[0][10], r.Values[10][0])
	}
	if got := r.Values[5][5]; math.Abs(got-2.5) > 1e-9 {
		t.Fatalf("hypotenuse midpoint=%v want 2.5", got)
	}
	if math.Abs(r.Max()-3) > 1e-9 {
		t.Fatalf("Max=%v want 3", r.Max())
	}
}

func TestInterpolate_InsufficientSamples(t *testing.T) {
	cases := map[string][]Sample{
		"zeros dropped": {
			{Point: orb.Point{0, 0}, Value: 0},
			{Point: orb.Point{1, 0}, Value: 4},
			{Point: orb.Point{0, 1}, Value: math.NaN()},
			{Point: orb.Point{1, 1}, Value: 2},
		},
		"collinear": {
			{Point: orb.Point{0, 0}, Value: 1},
			{Point: orb.Point{1, 1}, Value: 2},
			{Point: orb.Point{2, 2}, Value: 3},
			{Point: orb.Point{3, 3}, Value: 4},
		},
		"duplicates": {
			{Point: orb.Point{0, 0}, Value: 1},
			{Point: orb.Point{0, 0}, Value: 2},
			{Point: orb.Point{1, 1}, Value: 3},
		},
		"empty": nil,
	}
	for name, samples := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Interpolate(samples, 20)
			var ise *InsufficientSamplesError
			if !errors.As(err, &ise) {
				t.Fatalf("want InsufficientSamplesError, got %v", err)
			}
		})
	}
}

func TestInterpolate_DefaultResolutionAndDeterminism(t *testing.T) {
	a, err := Interpolate(planeSamples(4), 0)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if len(a.X) != DefaultResolution {
		t.Fatalf("default resolution=%d want %d", len(a.X), DefaultResolution)
	}
	b, err := Interpolate(planeSamples(4), 0)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	for i := range a.Values {
		for j := range a.Values[i] {
			va, vb := a.Values[i][j], b.Values[i][j]
			if va != vb && !(math.IsNaN(va) && math.IsNaN(vb)) {
				t.Fatalf("node (%d,%d) differs across runs: %v vs %v", i, j, va, vb)
			}
		}
	}
}

func TestUsable(t *testing.T) {
	in := []Sample{
		{Point: orb.Point{0, 0}, Value: 0},
		{Point: orb.Point{1, 0}, Value: 5},
		{Point: orb.Point{1, 0}, Value: 6},
		{Point: orb.Point{2, 0}, Value: math.Inf(1)},
		{Point: orb.Point{3, 0}, Value: 7},
	}
	got := Usable(in)
	if len(got) != 2 || got[0].Value != 5 || got[1].Value != 7 {
		t.Fatalf("Usable=%v", got)
	}
}
