package grid

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestMakeGridH3_HappyPath(t *testing.T) {
	b := orb.Bound{Min: orb.Point{17.95, 59.30}, Max: orb.Point{18.15, 59.40}}
	g, err := MakeGridH3(b, 8)
	if err != nil {
		t.Fatalf("MakeGridH3: %v", err)
	}
	if g.Len() == 0 {
		t.Fatalf("expected samples for bbox")
	}
	if g.Rows*g.Cols != g.Len() {
		t.Fatalf("rows*cols=%d != %d", g.Rows*g.Cols, g.Len())
	}
	seen := map[orb.Point]bool{}
	for _, p := range g.Points {
		if seen[p] {
			t.Fatalf("duplicate sample %v", p)
		}
		seen[p] = true
	}

	g2, err := MakeGridH3(b, 8)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	for i := range g.Points {
		if g.Points[i] != g2.Points[i] {
			t.Fatalf("non-deterministic output at %d", i)
		}
	}

	finer, err := MakeGridH3(b, 9)
	if err != nil {
		t.Fatalf("res 9: %v", err)
	}
	if finer.Len() <= g.Len() {
		t.Fatalf("res 9 should sample more densely: %d <= %d", finer.Len(), g.Len())
	}
}

func TestMakeGridH3_InvalidResolution(t *testing.T) {
	b := orb.Bound{Min: orb.Point{11, 55}, Max: orb.Point{12, 56}}
	for _, res := range []int{-1, 16} {
		if _, err := MakeGridH3(b, res); !errors.Is(err, ErrInvalidResolution) {
			t.Fatalf("res=%d: want ErrInvalidResolution, got %v", res, err)
		}
	}
}
