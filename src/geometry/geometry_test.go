package geometry

import (
	"math"
	"testing"
)

func TestFromCornersOrderIndependent(t *testing.T) {
	coords := []int32{-500, -1, 0, 1, 37, 100, 1919, 4000}
	for _, x1 := range coords {
		for _, y1 := range coords {
			for _, x2 := range coords {
				for _, y2 := range coords {
					a := Point{x1, y1}
					b := Point{x2, y2}
					d1 := FromCorners(a, b)
					d2 := FromCorners(b, a)
					if d1 != d2 {
						t.Fatalf("FromCorners(%v,%v)=%v, reversed=%v", a, b, d1, d2)
					}
					r := d1.Rect()
					if r.Left > r.Right || r.Top > r.Bottom {
						t.Fatalf("inverted rect %v from %v,%v", r, a, b)
					}
				}
			}
		}
	}
}

func TestFromCornersValues(t *testing.T) {
	tests := []struct {
		name   string
		c1, c2 Point
		want   Dimensions
	}{
		{"down-right", Point{10, 20}, Point{30, 50}, Dimensions{Width: 20, Height: 30, X: 10, Y: 20}},
		{"up-right", Point{100, 100}, Point{300, 50}, Dimensions{Width: 200, Height: 50, X: 100, Y: 50}},
		{"up-left", Point{5, 5}, Point{-5, -15}, Dimensions{Width: 10, Height: 20, X: -5, Y: -15}},
		{"same point", Point{7, 9}, Point{7, 9}, Dimensions{X: 7, Y: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromCorners(tt.c1, tt.c2); got != tt.want {
				t.Errorf("FromCorners = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDegenerateSelection(t *testing.T) {
	c1 := Point{42, -3}
	for _, d := range []Dimensions{FromCorner(c1, nil), FromCorner(c1, &c1)} {
		if d.HasArea() {
			t.Errorf("degenerate selection has area: %v", d)
		}
		if d.X != c1.X || d.Y != c1.Y {
			t.Errorf("degenerate selection at (%d,%d), want (%d,%d)", d.X, d.Y, c1.X, c1.Y)
		}
	}
	// a line has no area either
	line := FromCorners(Point{0, 0}, Point{10, 0})
	if line.HasArea() {
		t.Errorf("line %v reported area", line)
	}
}

func TestRectRoundTripAndExpand(t *testing.T) {
	d := Dimensions{Width: 200, Height: 50, X: 100, Y: 50}
	r := d.Rect()
	if r != (Rect{Left: 100, Top: 50, Right: 300, Bottom: 100}) {
		t.Fatalf("Rect() = %v", r)
	}
	if back := r.Dimensions(); back != d {
		t.Fatalf("Dimensions() = %v, want %v", back, d)
	}
	e := r.ExpandTrailing(1)
	if e.Width() != 201 || e.Height() != 51 || e.Left != 100 || e.Top != 50 {
		t.Errorf("ExpandTrailing(1) = %v", e)
	}
}

func TestClampAndBox(t *testing.T) {
	r := Rect{Left: -10, Top: 5, Right: 2000, Bottom: 30}
	c := r.Clamp(1920, 1080)
	if c != (Rect{Left: 0, Top: 5, Right: 1920, Bottom: 30}) {
		t.Errorf("Clamp = %v", c)
	}
	outside := Rect{Left: 3000, Top: 3000, Right: 3100, Bottom: 3100}.Clamp(1920, 1080)
	if outside.HasArea() {
		t.Errorf("rect outside the surface kept area: %v", outside)
	}
	b := BoxOf(c)
	if b.Width() != 1920 || b.Height() != 25 || b.Front != 0 || b.Back != 1 {
		t.Errorf("BoxOf = %+v", b)
	}
}

func TestNormaliseRoundTrip(t *testing.T) {
	const w, h = 3840, 2160
	rects := []Rect{
		{0, 0, w, h},
		{100, 50, 301, 101},
		{1, 1, 2, 2},
		{3839, 2159, 3840, 2160},
		{1234, 567, 2345, 1789},
	}
	for _, r := range rects {
		n := Normalise(r, w, h)
		for _, v := range []float32{n.Left, n.Top, n.Right, n.Bottom} {
			if v < 0 || v > 1 {
				t.Fatalf("Normalise(%v) = %+v out of [0,1]", r, n)
			}
		}
		back := n.Denormalise(w, h)
		if back != r {
			t.Errorf("round trip %v -> %+v -> %v", r, n, back)
		}
		if math.Abs(float64(n.Left)*w-float64(r.Left)) > 1e-2 {
			t.Errorf("left drift for %v: %v", r, float64(n.Left)*w)
		}
	}
}

func TestNormaliseZeroSurface(t *testing.T) {
	if n := Normalise(Rect{1, 2, 3, 4}, 0, 10); !n.IsZero() {
		t.Errorf("zero-width surface gave %+v", n)
	}
}

func TestNormalisedRectBytes(t *testing.T) {
	n := NormalisedRect{Left: 0.25, Top: 0.5, Right: 0.75, Bottom: 1}
	b := n.Bytes()
	if len(b) != NormalisedRectSize {
		t.Fatalf("len = %d", len(b))
	}
	if got := NormalisedRectFrom(b); got != n {
		t.Errorf("decoded %+v, want %+v", got, n)
	}
	// Bottom = 1.0 is 0x3F800000, stored low byte first
	if got := b[12:16]; got[0] != 0x00 || got[1] != 0x00 || got[2] != 0x80 || got[3] != 0x3F {
		t.Errorf("bottom bytes = % x, want 00 00 80 3f", got)
	}
	if !n.Contains(0.5, 0.75) || n.Contains(0.1, 0.75) || n.Contains(0.75, 0.75) {
		t.Errorf("Contains mismatch for %+v", n)
	}
}
