package distortion

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"lens-composer/pkg/geometry"
)

func TestDistortZeroCoefficientIsIdentity(t *testing.T) {
	offsets := []geometry.Point2D{
		{X: 0, Y: 0},
		{X: 0.1, Y: 0},
		{X: -0.25, Y: 0.25},
		{X: 0.5, Y: 0.5},
		{X: -0.499, Y: 0.001},
	}
	for _, c := range offsets {
		if got := Distort(c, 0); got != c {
			t.Errorf("Distort(%+v, 0) = %+v, want identity", c, got)
		}
		src, ok := SourceOffset(c, 0)
		if !ok || src != c {
			t.Errorf("SourceOffset(%+v, 0) = %+v ok=%v, want identity", c, src, ok)
		}
	}
}

func TestSourceOffsetInvertsDistort(t *testing.T) {
	// The inverse uses the destination radius, so it is exact at k=0 and a
	// close approximation for small offsets elsewhere.
	tests := []struct {
		name string
		c    geometry.Point2D
		k    float64
		tol  float64
	}{
		{"center any k", geometry.Point2D{}, -1.5, 1e-12},
		{"small offset negative k", geometry.Point2D{X: 0.05, Y: -0.03}, -1, 1e-3},
		{"small offset positive k", geometry.Point2D{X: -0.04, Y: 0.02}, 1, 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, ok := SourceOffset(tt.c, tt.k)
			if !ok {
				t.Fatalf("SourceOffset(%+v, %v) not ok", tt.c, tt.k)
			}
			back := Distort(src, tt.k)
			if !scalar.EqualWithinAbs(back.X, tt.c.X, tt.tol) ||
				!scalar.EqualWithinAbs(back.Y, tt.c.Y, tt.tol) {
				t.Errorf("Distort(SourceOffset(%+v)) = %+v, want within %v", tt.c, back, tt.tol)
			}
		})
	}
}

func TestClampCoefficient(t *testing.T) {
	tests := []struct {
		name string
		k    float64
		want float64
	}{
		{"in range", 0.5, 0.5},
		{"lower bound", -2, -2},
		{"upper bound", 2, 2},
		{"below", -3.7, -2},
		{"above", 10, 2},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampCoefficient(tt.k); got != tt.want {
				t.Errorf("ClampCoefficient(%v) = %v, want %v", tt.k, got, tt.want)
			}
		})
	}
}

func TestBarrelCornersMapOutside(t *testing.T) {
	// 100x100 image at k=-1: every corner pixel samples outside the unit
	// square while the center pixel is unaffected.
	const w, h, k = 100, 100, -1.0
	corners := [][2]int{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}}
	for _, c := range corners {
		u := (float64(c[0]) + 0.5) / w
		v := (float64(c[1]) + 0.5) / h
		if _, _, ok := SourceUV(u, v, k); ok {
			t.Errorf("corner (%d,%d) mapped inside the source frame", c[0], c[1])
		}
	}

	cu, cv, ok := SourceUV(0.5, 0.5, k)
	if !ok {
		t.Fatal("center pixel mapped out of frame")
	}
	if math.Abs(cu-0.5) > 1e-9 || math.Abs(cv-0.5) > 1e-9 {
		t.Errorf("center pixel moved to (%v,%v), want (0.5,0.5)", cu, cv)
	}
}

func TestSampleMapMarksOutOfFrame(t *testing.T) {
	const w, h = 100, 100
	mapX, mapY := SampleMap(w, h, -1)

	if mapX[0] != -1 || mapY[0] != -1 {
		t.Errorf("corner map entry = (%v,%v), want (-1,-1)", mapX[0], mapY[0])
	}
	ci := (h/2)*w + w/2
	if mapX[ci] < 0 || mapY[ci] < 0 {
		t.Errorf("center map entry = (%v,%v), want in frame", mapX[ci], mapY[ci])
	}
}
