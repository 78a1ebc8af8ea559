package layer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"lens-composer/internal/render"
	"lens-composer/pkg/geometry"
)

// fakeReleaser records texture releases so tests can assert GPU handle
// lifetime without a real backend.
type fakeReleaser struct {
	released []render.TextureHandle
}

func (f *fakeReleaser) ReleaseTexture(h render.TextureHandle) {
	f.released = append(f.released, h)
}

func f64(v float64) *float64 { return &v }

func TestAddAssignsDefaults(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	l := s.Add("shot-1", 7, 200, 100, geometry.Point2D{X: 50, Y: 25})

	if l.Opacity != DefaultOpacity {
		t.Errorf("Opacity = %v, want %v", l.Opacity, DefaultOpacity)
	}
	if l.Scale != DefaultScale {
		t.Errorf("Scale = %v, want %v", l.Scale, DefaultScale)
	}
	if l.Texture != 7 {
		t.Errorf("Texture = %v, want 7", l.Texture)
	}
	if s.Rank(l.ID) != 0 {
		t.Errorf("Rank = %d, want 0", s.Rank(l.ID))
	}

	// Each new layer lands on top.
	l2 := s.Add("shot-2", 8, 10, 10, geometry.Point2D{})
	if s.Rank(l2.ID) != 1 {
		t.Errorf("second layer rank = %d, want 1", s.Rank(l2.ID))
	}
}

func TestAddThenRemoveRestoresEmptyState(t *testing.T) {
	rel := &fakeReleaser{}
	s := NewStack(rel)
	l := s.Add("a", 3, 10, 10, geometry.Point2D{})

	if !s.Remove(l.ID) {
		t.Fatal("Remove returned false")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	if len(rel.released) != 1 || rel.released[0] != 3 {
		t.Errorf("released = %v, want [3]", rel.released)
	}

	// The next layer takes the bottom rank again, no residual gap.
	l2 := s.Add("b", 4, 10, 10, geometry.Point2D{})
	if s.Rank(l2.ID) != 0 {
		t.Errorf("rank after re-add = %d, want 0", s.Rank(l2.ID))
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	rel := &fakeReleaser{}
	s := NewStack(rel)
	if s.Remove(42) {
		t.Error("Remove(42) = true on empty stack")
	}
	if len(rel.released) != 0 {
		t.Errorf("released = %v, want none", rel.released)
	}
}

func TestReorderKeepsRanksDense(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	a := s.Add("a", 1, 10, 10, geometry.Point2D{})
	b := s.Add("b", 2, 10, 10, geometry.Point2D{})
	c := s.Add("c", 3, 10, 10, geometry.Point2D{})

	// Move the top layer to the bottom.
	if !s.Reorder(c.ID, 0) {
		t.Fatal("Reorder returned false")
	}
	want := []ID{c.ID, a.ID, b.ID}
	for i, l := range s.Layers() {
		if l.ID != want[i] {
			t.Fatalf("order = %v at %d, want %v", l.ID, i, want)
		}
	}

	// Out-of-range ranks clamp to the ends.
	s.Reorder(c.ID, 99)
	if s.Rank(c.ID) != 2 {
		t.Errorf("rank after clamped reorder = %d, want 2", s.Rank(c.ID))
	}
	s.Reorder(c.ID, -5)
	if s.Rank(c.ID) != 0 {
		t.Errorf("rank after negative reorder = %d, want 0", s.Rank(c.ID))
	}
}

func TestUpdateClampsFields(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	l := s.Add("a", 1, 10, 10, geometry.Point2D{})

	tests := []struct {
		name  string
		patch Patch
		check func(t *testing.T)
	}{
		{"scale above max", Patch{Scale: f64(10)}, func(t *testing.T) {
			if l.Scale != MaxScale {
				t.Errorf("Scale = %v, want %v", l.Scale, MaxScale)
			}
		}},
		{"scale below min", Patch{Scale: f64(0)}, func(t *testing.T) {
			if l.Scale != MinScale {
				t.Errorf("Scale = %v, want %v", l.Scale, MinScale)
			}
		}},
		{"opacity clamped", Patch{Opacity: f64(1.5)}, func(t *testing.T) {
			if l.Opacity != 1 {
				t.Errorf("Opacity = %v, want 1", l.Opacity)
			}
		}},
		{"coefficient clamped", Patch{Coefficient: f64(-5)}, func(t *testing.T) {
			if l.Coefficient != -2 {
				t.Errorf("Coefficient = %v, want -2", l.Coefficient)
			}
		}},
		{"rotation wraps", Patch{Rotation: f64(3 * math.Pi)}, func(t *testing.T) {
			if !scalar.EqualWithinAbs(l.Rotation, math.Pi, 1e-12) {
				t.Errorf("Rotation = %v, want pi", l.Rotation)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !s.Update(l.ID, tt.patch) {
				t.Fatal("Update returned false")
			}
			tt.check(t)
		})
	}

	if s.Update(999, Patch{Opacity: f64(1)}) {
		t.Error("Update on unknown id = true")
	}
}

func TestHitTestTopmostWins(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	bottom := s.Add("bottom", 1, 100, 100, geometry.Point2D{X: 50, Y: 50})
	top := s.Add("top", 2, 100, 100, geometry.Point2D{X: 50, Y: 50})
	s.Update(bottom.ID, Patch{Scale: f64(1)})
	s.Update(top.ID, Patch{Scale: f64(1)})

	got, ok := s.HitTest(geometry.Point2D{X: 50, Y: 50})
	if !ok || got.ID != top.ID {
		t.Errorf("HitTest = %v,%v, want top layer", got, ok)
	}

	if _, ok := s.HitTest(geometry.Point2D{X: 500, Y: 500}); ok {
		t.Error("HitTest outside all layers = hit, want miss")
	}
}

func TestHitTestRotatedLayer(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	l := s.Add("a", 1, 200, 20, geometry.Point2D{X: 0, Y: 0})
	s.Update(l.ID, Patch{Scale: f64(1), Rotation: f64(math.Pi / 2)})

	// Rotated 90 degrees the long axis is vertical: a point 80 units up
	// is inside, 80 units right is not.
	if _, ok := s.HitTest(geometry.Point2D{X: 0, Y: 80}); !ok {
		t.Error("point on rotated long axis = miss, want hit")
	}
	if _, ok := s.HitTest(geometry.Point2D{X: 80, Y: 0}); ok {
		t.Error("point on original long axis = hit, want miss")
	}
}

func TestForwardThenHitTestRoundTrip(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	l := s.Add("a", 1, 64, 48, geometry.Point2D{X: 120, Y: -30})
	s.Update(l.ID, Patch{Scale: f64(1.7), Rotation: f64(0.6)})

	// Any local point inside the unit quad maps forward to a world point
	// that hit-tests back to the same layer.
	for _, local := range []geometry.Point2D{{X: 0, Y: 0}, {X: 0.49, Y: -0.49}, {X: -0.3, Y: 0.2}} {
		world := l.Model().Apply(local)
		got, ok := s.HitTest(world)
		if !ok || got.ID != l.ID {
			t.Errorf("round trip for local %+v failed", local)
		}
		back, ok := l.LocalPoint(world)
		if !ok {
			t.Fatalf("LocalPoint degenerate for %+v", world)
		}
		if !scalar.EqualWithinAbs(back.X, local.X, 1e-9) || !scalar.EqualWithinAbs(back.Y, local.Y, 1e-9) {
			t.Errorf("LocalPoint = %+v, want %+v", back, local)
		}
	}
}

func TestFitToContentSingleLayer(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	l := s.Add("a", 1, 200, 100, geometry.Point2D{X: 300, Y: 200})
	s.Update(l.ID, Patch{Scale: f64(1)})

	// 200x100 content in a 1000x500 viewport with 50px padding fits at
	// zoom min(900/200, 400/100) = 4.
	st := s.FitToContent(1000, 500, 50)
	if !scalar.EqualWithinAbs(st.Zoom, 4.0, 1e-12) {
		t.Fatalf("Zoom = %v, want 4.0", st.Zoom)
	}

	// The content center lands on the viewport center.
	screen := st.Transform().Apply(geometry.Point2D{X: 300, Y: 200})
	if !scalar.EqualWithinAbs(screen.X, 500, 1e-9) || !scalar.EqualWithinAbs(screen.Y, 250, 1e-9) {
		t.Errorf("content center maps to %+v, want (500,250)", screen)
	}
}

func TestFitToContentSpansAllLayers(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	a := s.Add("a", 1, 100, 100, geometry.Point2D{X: 0, Y: 0})
	b := s.Add("b", 2, 100, 100, geometry.Point2D{X: 300, Y: 100})
	s.Update(a.ID, Patch{Scale: f64(1)})
	s.Update(b.ID, Patch{Scale: f64(1)})

	// Quads span x [-50, 350], y [-50, 150]: a 400x200 box centered at
	// (150, 50). In a 1000x500 viewport with 100px padding the zoom is
	// min(800/400, 300/200) = 1.5.
	st := s.FitToContent(1000, 500, 100)
	if !scalar.EqualWithinAbs(st.Zoom, 1.5, 1e-12) {
		t.Fatalf("Zoom = %v, want 1.5", st.Zoom)
	}
	screen := st.Transform().Apply(geometry.Point2D{X: 150, Y: 50})
	if !scalar.EqualWithinAbs(screen.X, 500, 1e-9) || !scalar.EqualWithinAbs(screen.Y, 250, 1e-9) {
		t.Errorf("box center maps to %+v, want (500,250)", screen)
	}
}

func TestFitToContentEmptyResetsView(t *testing.T) {
	s := NewStack(&fakeReleaser{})
	st := s.FitToContent(1000, 500, 50)
	if st.Zoom != 1 || st.Pan.X != 0 || st.Pan.Y != 0 {
		t.Errorf("empty fit = %+v, want identity view", st)
	}
}

func TestClearReleasesAllTextures(t *testing.T) {
	rel := &fakeReleaser{}
	s := NewStack(rel)
	s.Add("a", 1, 10, 10, geometry.Point2D{})
	s.Add("b", 2, 10, 10, geometry.Point2D{})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
	if len(rel.released) != 2 {
		t.Errorf("released %d textures, want 2", len(rel.released))
	}
}
