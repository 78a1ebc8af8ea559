package session

import (
	"image"
	"image/color"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"lens-composer/internal/layer"
	"lens-composer/internal/render/soft"
	"lens-composer/internal/view"
	"lens-composer/pkg/geometry"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	r := soft.New()
	t.Cleanup(r.Close)
	s := New(r)
	s.SetViewport(800, 600)
	t.Cleanup(s.Close)
	return s
}

func f64(v float64) *float64 { return &v }

func addTestLayer(t *testing.T, s *Session, w, h int, c color.RGBA) layer.ID {
	t.Helper()
	id, err := s.AddDecoded("test", solid(w, h, c))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestAddDecodedCentersInView(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 100, 50, color.RGBA{R: 255, A: 255})

	ls := s.Layers()
	if len(ls) != 1 || ls[0].ID != id {
		t.Fatalf("Layers = %v", ls)
	}
	// Identity view: world center equals viewport center.
	if ls[0].Position.X != 400 || ls[0].Position.Y != 300 {
		t.Errorf("Position = %+v, want (400,300)", ls[0].Position)
	}
	if ls[0].Opacity != layer.DefaultOpacity {
		t.Errorf("Opacity = %v, want %v", ls[0].Opacity, layer.DefaultOpacity)
	}
}

func TestAddDecodedCentersUnderPannedView(t *testing.T) {
	s := newTestSession(t)
	s.SetView(view.State{Pan: geometry.Point2D{X: 100, Y: -50}, Zoom: 2})
	addTestLayer(t, s, 10, 10, color.RGBA{A: 255})

	// World point under the viewport center: (center - pan) / zoom.
	got := s.Layers()[0].Position
	if got.X != 150 || got.Y != 175 {
		t.Errorf("Position = %+v, want (150,175)", got)
	}
}

func TestPointerDownSelectsTopmostAndDrags(t *testing.T) {
	s := newTestSession(t)
	bottom := addTestLayer(t, s, 100, 100, color.RGBA{R: 255, A: 255})
	top := addTestLayer(t, s, 100, 100, color.RGBA{B: 255, A: 255})

	s.PointerDown(geometry.Point2D{X: 400, Y: 300}, false)
	if s.Selection() != top {
		t.Fatalf("Selection = %d, want top %d (bottom %d)", s.Selection(), top, bottom)
	}
	if s.Mode() != ModeDraggingLayer {
		t.Fatalf("Mode = %v, want dragging", s.Mode())
	}

	s.PointerMove(geometry.Point2D{X: 410, Y: 320})
	s.PointerUp()

	l, _ := s.SelectedLayer()
	if l.Position.X != 410 || l.Position.Y != 320 {
		t.Errorf("dragged Position = %+v, want (410,320)", l.Position)
	}
	if s.Mode() != ModeIdle {
		t.Errorf("Mode after up = %v, want idle", s.Mode())
	}
}

func TestDragDividesScreenDeltaByZoom(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 100, 100, color.RGBA{A: 255})
	s.UpdateLayer(id, layer.Patch{Scale: f64(1)})

	// Zoom 2 about the viewport center keeps the layer under the cursor.
	s.ZoomAt(geometry.Point2D{X: 400, Y: 300}, 2)

	s.PointerDown(geometry.Point2D{X: 400, Y: 300}, false)
	if s.Selection() != id {
		t.Fatalf("Selection = %d, want %d", s.Selection(), id)
	}
	s.PointerMove(geometry.Point2D{X: 420, Y: 310})
	s.PointerUp()

	// Screen delta (20,10) at zoom 2 is a world delta of (10,5).
	l, _ := s.SelectedLayer()
	if l.Position.X != 410 || l.Position.Y != 305 {
		t.Errorf("Position = %+v, want (410,305)", l.Position)
	}
}

func TestPointerDownMissPansAndClearsSelection(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 10, 10, color.RGBA{A: 255})
	s.Select(id)

	s.PointerDown(geometry.Point2D{X: 10, Y: 10}, false)
	if s.Mode() != ModePanningView {
		t.Fatalf("Mode = %v, want panning", s.Mode())
	}
	if s.Selection() != 0 {
		t.Errorf("Selection = %d, want cleared", s.Selection())
	}

	// Panning applies the raw screen delta, no zoom division.
	s.PointerMove(geometry.Point2D{X: 40, Y: 25})
	s.PointerUp()
	v := s.View()
	if v.Pan.X != 30 || v.Pan.Y != 15 {
		t.Errorf("Pan = %+v, want (30,15)", v.Pan)
	}
}

func TestPanModifierAlwaysPans(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 100, 100, color.RGBA{A: 255})
	s.Select(id)

	// Modifier held: pan even though the pointer is over the layer, and
	// keep the selection.
	s.PointerDown(geometry.Point2D{X: 400, Y: 300}, true)
	if s.Mode() != ModePanningView {
		t.Fatalf("Mode = %v, want panning", s.Mode())
	}
	if s.Selection() != id {
		t.Errorf("Selection = %d, want %d kept", s.Selection(), id)
	}
	s.PointerUp()
}

func TestForwardTransformThenPointerDownHits(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 64, 48, color.RGBA{A: 255})
	s.UpdateLayer(id, layer.Patch{Scale: f64(1.3), Rotation: f64(0.7)})
	s.SetView(view.State{Pan: geometry.Point2D{X: 37, Y: -12}, Zoom: 1.8})

	// Any interior local point pushed forward through model then view
	// must hit the same layer on pointer-down.
	l := s.Layers()[0]
	for _, local := range []geometry.Point2D{{X: 0, Y: 0}, {X: 0.45, Y: -0.45}, {X: -0.2, Y: 0.3}} {
		world := l.Model().Apply(local)
		screen := s.View().Transform().Apply(world)
		s.PointerDown(screen, false)
		s.PointerUp()
		if s.Selection() != id {
			t.Errorf("local %+v: selection = %d, want %d", local, s.Selection(), id)
		}
	}
}

func TestRemoveSelectedClearsSelection(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 10, 10, color.RGBA{A: 255})
	s.Select(id)

	var selectionEvents int
	s.On(EventSelectionChanged, func(any) { selectionEvents++ })

	s.RemoveLayer(id)
	if s.Selection() != 0 {
		t.Errorf("Selection = %d, want 0", s.Selection())
	}
	if len(s.Layers()) != 0 {
		t.Errorf("Layers = %d, want 0", len(s.Layers()))
	}
	if selectionEvents != 1 {
		t.Errorf("selection events = %d, want 1", selectionEvents)
	}

	// Removing again is a safe no-op.
	s.RemoveLayer(id)
}

func TestZoomStepClampsAtBounds(t *testing.T) {
	s := newTestSession(t)
	s.ZoomStep(geometry.Point2D{X: 400, Y: 300}, 100)
	if got := s.View().Zoom; got != view.MaxZoom {
		t.Errorf("Zoom = %v, want max %v", got, view.MaxZoom)
	}
	s.ZoomStep(geometry.Point2D{X: 400, Y: 300}, -200)
	if got := s.View().Zoom; got != view.MinZoom {
		t.Errorf("Zoom = %v, want min %v", got, view.MinZoom)
	}
}

func TestFitToContentThroughSession(t *testing.T) {
	s := newTestSession(t)
	s.SetViewport(1000, 500)
	id := addTestLayer(t, s, 200, 100, color.RGBA{A: 255})
	s.UpdateLayer(id, layer.Patch{Scale: f64(1)})

	s.FitToContent(50)
	if got := s.View().Zoom; !scalar.EqualWithinAbs(got, 4.0, 1e-12) {
		t.Errorf("Zoom = %v, want 4.0", got)
	}
}

func TestRenderDrawsLayers(t *testing.T) {
	s := newTestSession(t)
	id := addTestLayer(t, s, 50, 50, color.RGBA{G: 255, A: 255})
	s.UpdateLayer(id, layer.Patch{Opacity: f64(1)})

	out, err := s.Render()
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(400, 300); got.G != 255 || got.A != 255 {
		t.Errorf("viewport center = %+v, want opaque green", got)
	}
	if got := out.RGBAAt(0, 0); got.A != 0 {
		t.Errorf("corner = %+v, want transparent", got)
	}
}

func TestLayerEventsEmitted(t *testing.T) {
	s := newTestSession(t)
	var added, updated, removed, reordered int
	s.On(EventLayerAdded, func(any) { added++ })
	s.On(EventLayerUpdated, func(any) { updated++ })
	s.On(EventLayerRemoved, func(any) { removed++ })
	s.On(EventLayersReordered, func(any) { reordered++ })

	a := addTestLayer(t, s, 10, 10, color.RGBA{A: 255})
	b := addTestLayer(t, s, 10, 10, color.RGBA{A: 255})
	s.UpdateLayer(a, layer.Patch{Opacity: f64(0.5)})
	s.ReorderLayer(b, 0)
	s.RemoveLayer(a)

	if added != 2 || updated != 1 || removed != 1 || reordered != 1 {
		t.Errorf("events = add %d upd %d rem %d reord %d, want 2/1/1/1",
			added, updated, removed, reordered)
	}
}
