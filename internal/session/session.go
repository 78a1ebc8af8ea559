// Package session ties the layer stack, view and renderer together behind
// one mutex-guarded state container, and runs the pointer interaction state
// machine. All mutations go through its methods; listeners are notified
// after each change so the display can schedule a fresh frame.
package session

import (
	"fmt"
	"image"
	"sync"

	"lens-composer/internal/app"
	"lens-composer/internal/imageio"
	"lens-composer/internal/layer"
	"lens-composer/internal/render"
	"lens-composer/internal/view"
	"lens-composer/pkg/geometry"
)

// Session is the composite editing session.
type Session struct {
	mu sync.Mutex

	renderer render.Renderer
	loader   *imageio.Loader
	stack    *layer.Stack

	view      view.State
	viewportW int
	viewportH int

	selection layer.ID // 0 means none

	mode          Mode
	dragLayer     layer.ID
	dragAnchor    geometry.Point2D
	layerStartPos geometry.Point2D
	viewStartPan  geometry.Point2D

	bus *eventBus
}

// New creates a session rendering through r. The session owns its layer
// textures but not the renderer itself.
func New(r render.Renderer) *Session {
	return &Session{
		renderer: r,
		loader:   imageio.NewLoader(),
		stack:    layer.NewStack(r),
		view:     view.New(),
		bus:      newEventBus(),
	}
}

// On registers a listener for the given event. Not safe to call
// concurrently with session mutations; register listeners up front.
func (s *Session) On(event EventType, l Listener) {
	s.bus.on(event, l)
}

// SetViewport records the display size used for frame assembly and for
// centering newly added layers.
func (s *Session) SetViewport(w, h int) {
	s.mu.Lock()
	s.viewportW, s.viewportH = w, h
	s.mu.Unlock()
}

// viewCenterWorld returns the world point under the viewport center.
// Callers hold s.mu.
func (s *Session) viewCenterWorld() geometry.Point2D {
	center := geometry.Point2D{X: float64(s.viewportW) / 2, Y: float64(s.viewportH) / 2}
	return center.Sub(s.view.Pan).Scale(1 / s.view.Zoom)
}

// AddImage decodes the file asynchronously and adds it as the top layer
// centered in the current view. A decode failure emits EventLoadFailed and
// leaves all prior state untouched.
func (s *Session) AddImage(path string) {
	s.loader.Load(path, func(res imageio.Result) {
		if res.Err != nil {
			s.bus.emit(EventLoadFailed, res.Err)
			return
		}
		if _, err := s.AddDecoded(res.Path, res.Image); err != nil {
			s.bus.emit(EventLoadFailed, err)
		}
	})
}

// AddDecoded uploads an already-decoded raster and adds it as the top
// layer. Returns the new layer's id.
func (s *Session) AddDecoded(name string, img *image.RGBA) (layer.ID, error) {
	tex, err := s.renderer.UploadTexture(img)
	if err != nil {
		return 0, fmt.Errorf("failed to upload texture: %w", err)
	}
	b := img.Bounds()

	s.mu.Lock()
	l := s.stack.Add(name, tex, b.Dx(), b.Dy(), s.viewCenterWorld())
	l.Source = name
	id := l.ID
	s.mu.Unlock()

	s.bus.emit(EventLayerAdded, id)
	return id, nil
}

// RemoveLayer deletes the layer and releases its texture. If it was the
// active selection, the selection clears.
func (s *Session) RemoveLayer(id layer.ID) {
	s.mu.Lock()
	removed := s.stack.Remove(id)
	selectionCleared := removed && s.selection == id
	if selectionCleared {
		s.selection = 0
	}
	s.mu.Unlock()

	if removed {
		s.bus.emit(EventLayerRemoved, id)
	}
	if selectionCleared {
		s.bus.emit(EventSelectionChanged, nil)
	}
}

// UpdateLayer merges the supplied fields into the layer with clamping.
func (s *Session) UpdateLayer(id layer.ID, p layer.Patch) {
	s.mu.Lock()
	ok := s.stack.Update(id, p)
	s.mu.Unlock()
	if ok {
		s.bus.emit(EventLayerUpdated, id)
	}
}

// ReorderLayer moves the layer to the given z rank.
func (s *Session) ReorderLayer(id layer.ID, rank int) {
	s.mu.Lock()
	ok := s.stack.Reorder(id, rank)
	s.mu.Unlock()
	if ok {
		s.bus.emit(EventLayersReordered, id)
	}
}

// Select makes the layer the active selection; id 0 clears it. Selecting
// an unknown id is a no-op.
func (s *Session) Select(id layer.ID) {
	s.mu.Lock()
	if id != 0 {
		if _, ok := s.stack.Get(id); !ok {
			s.mu.Unlock()
			return
		}
	}
	changed := s.selection != id
	s.selection = id
	s.mu.Unlock()
	if changed {
		s.bus.emit(EventSelectionChanged, nil)
	}
}

// Selection returns the selected layer id, 0 if none.
func (s *Session) Selection() layer.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SelectedLayer returns a snapshot of the selected layer's parameters.
func (s *Session) SelectedLayer() (layer.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.stack.Get(s.selection)
	if !ok {
		return layer.Layer{}, false
	}
	return *l, true
}

// Layers returns parameter snapshots in ascending z order.
func (s *Session) Layers() []layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls := s.stack.Layers()
	out := make([]layer.Layer, len(ls))
	for i, l := range ls {
		out[i] = *l
	}
	return out
}

// View returns the current view state.
func (s *Session) View() view.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView replaces the view state with clamped zoom.
func (s *Session) SetView(v view.State) {
	s.mu.Lock()
	v.Zoom = view.ClampZoom(v.Zoom)
	s.view = v
	s.mu.Unlock()
	s.bus.emit(EventViewChanged, nil)
}

// PanBy shifts the view by a screen-space delta.
func (s *Session) PanBy(delta geometry.Point2D) {
	s.mu.Lock()
	s.view.PanBy(delta.X, delta.Y)
	s.mu.Unlock()
	s.bus.emit(EventViewChanged, nil)
}

// ZoomAt sets the zoom while keeping the world point under the given
// screen point stationary.
func (s *Session) ZoomAt(screen geometry.Point2D, zoom float64) {
	s.mu.Lock()
	s.view.ZoomAt(screen, zoom)
	s.mu.Unlock()
	s.bus.emit(EventViewChanged, nil)
}

// ZoomStep zooms in (positive steps) or out around the screen point.
func (s *Session) ZoomStep(screen geometry.Point2D, steps int) {
	s.mu.Lock()
	zoom := s.view.Zoom
	for ; steps > 0; steps-- {
		zoom *= view.ZoomStep
	}
	for ; steps < 0; steps++ {
		zoom /= view.ZoomStep
	}
	s.view.ZoomAt(screen, zoom)
	s.mu.Unlock()
	s.bus.emit(EventViewChanged, nil)
}

// FitToContent frames all layers in the viewport with the given padding.
func (s *Session) FitToContent(padding float64) {
	s.mu.Lock()
	s.view = s.stack.FitToContent(float64(s.viewportW), float64(s.viewportH), padding)
	s.mu.Unlock()
	s.bus.emit(EventViewChanged, nil)
}

// Frame assembles the current frame description.
func (s *Session) Frame() render.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return render.Frame{
		Width:  s.viewportW,
		Height: s.viewportH,
		View:   s.view.Transform(),
		Items:  s.stack.Items(),
	}
}

// Render draws the current state into a raster for display or export.
func (s *Session) Render() (*image.RGBA, error) {
	return s.renderer.DrawFrame(s.Frame())
}

// Close tears the session down: pending decodes are discarded and every
// layer texture is released. The renderer stays open for the caller.
func (s *Session) Close() {
	s.loader.Close()
	s.mu.Lock()
	s.stack.Clear()
	s.selection = 0
	s.mode = ModeIdle
	s.mu.Unlock()
	app.Logger().Info("session closed")
}
