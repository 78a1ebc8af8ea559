package layer

import (
	"lens-composer/internal/app"
	"lens-composer/internal/render"
	"lens-composer/internal/view"
	"lens-composer/pkg/geometry"
)

// Stack is the ordered layer collection. Slice position is the z rank:
// index 0 draws first (bottom), the last index draws on top. Ranks stay
// dense because reordering is list movement, never arbitrary assignment.
//
// Stack is not safe for concurrent use; the owning session serializes
// access.
type Stack struct {
	releaser render.Releaser
	layers   []*Layer
	nextID   ID
}

// NewStack returns an empty stack. Removed layers have their textures
// released through r.
func NewStack(r render.Releaser) *Stack {
	return &Stack{releaser: r}
}

// Add creates a layer on top of the stack, centered at the given
// world-space point with the default scale and opacity. The texture handle
// is owned by the new layer from this point on.
func (s *Stack) Add(name string, tex render.TextureHandle, width, height int, center geometry.Point2D) *Layer {
	s.nextID++
	l := &Layer{
		ID:       s.nextID,
		Name:     name,
		Width:    width,
		Height:   height,
		Position: center,
		Scale:    DefaultScale,
		Opacity:  DefaultOpacity,
		Texture:  tex,
	}
	s.layers = append(s.layers, l)
	app.Logger().Info("layer added", "id", l.ID, "name", name, "size", width*height)
	return l
}

// Remove deletes the layer and releases its texture. Removing an unknown
// id is a safe no-op.
func (s *Stack) Remove(id ID) bool {
	for i, l := range s.layers {
		if l.ID == id {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			s.releaser.ReleaseTexture(l.Texture)
			app.Logger().Info("layer removed", "id", id)
			return true
		}
	}
	return false
}

// Clear removes every layer and releases all textures.
func (s *Stack) Clear() {
	for _, l := range s.layers {
		s.releaser.ReleaseTexture(l.Texture)
	}
	s.layers = nil
}

// Get returns the layer with the given id.
func (s *Stack) Get(id ID) (*Layer, bool) {
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

// Len returns the number of layers.
func (s *Stack) Len() int { return len(s.layers) }

// Layers returns the layers in ascending z order. The slice is a copy but
// the layer pointers are shared.
func (s *Stack) Layers() []*Layer {
	out := make([]*Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Rank returns the z rank of the layer, or -1 if unknown.
func (s *Stack) Rank(id ID) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// Reorder moves the layer to the given z rank, shifting the others to keep
// ranks dense. Out-of-range ranks are clamped.
func (s *Stack) Reorder(id ID, rank int) bool {
	from := s.Rank(id)
	if from < 0 {
		return false
	}
	if rank < 0 {
		rank = 0
	}
	if rank >= len(s.layers) {
		rank = len(s.layers) - 1
	}
	if rank == from {
		return true
	}
	l := s.layers[from]
	s.layers = append(s.layers[:from], s.layers[from+1:]...)
	s.layers = append(s.layers[:rank], append([]*Layer{l}, s.layers[rank:]...)...)
	return true
}

// Update merges the supplied fields into the layer, clamping each to its
// valid range.
func (s *Stack) Update(id ID, p Patch) bool {
	l, ok := s.Get(id)
	if !ok {
		return false
	}
	l.apply(p)
	return true
}

// HitTest returns the topmost layer containing the world-space point.
// An empty stack is a safe miss.
func (s *Stack) HitTest(world geometry.Point2D) (*Layer, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if s.layers[i].Contains(world) {
			return s.layers[i], true
		}
	}
	return nil, false
}

// Items returns the render items in draw order (ascending z).
func (s *Stack) Items() []render.Item {
	items := make([]render.Item, 0, len(s.layers))
	for _, l := range s.layers {
		items = append(items, l.Item())
	}
	return items
}

// FitToContent computes the view that centers the bounding box of all
// layer quads in the viewport with the given padding on every side. With
// no layers the view resets to identity pan and zoom.
func (s *Stack) FitToContent(viewportW, viewportH, padding float64) view.State {
	if len(s.layers) == 0 || viewportW <= 0 || viewportH <= 0 {
		return view.New()
	}

	pts := make([]geometry.Point2D, 0, len(s.layers)*4)
	for _, l := range s.layers {
		corners := l.Corners()
		pts = append(pts, corners[:]...)
	}
	box := geometry.BoundingBox(pts)
	bw, bh := box.Width, box.Height
	if bw <= 0 {
		bw = 1
	}
	if bh <= 0 {
		bh = 1
	}

	availW := viewportW - 2*padding
	availH := viewportH - 2*padding
	if availW <= 0 || availH <= 0 {
		return view.New()
	}
	zoom := view.ClampZoom(min(availW/bw, availH/bh))

	center := box.Center()
	pan := geometry.Point2D{
		X: viewportW/2 - center.X*zoom,
		Y: viewportH/2 - center.Y*zoom,
	}
	return view.State{Pan: pan, Zoom: zoom}
}
