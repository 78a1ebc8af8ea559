// Package view implements the pan+zoom camera applied on top of every layer.
package view

import (
	"lens-composer/pkg/geometry"
)

// Zoom bounds and the step used by wheel zooming.
const (
	MinZoom  = 0.1
	MaxZoom  = 10.0
	ZoomStep = 1.25
)

// State is the camera: a screen-space pan offset and a uniform zoom scale.
// The zero value is not valid; use New.
type State struct {
	Pan  geometry.Point2D `json:"pan"`
	Zoom float64          `json:"zoom"`
}

// New returns a view at the origin with zoom 1.
func New() State {
	return State{Zoom: 1}
}

// ClampZoom pins a zoom factor to the supported range.
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Transform returns the view transform mapping world coordinates to screen
// pixels: translate(pan) composed after scale(zoom).
func (s State) Transform() geometry.Mat3 {
	return geometry.Translation(s.Pan.X, s.Pan.Y).Mul(geometry.Scaling(s.Zoom, s.Zoom))
}

// PanBy translates the view by a screen-space delta. Pan is unconditional.
func (s *State) PanBy(dx, dy float64) {
	s.Pan.X += dx
	s.Pan.Y += dy
}

// ZoomAt sets the zoom factor, clamped to the supported range, while keeping
// the world point currently under screenPt fixed on screen.
func (s *State) ZoomAt(screenPt geometry.Point2D, zoom float64) {
	zoom = ClampZoom(zoom)
	// screen = world*zoom + pan, so the anchored world point is recoverable
	// without a full matrix inverse.
	world := screenPt.Sub(s.Pan).Scale(1 / s.Zoom)
	s.Zoom = zoom
	s.Pan = screenPt.Sub(world.Scale(zoom))
}

// Reset restores the origin pan and unit zoom.
func (s *State) Reset() {
	s.Pan = geometry.Point2D{}
	s.Zoom = 1
}
