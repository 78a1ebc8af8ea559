// Package layer holds the ordered collection of placed images that make up
// the composite, along with each image's placement and appearance.
package layer

import (
	"math"

	"lens-composer/internal/distortion"
	"lens-composer/internal/render"
	"lens-composer/pkg/geometry"
)

const (
	// MinScale and MaxScale bound a layer's uniform scale factor.
	MinScale = 0.1
	MaxScale = 3.0

	// DefaultOpacity is assigned to newly added layers so a freshly
	// stacked image stays distinguishable from the layers beneath it.
	DefaultOpacity = 0.8

	// DefaultScale keeps a newly added image visibly smaller than the
	// viewport so it never fully occludes the existing composite.
	DefaultScale = 0.5
)

// ID identifies one layer for the lifetime of a session.
type ID uint64

// Layer is one placed image. Position is the world-space location of the
// image center; the image itself is a unit quad scaled by the intrinsic
// size times Scale and rotated by Rotation.
type Layer struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Position    geometry.Point2D `json:"position"`
	Rotation    float64          `json:"rotation"`
	Scale       float64          `json:"scale"`
	Opacity     float64          `json:"opacity"`
	Coefficient float64          `json:"coefficient"`

	// Texture is owned by the rendering backend and released when the
	// layer is removed. Never retained elsewhere.
	Texture render.TextureHandle `json:"-"`
}

// Model returns the placement transform mapping the unit quad centered at
// the origin to this layer's world-space quad.
func (l *Layer) Model() geometry.Mat3 {
	return geometry.Translation(l.Position.X, l.Position.Y).
		Mul(geometry.Rotation(l.Rotation)).
		Mul(geometry.Scaling(float64(l.Width)*l.Scale, float64(l.Height)*l.Scale))
}

// LocalPoint maps a world-space point into the layer's local unit-quad
// space by undoing the placement transform step by step. Returns false for
// a degenerate layer (zero size or scale).
func (l *Layer) LocalPoint(world geometry.Point2D) (geometry.Point2D, bool) {
	sx := float64(l.Width) * l.Scale
	sy := float64(l.Height) * l.Scale
	if sx == 0 || sy == 0 {
		return geometry.Point2D{}, false
	}
	p := world.Sub(l.Position)
	sin, cos := math.Sincos(-l.Rotation)
	p = geometry.Point2D{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
	return geometry.Point2D{X: p.X / sx, Y: p.Y / sy}, true
}

// Contains reports whether the world-space point falls inside the layer's
// transformed quad.
func (l *Layer) Contains(world geometry.Point2D) bool {
	p, ok := l.LocalPoint(world)
	if !ok {
		return false
	}
	return p.X >= -0.5 && p.X <= 0.5 && p.Y >= -0.5 && p.Y <= 0.5
}

// Corners returns the layer quad's four world-space corners.
func (l *Layer) Corners() [4]geometry.Point2D {
	m := l.Model()
	return [4]geometry.Point2D{
		m.Apply(geometry.Point2D{X: -0.5, Y: -0.5}),
		m.Apply(geometry.Point2D{X: 0.5, Y: -0.5}),
		m.Apply(geometry.Point2D{X: 0.5, Y: 0.5}),
		m.Apply(geometry.Point2D{X: -0.5, Y: 0.5}),
	}
}

// Item returns the render description for this layer.
func (l *Layer) Item() render.Item {
	return render.Item{
		Texture:     l.Texture,
		TexWidth:    l.Width,
		TexHeight:   l.Height,
		Model:       l.Model(),
		Coefficient: l.Coefficient,
		Opacity:     l.Opacity,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeRotation wraps an angle into (-pi, pi].
func normalizeRotation(r float64) float64 {
	r = math.Mod(r, 2*math.Pi)
	if r <= -math.Pi {
		r += 2 * math.Pi
	} else if r > math.Pi {
		r -= 2 * math.Pi
	}
	return r
}

// Patch is a partial layer update. Nil fields are left unchanged; supplied
// values are clamped to their valid ranges rather than rejected.
type Patch struct {
	Name        *string
	Position    *geometry.Point2D
	Rotation    *float64
	Scale       *float64
	Opacity     *float64
	Coefficient *float64
}

func (l *Layer) apply(p Patch) {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Position != nil {
		l.Position = *p.Position
	}
	if p.Rotation != nil {
		l.Rotation = normalizeRotation(*p.Rotation)
	}
	if p.Scale != nil {
		l.Scale = clamp(*p.Scale, MinScale, MaxScale)
	}
	if p.Opacity != nil {
		l.Opacity = clamp(*p.Opacity, 0, 1)
	}
	if p.Coefficient != nil {
		l.Coefficient = distortion.ClampCoefficient(*p.Coefficient)
	}
}
