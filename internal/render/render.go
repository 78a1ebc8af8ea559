// Package render defines the rendering backend contract shared by the GPU
// and software compositors, and the per-frame transform assembly.
package render

import (
	"errors"
	"image"

	"lens-composer/pkg/geometry"
)

// TextureHandle identifies an uploaded texture. Handles are owned by the
// renderer that issued them and become invalid after ReleaseTexture.
type TextureHandle uint64

// NoTexture is the zero handle; it never refers to an uploaded texture.
const NoTexture TextureHandle = 0

// ErrClosed is returned by operations on a renderer after Close.
var ErrClosed = errors.New("renderer is closed")

// Item is one layer draw in a frame, already carrying its model transform.
type Item struct {
	Texture   TextureHandle
	TexWidth  int
	TexHeight int

	// Model maps the layer's unit quad (extents [-0.5,0.5]) to world space.
	Model geometry.Mat3

	Coefficient float64
	Opacity     float64
}

// Frame describes one composite: a viewport, a view transform and the layer
// draws in ascending z order (lowest first, so later items land on top).
type Frame struct {
	Width  int
	Height int
	View   geometry.Mat3
	Items  []Item
}

// Renderer is the backend adapter. Implementations own their GPU (or
// in-memory) resources exclusively; no caller retains a texture reference
// across ReleaseTexture.
type Renderer interface {
	// UploadTexture copies pixels into a backend texture and returns its
	// handle. The caller keeps ownership of img.
	UploadTexture(img *image.RGBA) (TextureHandle, error)

	// ReleaseTexture frees the texture. Unknown handles are a safe no-op.
	ReleaseTexture(h TextureHandle)

	// DrawFrame composites a frame and returns the rendered raster. The
	// previous frame's contents never survive: the target is cleared to
	// fully transparent before the first layer draws.
	DrawFrame(f Frame) (*image.RGBA, error)

	// DrawSingle renders the single-image correction program: the texture
	// fills the viewport, scaled around the center by zoom, with the
	// distortion coefficient applied. Out-of-frame pixels are transparent.
	DrawSingle(h TextureHandle, zoom, coefficient float64, outW, outH int) (*image.RGBA, error)

	// Close releases every backend resource. The renderer is unusable
	// afterwards.
	Close()
}

// Releaser is the subset of Renderer the layer model needs to direct
// texture teardown on layer removal.
type Releaser interface {
	ReleaseTexture(h TextureHandle)
}

// FinalTransform assembles the complete transform handed to a backend for
// one layer: screen projection after view after model.
func FinalTransform(width, height int, viewTransform, model geometry.Mat3) geometry.Mat3 {
	return geometry.ScreenProjection(float64(width), float64(height)).
		Mul(viewTransform).
		Mul(model)
}
