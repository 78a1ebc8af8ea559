package session

import (
	"fmt"
	"image"
	"sync"

	"lens-composer/internal/distortion"
	"lens-composer/internal/imageio"
	"lens-composer/internal/render"
)

// Zoom bounds for the single-image mode, tighter than the composite view.
const (
	MinSingleZoom = 0.5
	MaxSingleZoom = 3.0
)

// SingleImageSession is the non-panorama mode: one raster filling the
// viewport, one coefficient, one center zoom. No layering, no panning.
type SingleImageSession struct {
	mu sync.Mutex

	renderer render.Renderer
	loader   *imageio.Loader

	texture     render.TextureHandle
	width       int
	height      int
	zoom        float64
	coefficient float64

	onChange func()
	onError  func(error)
}

// NewSingle creates a single-image session rendering through r.
func NewSingle(r render.Renderer) *SingleImageSession {
	return &SingleImageSession{
		renderer: r,
		loader:   imageio.NewLoader(),
		zoom:     1,
	}
}

// OnChange registers the callback invoked after every state change.
func (s *SingleImageSession) OnChange(fn func()) { s.onChange = fn }

// OnError registers the callback invoked on decode failure.
func (s *SingleImageSession) OnError(fn func(error)) { s.onError = fn }

func (s *SingleImageSession) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Load decodes the file asynchronously and replaces the active image. A
// later Load supersedes an unfinished one.
func (s *SingleImageSession) Load(path string) {
	s.loader.Load(path, func(res imageio.Result) {
		if res.Err != nil {
			if s.onError != nil {
				s.onError(res.Err)
			}
			return
		}
		if err := s.SetImage(res.Image); err != nil && s.onError != nil {
			s.onError(err)
		}
	})
}

// SetImage uploads the raster and makes it the active image, releasing the
// previous one.
func (s *SingleImageSession) SetImage(img *image.RGBA) error {
	tex, err := s.renderer.UploadTexture(img)
	if err != nil {
		return fmt.Errorf("failed to upload texture: %w", err)
	}
	b := img.Bounds()

	s.mu.Lock()
	old := s.texture
	s.texture = tex
	s.width, s.height = b.Dx(), b.Dy()
	s.mu.Unlock()

	if old != render.NoTexture {
		s.renderer.ReleaseTexture(old)
	}
	s.notify()
	return nil
}

// HasImage reports whether an image is loaded.
func (s *SingleImageSession) HasImage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texture != render.NoTexture
}

// SetZoom sets the center zoom, clamped to the single-image range.
func (s *SingleImageSession) SetZoom(z float64) {
	s.mu.Lock()
	if z < MinSingleZoom {
		z = MinSingleZoom
	}
	if z > MaxSingleZoom {
		z = MaxSingleZoom
	}
	s.zoom = z
	s.mu.Unlock()
	s.notify()
}

// Zoom returns the current zoom.
func (s *SingleImageSession) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// SetCoefficient sets the distortion coefficient, clamped.
func (s *SingleImageSession) SetCoefficient(k float64) {
	s.mu.Lock()
	s.coefficient = distortion.ClampCoefficient(k)
	s.mu.Unlock()
	s.notify()
}

// Coefficient returns the current coefficient.
func (s *SingleImageSession) Coefficient() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coefficient
}

// Render draws the corrected image at the given output size. With no image
// loaded it returns a transparent raster.
func (s *SingleImageSession) Render(outW, outH int) (*image.RGBA, error) {
	s.mu.Lock()
	tex, zoom, k := s.texture, s.zoom, s.coefficient
	s.mu.Unlock()

	if tex == render.NoTexture {
		return image.NewRGBA(image.Rect(0, 0, outW, outH)), nil
	}
	return s.renderer.DrawSingle(tex, zoom, k, outW, outH)
}

// Close discards pending decodes and releases the active texture.
func (s *SingleImageSession) Close() {
	s.loader.Close()
	s.mu.Lock()
	tex := s.texture
	s.texture = render.NoTexture
	s.mu.Unlock()
	if tex != render.NoTexture {
		s.renderer.ReleaseTexture(tex)
	}
}
