// Package soft provides the CPU rendering backend. It mirrors the GPU
// compositor's sampling and blending semantics exactly, pixel by pixel, and
// serves environments without a usable GPU as well as automated tests.
package soft

import (
	"fmt"
	"image"
	"sync"

	"lens-composer/internal/distortion"
	"lens-composer/internal/render"
	"lens-composer/pkg/colorutil"
	"lens-composer/pkg/geometry"
)

// Renderer composites frames on the CPU by inverse-mapping every output
// pixel through the layer's transform chain.
type Renderer struct {
	mu       sync.Mutex
	textures map[render.TextureHandle]*image.RGBA
	nextID   render.TextureHandle
	closed   bool
}

var _ render.Renderer = (*Renderer)(nil)

// New creates a CPU renderer. It never fails to initialize.
func New() *Renderer {
	return &Renderer{
		textures: make(map[render.TextureHandle]*image.RGBA),
	}
}

// UploadTexture stores a copy of the pixels under a fresh handle.
func (r *Renderer) UploadTexture(img *image.RGBA) (render.TextureHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return render.NoTexture, render.ErrClosed
	}
	cp := image.NewRGBA(img.Bounds())
	copy(cp.Pix, img.Pix)
	r.nextID++
	r.textures[r.nextID] = cp
	return r.nextID, nil
}

// ReleaseTexture frees the texture. Unknown handles are a safe no-op.
func (r *Renderer) ReleaseTexture(h render.TextureHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.textures, h)
}

// TextureCount reports the live texture count, for resource accounting.
func (r *Renderer) TextureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.textures)
}

// Close drops all textures.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures = make(map[render.TextureHandle]*image.RGBA)
	r.closed = true
}

// DrawFrame composites the frame's items in order onto a transparent target.
func (r *Renderer) DrawFrame(f render.Frame) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, render.ErrClosed
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", f.Width, f.Height)
	}

	out := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for _, item := range f.Items {
		tex, ok := r.textures[item.Texture]
		if !ok {
			return nil, fmt.Errorf("unknown texture handle %d", item.Texture)
		}
		final := render.FinalTransform(f.Width, f.Height, f.View, item.Model)
		inv, ok := final.Inverse()
		if !ok {
			// Degenerate transform, nothing visible to draw.
			continue
		}
		r.drawItem(out, tex, inv, item.Coefficient, item.Opacity, f.Width, f.Height)
	}
	return out, nil
}

// drawItem source-over composites one layer by mapping each output pixel
// back through the inverse of the layer's full transform chain.
func (r *Renderer) drawItem(out, tex *image.RGBA, inv geometry.Mat3, k, opacity float64, w, h int) {
	tb := tex.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	if tw == 0 || th == 0 {
		return
	}

	for y := 0; y < h; y++ {
		ndcY := 1 - (float64(y)+0.5)/float64(h)*2
		for x := 0; x < w; x++ {
			ndcX := (float64(x)+0.5)/float64(w)*2 - 1
			local := inv.Apply(geometry.Point2D{X: ndcX, Y: ndcY})
			if local.X < -0.5 || local.X > 0.5 || local.Y < -0.5 || local.Y > 0.5 {
				continue
			}
			// The quad's unit coordinates double as centered texture
			// offsets, so the distortion lookup happens directly on them.
			su, sv, ok := distortion.SourceUV(local.X+0.5, local.Y+0.5, k)
			if !ok {
				continue
			}
			sx := clampIndex(int(su*float64(tw)), tw)
			sy := clampIndex(int(sv*float64(th)), th)

			si := tex.PixOffset(tb.Min.X+sx, tb.Min.Y+sy)
			sr := float64(tex.Pix[si])
			sg := float64(tex.Pix[si+1])
			sb := float64(tex.Pix[si+2])
			sa := float64(tex.Pix[si+3]) / 255 * opacity
			if sa <= 0 {
				continue
			}

			di := out.PixOffset(x, y)
			dr := float64(out.Pix[di])
			dg := float64(out.Pix[di+1])
			db := float64(out.Pix[di+2])
			da := float64(out.Pix[di+3]) / 255

			or, og, ob, oa := colorutil.OverRGBA(sr, sg, sb, sa, dr, dg, db, da)
			out.Pix[di] = colorutil.ClampByte(or)
			out.Pix[di+1] = colorutil.ClampByte(og)
			out.Pix[di+2] = colorutil.ClampByte(ob)
			out.Pix[di+3] = colorutil.ClampByte(oa * 255)
		}
	}
}

// DrawSingle renders one texture filling the viewport, zoomed around the
// center, with the distortion correction applied. Out-of-frame pixels stay
// fully transparent.
func (r *Renderer) DrawSingle(h render.TextureHandle, zoom, coefficient float64, outW, outH int) (*image.RGBA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, render.ErrClosed
	}
	tex, ok := r.textures[h]
	if !ok {
		return nil, fmt.Errorf("unknown texture handle %d", h)
	}
	if outW <= 0 || outH <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", outW, outH)
	}
	if zoom <= 0 {
		return nil, fmt.Errorf("invalid zoom %v", zoom)
	}

	tb := tex.Bounds()
	tw, th := tb.Dx(), tb.Dy()
	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		cy := ((float64(y)+0.5)/float64(outH) - 0.5) / zoom
		for x := 0; x < outW; x++ {
			cx := ((float64(x)+0.5)/float64(outW) - 0.5) / zoom
			su, sv, ok := distortion.SourceUV(cx+0.5, cy+0.5, coefficient)
			if !ok {
				continue
			}
			sx := clampIndex(int(su*float64(tw)), tw)
			sy := clampIndex(int(sv*float64(th)), th)
			si := tex.PixOffset(tb.Min.X+sx, tb.Min.Y+sy)
			di := out.PixOffset(x, y)
			copy(out.Pix[di:di+4], tex.Pix[si:si+4])
		}
	}
	return out, nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
