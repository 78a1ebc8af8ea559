// Package export renders the composite to a raster file at full source
// resolution. Unlike the interactive path it resamples with bilinear
// filtering, so exports are smoother than the on-screen preview.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"gocv.io/x/gocv"

	"lens-composer/internal/app"
	"lens-composer/internal/distortion"
	"lens-composer/internal/layer"
	"lens-composer/internal/view"
	"lens-composer/pkg/colorutil"
	"lens-composer/pkg/geometry"
)

// Item is one layer to export together with its source pixels.
type Item struct {
	Image       *image.RGBA
	Placement   geometry.Mat3
	Width       int
	Height      int
	Coefficient float64
	Opacity     float64
}

// FromLayers pairs layer placements with their decoded source pixels,
// loading each layer's source through load. Layers without a source path
// are skipped.
func FromLayers(layers []layer.Layer, load func(path string) (*image.RGBA, error)) ([]Item, error) {
	items := make([]Item, 0, len(layers))
	for _, l := range layers {
		if l.Source == "" {
			continue
		}
		img, err := load(l.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.Source, err)
		}
		items = append(items, Item{
			Image:       img,
			Placement:   l.Model(),
			Width:       l.Width,
			Height:      l.Height,
			Coefficient: l.Coefficient,
			Opacity:     l.Opacity,
		})
	}
	return items, nil
}

// RenderComposite draws the items in order into a width x height canvas
// under the given view. Passing a scaled-up view produces a high
// resolution export of the same framing as the screen.
func RenderComposite(items []Item, v view.State, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid export size %dx%d", width, height)
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	viewT := v.Transform()

	for i, item := range items {
		warped, err := renderItem(item, viewT, width, height)
		if err != nil {
			return nil, fmt.Errorf("failed to render layer %d: %w", i, err)
		}
		accumulate(out, warped, item.Opacity)
	}
	app.Logger().Info("composite exported", "layers", len(items), "size", fmt.Sprintf("%dx%d", width, height))
	return out, nil
}

// renderItem corrects the item's distortion at source resolution, then
// warps the corrected image into canvas space.
func renderItem(item Item, viewT geometry.Mat3, width, height int) (*image.RGBA, error) {
	corrected, err := correct(item.Image, item.Coefficient)
	if err != nil {
		return nil, err
	}
	defer corrected.Close()

	// Source pixel to canvas pixel: pixel coords to the unit quad, then
	// the layer placement, then the view.
	b := item.Image.Bounds()
	sw, sh := b.Dx(), b.Dy()
	full := viewT.
		Mul(item.Placement).
		Mul(geometry.Translation(-0.5, -0.5)).
		Mul(geometry.Scaling(1/float64(sw), 1/float64(sh)))
	aff := full.Affine()

	transformMat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer transformMat.Close()
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			transformMat.SetDoubleAt(r, c, aff[r][c])
		}
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpAffineWithParams(corrected, &dst, transformMat, image.Point{X: width, Y: height},
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	img, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert warped mat: %w", err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected warped image type %T", img)
	}
	return rgba, nil
}

// correct resamples the source through the inverse lens model using a
// precomputed per-pixel map. Out-of-frame pixels come out transparent.
func correct(src *image.RGBA, coefficient float64) (gocv.Mat, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	srcMat, err := gocv.ImageToMatRGBA(src)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert source: %w", err)
	}
	defer srcMat.Close()

	if coefficient == 0 {
		return srcMat.Clone(), nil
	}

	mapXData, mapYData := distortion.SampleMap(w, h, coefficient)
	mapX := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mapX.Close()
	mapY := gocv.NewMatWithSize(h, w, gocv.MatTypeCV32F)
	defer mapY.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mapX.SetFloatAt(y, x, mapXData[y*w+x])
			mapY.SetFloatAt(y, x, mapYData[y*w+x])
		}
	}

	dst := gocv.NewMat()
	gocv.Remap(srcMat, &dst, &mapX, &mapY,
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})
	return dst, nil
}

// accumulate source-over blends src into dst with the extra opacity.
func accumulate(dst, src *image.RGBA, opacity float64) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := src.PixOffset(x, y)
			sa := float64(src.Pix[si+3]) / 255 * opacity
			if sa <= 0 {
				continue
			}
			di := dst.PixOffset(x, y)
			r, g, bl, a := colorutil.OverRGBA(
				float64(src.Pix[si]), float64(src.Pix[si+1]), float64(src.Pix[si+2]), sa,
				float64(dst.Pix[di]), float64(dst.Pix[di+1]), float64(dst.Pix[di+2]), float64(dst.Pix[di+3])/255,
			)
			dst.Pix[di] = colorutil.ClampByte(r)
			dst.Pix[di+1] = colorutil.ClampByte(g)
			dst.Pix[di+2] = colorutil.ClampByte(bl)
			dst.Pix[di+3] = colorutil.ClampByte(a * 255)
		}
	}
}

// WritePNG writes the raster losslessly.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
