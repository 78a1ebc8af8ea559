package export

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lens-composer/internal/layer"
	"lens-composer/internal/view"
)

func TestRenderCompositeEmptyIsTransparent(t *testing.T) {
	out, err := RenderComposite(nil, view.New(), 8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.RGBAAt(4, 4); got.A != 0 {
		t.Errorf("pixel = %+v, want transparent", got)
	}

	if _, err := RenderComposite(nil, view.New(), 0, 8); err == nil {
		t.Error("zero-width export succeeded")
	}
}

func TestFromLayersSkipsSourceless(t *testing.T) {
	layers := []layer.Layer{
		{ID: 1, Width: 4, Height: 4, Scale: 1, Opacity: 1},
		{ID: 2, Source: "b.png", Width: 4, Height: 4, Scale: 1, Opacity: 0.5},
	}
	items, err := FromLayers(layers, func(path string) (*image.RGBA, error) {
		if path != "b.png" {
			t.Errorf("loaded %q, want b.png only", path)
		}
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Opacity != 0.5 {
		t.Errorf("items = %+v, want one from b.png", items)
	}
}

func TestFromLayersPropagatesLoadError(t *testing.T) {
	layers := []layer.Layer{{ID: 1, Source: "gone.png", Width: 4, Height: 4}}
	_, err := FromLayers(layers, func(string) (*image.RGBA, error) {
		return nil, fmt.Errorf("no such file")
	})
	if err == nil {
		t.Fatal("FromLayers with failing loader succeeded")
	}
}

func TestAccumulateSourceOver(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))
	dst.SetRGBA(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{A: 255}) // black
	src.SetRGBA(1, 0, color.RGBA{R: 255, A: 255})

	accumulate(dst, src, 0.5)

	// Half black over white lands mid-range.
	got := dst.RGBAAt(0, 0)
	if got.A != 255 || got.R < 120 || got.R > 136 {
		t.Errorf("blended = %+v, want mid gray", got)
	}
	// Half red over transparent keeps the source color at half alpha.
	got = dst.RGBAAt(1, 0)
	if got.R != 255 || got.A < 120 || got.A > 136 {
		t.Errorf("over transparent = %+v, want half-alpha red", got)
	}
}

func TestWritePNGRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	img.SetRGBA(1, 1, color.RGBA{G: 200, A: 255})

	path := filepath.Join(t.TempDir(), "out.png")
	if err := WritePNG(path, img); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds().Dx() != 3 {
		t.Errorf("decoded bounds = %v", decoded.Bounds())
	}
}
