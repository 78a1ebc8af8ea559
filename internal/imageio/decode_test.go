package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodePNG(t *testing.T) {
	path := writeTestPNG(t, 5, 3)
	img, err := Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 5, 3) {
		t.Errorf("bounds = %v, want (0,0)-(5,3)", img.Bounds())
	}
	if got := img.RGBAAt(2, 1); got.R != 80 || got.G != 40 || got.A != 255 {
		t.Errorf("pixel (2,1) = %+v", got)
	}
}

func TestDecodeMissingFile(t *testing.T) {
	if _, err := Decode(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("Decode on missing file succeeded")
	}
}

func TestDecodeMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Decode(path); err == nil {
		t.Fatal("Decode on junk data succeeded")
	}
}

func TestToRGBAOffsetBounds(t *testing.T) {
	// Source anchored away from the origin must still convert to a
	// zero-based RGBA buffer.
	src := image.NewNRGBA(image.Rect(10, 20, 14, 23))
	src.SetNRGBA(10, 20, color.NRGBA{R: 200, A: 255})

	dst := ToRGBA(src)
	if dst.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Fatalf("bounds = %v, want (0,0)-(4,3)", dst.Bounds())
	}
	if got := dst.RGBAAt(0, 0); got.R != 200 || got.A != 255 {
		t.Errorf("pixel (0,0) = %+v, want red", got)
	}
}

func TestIsSupportedFormat(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.png", true},
		{"PHOTO.JPG", true},
		{"scan.tiff", true},
		{"anim.webp", true},
		{"doc.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsSupportedFormat(tt.path); got != tt.want {
			t.Errorf("IsSupportedFormat(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
