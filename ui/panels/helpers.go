package panels

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// thumbSize is the longest edge of a layer thumbnail in pixels.
const thumbSize = 48

// MakeThumbnail scales the image down so its longest edge is thumbSize,
// preserving aspect ratio.
func MakeThumbnail(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	scale := float64(thumbSize) / float64(max(w, h))
	if scale > 1 {
		scale = 1
	}
	tw := int(math.Max(1, math.Round(float64(w)*scale)))
	th := int(math.Max(1, math.Round(float64(h)*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func formatCoefficient(k float64) string {
	return fmt.Sprintf("%+.2f", k)
}

func formatDegrees(radians float64) string {
	return fmt.Sprintf("%.1f°", radians*180/math.Pi)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
