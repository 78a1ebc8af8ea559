// Package distortion implements the radial lens-distortion model used by the
// rendering backends and the export path.
//
// The lens is modeled as a radial displacement around the image center in
// unit texture space: a point at offset c from the center appears at
// c * (1 + k*r2) with r2 = dot(c, c). Correction renders destination pixels
// by sampling the source through the inverse of that mapping, so a negative
// coefficient (barrel) pushes corner samples outside the source frame and a
// positive coefficient (pincushion) pulls them inward.
package distortion

import (
	"lens-composer/pkg/geometry"
)

// Coefficient bounds. Values outside this range are clamped, never rejected.
const (
	MinCoefficient = -2.0
	MaxCoefficient = 2.0
)

// Params holds the distortion parameterization for one image or layer.
type Params struct {
	Coefficient float64 `json:"coefficient"`
}

// ClampCoefficient pins a coefficient to the supported range.
func ClampCoefficient(k float64) float64 {
	if k < MinCoefficient {
		return MinCoefficient
	}
	if k > MaxCoefficient {
		return MaxCoefficient
	}
	return k
}

// Distort applies the forward lens model to a centered offset c in unit
// texture space.
func Distort(c geometry.Point2D, k float64) geometry.Point2D {
	r2 := c.X*c.X + c.Y*c.Y
	return c.Scale(1 + k*r2)
}

// SourceOffset maps a destination offset c to the source offset to sample,
// inverting the forward model. ok is false when the mapping degenerates
// (the sample would lie at infinity); callers treat that as out of frame.
func SourceOffset(c geometry.Point2D, k float64) (geometry.Point2D, bool) {
	r2 := c.X*c.X + c.Y*c.Y
	f := 1 + k*r2
	if f < 1e-6 && f > -1e-6 {
		return geometry.Point2D{}, false
	}
	return c.Scale(1 / f), true
}

// SourceUV maps a destination texture coordinate (u, v) in [0,1] to the
// source coordinate to sample. ok is false when the sample falls outside
// [0,1] in either axis; such pixels contribute nothing.
func SourceUV(u, v, k float64) (su, sv float64, ok bool) {
	src, ok := SourceOffset(geometry.Point2D{X: u - 0.5, Y: v - 0.5}, k)
	if !ok {
		return 0, 0, false
	}
	su = src.X + 0.5
	sv = src.Y + 0.5
	if su < 0 || su > 1 || sv < 0 || sv > 1 {
		return 0, 0, false
	}
	return su, sv, true
}

// SampleMap materializes the per-pixel inverse sampling map for a w x h
// image as two row-major float32 grids of source pixel coordinates, the
// layout expected by remap-style warps. Out-of-frame destinations map to
// (-1, -1) so a constant-border remap leaves them transparent.
func SampleMap(w, h int, k float64) (mapX, mapY []float32) {
	mapX = make([]float32, w*h)
	mapY = make([]float32, w*h)
	fw, fh := float64(w), float64(h)
	for y := 0; y < h; y++ {
		v := (float64(y) + 0.5) / fh
		for x := 0; x < w; x++ {
			u := (float64(x) + 0.5) / fw
			i := y*w + x
			su, sv, ok := SourceUV(u, v, k)
			if !ok {
				mapX[i] = -1
				mapY[i] = -1
				continue
			}
			mapX[i] = float32(su*fw - 0.5)
			mapY[i] = float32(sv*fh - 0.5)
		}
	}
	return mapX, mapY
}
