// Package colorutil provides shared color and alpha-compositing utilities.
package colorutil

// OverRGBA composites a straight-alpha source pixel over a destination pixel
// ("source over": result = src*srcA + dst*dstA*(1-srcA), renormalized).
// Components are in [0,255], alphas in [0,1].
func OverRGBA(sr, sg, sb float64, sa float64, dr, dg, db float64, da float64) (r, g, b float64, a float64) {
	a = sa + da*(1-sa)
	if a <= 0 {
		return 0, 0, 0, 0
	}
	inv := da * (1 - sa)
	r = (sr*sa + dr*inv) / a
	g = (sg*sa + dg*inv) / a
	b = (sb*sa + db*inv) / a
	return r, g, b, a
}

// ClampByte converts a [0,255] float component to a byte.
func ClampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
