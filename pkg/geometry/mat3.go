package geometry

import (
	"math"
)

// Mat3 represents a 3x3 homogeneous 2D transform in row-major order:
//
//	| m0 m1 m2 |
//	| m3 m4 m5 |
//	| m6 m7 m8 |
//
// All constructors and operations are pure: they allocate a fresh value and
// never mutate their operands, so base transforms can be reused freely.
type Mat3 struct {
	M [9]float64
}

// Identity returns the identity transform.
func Identity() Mat3 {
	return Mat3{M: [9]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}}
}

// Translation returns a transform that translates by (tx, ty).
func Translation(tx, ty float64) Mat3 {
	return Mat3{M: [9]float64{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	}}
}

// Rotation returns a counter-clockwise rotation by the given angle in
// radians, with screen Y increasing downward.
func Rotation(radians float64) Mat3 {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return Mat3{M: [9]float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	}}
}

// Scaling returns a transform that scales by (sx, sy).
func Scaling(sx, sy float64) Mat3 {
	return Mat3{M: [9]float64{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	}}
}

// ScreenProjection maps pixel coordinates [0,width]x[0,height] to normalized
// device coordinates [-1,1]x[1,-1]. Y is flipped so pixel row 0 is the top.
func ScreenProjection(width, height float64) Mat3 {
	return Mat3{M: [9]float64{
		2 / width, 0, -1,
		0, -2 / height, 1,
		0, 0, 1,
	}}
}

// Mul returns m composed with other. The result applies other first, then m:
// a.Mul(b).Apply(p) == a.Apply(b.Apply(p)).
func (m Mat3) Mul(other Mat3) Mat3 {
	a, b := m.M, other.M
	var r [9]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r[row*3+col] = a[row*3]*b[col] + a[row*3+1]*b[3+col] + a[row*3+2]*b[6+col]
		}
	}
	return Mat3{M: r}
}

// Apply transforms a point, dividing through by the homogeneous coordinate.
func (m Mat3) Apply(p Point2D) Point2D {
	x := m.M[0]*p.X + m.M[1]*p.Y + m.M[2]
	y := m.M[3]*p.X + m.M[4]*p.Y + m.M[5]
	w := m.M[6]*p.X + m.M[7]*p.Y + m.M[8]
	if w != 1 && w != 0 {
		return Point2D{X: x / w, Y: y / w}
	}
	return Point2D{X: x, Y: y}
}

// Det returns the determinant.
func (m Mat3) Det() float64 {
	a := m.M
	return a[0]*(a[4]*a[8]-a[5]*a[7]) -
		a[1]*(a[3]*a[8]-a[5]*a[6]) +
		a[2]*(a[3]*a[7]-a[4]*a[6])
}

// Inverse returns the inverse transform, if it exists. A transform with a
// near-zero determinant (degenerate scale) reports ok=false.
func (m Mat3) Inverse() (Mat3, bool) {
	det := m.Det()
	if math.Abs(det) < 1e-12 {
		return Mat3{}, false
	}
	a := m.M
	inv := 1.0 / det
	return Mat3{M: [9]float64{
		(a[4]*a[8] - a[5]*a[7]) * inv,
		(a[2]*a[7] - a[1]*a[8]) * inv,
		(a[1]*a[5] - a[2]*a[4]) * inv,
		(a[5]*a[6] - a[3]*a[8]) * inv,
		(a[0]*a[8] - a[2]*a[6]) * inv,
		(a[2]*a[3] - a[0]*a[5]) * inv,
		(a[3]*a[7] - a[4]*a[6]) * inv,
		(a[1]*a[6] - a[0]*a[7]) * inv,
		(a[0]*a[4] - a[1]*a[3]) * inv,
	}}, true
}

// Affine returns the top two rows as a [2][3] matrix for interop with
// image-warping APIs that take a 2x3 affine matrix.
func (m Mat3) Affine() [2][3]float64 {
	return [2][3]float64{
		{m.M[0], m.M[1], m.M[2]},
		{m.M[3], m.M[4], m.M[5]},
	}
}
