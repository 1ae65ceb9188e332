// Package tensor provides the symmetric 3x3 diffusion tensor type, its
// closed-form eigendecomposition and the anisotropy metrics derived from the
// eigenvalues.
package tensor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Coefficient offsets within a Tensor.
const (
	Conf = iota
	XX
	XY
	XZ
	YY
	YZ
	ZZ
)

// Len is the number of values stored per tensor (confidence plus six
// unique coefficients).
const Len = 7

// Tensor is a symmetric 3x3 diffusion tensor stored as a leading confidence
// value followed by the six unique coefficients xx, xy, xz, yy, yz, zz.
//
// The confidence is a quality weight that should lie in [0,1], but it is
// stored as given; use Confidence to read a clamped value.
type Tensor [Len]float64

// New assembles a tensor from its confidence and unique coefficients.
func New(conf, xx, xy, xz, yy, yz, zz float64) Tensor {
	return Tensor{conf, xx, xy, xz, yy, yz, zz}
}

// Diagonal returns a tensor with the given diagonal and confidence 1.
func Diagonal(xx, yy, zz float64) Tensor {
	return Tensor{1, xx, 0, 0, yy, 0, zz}
}

// FromEigen builds the tensor sum(evals[i] * evecs[i] evecs[i]^T). The
// eigenvectors are used as given and are expected to be orthonormal.
func FromEigen(conf float64, evals [3]float64, evecs [3]r3.Vec) Tensor {
	t := Tensor{Conf: conf}
	for i := 0; i < 3; i++ {
		l, v := evals[i], evecs[i]
		t[XX] += l * v.X * v.X
		t[XY] += l * v.X * v.Y
		t[XZ] += l * v.X * v.Z
		t[YY] += l * v.Y * v.Y
		t[YZ] += l * v.Y * v.Z
		t[ZZ] += l * v.Z * v.Z
	}
	return t
}

// Confidence returns the confidence value clamped to [0,1].
func (t Tensor) Confidence() float64 {
	return math.Max(0, math.Min(1, t[Conf]))
}

// Trace returns xx + yy + zz.
func (t Tensor) Trace() float64 {
	return t[XX] + t[YY] + t[ZZ]
}

// Matrix returns the full 3x3 matrix in row-major order.
func (t Tensor) Matrix() [3][3]float64 {
	return [3][3]float64{
		{t[XX], t[XY], t[XZ]},
		{t[XY], t[YY], t[YZ]},
		{t[XZ], t[YZ], t[ZZ]},
	}
}

// MulVec returns the tensor applied to v.
func (t Tensor) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[XX]*v.X + t[XY]*v.Y + t[XZ]*v.Z,
		Y: t[XY]*v.X + t[YY]*v.Y + t[YZ]*v.Z,
		Z: t[XZ]*v.X + t[YZ]*v.Y + t[ZZ]*v.Z,
	}
}

// Scale returns the tensor with its six coefficients multiplied by s. The
// confidence is left untouched.
func (t Tensor) Scale(s float64) Tensor {
	for i := XX; i <= ZZ; i++ {
		t[i] *= s
	}
	return t
}

// Det returns the determinant of the tensor.
func (t Tensor) Det() float64 {
	return t[XX]*(t[YY]*t[ZZ]-t[YZ]*t[YZ]) -
		t[XY]*(t[XY]*t[ZZ]-t[YZ]*t[XZ]) +
		t[XZ]*(t[XY]*t[YZ]-t[YY]*t[XZ])
}
