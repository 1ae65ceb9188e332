package interpolation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kernel is a separable 1-D reconstruction kernel. Eval and Deriv are zero
// outside (-Support, Support).
type Kernel interface {
	// Name returns the specification string that ParseKernel accepts
	Name() string

	// Support is the kernel radius in samples
	Support() float64

	// Eval returns the kernel weight at offset x
	Eval(x float64) float64

	// Deriv returns the first derivative of the kernel at offset x
	Deriv(x float64) float64
}

// Box is the nearest-neighbour kernel. Offsets exactly half way between two
// samples resolve to the higher index.
type Box struct{}

func (Box) Name() string         { return "box" }
func (Box) Support() float64     { return 0.5 }
func (Box) Deriv(float64) float64 { return 0 }

func (Box) Eval(x float64) float64 {
	if x >= -0.5 && x < 0.5 {
		return 1
	}
	return 0
}

// Tent is the trilinear interpolation kernel.
type Tent struct{}

func (Tent) Name() string     { return "tent" }
func (Tent) Support() float64 { return 1 }

func (Tent) Eval(x float64) float64 {
	ax := math.Abs(x)
	if ax >= 1 {
		return 0
	}
	return 1 - ax
}

// Deriv is taken one-sided at the kernel's kinks so that the derivative
// at a sample position is the forward difference.
func (Tent) Deriv(x float64) float64 {
	switch {
	case x < -1 || x >= 1:
		return 0
	case x < 0:
		return 1
	default:
		return -1
	}
}

// BCCubic is the two-parameter family of cubic kernels described by Mitchell
// and Netravali. B=0, C=0.5 gives Catmull-Rom; B=1, C=0 gives the uniform
// cubic B-spline.
type BCCubic struct {
	B, C float64
}

// CatmullRom returns the interpolating Catmull-Rom cubic.
func CatmullRom() BCCubic { return BCCubic{B: 0, C: 0.5} }

// BSpline returns the approximating cubic B-spline.
func BSpline() BCCubic { return BCCubic{B: 1, C: 0} }

func (k BCCubic) Name() string {
	return fmt.Sprintf("cubic:%g,%g", k.B, k.C)
}

func (BCCubic) Support() float64 { return 2 }

func (k BCCubic) Eval(x float64) float64 {
	b, c := k.B, k.C
	ax := math.Abs(x)
	switch {
	case ax < 1:
		return ((12-9*b-6*c)*ax*ax*ax + (-18+12*b+6*c)*ax*ax + (6 - 2*b)) / 6
	case ax < 2:
		return ((-b-6*c)*ax*ax*ax + (6*b+30*c)*ax*ax + (-12*b-48*c)*ax + (8*b + 24*c)) / 6
	}
	return 0
}

func (k BCCubic) Deriv(x float64) float64 {
	b, c := k.B, k.C
	ax := math.Abs(x)
	var d float64
	switch {
	case ax < 1:
		d = (3*(12-9*b-6*c)*ax*ax + 2*(-18+12*b+6*c)*ax) / 6
	case ax < 2:
		d = (3*(-b-6*c)*ax*ax + 2*(6*b+30*c)*ax + (-12*b - 48*c)) / 6
	default:
		return 0
	}
	if x < 0 {
		return -d
	}
	return d
}

// ParseKernel builds a kernel from its specification: "box", "tent",
// "catmull-rom", "bspline" or "cubic:B,C".
func ParseKernel(spec string) (Kernel, error) {
	name, params, _ := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	switch name {
	case "box":
		return Box{}, nil
	case "tent", "linear":
		return Tent{}, nil
	case "catmull-rom", "catmullrom":
		return CatmullRom(), nil
	case "bspline", "b-spline":
		return BSpline(), nil
	case "cubic":
		fields := strings.Split(params, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("cubic kernel needs two parameters B,C, got %q", params)
		}
		var bc [2]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid cubic kernel parameter %q: %w", f, err)
			}
			bc[i] = v
		}
		return BCCubic{B: bc[0], C: bc[1]}, nil
	}
	return nil, fmt.Errorf("unknown kernel %q", spec)
}
