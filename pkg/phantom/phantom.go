// Package phantom generates synthetic tensor volumes with known fiber
// geometry.
package phantom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/internal/models"
	"dtfiber/pkg/tensor"
)

// Kind selects the direction field of a phantom.
type Kind string

const (
	// KindUniform has the same tensor everywhere.
	KindUniform Kind = "uniform"
	// KindArc has its major eigenvector tangent to circles about the axis
	// through the volume center parallel to Z.
	KindArc Kind = "arc"
	// KindTwist has its major eigenvector in the XY plane, turning at a
	// constant rate along X.
	KindTwist Kind = "twist"
)

// Params describes a phantom.
type Params struct {
	Kind Kind

	// Size is the number of samples along each axis
	Size [3]int

	// Spacing is the world distance between samples
	Spacing [3]float64

	// Origin is the world position of the first sample
	Origin r3.Vec

	// Evals are the eigenvalues, largest first
	Evals [3]float64

	// Direction is the major eigenvector of the uniform phantom
	Direction r3.Vec

	// Confidence is stored in every voxel inside the confidence radius
	Confidence float64

	// ConfidenceRadius, when positive, zeroes the confidence of voxels
	// farther than it from the center axis (in the XY plane)
	ConfidenceRadius float64

	// Rate is the twist rate in radians per world unit along X
	Rate float64
}

// Center returns the world position of the middle of the volume.
func (p Params) Center() r3.Vec {
	half := func(axis int) float64 {
		return float64(p.Size[axis]-1) * p.Spacing[axis] / 2
	}
	return r3.Add(p.Origin, r3.Vec{X: half(0), Y: half(1), Z: half(2)})
}

// Generate builds the volume described by p.
func Generate(p Params) (*models.TensorVolume, error) {
	var major func(w r3.Vec) (r3.Vec, bool)
	center := p.Center()

	switch p.Kind {
	case KindUniform:
		d := p.Direction
		if r3.Norm(d) == 0 {
			return nil, fmt.Errorf("uniform phantom needs a direction")
		}
		d = r3.Unit(d)
		major = func(r3.Vec) (r3.Vec, bool) { return d, true }
	case KindArc:
		major = func(w r3.Vec) (r3.Vec, bool) {
			r := r3.Sub(w, center)
			r.Z = 0
			if r3.Norm(r) < 1e-9 {
				return r3.Vec{}, false
			}
			return r3.Unit(r3.Cross(r3.Vec{Z: 1}, r)), true
		}
	case KindTwist:
		major = func(w r3.Vec) (r3.Vec, bool) {
			phi := p.Rate * (w.X - center.X)
			return r3.Vec{X: math.Cos(phi), Y: math.Sin(phi)}, true
		}
	default:
		return nil, fmt.Errorf("unknown phantom kind %q", p.Kind)
	}

	vol := models.NewTensorVolume(p.Size, models.AxisAligned(p.Origin, p.Spacing))
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid phantom geometry: %w", err)
	}
	xform, err := vol.Geometry.Transform()
	if err != nil {
		return nil, err
	}

	mean := (p.Evals[0] + p.Evals[1] + p.Evals[2]) / 3
	for z := 0; z < p.Size[2]; z++ {
		for y := 0; y < p.Size[1]; y++ {
			for x := 0; x < p.Size[0]; x++ {
				w := xform.IndexToWorld(r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)})
				conf := p.Confidence
				if p.ConfidenceRadius > 0 && math.Hypot(w.X-center.X, w.Y-center.Y) > p.ConfidenceRadius {
					conf = 0
				}

				var t tensor.Tensor
				if e0, ok := major(w); ok {
					t = tensor.FromEigen(conf, p.Evals, frame(e0))
				} else {
					t = tensor.Diagonal(mean, mean, mean)
					t[tensor.Conf] = conf
				}
				vol.Set(x, y, z, t)
			}
		}
	}
	return vol, nil
}

// frame completes the unit vector e0 to a right-handed orthonormal frame.
func frame(e0 r3.Vec) [3]r3.Vec {
	axis := r3.Vec{Z: 1}
	if math.Abs(e0.Z) > 0.9 {
		axis = r3.Vec{X: 1}
	}
	e1 := r3.Unit(r3.Cross(axis, e0))
	return [3]r3.Vec{e0, e1, r3.Cross(e0, e1)}
}
