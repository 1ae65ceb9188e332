// Package seeding places fiber seed points in a tensor volume.
package seeding

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/internal/models"
	"dtfiber/pkg/interpolation"
	"dtfiber/pkg/spatial"
	"dtfiber/pkg/tensor"
)

// ErrSpacing is returned when the lattice spacing is not positive.
var ErrSpacing = errors.New("seed spacing must be positive")

// Params controls seed placement.
type Params struct {
	// Spacing is the lattice step in voxels
	Spacing float64

	// Metric, if valid, masks out seeds where the interpolated metric is
	// below Threshold
	Metric    tensor.Aniso
	Threshold float64

	// Kernel reconstructs the field for the mask. Seeds where it cannot
	// be evaluated are dropped. Nil means trilinear.
	Kernel interpolation.Kernel

	// MinSeparation, if positive, thins the seeds so that no two are
	// closer than this, in output coordinates
	MinSeparation float64

	// IndexSpace returns seeds in index coordinates instead of world
	IndexSpace bool
}

// Lattice returns the index-space positions of a regular lattice with the
// given step, starting at the first voxel and covering the grid.
func Lattice(size [3]int, step float64) ([]r3.Vec, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("%w: %g", ErrSpacing, step)
	}
	axis := func(n int) []float64 {
		var out []float64
		for x := 0.0; x <= float64(n-1)+1e-9; x += step {
			out = append(out, x)
		}
		return out
	}
	xs, ys, zs := axis(size[0]), axis(size[1]), axis(size[2])
	pts := make([]r3.Vec, 0, len(xs)*len(ys)*len(zs))
	for _, z := range zs {
		for _, y := range ys {
			for _, x := range xs {
				pts = append(pts, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	return pts, nil
}

// Generate returns the seeds for vol described by p, in lattice order.
func Generate(vol *models.TensorVolume, p Params) ([]r3.Vec, error) {
	if err := vol.Validate(); err != nil {
		return nil, fmt.Errorf("invalid volume: %w", err)
	}
	pts, err := Lattice(vol.Size, p.Spacing)
	if err != nil {
		return nil, err
	}

	if p.Metric != tensor.AnisoUnknown {
		if !p.Metric.Valid() {
			return nil, fmt.Errorf("invalid seed mask metric %d", int(p.Metric))
		}
		if pts, err = mask(vol, p, pts); err != nil {
			return nil, err
		}
	}

	if !p.IndexSpace {
		xform, err := vol.Geometry.Transform()
		if err != nil {
			return nil, err
		}
		for i := range pts {
			pts[i] = xform.IndexToWorld(pts[i])
		}
	}

	if p.MinSeparation > 0 {
		keep := spatial.Thin(pts, p.MinSeparation)
		thinned := make([]r3.Vec, len(keep))
		for i, k := range keep {
			thinned[i] = pts[k]
		}
		pts = thinned
	}
	return pts, nil
}

func mask(vol *models.TensorVolume, p Params, pts []r3.Vec) ([]r3.Vec, error) {
	kernel := p.Kernel
	if kernel == nil {
		kernel = interpolation.Tent{}
	}
	var q interpolation.Query
	q.AddAniso(p.Metric)
	s := interpolation.NewSampler(vol, kernel)
	s.SetQuery(q)
	if err := s.Update(); err != nil {
		return nil, fmt.Errorf("seed mask: %w", err)
	}

	a := s.Answer()
	out := pts[:0]
	for _, pt := range pts {
		if s.Probe(pt) && a.Aniso[p.Metric] >= p.Threshold {
			out = append(out, pt)
		}
	}
	return out, nil
}
