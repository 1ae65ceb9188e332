package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/pkg/tensor"
)

// Geometry places the voxel grid in world space. The world position of the
// sample at index (i, j, k) is Origin + i*Spacing[0]*Directions[0] +
// j*Spacing[1]*Directions[1] + k*Spacing[2]*Directions[2].
type Geometry struct {
	// Origin is the world position of the sample at index (0, 0, 0)
	Origin r3.Vec

	// Spacing is the physical distance between samples along each axis
	Spacing [3]float64

	// Directions are the unit world-space directions of the three index axes
	Directions [3]r3.Vec
}

// IdentityGeometry returns a geometry where world and index space coincide.
func IdentityGeometry() Geometry {
	return Geometry{
		Spacing:    [3]float64{1, 1, 1},
		Directions: [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}},
	}
}

// AxisAligned returns a geometry with axis-aligned directions and the given
// origin and spacing.
func AxisAligned(origin r3.Vec, spacing [3]float64) Geometry {
	g := IdentityGeometry()
	g.Origin = origin
	g.Spacing = spacing
	return g
}

// Transform converts positions and directions between index and world space.
type Transform struct {
	origin r3.Vec
	fwd    [3][3]float64
	inv    [3][3]float64
}

// Transform builds the index/world transform for g. It fails when a spacing
// is not positive or the directions are degenerate.
func (g Geometry) Transform() (*Transform, error) {
	for i, s := range g.Spacing {
		if !(s > 0) {
			return nil, fmt.Errorf("spacing along axis %d must be positive, got %g", i, s)
		}
	}

	// Columns are the scaled axis directions.
	m := mat.NewDense(3, 3, nil)
	for c := 0; c < 3; c++ {
		d := r3.Scale(g.Spacing[c], g.Directions[c])
		m.Set(0, c, d.X)
		m.Set(1, c, d.Y)
		m.Set(2, c, d.Z)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("degenerate axis directions: %w", err)
	}

	t := &Transform{origin: g.Origin}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t.fwd[r][c] = m.At(r, c)
			t.inv[r][c] = inv.At(r, c)
		}
	}
	return t, nil
}

func mulVec(m *[3][3]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// IndexToWorld maps an index-space position to world space.
func (t *Transform) IndexToWorld(p r3.Vec) r3.Vec {
	return r3.Add(t.origin, mulVec(&t.fwd, p))
}

// WorldToIndex maps a world-space position to index space.
func (t *Transform) WorldToIndex(p r3.Vec) r3.Vec {
	return mulVec(&t.inv, r3.Sub(p, t.origin))
}

// VectorToWorld maps an index-space displacement to world space.
func (t *Transform) VectorToWorld(v r3.Vec) r3.Vec {
	return mulVec(&t.fwd, v)
}

// VectorToIndex maps a world-space displacement to index space.
func (t *Transform) VectorToIndex(v r3.Vec) r3.Vec {
	return mulVec(&t.inv, v)
}

// TensorVolume is a 3-D grid of diffusion tensors. Data stores tensor.Len
// values per voxel (confidence first), with x varying fastest, then y, then z.
// The volume is read-only once handed to a sampler.
type TensorVolume struct {
	// Data holds Size[0]*Size[1]*Size[2]*tensor.Len values
	Data []float64

	// Size is the number of samples along each index axis
	Size [3]int

	// Geometry places the grid in world space
	Geometry Geometry
}

// ErrVolumeSize is returned by Validate when Data does not match Size.
var ErrVolumeSize = errors.New("volume data length does not match its size")

// NewTensorVolume allocates a zero-filled volume.
func NewTensorVolume(size [3]int, geom Geometry) *TensorVolume {
	n := size[0] * size[1] * size[2]
	if n < 0 {
		n = 0
	}
	return &TensorVolume{
		Data:     make([]float64, n*tensor.Len),
		Size:     size,
		Geometry: geom,
	}
}

// Validate checks the dimensions and geometry of the volume.
func (v *TensorVolume) Validate() error {
	for i, s := range v.Size {
		if s < 1 {
			return fmt.Errorf("size along axis %d must be positive, got %d", i, s)
		}
	}
	if want := v.Size[0] * v.Size[1] * v.Size[2] * tensor.Len; len(v.Data) != want {
		return fmt.Errorf("%w: have %d values, want %d", ErrVolumeSize, len(v.Data), want)
	}
	if _, err := v.Geometry.Transform(); err != nil {
		return fmt.Errorf("invalid geometry: %w", err)
	}
	return nil
}

// Offset returns the index into Data of the first value of voxel (x, y, z).
func (v *TensorVolume) Offset(x, y, z int) int {
	return ((z*v.Size[1]+y)*v.Size[0] + x) * tensor.Len
}

// At returns the tensor stored at voxel (x, y, z).
func (v *TensorVolume) At(x, y, z int) tensor.Tensor {
	var t tensor.Tensor
	copy(t[:], v.Data[v.Offset(x, y, z):])
	return t
}

// Set stores t at voxel (x, y, z).
func (v *TensorVolume) Set(x, y, z int, t tensor.Tensor) {
	copy(v.Data[v.Offset(x, y, z):], t[:])
}

// Contains reports whether (x, y, z) is a valid voxel index.
func (v *TensorVolume) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Size[0] && y < v.Size[1] && z < v.Size[2]
}

// NumVoxels returns the number of voxels in the grid.
func (v *TensorVolume) NumVoxels() int {
	return v.Size[0] * v.Size[1] * v.Size[2]
}
