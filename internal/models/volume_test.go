package models

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/pkg/tensor"
)

func TestTransformRoundTrip(t *testing.T) {
	c, s := math.Cos(0.3), math.Sin(0.3)
	geom := Geometry{
		Origin:  r3.Vec{X: -10, Y: 4, Z: 2.5},
		Spacing: [3]float64{0.5, 2, 1.25},
		Directions: [3]r3.Vec{
			{X: c, Y: s},
			{X: -s, Y: c},
			{Z: 1},
		},
	}
	tr, err := geom.Transform()
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	points := []r3.Vec{{}, {X: 1}, {X: 3.5, Y: -2, Z: 7}, {X: 0.25, Y: 0.75, Z: 0.5}}
	for _, p := range points {
		w := tr.IndexToWorld(p)
		back := tr.WorldToIndex(w)
		if r3.Norm(r3.Sub(back, p)) > 1e-12 {
			t.Errorf("round trip of %v gave %v", p, back)
		}
	}

	// One index step along x moves Spacing[0] along the first direction.
	step := r3.Sub(tr.IndexToWorld(r3.Vec{X: 1}), tr.IndexToWorld(r3.Vec{}))
	if math.Abs(r3.Norm(step)-0.5) > 1e-12 {
		t.Errorf("expected world step of 0.5, got %g", r3.Norm(step))
	}
	if d := r3.Norm(r3.Sub(tr.VectorToWorld(r3.Vec{X: 1}), step)); d > 1e-12 {
		t.Errorf("VectorToWorld disagrees with IndexToWorld by %g", d)
	}
	if d := r3.Norm(r3.Sub(tr.VectorToIndex(step), r3.Vec{X: 1})); d > 1e-12 {
		t.Errorf("VectorToIndex did not invert the step, off by %g", d)
	}
}

func TestTransformErrors(t *testing.T) {
	testCases := []struct {
		name string
		geom Geometry
	}{
		{"zero spacing", AxisAligned(r3.Vec{}, [3]float64{1, 0, 1})},
		{"negative spacing", AxisAligned(r3.Vec{}, [3]float64{1, 1, -2})},
		{"degenerate directions", Geometry{
			Spacing:    [3]float64{1, 1, 1},
			Directions: [3]r3.Vec{{X: 1}, {X: 1}, {Z: 1}},
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.geom.Transform(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestTensorVolumeAccess(t *testing.T) {
	vol := NewTensorVolume([3]int{4, 3, 2}, IdentityGeometry())
	if err := vol.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if vol.NumVoxels() != 24 {
		t.Errorf("expected 24 voxels, got %d", vol.NumVoxels())
	}

	want := tensor.New(0.9, 1, 0.1, 0.2, 2, 0.3, 3)
	vol.Set(3, 2, 1, want)
	if got := vol.At(3, 2, 1); got != want {
		t.Errorf("At returned %v, want %v", got, want)
	}
	if got := vol.At(2, 2, 1); got != (tensor.Tensor{}) {
		t.Errorf("neighbouring voxel was modified: %v", got)
	}
	if vol.Offset(3, 2, 1) != len(vol.Data)-tensor.Len {
		t.Errorf("last voxel offset is %d", vol.Offset(3, 2, 1))
	}

	if !vol.Contains(0, 0, 0) || vol.Contains(4, 0, 0) || vol.Contains(0, -1, 0) {
		t.Error("Contains reported wrong bounds")
	}

	vol.Data = vol.Data[:len(vol.Data)-1]
	if err := vol.Validate(); !errors.Is(err, ErrVolumeSize) {
		t.Errorf("expected ErrVolumeSize, got %v", err)
	}
}
