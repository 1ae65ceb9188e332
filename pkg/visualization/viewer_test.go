package visualization

import (
	"fmt"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/internal/models"
	"dtfiber/pkg/tensor"
)

// TestAnisoMap verifies the map against the metric of each voxel tensor
func TestAnisoMap(t *testing.T) {
	vol := models.NewTensorVolume([3]int{3, 2, 2}, models.IdentityGeometry())
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				// Anisotropy grows along X
				vol.Set(x, y, z, tensor.Diagonal(1+float64(x), 1, 1))
			}
		}
	}

	fa, err := AnisoMap(vol, tensor.FA)
	if err != nil {
		t.Fatalf("AnisoMap failed: %v", err)
	}
	if len(fa) != vol.NumVoxels() {
		t.Fatalf("Expected %d values, got %d", vol.NumVoxels(), len(fa))
	}

	// One value per voxel, x fastest
	idx := func(x, y, z int) int { return (z*2+y)*3 + x }
	if fa[idx(0, 1, 1)] > 1e-6 {
		t.Errorf("Expected isotropic voxel to have zero FA, got %f", fa[idx(0, 1, 1)])
	}
	want := tensor.Eval(tensor.FA, [3]float64{3, 1, 1})
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			if got := fa[idx(2, y, z)]; math.Abs(got-want) > 1e-6 {
				t.Errorf("Expected FA %f at (2,%d,%d), got %f", want, y, z, got)
			}
		}
	}
	if !(fa[idx(1, 0, 0)] < fa[idx(2, 0, 0)]) {
		t.Error("Expected FA to grow along X")
	}

	if _, err := AnisoMap(vol, tensor.AnisoUnknown); err == nil {
		t.Error("Expected error for invalid metric, got nil")
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 10, 5
	volumeData := make([]float64, width*height*depth)

	// Each slice along Z has a unique value
	for z := 0; z < depth; z++ {
		value := float64(z) / float64(depth)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				volumeData[z*width*height+y*width+x] = value
			}
		}
	}

	viewer := NewViewer(volumeData, width, height, depth)

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		expected := uint16(float64(z) / float64(depth) * 65535)
		got := img.Gray16At(width/2, height/2).Y
		if math.Abs(float64(got)-float64(expected)) > 1 {
			t.Errorf("Expected Z slice value ~%d at center, got %d", expected, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("Y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestDrawPoints verifies that fiber points are burned into the nearest voxels
func TestDrawPoints(t *testing.T) {
	width, height, depth := 4, 4, 2
	viewer := NewViewer(make([]float64, width*height*depth), width, height, depth)

	n := viewer.DrawPoints([]r3.Vec{
		{X: 1.2, Y: 2.7, Z: 0.4},
		{X: 3, Y: 3, Z: 1},
		{X: -1, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 1.6},
	}, 1)
	if n != 2 {
		t.Errorf("Expected 2 points drawn, got %d", n)
	}

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if img.Gray16At(1, 3).Y != 65535 {
		t.Error("Expected voxel (1,3,0) to be drawn")
	}
	if img.Gray16At(0, 0).Y != 0 {
		t.Error("Expected voxel (0,0,0) to be untouched")
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()

	width, height, depth := 5, 5, 3
	volumeData := make([]float64, width*height*depth)
	for i := range volumeData {
		volumeData[i] = 0.5
	}
	viewer := NewViewer(volumeData, width, height, depth)

	outputDir := filepath.Join(tempDir, "slices")
	n, err := viewer.SaveSliceSequence("z", outputDir)
	if err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	if n != depth {
		t.Errorf("Expected %d slices written, got %d", depth, n)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		f, err := os.Open(filename)
		if err != nil {
			t.Errorf("Expected slice file does not exist: %s", filename)
			continue
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Errorf("Failed to decode %s: %v", filename, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
			t.Errorf("Expected %dx%d image, got %dx%d", width, height, b.Dx(), b.Dy())
		}
	}

	if _, err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
