// Package visualization renders scalar maps of a tensor volume, with traced
// fibers burned in, as 16-bit grayscale slice images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/internal/models"
	"dtfiber/pkg/tensor"
)

// AnisoMap evaluates metric at every voxel of vol, x fastest.
func AnisoMap(vol *models.TensorVolume, metric tensor.Aniso) ([]float64, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("invalid anisotropy metric %d", int(metric))
	}
	out := make([]float64, vol.NumVoxels())
	for z := 0; z < vol.Size[2]; z++ {
		for y := 0; y < vol.Size[1]; y++ {
			for x := 0; x < vol.Size[0]; x++ {
				evals, _ := tensor.Eigenvalues(vol.At(x, y, z))
				out[(z*vol.Size[1]+y)*vol.Size[0]+x] = tensor.Eval(metric, evals)
			}
		}
	}
	return out, nil
}

// Viewer extracts slices from a scalar volume whose values lie in [0, 1].
type Viewer struct {
	// volumeData holds the scalar volume, x fastest
	volumeData []float64

	width  int
	height int
	depth  int
}

// NewViewer creates a viewer over volumeData. The slice is not copied.
func NewViewer(volumeData []float64, width, height, depth int) *Viewer {
	return &Viewer{
		volumeData: volumeData,
		width:      width,
		height:     height,
		depth:      depth,
	}
}

// DrawPoints sets the voxels nearest to pts, given in index coordinates, to
// value. Points outside the volume are ignored. It returns the number of
// voxels drawn.
func (v *Viewer) DrawPoints(pts []r3.Vec, value float64) int {
	n := 0
	for _, p := range pts {
		x, y, z := int(math.Round(p.X)), int(math.Round(p.Y)), int(math.Round(p.Z))
		if x < 0 || y < 0 || z < 0 || x >= v.width || y >= v.height || z >= v.depth {
			continue
		}
		v.volumeData[z*v.width*v.height+y*v.width+x] = value
		n++
	}
	return n
}

func gray(value float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*65535)))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, gray(v.volumeData[z*v.width*v.height+y*v.width+position]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, gray(v.volumeData[z*v.width*v.height+position*v.width+x]))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, gray(v.volumeData[position*v.width*v.height+y*v.width+x]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a 16-bit PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
// and returns the number of files written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}
