// Package interpolation reconstructs a continuous tensor field from a voxel
// grid with separable kernels and derives the quantities a probe asks for.
package interpolation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/internal/models"
	"dtfiber/pkg/tensor"
)

var (
	// ErrNoVolume is returned by Update when the sampler has no volume.
	ErrNoVolume = errors.New("sampler has no volume")

	// ErrNoKernel is returned by Update when the sampler has no kernel.
	ErrNoKernel = errors.New("sampler has no kernel")

	// ErrEmptyQuery is returned by Update when nothing was requested.
	ErrEmptyQuery = errors.New("sampler query is empty")
)

// Answer holds the quantities produced by the last successful probe. Only
// the fields named by the query are meaningful.
type Answer struct {
	// Tensor is the interpolated tensor, confidence included
	Tensor tensor.Tensor

	// Confidence is the interpolated confidence clamped to [0,1]
	Confidence float64

	// Eigen holds eigenvalues, and eigenvectors when requested
	Eigen tensor.Eigensystem

	// Aniso holds the requested anisotropy metrics, indexed by tensor.Aniso
	Aniso tensor.AnisoVector

	// Gradient holds the partial derivatives of the tensor along the three
	// index axes
	Gradient [3]tensor.Tensor
}

// tap is one grid sample along an axis with a non-zero weight.
type tap struct {
	index  int
	weight float64
	deriv  float64
}

// Sampler probes a tensor volume at continuous index-space positions. A
// Sampler is configured with SetQuery, frozen with Update and then probed;
// it holds scratch state and must not be shared between goroutines. Use
// Clone to give each goroutine its own.
type Sampler struct {
	vol    *models.TensorVolume
	kernel Kernel
	query  Query

	updated  bool
	resolved Query
	aniso    []tensor.Aniso
	taps     [3][]tap
	answer   Answer
}

// NewSampler creates a sampler over vol. The volume is borrowed and must
// not change while the sampler is in use.
func NewSampler(vol *models.TensorVolume, kernel Kernel) *Sampler {
	return &Sampler{vol: vol, kernel: kernel}
}

// Volume returns the sampled volume.
func (s *Sampler) Volume() *models.TensorVolume { return s.vol }

// Kernel returns the reconstruction kernel.
func (s *Sampler) Kernel() Kernel { return s.kernel }

// SetKernel replaces the reconstruction kernel. Update must be called again.
func (s *Sampler) SetKernel(k Kernel) {
	s.kernel = k
	s.updated = false
}

// SetQuery replaces the query. Update must be called again.
func (s *Sampler) SetQuery(q Query) {
	s.query = q
	s.updated = false
}

// Query returns the query as set, without prerequisites resolved.
func (s *Sampler) Query() Query { return s.query }

// Update validates the configuration and prepares the scratch buffers.
// It must be called after the last configuration change and before the
// first probe.
func (s *Sampler) Update() error {
	s.updated = false
	if s.vol == nil {
		return ErrNoVolume
	}
	if err := s.vol.Validate(); err != nil {
		return fmt.Errorf("invalid volume: %w", err)
	}
	if s.kernel == nil {
		return ErrNoKernel
	}
	if s.query.Empty() {
		return ErrEmptyQuery
	}
	if err := s.query.validate(); err != nil {
		return err
	}

	s.resolved = s.query.resolved()
	s.aniso = s.query.Aniso()
	width := 2*int(math.Ceil(s.kernel.Support())) + 2
	for i := range s.taps {
		s.taps[i] = make([]tap, 0, width)
	}
	s.answer = Answer{}
	s.updated = true
	return nil
}

// Updated reports whether the sampler is ready to probe.
func (s *Sampler) Updated() bool { return s.updated }

// Answer returns the results of the last successful probe. The pointer is
// stable for the lifetime of the sampler; its contents change on every
// probe.
func (s *Sampler) Answer() *Answer { return &s.answer }

// Probe interpolates the field at index-space position p. It returns false,
// leaving the previous answer in place, when the kernel support around p
// reaches outside the grid. Probe panics if Update has not succeeded.
func (s *Sampler) Probe(p r3.Vec) bool {
	if !s.updated {
		panic("interpolation: Probe called before a successful Update")
	}
	grad := s.resolved.items&(1<<ItemTensorGradient) != 0
	pos := [3]float64{p.X, p.Y, p.Z}
	for axis := 0; axis < 3; axis++ {
		if !s.axisTaps(axis, pos[axis], grad) {
			return false
		}
	}

	var val tensor.Tensor
	var g [3]tensor.Tensor
	data := s.vol.Data
	for _, tz := range s.taps[2] {
		for _, ty := range s.taps[1] {
			for _, tx := range s.taps[0] {
				off := s.vol.Offset(tx.index, ty.index, tz.index)
				w := tx.weight * ty.weight * tz.weight
				if w != 0 {
					for c := 0; c < tensor.Len; c++ {
						val[c] += w * data[off+c]
					}
				}
				if !grad {
					continue
				}
				wx := tx.deriv * ty.weight * tz.weight
				wy := tx.weight * ty.deriv * tz.weight
				wz := tx.weight * ty.weight * tz.deriv
				for c := 0; c < tensor.Len; c++ {
					d := data[off+c]
					g[0][c] += wx * d
					g[1][c] += wy * d
					g[2][c] += wz * d
				}
			}
		}
	}

	a := &s.answer
	a.Tensor = val
	a.Confidence = val.Confidence()
	if grad {
		a.Gradient = g
	}
	switch {
	case s.resolved.Has(ItemEigenvectors):
		a.Eigen = tensor.Eigensolve(val)
	case s.resolved.Has(ItemEigenvalues):
		a.Eigen.Values, a.Eigen.Roots = tensor.Eigenvalues(val)
	}
	for _, m := range s.aniso {
		a.Aniso[m] = tensor.Eval(m, a.Eigen.Values)
	}
	return true
}

// edgeSnap is how far outside [0, n-1], in samples, a coordinate may stray
// from rounding and still be read as lying on the edge sample.
const edgeSnap = 1e-9

// tapEpsilon is the magnitude below which a kernel weight counts as zero.
const tapEpsilon = 1e-12

// axisTaps fills the taps for one axis. Samples whose weights are all zero
// are dropped; a non-zero weight on a sample outside the grid fails the
// probe.
func (s *Sampler) axisTaps(axis int, x float64, grad bool) bool {
	n := s.vol.Size[axis]
	support := s.kernel.Support()
	if math.IsNaN(x) || x < -support-1 || x > float64(n)+support {
		return false
	}
	switch last := float64(n - 1); {
	case x < 0 && x > -edgeSnap:
		x = 0
	case x > last && x < last+edgeSnap:
		x = last
	}
	taps := s.taps[axis][:0]
	lo := int(math.Ceil(x - support))
	hi := int(math.Floor(x + support))
	for i := lo; i <= hi; i++ {
		off := x - float64(i)
		w := s.kernel.Eval(off)
		if math.Abs(w) < tapEpsilon {
			w = 0
		}
		var d float64
		if grad {
			if d = s.kernel.Deriv(off); math.Abs(d) < tapEpsilon {
				d = 0
			}
		}
		if w == 0 && d == 0 {
			continue
		}
		if i < 0 || i >= n {
			return false
		}
		taps = append(taps, tap{index: i, weight: w, deriv: d})
	}
	s.taps[axis] = taps
	return len(taps) > 0
}

// Clone returns an independent sampler over the same volume with the same
// kernel and query. If s is updated, the clone is updated too.
func (s *Sampler) Clone() *Sampler {
	c := &Sampler{vol: s.vol, kernel: s.kernel, query: s.query}
	if s.updated {
		// s passed validation with the same inputs
		if err := c.Update(); err != nil {
			panic("interpolation: clone of an updated sampler: " + err.Error())
		}
	}
	return c
}
