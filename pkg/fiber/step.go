package fiber

import (
	"gonum.org/v1/gonum/spatial/r3"

	"dtfiber/pkg/interpolation"
)

// clEpsilon pads the denominator of the tensorline linear anisotropy.
const clEpsilon = 1e-10

// halfState is the running state of one half-trace.
type halfState struct {
	half   int
	pos    r3.Vec
	ref    r3.Vec // alignment reference: the seed eigenvector, then the last step
	length float64
	steps  int
}

// started reports whether the half has accepted a step.
func (h *halfState) started() bool { return h.steps > 0 }

// align flips v when it points away from the reference direction.
func (h *halfState) align(v r3.Vec) r3.Vec {
	if r3.Dot(v, h.ref) < 0 {
		return r3.Scale(-1, v)
	}
	return v
}

// tensorLineWeights returns the weights of the major eigenvector, the
// incoming direction and the deflected direction. They sum to one.
func tensorLineWeights(cl, punct float64) [3]float64 {
	return [3]float64{cl, (1 - cl) * (1 - punct), (1 - cl) * punct}
}

// anisoSpeed maps an anisotropy value to a step scale. The ramp is zero up
// to thresh-soft, rises quadratically across the band and is one from
// thresh+soft on; lerp then mixes the ramp with a constant 1.
func anisoSpeed(x, lerp, thresh, soft float64) float64 {
	lo := thresh - soft
	var s float64
	switch {
	case x <= lo:
		s = 0
	case x >= thresh+soft:
		s = 1
	default:
		t := (x - lo) / (2 * soft)
		s = t * t
	}
	return 1 + lerp*(s-1)
}

// direction returns the unit step direction for the sampled answer,
// sign-corrected against the half's reference.
func (c *Context) direction(a *interpolation.Answer, h *halfState) r3.Vec {
	switch c.fiberType {
	case TypeTensorLine:
		e0 := h.align(a.Eigen.Vectors[0])
		if !h.started() {
			return e0
		}
		l := a.Eigen.Values
		cl := (l[0] - l[1]) / (l[0] + clEpsilon)
		vin := h.ref
		vout := unit(a.Tensor.MulVec(vin))
		w := tensorLineWeights(cl, c.punct)
		return unit(r3.Add(r3.Add(r3.Scale(w[0], e0), r3.Scale(w[1], vin)), r3.Scale(w[2], vout)))
	case TypePureLine:
		if !h.started() {
			return h.align(a.Eigen.Vectors[0])
		}
		return unit(a.Tensor.MulVec(h.ref))
	default:
		return h.align(a.Eigen.Vectors[c.fiberType.evecIndex()])
	}
}

// velocity is the direction scaled by the anisotropy speed, if enabled.
func (c *Context) velocity(a *interpolation.Answer, h *halfState) r3.Vec {
	d := c.direction(a, h)
	if c.speed.aniso.Valid() {
		d = r3.Scale(anisoSpeed(a.Aniso[c.speed.aniso], c.speed.lerp, c.speed.thresh, c.speed.soft), d)
	}
	return d
}

// integrate computes the displacement of the next step from the current
// position. The sampler must hold the probe at h.pos. It returns false when
// an intermediate probe leaves the volume.
func (c *Context) integrate(h *halfState) (r3.Vec, bool) {
	a := c.sampler.Answer()
	k1 := c.velocity(a, h)
	step := c.stepSize

	if c.integration != IntegrationRK4 {
		return r3.Scale(step, k1), true
	}

	if !c.probe(r3.Add(h.pos, r3.Scale(step/2, k1))) {
		return r3.Vec{}, false
	}
	k2 := c.velocity(a, h)
	if !c.probe(r3.Add(h.pos, r3.Scale(step/2, k2))) {
		return r3.Vec{}, false
	}
	k3 := c.velocity(a, h)
	if !c.probe(r3.Add(h.pos, r3.Scale(step, k3))) {
		return r3.Vec{}, false
	}
	k4 := c.velocity(a, h)

	sum := r3.Add(r3.Add(k1, r3.Scale(2, k2)), r3.Add(r3.Scale(2, k3), k4))
	return r3.Scale(step/6, sum), true
}

// probe samples the field at p, given in the coordinate space of the
// context.
func (c *Context) probe(p r3.Vec) bool {
	if !c.indexSpace {
		p = c.xform.WorldToIndex(p)
	}
	return c.sampler.Probe(p)
}

func unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return v
	}
	return r3.Scale(1/n, v)
}
