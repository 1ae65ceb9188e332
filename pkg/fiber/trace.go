package fiber

import (
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"
)

// Half describes how one half of a fiber ended.
type Half struct {
	// WhyStop is the criterion that ended the half
	WhyStop StopReason

	// NumSteps is the number of accepted steps
	NumSteps int

	// Length is the arc length of the accepted steps
	Length float64
}

// Fiber is the result of tracing one seed. Half 0 runs against the seed's
// eigenvector and half 1 along it.
type Fiber struct {
	// Seed is the seed position in the coordinate space of the context
	Seed r3.Vec

	// Points holds half 0 reversed, the seed and half 1. It is empty when
	// WhyNowhere is set.
	Points []r3.Vec

	// SeedIndex is the index of the seed in Points
	SeedIndex int

	// Halves reports how each half ended
	Halves [2]Half

	// WhyNowhere is set when the fiber was not produced: the seed failed a
	// criterion, or the traced fiber failed a whole-fiber criterion
	WhyNowhere StopReason
}

// Empty reports whether the trace produced no fiber.
func (f *Fiber) Empty() bool {
	return f.WhyNowhere != StopUnknown
}

// Length returns the total arc length of both halves.
func (f *Fiber) Length() float64 {
	return f.Halves[0].Length + f.Halves[1].Length
}

// NumSteps returns the total number of steps of both halves.
func (f *Fiber) NumSteps() int {
	return f.Halves[0].NumSteps + f.Halves[1].NumSteps
}

// LogValue implements slog.LogValuer.
func (f *Fiber) LogValue() slog.Value {
	if f.Empty() {
		return slog.GroupValue(
			slog.String("nowhere", f.WhyNowhere.String()),
		)
	}
	return slog.GroupValue(
		slog.Int("points", len(f.Points)),
		slog.Float64("length", f.Length()),
		slog.String("stop0", f.Halves[0].WhyStop.String()),
		slog.String("stop1", f.Halves[1].WhyStop.String()),
	)
}

// Trace traces the fiber through seed, given in the coordinate space of the
// context. Stopping, including at the seed, is reported in the returned
// Fiber; the error is only for a context that has not been updated.
func (c *Context) Trace(seed r3.Vec) (*Fiber, error) {
	if !c.updated {
		return nil, ErrNotUpdated
	}
	f := &Fiber{Seed: seed}

	if !c.probe(seed) {
		f.WhyNowhere = StopBounds
		c.logger.Debug("seed outside volume", "seed", seed)
		return f, nil
	}
	if why := c.checkSample(); why != StopUnknown {
		f.WhyNowhere = why
		c.logger.Debug("seed fails stop criterion", "seed", seed, "reason", why)
		return f, nil
	}
	ref := c.sampler.Answer().Eigen.Vectors[c.fiberType.evecIndex()]

	c.buf.reset(seed)
	for half := 0; half < 2; half++ {
		h := halfState{half: half, pos: seed, ref: ref}
		if half == 0 {
			h.ref = r3.Scale(-1, ref)
		}
		f.Halves[half] = c.traceHalf(&h)
	}

	switch {
	case c.stops.Has(StopStub) && f.NumSteps() == 0:
		f.WhyNowhere = StopStub
	case c.stops.Has(StopMinNumSteps) && f.NumSteps() < c.stop.minNumSteps:
		f.WhyNowhere = StopMinNumSteps
	case c.stops.Has(StopMinLength) && f.Length() < c.stop.minLength:
		f.WhyNowhere = StopMinLength
	default:
		f.Points, f.SeedIndex = c.buf.points()
	}

	c.logger.Debug("fiber traced", "seed", seed, "fiber", f)
	return f, nil
}

// lengthTolerance absorbs rounding in the accumulated arc length, so that a
// step landing on the maximum length is still taken.
const lengthTolerance = 1e-9

// traceHalf walks from the seed until a criterion fires and returns how the
// half ended. Accepted points go to the buffer.
func (c *Context) traceHalf(h *halfState) Half {
	res := Half{}
	if !c.probe(h.pos) {
		res.WhyStop = StopBounds
		return res
	}

	for {
		if h.steps >= MaxSteps {
			res.WhyStop = StopCeiling
			c.logger.Warn("half-trace reached the step ceiling",
				"half", h.half, "steps", h.steps, "position", h.pos)
			break
		}
		if c.stops.Has(StopNumSteps) && h.steps >= c.stop.numSteps {
			res.WhyStop = StopNumSteps
			break
		}

		step, ok := c.integrate(h)
		if !ok {
			res.WhyStop = StopBounds
			break
		}
		l := r3.Norm(step)
		if l == 0 {
			res.WhyStop = StopStalled
			break
		}
		if c.stops.Has(StopLength) && h.length+l > c.stop.length*(1+lengthTolerance) {
			res.WhyStop = StopLength
			break
		}

		next := r3.Add(h.pos, step)
		if !c.probe(next) {
			res.WhyStop = StopBounds
			break
		}
		if why := c.checkSample(); why != StopUnknown {
			res.WhyStop = why
			break
		}
		if !c.buf.push(h.half, next) {
			res.WhyStop = StopNumSteps
			break
		}

		h.pos = next
		h.length += l
		h.steps++
		h.ref = r3.Scale(1/l, step)
	}

	res.NumSteps = h.steps
	res.Length = h.length
	return res
}

// checkSample tests the per-sample criteria against the last probe.
func (c *Context) checkSample() StopReason {
	a := c.sampler.Answer()
	if c.stops.Has(StopConfidence) && a.Confidence < c.stop.confidence {
		return StopConfidence
	}
	if c.stops.Has(StopAniso) && a.Aniso[c.stop.aniso] < c.stop.anisoThresh {
		return StopAniso
	}
	return StopUnknown
}
