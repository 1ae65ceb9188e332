// Package fiber traces deterministic single-tensor streamlines through a
// diffusion tensor volume.
//
// A Context is configured with its setters, frozen with Update and then
// used to Trace any number of seeds. A Context is not safe for concurrent
// use; Clone gives each goroutine its own copy.
package fiber

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"dtfiber/internal/models"
	"dtfiber/pkg/interpolation"
	"dtfiber/pkg/tensor"
)

// MaxSteps caps the number of steps of a single half-trace regardless of
// configuration. Halves that reach it stop with StopCeiling.
const MaxSteps = 100000

// Configuration errors reported by Update. Several may be joined together.
var (
	ErrNoType        = errors.New("fiber type not set")
	ErrNoIntegration = errors.New("integration not set")
	ErrNoStop        = errors.New("no stop criterion enabled")
	ErrBadAniso      = errors.New("invalid anisotropy metric")
	ErrBadStepSize   = errors.New("step size must be positive")
	ErrBadStop       = errors.New("invalid stop criterion parameter")
	ErrBadPunct      = errors.New("punct must lie in [0,1]")
	ErrBadBuffer     = errors.New("invalid buffer capacity")
	ErrNoKernel      = errors.New("kernel not set")
	ErrNotUpdated    = errors.New("context not updated")
)

// stopParams holds the thresholds of the parameterized stop criteria.
type stopParams struct {
	confidence  float64
	aniso       tensor.Aniso
	anisoThresh float64
	numSteps    int
	length      float64
	minLength   float64
	minNumSteps int
}

// speedParams configures the anisotropy modulation of the step size.
type speedParams struct {
	aniso  tensor.Aniso
	lerp   float64
	thresh float64
	soft   float64
}

// Context holds the configuration and scratch state for tracing fibers
// through one volume.
type Context struct {
	vol    *models.TensorVolume
	kernel interpolation.Kernel
	logger *slog.Logger

	fiberType   Type
	punct       float64
	integration Integration
	stepSize    float64
	indexSpace  bool
	stops       StopSet
	stop        stopParams
	speed       speedParams
	capacity    int

	// Derived by Update.
	updated bool
	xform   *models.Transform
	sampler *interpolation.Sampler
	buf     buffer
}

// NewContext creates a context over vol. The volume is borrowed for the
// lifetime of the context and must not be modified while tracing.
func NewContext(vol *models.TensorVolume) *Context {
	return &Context{
		vol:    vol,
		kernel: interpolation.Tent{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for diagnostics. A nil logger discards them.
func (c *Context) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = l
}

// SetType selects the fiber model.
func (c *Context) SetType(t Type) {
	c.fiberType = t
	c.updated = false
}

// SetPunct sets the tensorline weight of the deflected direction against
// the incoming one.
func (c *Context) SetPunct(p float64) {
	c.punct = p
	c.updated = false
}

// SetIntegration selects the integration scheme.
func (c *Context) SetIntegration(i Integration) {
	c.integration = i
	c.updated = false
}

// SetStepSize sets the step length in the coordinate space of the context.
func (c *Context) SetStepSize(h float64) {
	c.stepSize = h
	c.updated = false
}

// SetKernel sets the reconstruction kernel. The default is trilinear.
func (c *Context) SetKernel(k interpolation.Kernel) {
	c.kernel = k
	c.updated = false
}

// UseIndexSpace makes seeds, steps and output points index-space
// coordinates instead of world coordinates.
func (c *Context) UseIndexSpace(on bool) {
	c.indexSpace = on
	c.updated = false
}

// SetBufferCapacity bounds the number of points of a fiber, seed included.
// Each half may then hold about half of them; a half that runs out of room
// stops with StopNumSteps. Zero restores unbounded storage.
func (c *Context) SetBufferCapacity(n int) {
	c.capacity = n
	c.updated = false
}

// SetAnisoSpeed scales each step by a smooth ramp of the given metric
// around thresh with half-width soft, mixed with a constant 1 by lerp.
func (c *Context) SetAnisoSpeed(metric tensor.Aniso, lerp, thresh, soft float64) {
	c.speed = speedParams{aniso: metric, lerp: lerp, thresh: thresh, soft: soft}
	c.updated = false
}

// ClearAnisoSpeed turns speed modulation off.
func (c *Context) ClearAnisoSpeed() {
	c.speed = speedParams{}
	c.updated = false
}

// SetStopConfidence stops a half when the confidence drops below thresh.
func (c *Context) SetStopConfidence(thresh float64) {
	c.stop.confidence = thresh
	c.enable(StopConfidence)
}

// SetStopAniso stops a half when the metric drops below thresh.
func (c *Context) SetStopAniso(metric tensor.Aniso, thresh float64) {
	c.stop.aniso, c.stop.anisoThresh = metric, thresh
	c.enable(StopAniso)
}

// SetStopNumSteps limits each half to max steps.
func (c *Context) SetStopNumSteps(max int) {
	c.stop.numSteps = max
	c.enable(StopNumSteps)
}

// SetStopLength limits the arc length of each half to max.
func (c *Context) SetStopLength(max float64) {
	c.stop.length = max
	c.enable(StopLength)
}

// SetStopMinLength discards fibers shorter than min in total.
func (c *Context) SetStopMinLength(min float64) {
	c.stop.minLength = min
	c.enable(StopMinLength)
}

// SetStopMinNumSteps discards fibers with fewer than min steps in total.
func (c *Context) SetStopMinNumSteps(min int) {
	c.stop.minNumSteps = min
	c.enable(StopMinNumSteps)
}

// SetStopBounds enables the bounds criterion explicitly. Leaving the volume
// always ends a half; enabling it only marks the configuration as having a
// stop criterion.
func (c *Context) SetStopBounds() { c.enable(StopBounds) }

// SetStopStub discards fibers where neither half took a step.
func (c *Context) SetStopStub() { c.enable(StopStub) }

// ClearStop disables one criterion.
func (c *Context) ClearStop(r StopReason) {
	c.stops = c.stops.without(r)
	c.updated = false
}

// Stops returns the enabled criteria.
func (c *Context) Stops() StopSet { return c.stops }

func (c *Context) enable(r StopReason) {
	c.stops = c.stops.with(r)
	c.updated = false
}

// Update validates the configuration, builds the sampler query from what
// the fiber type, the stop criteria and the speed modulation need, and
// prepares the scratch state. Every configuration problem found is
// reported in the returned error.
func (c *Context) Update() error {
	c.updated = false

	var errs []error
	if c.fiberType <= TypeUnknown || c.fiberType >= typeLast {
		errs = append(errs, ErrNoType)
	}
	if c.integration <= IntegrationUnknown || c.integration >= integrationLast {
		errs = append(errs, ErrNoIntegration)
	}
	if !(c.stepSize > 0) {
		errs = append(errs, fmt.Errorf("%w: %g", ErrBadStepSize, c.stepSize))
	}
	if c.kernel == nil {
		errs = append(errs, ErrNoKernel)
	}
	if c.fiberType == TypeTensorLine && (c.punct < 0 || c.punct > 1) {
		errs = append(errs, fmt.Errorf("%w: %g", ErrBadPunct, c.punct))
	}
	if c.capacity < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrBadBuffer, c.capacity))
	}
	errs = append(errs, c.checkStops()...)
	if c.speed.aniso != tensor.AnisoUnknown && !c.speed.aniso.Valid() {
		errs = append(errs, fmt.Errorf("%w for speed: %d", ErrBadAniso, int(c.speed.aniso)))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	var q interpolation.Query
	q.Add(interpolation.ItemEigenvectors)
	if c.stops.Has(StopConfidence) {
		q.Add(interpolation.ItemConfidence)
	}
	if c.stops.Has(StopAniso) {
		q.AddAniso(c.stop.aniso)
	}
	if c.speed.aniso.Valid() {
		q.AddAniso(c.speed.aniso)
	}

	sampler := interpolation.NewSampler(c.vol, c.kernel)
	sampler.SetQuery(q)
	if err := sampler.Update(); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	xform, err := c.vol.Geometry.Transform()
	if err != nil {
		return fmt.Errorf("volume geometry: %w", err)
	}

	c.sampler = sampler
	c.xform = xform
	c.buf = c.newBuffer()
	c.updated = true

	c.logger.Debug("fiber context updated",
		"type", c.fiberType,
		"integration", c.integration,
		"stepSize", c.stepSize,
		"kernel", c.kernel.Name(),
		"stops", c.stops,
		"query", q,
		"indexSpace", c.indexSpace)
	return nil
}

func (c *Context) checkStops() []error {
	if c.stops == 0 {
		return []error{ErrNoStop}
	}
	var errs []error
	for r := StopUnknown; r < stopLast; r++ {
		if c.stops.Has(r) && !r.Configurable() {
			errs = append(errs, fmt.Errorf("%w: %v cannot be enabled", ErrBadStop, r))
		}
	}
	if c.stops.Has(StopAniso) && !c.stop.aniso.Valid() {
		errs = append(errs, fmt.Errorf("%w for stop: %d", ErrBadAniso, int(c.stop.aniso)))
	}
	if c.stops.Has(StopNumSteps) && c.stop.numSteps < 1 {
		errs = append(errs, fmt.Errorf("%w: max steps %d", ErrBadStop, c.stop.numSteps))
	}
	if c.stops.Has(StopLength) && !(c.stop.length > 0) {
		errs = append(errs, fmt.Errorf("%w: max length %g", ErrBadStop, c.stop.length))
	}
	if c.stops.Has(StopMinLength) && c.stop.minLength < 0 {
		errs = append(errs, fmt.Errorf("%w: min length %g", ErrBadStop, c.stop.minLength))
	}
	if c.stops.Has(StopMinNumSteps) && c.stop.minNumSteps < 0 {
		errs = append(errs, fmt.Errorf("%w: min steps %d", ErrBadStop, c.stop.minNumSteps))
	}
	return errs
}

func (c *Context) newBuffer() buffer {
	if c.capacity > 0 {
		return newBoundBuffer(c.capacity)
	}
	return &growBuffer{}
}

// Updated reports whether the context is ready to trace.
func (c *Context) Updated() bool { return c.updated }

// Volume returns the traced volume.
func (c *Context) Volume() *models.TensorVolume { return c.vol }

// Transform returns the index/world transform of the volume. It is nil
// before Update.
func (c *Context) Transform() *models.Transform { return c.xform }

// IndexSpace reports whether the context works in index coordinates.
func (c *Context) IndexSpace() bool { return c.indexSpace }

// Clone returns a context with the same configuration and its own sampler
// and buffers, so that the clone and c can trace concurrently. The volume
// is shared.
func (c *Context) Clone() *Context {
	n := *c
	n.sampler, n.buf = nil, nil
	if c.updated {
		n.sampler = c.sampler.Clone()
		n.buf = n.newBuffer()
	}
	return &n
}
