// Package reconstruction runs the batch tracing pipeline: it builds a
// tensor volume and a fiber context from the configuration, places seeds,
// traces them in parallel and summarizes the resulting fibers.
package reconstruction

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"dtfiber/internal/models"
	"dtfiber/pkg/config"
	"dtfiber/pkg/export"
	"dtfiber/pkg/fiber"
	"dtfiber/pkg/interpolation"
	"dtfiber/pkg/phantom"
	"dtfiber/pkg/seeding"
	"dtfiber/pkg/spatial"
	"dtfiber/pkg/tensor"
	"dtfiber/pkg/visualization"
)

// Metrics summarizes one tracing run.
type Metrics struct {
	// RunID identifies the run in the exported tables
	RunID string

	// NumSeeds is the number of traced seeds
	NumSeeds int

	// NumFibers is the number of seeds that produced a fiber
	NumFibers int

	// NumPoints is the total number of points over all fibers
	NumPoints int

	// Length statistics over the produced fibers
	MeanLength   float64
	StdDevLength float64
	MedianLength float64
	MaxLength    float64

	// Step count statistics over the produced fibers
	MeanSteps   float64
	StdDevSteps float64

	// HalfStops counts why the halves of produced fibers ended
	HalfStops map[fiber.StopReason]int

	// Nowhere counts why seeds produced no fiber
	Nowhere map[fiber.StopReason]int

	// ConnectedEndpoints is the number of fiber endpoints that have an
	// endpoint of another fiber within the configured radius
	ConnectedEndpoints int

	// Elapsed is the wall time spent tracing
	Elapsed time.Duration
}

// Params holds the pipeline inputs.
type Params struct {
	// Config describes the volume, the tracing and the outputs
	Config *config.Config

	// NumCores, when positive, overrides Config.Processing.NumCores
	NumCores int

	// Logger receives progress and diagnostics; nil discards them
	Logger *slog.Logger
}

// Reconstructor owns the state of one pipeline run.
//
// The pipeline consists of these steps:
// 1. Generating the tensor volume
// 2. Configuring and updating the fiber context
// 3. Placing seeds
// 4. Tracing every seed on a pool of workers, one context clone each
// 5. Computing metrics
// 6. Writing the CSV tables and, optionally, anisotropy slices
type Reconstructor struct {
	params *Params
	logger *slog.Logger
	runID  string

	volume *models.TensorVolume
	ctx    *fiber.Context
	seeds  []r3.Vec
	fibers []*fiber.Fiber

	metrics Metrics
}

// NewReconstructor creates a new reconstructor instance with the provided parameters.
func NewReconstructor(params *Params) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconstructor{
		params: params,
		logger: logger,
		runID:  uuid.New().String(),
	}
}

// Process runs the complete pipeline
func (r *Reconstructor) Process() error {
	cfg := r.params.Config
	if cfg == nil {
		return errors.New("no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	r.logger.Info("Step 1: generating tensor volume", "phantom", cfg.Volume.Phantom, "size", cfg.Volume.Size)
	vol, err := BuildVolume(cfg)
	if err != nil {
		return fmt.Errorf("failed to build volume: %w", err)
	}
	r.volume = vol

	r.logger.Info("Step 2: configuring fiber context", "type", cfg.Fiber.Type, "integration", cfg.Fiber.Integration)
	ctx, err := BuildContext(cfg, vol, r.logger)
	if err != nil {
		return fmt.Errorf("failed to configure tracing: %w", err)
	}
	r.ctx = ctx

	r.logger.Info("Step 3: placing seeds", "spacing", cfg.Seeding.Spacing)
	seeds, err := r.placeSeeds()
	if err != nil {
		return fmt.Errorf("failed to place seeds: %w", err)
	}
	r.seeds = seeds

	r.logger.Info("Step 4: tracing fibers", "seeds", len(seeds), "cores", r.numCores())
	start := time.Now()
	fibers, err := r.traceSeeds()
	if err != nil {
		return fmt.Errorf("failed to trace fibers: %w", err)
	}
	r.fibers = fibers
	elapsed := time.Since(start)

	r.logger.Info("Step 5: calculating metrics")
	r.metrics = r.calculateMetrics()
	r.metrics.Elapsed = elapsed

	r.logger.Info("Step 6: writing outputs")
	if err := r.writeOutputs(); err != nil {
		return err
	}

	r.logger.Info("tracing complete",
		"run", r.runID,
		"fibers", r.metrics.NumFibers,
		"seeds", r.metrics.NumSeeds,
		"elapsed", elapsed)
	return nil
}

// BuildVolume generates the phantom described by the volume section.
func BuildVolume(cfg *config.Config) (*models.TensorVolume, error) {
	v := cfg.Volume
	return phantom.Generate(phantom.Params{
		Kind:             phantom.Kind(v.Phantom),
		Size:             v.Size,
		Spacing:          v.Spacing,
		Origin:           r3.Vec{X: v.Origin[0], Y: v.Origin[1], Z: v.Origin[2]},
		Evals:            v.Eigenvalues,
		Direction:        r3.Vec{X: v.Direction[0], Y: v.Direction[1], Z: v.Direction[2]},
		Confidence:       v.Confidence,
		ConfidenceRadius: v.ConfidenceRadius,
		Rate:             v.TwistRate,
	})
}

// BuildContext configures and updates a fiber context over vol from the
// kernel, fiber and stop sections.
func BuildContext(cfg *config.Config, vol *models.TensorVolume, logger *slog.Logger) (*fiber.Context, error) {
	kernel, err := interpolation.ParseKernel(cfg.Kernel)
	if err != nil {
		return nil, err
	}
	ft, err := fiber.ParseType(cfg.Fiber.Type)
	if err != nil {
		return nil, err
	}
	integration, err := fiber.ParseIntegration(cfg.Fiber.Integration)
	if err != nil {
		return nil, err
	}

	ctx := fiber.NewContext(vol)
	ctx.SetLogger(logger)
	ctx.SetKernel(kernel)
	ctx.SetType(ft)
	ctx.SetIntegration(integration)
	ctx.SetStepSize(cfg.Fiber.StepSize)
	ctx.UseIndexSpace(cfg.Fiber.IndexSpace)
	ctx.SetPunct(cfg.Fiber.Punct)
	ctx.SetBufferCapacity(cfg.Fiber.BufferCapacity)

	if speed := cfg.Fiber.AnisoSpeed; speed.Metric != "" {
		metric, err := tensor.ParseAniso(speed.Metric)
		if err != nil {
			return nil, fmt.Errorf("fiber.anisoSpeed: %w", err)
		}
		ctx.SetAnisoSpeed(metric, speed.Lerp, speed.Threshold, speed.Softness)
	}

	stop := cfg.Stop
	for _, name := range stop.Criteria {
		reason, err := fiber.ParseStopReason(name)
		if err != nil {
			return nil, err
		}
		switch reason {
		case fiber.StopAniso:
			metric, err := tensor.ParseAniso(stop.AnisoMetric)
			if err != nil {
				return nil, fmt.Errorf("stop.anisoMetric: %w", err)
			}
			ctx.SetStopAniso(metric, stop.AnisoThreshold)
		case fiber.StopLength:
			ctx.SetStopLength(stop.MaxLength)
		case fiber.StopNumSteps:
			ctx.SetStopNumSteps(stop.MaxNumSteps)
		case fiber.StopConfidence:
			ctx.SetStopConfidence(stop.Confidence)
		case fiber.StopBounds:
			ctx.SetStopBounds()
		case fiber.StopMinLength:
			ctx.SetStopMinLength(stop.MinLength)
		case fiber.StopMinNumSteps:
			ctx.SetStopMinNumSteps(stop.MinNumSteps)
		case fiber.StopStub:
			ctx.SetStopStub()
		default:
			return nil, fmt.Errorf("%w: %v cannot be enabled", fiber.ErrBadStop, reason)
		}
	}

	if err := ctx.Update(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (r *Reconstructor) placeSeeds() ([]r3.Vec, error) {
	cfg := r.params.Config
	p := seeding.Params{
		Spacing:       cfg.Seeding.Spacing,
		Threshold:     cfg.Seeding.AnisoThreshold,
		MinSeparation: cfg.Seeding.MinSeparation,
		IndexSpace:    cfg.Fiber.IndexSpace,
	}
	if cfg.Seeding.AnisoMetric != "" {
		metric, err := tensor.ParseAniso(cfg.Seeding.AnisoMetric)
		if err != nil {
			return nil, fmt.Errorf("seeding.anisoMetric: %w", err)
		}
		p.Metric = metric
		kernel, err := interpolation.ParseKernel(cfg.Kernel)
		if err != nil {
			return nil, err
		}
		p.Kernel = kernel
	}
	return seeding.Generate(r.volume, p)
}

func (r *Reconstructor) numCores() int {
	if r.params.NumCores > 0 {
		return r.params.NumCores
	}
	if n := r.params.Config.Processing.NumCores; n > 0 {
		return n
	}
	return 1
}

// traceSeeds traces every seed on a pool of workers. Each worker owns a
// clone of the context; results are stored in seed order.
func (r *Reconstructor) traceSeeds() ([]*fiber.Fiber, error) {
	fibers := make([]*fiber.Fiber, len(r.seeds))

	numCores := r.numCores()
	if numCores > len(r.seeds) {
		numCores = len(r.seeds)
	}

	type workerResult struct {
		coreID int
		traced int
		err    error
	}
	jobs := make(chan int)
	resultChan := make(chan workerResult, numCores)

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		wg.Add(1)

		go func(coreID int, ctx *fiber.Context) {
			defer wg.Done()

			res := workerResult{coreID: coreID}
			for i := range jobs {
				// Keep draining after a failure so the producer never blocks.
				if res.err != nil {
					continue
				}
				f, err := ctx.Trace(r.seeds[i])
				if err != nil {
					res.err = fmt.Errorf("seed %d: %w", i, err)
					continue
				}
				fibers[i] = f
				res.traced++
			}
			resultChan <- res
		}(c, r.ctx.Clone())
	}

	for i := range r.seeds {
		jobs <- i
	}
	close(jobs)

	// Wait for all cores to finish
	wg.Wait()
	close(resultChan)

	var errs []error
	for res := range resultChan {
		if res.err != nil {
			errs = append(errs, res.err)
		}
		r.logger.Debug("worker finished", "core", res.coreID, "traced", res.traced)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return fibers, nil
}

func (r *Reconstructor) calculateMetrics() Metrics {
	m := Metrics{
		RunID:     r.runID,
		NumSeeds:  len(r.seeds),
		HalfStops: make(map[fiber.StopReason]int),
		Nowhere:   make(map[fiber.StopReason]int),
	}

	var lengths, steps []float64
	var lines [][]r3.Vec
	for _, f := range r.fibers {
		if f.Empty() {
			m.Nowhere[f.WhyNowhere]++
			continue
		}
		m.NumFibers++
		m.NumPoints += len(f.Points)
		m.HalfStops[f.Halves[0].WhyStop]++
		m.HalfStops[f.Halves[1].WhyStop]++
		lengths = append(lengths, f.Length())
		steps = append(steps, float64(f.NumSteps()))
		lines = append(lines, f.Points)
	}
	if m.NumFibers == 0 {
		return m
	}

	m.MeanLength, m.StdDevLength = stat.MeanStdDev(lengths, nil)
	m.MeanSteps, m.StdDevSteps = stat.MeanStdDev(steps, nil)
	m.MaxLength = floats.Max(lengths)
	sort.Float64s(lengths)
	m.MedianLength = stat.Quantile(0.5, stat.Empirical, lengths, nil)

	m.ConnectedEndpoints = connectedEndpoints(lines, r.params.Config.Output.EndpointRadius)
	return m
}

// connectedEndpoints counts the endpoints that lie within radius of an
// endpoint of another line.
func connectedEndpoints(lines [][]r3.Vec, radius float64) int {
	if radius <= 0 {
		return 0
	}
	idx := spatial.EndpointIndex(lines)
	n := 0
	for i, l := range lines {
		ends := []r3.Vec{l[0]}
		if len(l) > 1 {
			ends = append(ends, l[len(l)-1])
		}
		for _, p := range ends {
			for _, nb := range idx.Within(p, radius) {
				if nb.ID != i {
					n++
					break
				}
			}
		}
	}
	return n
}

func (r *Reconstructor) writeOutputs() error {
	out := r.params.Config.Output
	if out.FibersCSV != "" {
		if err := export.WritePointsFile(out.FibersCSV, r.runID, r.fibers); err != nil {
			return fmt.Errorf("failed to write fibers: %w", err)
		}
		r.logger.Info("wrote fiber points", "path", out.FibersCSV)
	}
	if out.SummaryCSV != "" {
		if err := export.WriteSummaryFile(out.SummaryCSV, r.runID, r.fibers); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		r.logger.Info("wrote fiber summary", "path", out.SummaryCSV)
	}
	if out.ExtractSlices {
		if err := r.saveSlices(); err != nil {
			return fmt.Errorf("failed to save slices: %w", err)
		}
	}
	return nil
}

// saveSlices writes the anisotropy map, with the fibers drawn in, as slices
// along every axis.
func (r *Reconstructor) saveSlices() error {
	out := r.params.Config.Output
	metric, err := tensor.ParseAniso(out.SliceMetric)
	if err != nil {
		return err
	}
	data, err := visualization.AnisoMap(r.volume, metric)
	if err != nil {
		return err
	}
	size := r.volume.Size
	viewer := visualization.NewViewer(data, size[0], size[1], size[2])

	xform := r.ctx.Transform()
	for _, f := range r.fibers {
		pts := f.Points
		if !r.ctx.IndexSpace() {
			pts = make([]r3.Vec, len(f.Points))
			for i, p := range f.Points {
				pts[i] = xform.WorldToIndex(p)
			}
		}
		viewer.DrawPoints(pts, 1)
	}

	for _, axis := range []string{"x", "y", "z"} {
		axisDir := filepath.Join(out.SlicesDir, axis)
		n, err := viewer.SaveSliceSequence(axis, axisDir)
		if err != nil {
			return err
		}
		r.logger.Info("saved anisotropy slices", "axis", axis, "dir", axisDir, "count", n)
	}
	return nil
}

// GetMetrics returns the metrics of the last run
func (r *Reconstructor) GetMetrics() Metrics {
	return r.metrics
}

// RunID returns the identifier written to the output tables.
func (r *Reconstructor) RunID() string { return r.runID }

// Seeds returns the traced seeds, in the coordinate space of the context.
func (r *Reconstructor) Seeds() []r3.Vec { return r.seeds }

// Fibers returns one result per seed, in seed order.
func (r *Reconstructor) Fibers() []*fiber.Fiber { return r.fibers }

// Volume returns the generated tensor volume.
func (r *Reconstructor) Volume() *models.TensorVolume { return r.volume }
