// Package disparity estimates dense disparity maps from rectified stereo pairs. A frame runs
// through four stages: cost volume construction, guided filter aggregation, winner-take-all
// selection and post processing. The first three run on the CPU worker pool or on a compute
// device; post processing always runs on the host.
package disparity

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/logging"
	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// Timings is how long each stage of one frame took.
type Timings struct {
	CostConstruction time.Duration
	CostFilter       time.Duration
	Selection        time.Duration
	PostProcess      time.Duration
	Total            time.Duration
}

// Result is the output of one frame. The maps belong to the Estimator and are overwritten by
// the next Process call; Clone them to keep them.
type Result struct {
	LeftDisparity  *rimage.DisparityMap
	RightDisparity *rimage.DisparityMap
	LeftMask       *rimage.ValidityMask
	RightMask      *rimage.ValidityMask
	Backend        BackendKind
	Timings        Timings
}

// Estimator owns all per frame state and runs the pipeline. It is built for one frame size.
type Estimator struct {
	cfg    Config
	logger golog.Logger

	pool *utils.WorkerPool
	post *PostProcessor
	cpu  *cpuBackend
	gpu  *gpuBackend

	// frameMu guards the frame against SetImages racing a running Process.
	frameMu   sync.Mutex
	frame     *Frame
	hasImages bool
	backend   StageBackend
	closed    bool
}

// NewEstimator validates cfg and allocates everything needed for width x height frames.
// When cfg asks for the GPU backend a device is opened from platform; if none is available
// a warning is logged and the CPU backend is used instead. Any other failure releases what
// was already built and returns an error.
func NewEstimator(
	ctx context.Context, cfg Config, width, height int, platform *compute.Platform, logger golog.Logger,
) (*Estimator, error) {
	if err := cfg.Validate("disparity"); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid frame size %dx%d", width, height)
	}
	if logger == nil {
		logger = logging.Global().Named("disparity")
	}

	pool := utils.NewWorkerPool(cfg.Threads)
	e := &Estimator{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		frame:  NewFrame(width, height, cfg.MaxDisparity),
		post:   NewPostProcessor(cfg, width, height, pool),
		cpu:    newCPUBackend(cfg, width, height, pool, logger),
	}
	e.backend = e.cpu

	if cfg.Backend == BackendGPU {
		gpu, err := openGPUBackend(ctx, cfg, width, height, platform, logger)
		if err != nil {
			pool.Stop()
			return nil, err
		}
		if gpu != nil {
			e.gpu = gpu
			e.backend = gpu
		}
	}
	logger.Debugw("estimator ready", "width", width, "height", height, "max_disparity", cfg.MaxDisparity,
		"backend", e.backend.Kind(), "workers", pool.Size(), "subsample", cfg.Subsample, "filter_radius", cfg.FilterRadius)
	return e, nil
}

// openGPUBackend returns nil without an error when no device can be found.
func openGPUBackend(
	ctx context.Context, cfg Config, width, height int, platform *compute.Platform, logger golog.Logger,
) (*gpuBackend, error) {
	if platform == nil || !platform.HasDevices() {
		logger.Warnw("no compute device available, falling back to cpu backend")
		return nil, nil
	}
	dev, err := platform.OpenDevice(ctx, cfg.Device)
	if err != nil {
		if compute.CodeOf(err) == compute.CodeDeviceNotFound {
			logger.Warnw("compute device not found, falling back to cpu backend", "device", cfg.Device, "error", err)
			return nil, nil
		}
		return nil, errors.Wrap(err, "cannot open compute device")
	}
	return newGPUBackend(cfg, width, height, dev, logger.Named("gpu"))
}

// Config returns the configuration with defaults applied.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Size returns the frame size the estimator was built for.
func (e *Estimator) Size() (int, int) {
	return e.frame.Width, e.frame.Height
}

// Backend returns the backend the cost stages run on.
func (e *Estimator) Backend() BackendKind {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.backend.Kind()
}

// SetBackend switches backends between frames. Switching to the GPU requires that one was
// built by NewEstimator.
func (e *Estimator) SetBackend(kind BackendKind) error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	switch kind {
	case BackendCPU:
		e.backend = e.cpu
	case BackendGPU:
		if e.gpu == nil {
			return errors.Wrapf(ErrBackendUnavailable, "%s", kind)
		}
		e.backend = e.gpu
	default:
		return errors.Errorf("unknown backend %q", kind)
	}
	return nil
}

// SetImages copies a stereo pair into the estimator.
func (e *Estimator) SetImages(left, right *rimage.ColorImage) error {
	if !left.SameSize(right) {
		return errors.Wrapf(ErrDimensionMismatch, "left is %dx%d, right is %dx%d",
			left.Width(), left.Height(), right.Width(), right.Height())
	}
	if left.Width() != e.frame.Width || left.Height() != e.frame.Height {
		return errors.Wrapf(ErrFrameSizeChanged, "got %dx%d, built for %dx%d",
			left.Width(), left.Height(), e.frame.Width, e.frame.Height)
	}
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.closed {
		return ErrEstimatorClosed
	}
	e.frame.Left.CopyFrom(left)
	e.frame.Right.CopyFrom(right)
	e.hasImages = true
	return nil
}

// Process runs the pipeline on the current pair.
func (e *Estimator) Process(ctx context.Context) (*Result, error) {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.closed {
		return nil, ErrEstimatorClosed
	}
	if !e.hasImages {
		return nil, ErrNoImages
	}

	var timings Timings
	start := time.Now()
	stages := []struct {
		name    string
		elapsed *time.Duration
		run     func(context.Context, *Frame) error
	}{
		{"cost construction", &timings.CostConstruction, e.backend.BuildCostVolumes},
		{"cost filter", &timings.CostFilter, e.backend.FilterCostVolumes},
		{"disparity selection", &timings.Selection, e.backend.SelectDisparities},
		{"post processing", &timings.PostProcess, e.post.Process},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stageStart := time.Now()
		if err := stage.run(ctx, e.frame); err != nil {
			return nil, errors.Wrapf(err, "%s stage failed on %s backend", stage.name, e.backend.Kind())
		}
		*stage.elapsed = time.Since(stageStart)
	}
	timings.Total = time.Since(start)
	e.logger.Debugw("frame done", "backend", e.backend.Kind(), "cost_construction", timings.CostConstruction,
		"cost_filter", timings.CostFilter, "selection", timings.Selection, "post_process", timings.PostProcess,
		"total", timings.Total)

	return &Result{
		LeftDisparity:  e.frame.LeftDisp,
		RightDisparity: e.frame.RightDisp,
		LeftMask:       e.frame.LeftMask,
		RightMask:      e.frame.RightMask,
		Backend:        e.backend.Kind(),
		Timings:        timings,
	}, nil
}

// Estimate is SetImages followed by Process.
func (e *Estimator) Estimate(ctx context.Context, left, right *rimage.ColorImage) (*Result, error) {
	if err := e.SetImages(left, right); err != nil {
		return nil, err
	}
	return e.Process(ctx)
}

// Close stops the worker pool and releases every device resource.
func (e *Estimator) Close() error {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var err error
	if e.gpu != nil {
		err = multierr.Combine(err, e.gpu.Close())
	}
	err = multierr.Combine(err, e.cpu.Close())
	e.pool.Stop()
	return err
}
