package disparity

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/disparity/logging"
	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// A FrameSource produces stereo pairs. NextFrame returns io.EOF when it has no more.
type FrameSource interface {
	NextFrame(ctx context.Context) (left, right *rimage.ColorImage, err error)
}

// A FrameSink consumes results. The result is only valid during the call.
type FrameSink interface {
	WriteResult(ctx context.Context, frame int64, result *Result) error
}

// StageStats summarizes the duration of one stage over many frames.
type StageStats struct {
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
}

// RunStats summarizes a run.
type RunStats struct {
	Frames           int64
	CostConstruction StageStats
	CostFilter       StageStats
	Selection        StageStats
	PostProcess      StageStats
	Total            StageStats
}

// Runner pulls frames from a source through an Estimator into a sink until the source is
// exhausted, an error occurs or Stop is called. The stop flag is checked between frames.
type Runner struct {
	id        string
	estimator *Estimator
	source    FrameSource
	sink      FrameSink
	logger    golog.Logger

	stopped atomic.Bool
	frames  atomic.Int64
	workers *utils.StoppableWorkers
	done    chan struct{}

	mu      sync.Mutex
	err     error
	timings []Timings
}

// NewRunner returns a Runner; call Start to begin.
func NewRunner(estimator *Estimator, source FrameSource, sink FrameSink, logger golog.Logger) *Runner {
	id := uuid.NewString()
	if logger == nil {
		logger = logging.Global().Named("runner")
	}
	return &Runner{
		id:        id,
		estimator: estimator,
		source:    source,
		sink:      sink,
		logger:    logger.With("run_id", id),
		done:      make(chan struct{}),
	}
}

// ID returns the identifier all log lines of this run carry.
func (r *Runner) ID() string {
	return r.id
}

// Start runs the loop in the background.
func (r *Runner) Start() {
	r.workers = utils.NewStoppableWorkers(r.loop)
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	r.logger.Infow("run started", "backend", r.estimator.Backend())
	for !r.stopped.Load() {
		left, right, err := r.source.NextFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail(errors.Wrap(err, "cannot read frame"))
			return
		}
		result, err := r.estimator.Estimate(ctx, left, right)
		if err != nil {
			r.fail(err)
			return
		}
		frame := r.frames.Inc()
		r.mu.Lock()
		r.timings = append(r.timings, result.Timings)
		r.mu.Unlock()
		if err := r.sink.WriteResult(ctx, frame, result); err != nil {
			r.fail(errors.Wrap(err, "cannot write result"))
			return
		}
	}
	r.logger.Infow("run finished", "frames", r.frames.Load())
}

func (r *Runner) fail(err error) {
	if r.stopped.Load() && errors.Is(err, context.Canceled) {
		r.logger.Infow("run stopped", "frames", r.frames.Load())
		return
	}
	r.logger.Errorw("run failed", "frame", r.frames.Load()+1, "error", err)
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Done is closed when the loop exits.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Stop cancels the loop context and waits for the loop to exit. A source blocked on the
// context or a frame in flight is abandoned.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	if r.workers == nil {
		return
	}
	r.workers.Stop()
}

// Wait blocks until the loop exits or ctx is done and returns the error that ended the run.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
	}
	return r.Err()
}

// Err returns the error that ended the run, if any.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Frames returns the number of frames processed so far.
func (r *Runner) Frames() int64 {
	return r.frames.Load()
}

// Stats summarizes the stage timings of all processed frames.
func (r *Runner) Stats() (RunStats, error) {
	r.mu.Lock()
	timings := append([]Timings(nil), r.timings...)
	r.mu.Unlock()

	out := RunStats{Frames: int64(len(timings))}
	if len(timings) == 0 {
		return out, nil
	}
	fields := []struct {
		dst *StageStats
		get func(Timings) time.Duration
	}{
		{&out.CostConstruction, func(t Timings) time.Duration { return t.CostConstruction }},
		{&out.CostFilter, func(t Timings) time.Duration { return t.CostFilter }},
		{&out.Selection, func(t Timings) time.Duration { return t.Selection }},
		{&out.PostProcess, func(t Timings) time.Duration { return t.PostProcess }},
		{&out.Total, func(t Timings) time.Duration { return t.Total }},
	}
	for _, field := range fields {
		data := make(stats.Float64Data, len(timings))
		for i, t := range timings {
			data[i] = float64(field.get(t))
		}
		s, err := summarize(data)
		if err != nil {
			return RunStats{}, err
		}
		*field.dst = s
	}
	return out, nil
}

func summarize(data stats.Float64Data) (StageStats, error) {
	mean, err := stats.Mean(data)
	if err != nil {
		return StageStats{}, errors.Wrap(err, "cannot compute mean")
	}
	median, err := stats.Median(data)
	if err != nil {
		return StageStats{}, errors.Wrap(err, "cannot compute median")
	}
	p95, err := stats.Percentile(data, 95)
	if err != nil {
		return StageStats{}, errors.Wrap(err, "cannot compute 95th percentile")
	}
	return StageStats{Mean: time.Duration(mean), Median: time.Duration(median), P95: time.Duration(p95)}, nil
}
