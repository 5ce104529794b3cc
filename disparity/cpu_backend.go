package disparity

import (
	"context"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"

	"go.viam.com/disparity/utils"
)

// cpuBackend runs every stage on the host worker pool. Indices handed to the pool are cost
// planes or rows, so each work item writes memory no other item touches.
type cpuBackend struct {
	pool    *utils.WorkerPool
	guides  [2]*GuideStatistics
	scratch []*FilterScratch // per pool worker, allocated on first use
	logger  golog.Logger
}

func newCPUBackend(cfg Config, width, height int, pool *utils.WorkerPool, logger golog.Logger) *cpuBackend {
	b := &cpuBackend{pool: pool, logger: logger}
	for _, s := range sides {
		b.guides[s] = NewGuideStatistics(width, height, cfg.Subsample, cfg.FilterRadius)
	}
	b.scratch = make([]*FilterScratch, pool.Size())
	return b
}

func (b *cpuBackend) Kind() BackendKind {
	return BackendCPU
}

func (b *cpuBackend) BuildCostVolumes(ctx context.Context, f *Frame) error {
	if err := b.pool.ParallelFor(ctx, 2, func(_, i int) {
		Preprocess(f.image(sides[i]), f.grad(sides[i]))
	}); err != nil {
		return err
	}
	maxD := f.MaxDisparity
	return b.pool.ParallelFor(ctx, 2*maxD, func(_, i int) {
		d := i % maxD
		if i < maxD {
			BuildLeft(f.Left, f.Right, f.LeftGrad, f.RightGrad, d, f.LeftCost.Plane(d))
		} else {
			BuildRight(f.Right, f.Left, f.RightGrad, f.LeftGrad, d, f.RightCost.Plane(d))
		}
	})
}

func (b *cpuBackend) FilterCostVolumes(ctx context.Context, f *Frame) error {
	errs := make([]error, 2)
	if err := b.pool.ParallelFor(ctx, 2, func(_, i int) {
		errs[i] = b.guides[i].Compute(f.image(sides[i]))
	}); err != nil {
		return err
	}
	if err := multierr.Combine(errs...); err != nil {
		return err
	}
	maxD := f.MaxDisparity
	return b.pool.ParallelFor(ctx, 2*maxD, func(worker, i int) {
		s, d := sides[i/maxD], i%maxD
		if b.scratch[worker] == nil {
			b.scratch[worker] = NewFilterScratch(b.guides[s])
			b.logger.Debugw("allocated guided filter scratch", "worker", worker)
		}
		FilterPlane(b.guides[s], f.cost(s).Plane(d), b.scratch[worker])
	})
}

func (b *cpuBackend) SelectDisparities(ctx context.Context, f *Frame) error {
	height := f.Height
	return b.pool.ParallelFor(ctx, 2*height, func(_, i int) {
		s, y := sides[i/height], i%height
		SelectRows(f.cost(s), f.disp(s), y, y+1)
	})
}

func (b *cpuBackend) Close() error {
	return nil
}
