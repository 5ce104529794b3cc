package disparity

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/utils"
)

// gpuBackend runs the cost stages as a kernel graph on a compute device. The cost volumes
// stay on the device; only the disparity maps are read back.
type gpuBackend struct {
	dev   compute.Device
	prog  compute.Program
	queue compute.Queue
	reg   *compute.BufferRegistry[gpuBuffer]
	ops   *deviceOps

	geom    filterGeometry
	maxD    int
	batch   int
	guides  [2]guideSet[compute.Buffer]
	scratch guideScratch[compute.Buffer]
	filter  filterSet[compute.Buffer]
	det     []float32

	logger golog.Logger
}

// newGPUBackend builds the program and allocates every buffer on dev. It takes ownership of
// dev: on failure everything including the device is released before returning.
func newGPUBackend(cfg Config, width, height int, dev compute.Device, logger golog.Logger) (_ *gpuBackend, err error) {
	b := &gpuBackend{
		dev:    dev,
		geom:   newFilterGeometry(width, height, cfg.Subsample, cfg.FilterRadius),
		maxD:   cfg.MaxDisparity,
		batch:  utils.MinInt(cfg.GPUBatchPlanes, cfg.MaxDisparity),
		logger: logger,
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, b.Close())
		}
	}()

	if b.prog, err = dev.BuildProgram(stereoSource); err != nil {
		return nil, errors.Wrap(err, "cannot build stereo program")
	}
	if b.queue, err = dev.NewQueue(); err != nil {
		return nil, errors.Wrap(err, "cannot create command queue")
	}
	if b.ops, err = newDeviceOps(b.queue, b.prog); err != nil {
		return nil, errors.Wrap(err, "cannot create kernels")
	}
	if b.reg, err = compute.NewBufferRegistry(dev, gpuBufferSpecs(b.geom, b.maxD, b.batch)); err != nil {
		return nil, errors.Wrap(err, "cannot allocate device buffers")
	}
	for _, s := range sides {
		b.guides[s] = guideBuffers(b.reg, s)
	}
	b.scratch = guideScratchBuffers(b.reg)
	b.filter = filterBuffers(b.reg)
	b.det = make([]float32, b.geom.subPlaneSize())

	logger.Debugw("gpu backend ready", "device", dev.Name(), "buffers", b.reg.Len(),
		"device_bytes", b.reg.Bytes(), "batch_planes", b.batch)
	return b, nil
}

func (b *gpuBackend) Kind() BackendKind {
	return BackendGPU
}

func imageBuffer(s side) gpuBuffer {
	if s == leftSide {
		return bufLeftImage
	}
	return bufRightImage
}

func gradBuffer(s side) gpuBuffer {
	if s == leftSide {
		return bufLeftGrad
	}
	return bufRightGrad
}

func volumeBuffer(s side) gpuBuffer {
	if s == leftSide {
		return bufLeftVolume
	}
	return bufRightVolume
}

func disparityBuffer(s side) gpuBuffer {
	if s == leftSide {
		return bufLeftDisparity
	}
	return bufRightDisparity
}

func opposite(s side) side {
	return 1 - s
}

func (b *gpuBackend) BuildCostVolumes(ctx context.Context, f *Frame) error {
	for _, s := range sides {
		Preprocess(f.image(s), f.grad(s))
		if err := b.queue.WriteFloat32(ctx, b.reg.Get(imageBuffer(s)), f.image(s).Data()); err != nil {
			return errors.Wrapf(err, "cannot upload %s image", s)
		}
		if err := b.queue.WriteFloat32(ctx, b.reg.Get(gradBuffer(s)), f.grad(s).Data()); err != nil {
			return errors.Wrapf(err, "cannot upload %s gradient", s)
		}
	}
	for _, s := range sides {
		b.ops.enqueue(kernelBuildCost, compute.Range3D(f.Width, f.Height, b.maxD),
			compute.BufferArg(b.reg.Get(imageBuffer(s))),
			compute.BufferArg(b.reg.Get(imageBuffer(opposite(s)))),
			compute.BufferArg(b.reg.Get(gradBuffer(s))),
			compute.BufferArg(b.reg.Get(gradBuffer(opposite(s)))),
			compute.BufferArg(b.reg.Get(volumeBuffer(s))),
			compute.IntArg(f.Width), compute.IntArg(f.Height), compute.IntArg(direction(s)))
	}
	return b.finish(ctx, "build cost volumes")
}

// finish reports the first enqueue error of the last group, or else waits for the queue.
func (b *gpuBackend) finish(ctx context.Context, stage string) error {
	if err := b.ops.takeErr(); err != nil {
		return errors.Wrapf(err, "cannot enqueue %s", stage)
	}
	if err := b.queue.Finish(ctx); err != nil {
		return errors.Wrapf(err, "%s failed", stage)
	}
	return nil
}

func (b *gpuBackend) FilterCostVolumes(ctx context.Context, f *Frame) error {
	n := b.geom.planeSize()
	for _, s := range sides {
		g := &b.guides[s]
		b.ops.splitChannels(b.reg.Get(imageBuffer(s)), g.full[0], g.full[1], g.full[2], n)
		computeGuide[compute.Buffer](b.ops, b.geom, g, &b.scratch)
		if err := b.finish(ctx, s.String()+" guide statistics"); err != nil {
			return err
		}
		if err := b.queue.ReadFloat32(ctx, g.det, b.det); err != nil {
			return errors.Wrapf(err, "cannot read %s determinant", s)
		}
		if err := checkDeterminant(b.det, b.geom.subWidth); err != nil {
			return errors.Wrapf(err, "%s guide", s)
		}

		volume := b.reg.Get(volumeBuffer(s))
		for start := 0; start < b.maxD; start += b.batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			planes := utils.MinInt(b.batch, b.maxD-start)
			b.ops.copyBuffer(volume, start*n, b.filter.cost, 0, planes*n)
			filterStack[compute.Buffer](b.ops, b.geom, g, &b.filter, planes)
			b.ops.copyBuffer(b.filter.cost, 0, volume, start*n, planes*n)
			if err := b.finish(ctx, s.String()+" cost filter"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *gpuBackend) SelectDisparities(ctx context.Context, f *Frame) error {
	for _, s := range sides {
		b.ops.enqueue(kernelSelect, compute.Range2D(f.Width, f.Height),
			compute.BufferArg(b.reg.Get(volumeBuffer(s))),
			compute.BufferArg(b.reg.Get(disparityBuffer(s))),
			compute.IntArg(f.Width), compute.IntArg(f.Height), compute.IntArg(b.maxD))
	}
	if err := b.finish(ctx, "select disparities"); err != nil {
		return err
	}
	for _, s := range sides {
		if err := b.queue.ReadUint8(ctx, b.reg.Get(disparityBuffer(s)), f.disp(s).Data()); err != nil {
			return errors.Wrapf(err, "cannot read %s disparity", s)
		}
	}
	return nil
}

// downloadCostVolumes copies both device volumes into the host volumes of f.
func (b *gpuBackend) downloadCostVolumes(ctx context.Context, f *Frame) error {
	for _, s := range sides {
		if err := b.queue.ReadFloat32(ctx, b.reg.Get(volumeBuffer(s)), f.cost(s).Data()); err != nil {
			return errors.Wrapf(err, "cannot read %s volume", s)
		}
	}
	return nil
}

// Close releases the buffers, the queue, the program and the device. It is safe on a
// partially built backend.
func (b *gpuBackend) Close() error {
	var err error
	if b.reg != nil {
		err = multierr.Combine(err, b.reg.Release())
		b.reg = nil
	}
	if b.queue != nil {
		err = multierr.Combine(err, b.queue.Release())
		b.queue = nil
	}
	if b.prog != nil {
		err = multierr.Combine(err, b.prog.Release())
		b.prog = nil
	}
	if b.dev != nil {
		err = multierr.Combine(err, b.dev.Close())
		b.dev = nil
	}
	return err
}
