// Package emulated implements a compute device in software. Kernels run on a host worker
// pool with the same dispatch, argument and queue semantics a hardware driver has, so code
// written against compute.Device can be exercised on any machine.
package emulated

import (
	"context"
	"sync"

	"github.com/edaniels/golog"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/utils"
)

// DriverName is the name the emulated device registers under.
const DriverName = "emulated"

func init() {
	compute.RegisterDevice(DriverName, compute.DeviceRegistration{
		Constructor: func(ctx context.Context, logger golog.Logger) (compute.Device, error) {
			return NewDevice(DriverName, Options{}, logger), nil
		},
	})
}

// Options tunes an emulated device.
type Options struct {
	// Workers is the number of host goroutines executing kernels. Zero uses utils.ParallelFactor.
	Workers int
	// MemoryLimit caps the bytes of live buffers. Zero means no limit.
	MemoryLimit int
}

// Device is a software compute device.
type Device struct {
	name   string
	opts   Options
	pool   *utils.WorkerPool
	logger golog.Logger

	mu     sync.Mutex
	used   int
	live   int
	closed bool
}

// NewDevice returns a running device.
func NewDevice(name string, opts Options, logger golog.Logger) *Device {
	pool := utils.NewWorkerPool(opts.Workers)
	logger.Debugw("emulated compute device started", "name", name, "workers", pool.Size(), "memory_limit", opts.MemoryLimit)
	return &Device{name: name, opts: opts, pool: pool, logger: logger}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// MemoryUsed returns the bytes held by live buffers.
func (d *Device) MemoryUsed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.used
}

// LiveBuffers returns the number of buffers not yet released.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// NewBuffer allocates a zeroed buffer of n elements.
func (d *Device) NewBuffer(kind compute.BufferKind, n int) (compute.Buffer, error) {
	if n <= 0 {
		return nil, compute.NewError("create buffer", compute.CodeInvalidBufferSize, "buffer length must be positive, got %d", n)
	}
	if kind != compute.Float32 && kind != compute.Uint8 {
		return nil, compute.NewError("create buffer", compute.CodeInvalidValue, "unsupported buffer kind %d", int(kind))
	}
	size := n * kind.ElemSize()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.NewError("create buffer", compute.CodeInvalidOperation, "device %s is closed", d.name)
	}
	if d.opts.MemoryLimit > 0 && d.used+size > d.opts.MemoryLimit {
		return nil, compute.NewError("create buffer", compute.CodeMemAllocationFailure,
			"allocating %d bytes would exceed the %d byte limit (%d in use)", size, d.opts.MemoryLimit, d.used)
	}
	d.used += size
	d.live++

	buf := &buffer{dev: d, kind: kind, n: n}
	if kind == compute.Float32 {
		buf.f32 = make([]float32, n)
	} else {
		buf.u8 = make([]uint8, n)
	}
	return buf, nil
}

func (d *Device) free(size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used -= size
	d.live--
}

// BuildProgram checks src and returns a program holding its kernels.
func (d *Device) BuildProgram(src compute.Source) (compute.Program, error) {
	if d.isClosed() {
		return nil, compute.NewError("build program "+src.Name, compute.CodeInvalidOperation, "device %s is closed", d.name)
	}
	prog := &program{dev: d, name: src.Name, kernels: make(map[string]*kernel, len(src.Kernels))}
	for _, spec := range src.Kernels {
		if spec.Name == "" || spec.Func == nil {
			return nil, compute.NewError("build program "+src.Name, compute.CodeInvalidProgram, "kernel %q has no name or body", spec.Name)
		}
		if _, dup := prog.kernels[spec.Name]; dup {
			return nil, compute.NewError("build program "+src.Name, compute.CodeInvalidProgram, "kernel %q defined twice", spec.Name)
		}
		prog.kernels[spec.Name] = &kernel{prog: prog, spec: spec}
	}
	return prog, nil
}

// NewQueue starts a command queue on the device.
func (d *Device) NewQueue() (compute.Queue, error) {
	if d.isClosed() {
		return nil, compute.NewError("create queue", compute.CodeInvalidOperation, "device %s is closed", d.name)
	}
	return newQueue(d), nil
}

// Close stops the kernel workers. Buffers still alive are reported but not an error.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	live := d.live
	d.mu.Unlock()

	if live > 0 {
		d.logger.Warnw("closing compute device with live buffers", "name", d.name, "buffers", live)
	}
	d.pool.Stop()
	return nil
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
