package emulated

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/utils"
)

// queueDepth is the number of commands that may be pending before Enqueue blocks.
const queueDepth = 256

type command struct {
	name string
	run  func(ctx context.Context) error
	// barrier is closed after the command ran or was skipped.
	barrier chan struct{}
}

// queue runs commands on one goroutine in submission order. The first failing command
// poisons the queue: later commands are skipped until Finish reports and clears the error.
type queue struct {
	dev     *Device
	cmds    chan command
	workers *utils.StoppableWorkers

	mu       sync.Mutex
	err      error
	released bool
}

func newQueue(dev *Device) *queue {
	q := &queue{dev: dev, cmds: make(chan command, queueDepth)}
	q.workers = utils.NewStoppableWorkers(q.loop)
	return q
}

func (q *queue) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-q.cmds:
			if cmd.run != nil && q.firstError() == nil {
				if err := cmd.run(ctx); err != nil {
					q.mu.Lock()
					if q.err == nil {
						q.err = err
					}
					q.mu.Unlock()
				}
			}
			if cmd.barrier != nil {
				close(cmd.barrier)
			}
		}
	}
}

func (q *queue) firstError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *queue) submit(cmd command) error {
	q.mu.Lock()
	released := q.released
	q.mu.Unlock()
	if released {
		return compute.NewError(cmd.name, compute.CodeInvalidOperation, "queue was released")
	}
	select {
	case q.cmds <- cmd:
		return nil
	case <-q.workers.Context().Done():
		return compute.NewError(cmd.name, compute.CodeInvalidOperation, "queue was released")
	}
}

func (q *queue) Enqueue(k compute.Kernel, global compute.Range, args ...compute.Arg) error {
	kern, ok := k.(*kernel)
	if !ok || kern == nil || kern.prog.dev != q.dev {
		return compute.NewError("enqueue", compute.CodeInvalidKernelName, "kernel %T was not built for this device", k)
	}
	op := "enqueue " + kern.spec.Name
	if !global.Valid() {
		return compute.NewError(op, compute.CodeInvalidWorkSize, "invalid global work size %s", global)
	}
	if err := kern.spec.CheckArgs(args); err != nil {
		return err
	}

	bound := compute.NewArgs(len(args))
	for i, arg := range args {
		switch arg.Kind {
		case compute.ArgFloat32Buffer, compute.ArgUint8Buffer:
			buf, err := asBuffer(q.dev, arg.Buffer, op)
			if err != nil {
				return err
			}
			if buf.kind == compute.Float32 {
				bound.SetFloat32(i, buf.f32)
			} else {
				bound.SetUint8(i, buf.u8)
			}
		case compute.ArgInt:
			bound.SetInt(i, arg.Int)
		case compute.ArgFloat:
			bound.SetFloat(i, arg.Float)
		}
	}

	body := kern.spec.Func
	return q.submit(command{
		name: op,
		run: func(ctx context.Context) error {
			err := q.dev.pool.ParallelForRange(ctx, global.Size(), func(_, from, to int) {
				for i := from; i < to; i++ {
					body(bound, global.Item(i))
				}
			})
			if err != nil {
				return &compute.Error{Op: op, Code: compute.CodeExecutionFailure, Err: err}
			}
			return nil
		},
	})
}

func (q *queue) Copy(src compute.Buffer, srcOffset int, dst compute.Buffer, dstOffset, n int) error {
	const op = "copy buffer"
	from, err := asBuffer(q.dev, src, op)
	if err != nil {
		return err
	}
	to, err := asBuffer(q.dev, dst, op)
	if err != nil {
		return err
	}
	if from.kind != to.kind {
		return compute.NewError(op, compute.CodeInvalidValue, "cannot copy %s into %s", from.kind, to.kind)
	}
	if n < 0 || srcOffset < 0 || dstOffset < 0 || srcOffset+n > from.n || dstOffset+n > to.n {
		return compute.NewError(op, compute.CodeInvalidValue,
			"region of %d elements at %d/%d out of bounds for %d/%d", n, srcOffset, dstOffset, from.n, to.n)
	}
	srcF32, dstF32, srcU8, dstU8 := from.f32, to.f32, from.u8, to.u8
	return q.submit(command{
		name: op,
		run: func(context.Context) error {
			if from.kind == compute.Float32 {
				copy(dstF32[dstOffset:dstOffset+n], srcF32[srcOffset:srcOffset+n])
			} else {
				copy(dstU8[dstOffset:dstOffset+n], srcU8[srcOffset:srcOffset+n])
			}
			return nil
		},
	})
}

func (q *queue) WriteFloat32(ctx context.Context, dst compute.Buffer, src []float32) error {
	const op = "write buffer"
	to, err := asBuffer(q.dev, dst, op)
	if err != nil {
		return err
	}
	if to.kind != compute.Float32 {
		return compute.NewError(op, compute.CodeInvalidValue, "cannot write float32 data into a %s buffer", to.kind)
	}
	if len(src) > to.n {
		return compute.NewError(op, compute.CodeInvalidBufferSize, "writing %d elements into a buffer of %d", len(src), to.n)
	}
	data := to.f32
	if err := q.submit(command{name: op, run: func(context.Context) error {
		copy(data, src)
		return nil
	}}); err != nil {
		return err
	}
	return q.Finish(ctx)
}

func (q *queue) ReadFloat32(ctx context.Context, src compute.Buffer, dst []float32) error {
	const op = "read buffer"
	from, err := asBuffer(q.dev, src, op)
	if err != nil {
		return err
	}
	if from.kind != compute.Float32 {
		return compute.NewError(op, compute.CodeInvalidValue, "cannot read float32 data from a %s buffer", from.kind)
	}
	if len(dst) > from.n {
		return compute.NewError(op, compute.CodeInvalidBufferSize, "reading %d elements from a buffer of %d", len(dst), from.n)
	}
	data := from.f32
	if err := q.submit(command{name: op, run: func(context.Context) error {
		copy(dst, data)
		return nil
	}}); err != nil {
		return err
	}
	return q.Finish(ctx)
}

func (q *queue) ReadUint8(ctx context.Context, src compute.Buffer, dst []uint8) error {
	const op = "read buffer"
	from, err := asBuffer(q.dev, src, op)
	if err != nil {
		return err
	}
	if from.kind != compute.Uint8 {
		return compute.NewError(op, compute.CodeInvalidValue, "cannot read uint8 data from a %s buffer", from.kind)
	}
	if len(dst) > from.n {
		return compute.NewError(op, compute.CodeInvalidBufferSize, "reading %d elements from a buffer of %d", len(dst), from.n)
	}
	data := from.u8
	if err := q.submit(command{name: op, run: func(context.Context) error {
		copy(dst, data)
		return nil
	}}); err != nil {
		return err
	}
	return q.Finish(ctx)
}

// Finish waits for every submitted command. It returns the first execution error since the
// previous Finish and clears it.
func (q *queue) Finish(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := q.submit(command{name: "finish", barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for compute queue")
	case <-barrier:
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

func (q *queue) Release() error {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return nil
	}
	q.released = true
	q.mu.Unlock()
	q.workers.Stop()
	return nil
}
