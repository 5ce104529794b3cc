package emulated

import (
	"go.uber.org/atomic"

	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/utils"
)

type buffer struct {
	dev      *Device
	kind     compute.BufferKind
	n        int
	f32      []float32
	u8       []uint8
	released atomic.Bool
}

func (b *buffer) Kind() compute.BufferKind {
	return b.kind
}

func (b *buffer) Len() int {
	return b.n
}

func (b *buffer) Release() error {
	if b.released.Swap(true) {
		return compute.NewError("release buffer", compute.CodeInvalidMemObject, "buffer already released")
	}
	b.dev.free(b.n * b.kind.ElemSize())
	b.f32 = nil
	b.u8 = nil
	return nil
}

// asBuffer checks that buf is a live buffer of dev.
func asBuffer(dev *Device, buf compute.Buffer, op string) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b == nil {
		return nil, &compute.Error{Op: op, Code: compute.CodeInvalidMemObject, Err: utils.NewUnexpectedTypeError(b, buf)}
	}
	if b.dev != dev {
		return nil, compute.NewError(op, compute.CodeInvalidMemObject, "buffer belongs to device %s", b.dev.name)
	}
	if b.released.Load() {
		return nil, compute.NewError(op, compute.CodeInvalidMemObject, "buffer was released")
	}
	return b, nil
}
