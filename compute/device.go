// Package compute models a GPU style compute device: device buffers, programs made of named
// kernels, and an in-order command queue that the host drains with Finish. Drivers register
// themselves by name; a Platform discovers them.
package compute

import (
	"context"
)

// BufferKind is the element type of a device buffer.
type BufferKind int

// Element types.
const (
	Float32 BufferKind = iota
	Uint8
)

func (k BufferKind) String() string {
	switch k {
	case Float32:
		return "float32"
	case Uint8:
		return "uint8"
	default:
		return "unknown"
	}
}

// ElemSize returns the size in bytes of one element.
func (k BufferKind) ElemSize() int {
	if k == Uint8 {
		return 1
	}
	return 4
}

// A Buffer is device memory holding Len() elements of Kind().
type Buffer interface {
	Kind() BufferKind
	Len() int
	Release() error
}

// A Kernel is one entry point of a built program.
type Kernel interface {
	Name() string
	Spec() KernelSpec
}

// A Program is a set of kernels built for one device.
type Program interface {
	Kernel(name string) (Kernel, error)
	Release() error
}

// A Queue executes commands strictly in submission order. Enqueue and Copy return once the
// command is accepted; execution errors surface from the next Finish. Reads and writes are
// blocking and imply a Finish of everything before them.
type Queue interface {
	Enqueue(k Kernel, global Range, args ...Arg) error
	Copy(src Buffer, srcOffset int, dst Buffer, dstOffset int, n int) error
	WriteFloat32(ctx context.Context, dst Buffer, src []float32) error
	ReadFloat32(ctx context.Context, src Buffer, dst []float32) error
	ReadUint8(ctx context.Context, src Buffer, dst []uint8) error
	Finish(ctx context.Context) error
	Release() error
}

// A Device allocates buffers, builds programs and creates queues.
type Device interface {
	Name() string
	NewBuffer(kind BufferKind, n int) (Buffer, error)
	BuildProgram(src Source) (Program, error)
	NewQueue() (Queue, error)
	Close() error
}
