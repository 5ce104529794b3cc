package compute

import (
	"fmt"

	"go.uber.org/multierr"
)

// BufferSpec declares one named buffer of a BufferRegistry.
type BufferSpec[K ~int] struct {
	ID   K
	Name string
	Kind BufferKind
	Len  int
}

// BufferRegistry owns a fixed set of device buffers keyed by a typed id. All buffers are
// allocated up front from a declarative spec list and released together.
type BufferRegistry[K ~int] struct {
	buffers map[K]Buffer
	names   map[K]string
	order   []K
	bytes   int
}

// NewBufferRegistry allocates every buffer in specs. If any allocation fails, the buffers
// already allocated are released and the error is returned together with the name of the
// buffer that failed.
func NewBufferRegistry[K ~int](dev Device, specs []BufferSpec[K]) (*BufferRegistry[K], error) {
	reg := &BufferRegistry[K]{
		buffers: make(map[K]Buffer, len(specs)),
		names:   make(map[K]string, len(specs)),
	}
	for _, spec := range specs {
		if _, dup := reg.buffers[spec.ID]; dup {
			err := NewError("allocate "+spec.Name, CodeInvalidValue, "buffer id %d declared twice", int(spec.ID))
			return nil, multierr.Combine(err, reg.Release())
		}
		buf, err := dev.NewBuffer(spec.Kind, spec.Len)
		if err != nil {
			err = &Error{Op: "allocate " + spec.Name, Code: CodeOf(err), Err: err}
			return nil, multierr.Combine(err, reg.Release())
		}
		reg.buffers[spec.ID] = buf
		reg.names[spec.ID] = spec.Name
		reg.order = append(reg.order, spec.ID)
		reg.bytes += spec.Len * spec.Kind.ElemSize()
	}
	return reg, nil
}

// Get returns the buffer for id. Asking for an undeclared id is a programming error and panics.
func (r *BufferRegistry[K]) Get(id K) Buffer {
	buf, ok := r.buffers[id]
	if !ok {
		panic(fmt.Sprintf("no buffer registered for id %d", int(id)))
	}
	return buf
}

// Name returns the declared name of id.
func (r *BufferRegistry[K]) Name(id K) string {
	return r.names[id]
}

// Len returns the number of buffers held.
func (r *BufferRegistry[K]) Len() int {
	return len(r.buffers)
}

// Bytes returns the total size of all buffers.
func (r *BufferRegistry[K]) Bytes() int {
	return r.bytes
}

// Release frees every buffer in reverse allocation order. It is safe to call more than once.
func (r *BufferRegistry[K]) Release() error {
	var err error
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		if relErr := r.buffers[id].Release(); relErr != nil {
			err = multierr.Combine(err, &Error{Op: "release " + r.names[id], Code: CodeOf(relErr), Err: relErr})
		}
		delete(r.buffers, id)
	}
	r.order = nil
	r.bytes = 0
	return err
}
