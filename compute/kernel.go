package compute

import "fmt"

// ArgKind is the declared type of a kernel argument.
type ArgKind int

// Argument kinds.
const (
	ArgFloat32Buffer ArgKind = iota
	ArgUint8Buffer
	ArgInt
	ArgFloat
)

func (k ArgKind) String() string {
	switch k {
	case ArgFloat32Buffer:
		return "float32 buffer"
	case ArgUint8Buffer:
		return "uint8 buffer"
	case ArgInt:
		return "int"
	case ArgFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Arg is one value bound to a kernel argument slot.
type Arg struct {
	Kind   ArgKind
	Buffer Buffer
	Int    int
	Float  float32
}

// BufferArg binds a buffer; its kind decides the argument kind.
func BufferArg(b Buffer) Arg {
	kind := ArgFloat32Buffer
	if b != nil && b.Kind() == Uint8 {
		kind = ArgUint8Buffer
	}
	return Arg{Kind: kind, Buffer: b}
}

// IntArg binds an integer scalar.
func IntArg(v int) Arg {
	return Arg{Kind: ArgInt, Int: v}
}

// FloatArg binds a float scalar.
func FloatArg(v float32) Arg {
	return Arg{Kind: ArgFloat, Float: v}
}

// WorkItem is the global id of one kernel invocation.
type WorkItem struct {
	X, Y, Z int
}

// Range is the global work size of a dispatch. Unused dimensions are 1.
type Range struct {
	X, Y, Z int
}

// Range1D returns a one dimensional range.
func Range1D(x int) Range {
	return Range{x, 1, 1}
}

// Range2D returns a two dimensional range.
func Range2D(x, y int) Range {
	return Range{x, y, 1}
}

// Range3D returns a three dimensional range.
func Range3D(x, y, z int) Range {
	return Range{x, y, z}
}

// Size returns the number of work items.
func (r Range) Size() int {
	return r.X * r.Y * r.Z
}

// Valid reports whether every dimension is positive.
func (r Range) Valid() bool {
	return r.X > 0 && r.Y > 0 && r.Z > 0
}

// Item maps a linear index onto the range, X fastest.
func (r Range) Item(i int) WorkItem {
	return WorkItem{X: i % r.X, Y: (i / r.X) % r.Y, Z: i / (r.X * r.Y)}
}

func (r Range) String() string {
	return fmt.Sprintf("[%d %d %d]", r.X, r.Y, r.Z)
}

// Args gives a running kernel access to its bound arguments, resolved to host visible
// slices by the driver.
type Args struct {
	float32s [][]float32
	uint8s   [][]uint8
	ints     []int
	floats   []float32
}

// NewArgs returns storage for n argument slots.
func NewArgs(n int) *Args {
	return &Args{
		float32s: make([][]float32, n),
		uint8s:   make([][]uint8, n),
		ints:     make([]int, n),
		floats:   make([]float32, n),
	}
}

// SetFloat32 binds slot i to a float32 slice. Drivers call this.
func (a *Args) SetFloat32(i int, data []float32) {
	a.float32s[i] = data
}

// SetUint8 binds slot i to a uint8 slice.
func (a *Args) SetUint8(i int, data []uint8) {
	a.uint8s[i] = data
}

// SetInt binds slot i to an integer.
func (a *Args) SetInt(i, v int) {
	a.ints[i] = v
}

// SetFloat binds slot i to a float.
func (a *Args) SetFloat(i int, v float32) {
	a.floats[i] = v
}

// Float32 returns the float32 buffer in slot i.
func (a *Args) Float32(i int) []float32 {
	return a.float32s[i]
}

// Uint8 returns the uint8 buffer in slot i.
func (a *Args) Uint8(i int) []uint8 {
	return a.uint8s[i]
}

// Int returns the integer in slot i.
func (a *Args) Int(i int) int {
	return a.ints[i]
}

// Float returns the float in slot i.
func (a *Args) Float(i int) float32 {
	return a.floats[i]
}

// KernelFunc is the body of a kernel, run once per work item.
type KernelFunc func(args *Args, id WorkItem)

// KernelSpec declares a kernel: its name, argument signature and body.
type KernelSpec struct {
	Name string
	Args []ArgKind
	Func KernelFunc
}

// Source is the source of a program: an ordered list of kernels.
type Source struct {
	Name    string
	Kernels []KernelSpec
}

// CheckArgs validates bound arguments against the kernel signature.
func (s KernelSpec) CheckArgs(args []Arg) error {
	if len(args) != len(s.Args) {
		return NewError("enqueue "+s.Name, CodeInvalidKernelArgs, "expected %d args but got %d", len(s.Args), len(args))
	}
	for i, arg := range args {
		if arg.Kind != s.Args[i] {
			return NewError("enqueue "+s.Name, CodeInvalidKernelArgs, "arg %d must be %s but got %s", i, s.Args[i], arg.Kind)
		}
		if (arg.Kind == ArgFloat32Buffer || arg.Kind == ArgUint8Buffer) && arg.Buffer == nil {
			return NewError("enqueue "+s.Name, CodeInvalidMemObject, "arg %d is a nil buffer", i)
		}
	}
	return nil
}
