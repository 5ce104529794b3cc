package disparity

import (
	"go.viam.com/disparity/compute"
	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// Kernel names of the stereo program.
const (
	kernelSplitChannels = "split_channels"
	kernelSubsample     = "subsample"
	kernelBoxRows       = "box_rows"
	kernelBoxCols       = "box_cols"
	kernelMul           = "mul"
	kernelMulPlane      = "mul_plane"
	kernelDivPlane      = "div_plane"
	kernelSub           = "sub"
	kernelAdd           = "add"
	kernelAddConst      = "add_const"
	kernelUpsample      = "upsample"
	kernelBuildCost     = "build_cost"
	kernelSelect        = "select_disparity"
)

// elementsPerItem is how many elements one work item of an element-wise kernel handles.
const elementsPerItem = 1024

// Shorthands for kernel signatures.
const (
	floats = compute.ArgFloat32Buffer
	bytes  = compute.ArgUint8Buffer
	intArg = compute.ArgInt
	fltArg = compute.ArgFloat
)

// span returns the index range of element-wise work item id.
func span(args *compute.Args, nArg int, id compute.WorkItem) (int, int) {
	from := id.X * elementsPerItem
	return from, utils.MinInt(from+elementsPerItem, args.Int(nArg))
}

// stereoSource is the device program. Every kernel calls the same function the host path
// uses for the corresponding step.
var stereoSource = compute.Source{
	Name: "stereo",
	Kernels: []compute.KernelSpec{
		{
			// img, r, g, b, n
			Name: kernelSplitChannels,
			Args: []compute.ArgKind{floats, floats, floats, floats, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 4, id)
				rimage.SplitChannels(a.Float32(0), a.Float32(1), a.Float32(2), a.Float32(3), from, to)
			},
		},
		{
			// src, dst, width, height, s; global (reduced height, planes)
			Name: kernelSubsample,
			Args: []compute.ArgKind{floats, floats, intArg, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				width, height, s := a.Int(2), a.Int(3), a.Int(4)
				sw, sh := rimage.SubsampledSize(width, height, s)
				n, ns := width*height, sw*sh
				src := a.Float32(0)[id.Y*n : (id.Y+1)*n]
				dst := a.Float32(1)[id.Y*ns : (id.Y+1)*ns]
				rimage.DownsampleRow(src, width, height, dst, s, id.X)
			},
		},
		{
			// src, dst, width, r; global (rows of all planes)
			Name: kernelBoxRows,
			Args: []compute.ArgKind{floats, floats, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				width := a.Int(2)
				row := id.X * width
				rimage.BoxFilterRow(a.Float32(0)[row:row+width], a.Float32(1)[row:row+width], a.Int(3))
			},
		},
		{
			// src, dst, width, height, r; global (width, planes)
			Name: kernelBoxCols,
			Args: []compute.ArgKind{floats, floats, intArg, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				width, height := a.Int(2), a.Int(3)
				n := width * height
				src := a.Float32(0)[id.Y*n : (id.Y+1)*n]
				dst := a.Float32(1)[id.Y*n : (id.Y+1)*n]
				rimage.BoxFilterColumn(src, dst, width, height, id.X, a.Int(4))
			},
		},
		{
			// dst, a, b, n
			Name: kernelMul,
			Args: []compute.ArgKind{floats, floats, floats, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				mulRange(a.Float32(0), a.Float32(1), a.Float32(2), from, to)
			},
		},
		{
			// dst, stack, plane, n, planeSize
			Name: kernelMulPlane,
			Args: []compute.ArgKind{floats, floats, floats, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				mulPlaneRange(a.Float32(0), a.Float32(1), a.Float32(2), a.Int(4), from, to)
			},
		},
		{
			// dst, stack, plane, n, planeSize
			Name: kernelDivPlane,
			Args: []compute.ArgKind{floats, floats, floats, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				divPlaneRange(a.Float32(0), a.Float32(1), a.Float32(2), a.Int(4), from, to)
			},
		},
		{
			// dst, a, b, n
			Name: kernelSub,
			Args: []compute.ArgKind{floats, floats, floats, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				subRange(a.Float32(0), a.Float32(1), a.Float32(2), from, to)
			},
		},
		{
			// dst, a, b, n
			Name: kernelAdd,
			Args: []compute.ArgKind{floats, floats, floats, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				addRange(a.Float32(0), a.Float32(1), a.Float32(2), from, to)
			},
		},
		{
			// dst, a, c, n
			Name: kernelAddConst,
			Args: []compute.ArgKind{floats, floats, fltArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				from, to := span(a, 3, id)
				addConstRange(a.Float32(0), a.Float32(1), a.Float(2), from, to)
			},
		},
		{
			// src, dst, srcWidth, srcHeight, width, height, s; global (height, planes)
			Name: kernelUpsample,
			Args: []compute.ArgKind{floats, floats, intArg, intArg, intArg, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				sw, sh, width, height := a.Int(2), a.Int(3), a.Int(4), a.Int(5)
				n, ns := width*height, sw*sh
				src := a.Float32(0)[id.Y*ns : (id.Y+1)*ns]
				dst := a.Float32(1)[id.Y*n : (id.Y+1)*n]
				rimage.UpsampleRow(src, sw, sh, dst, width, a.Int(6), id.X)
			},
		},
		{
			// base, other, baseGrad, otherGrad, volume, width, height, direction; global (x, y, d)
			Name: kernelBuildCost,
			Args: []compute.ArgKind{floats, floats, floats, floats, floats, intArg, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				width, height := a.Int(5), a.Int(6)
				c := pixelCost(a.Float32(0), a.Float32(1), a.Float32(2), a.Float32(3), width, id.X, id.Y, id.Z, a.Int(7))
				a.Float32(4)[id.Z*width*height+id.Y*width+id.X] = c
			},
		},
		{
			// volume, disparity, width, height, maxDisparity; global (x, y)
			Name: kernelSelect,
			Args: []compute.ArgKind{floats, bytes, intArg, intArg, intArg},
			Func: func(a *compute.Args, id compute.WorkItem) {
				width, height := a.Int(2), a.Int(3)
				i := id.Y*width + id.X
				a.Uint8(1)[i] = selectPixel(a.Float32(0), width*height, i, a.Int(4))
			},
		},
	},
}

// deviceOps enqueues planeOps as kernels. The first failure is kept and every later call
// is dropped; callers check err after a group of steps.
type deviceOps struct {
	q       compute.Queue
	kernels map[string]compute.Kernel
	err     error
}

func newDeviceOps(q compute.Queue, prog compute.Program) (*deviceOps, error) {
	ops := &deviceOps{q: q, kernels: map[string]compute.Kernel{}}
	for _, spec := range stereoSource.Kernels {
		k, err := prog.Kernel(spec.Name)
		if err != nil {
			return nil, err
		}
		ops.kernels[spec.Name] = k
	}
	return ops, nil
}

func (o *deviceOps) enqueue(name string, global compute.Range, args ...compute.Arg) {
	if o.err != nil {
		return
	}
	o.err = o.q.Enqueue(o.kernels[name], global, args...)
}

func (o *deviceOps) copyBuffer(src compute.Buffer, srcOffset int, dst compute.Buffer, dstOffset, n int) {
	if o.err != nil {
		return
	}
	o.err = o.q.Copy(src, srcOffset, dst, dstOffset, n)
}

// takeErr returns and clears the recorded error.
func (o *deviceOps) takeErr() error {
	err := o.err
	o.err = nil
	return err
}

func elementRange(n int) compute.Range {
	return compute.Range1D(utils.CeilDiv(n, elementsPerItem))
}

func (o *deviceOps) binary(name string, dst, a, b compute.Buffer, n int) {
	o.enqueue(name, elementRange(n), compute.BufferArg(dst), compute.BufferArg(a), compute.BufferArg(b), compute.IntArg(n))
}

func (o *deviceOps) mul(dst, a, b compute.Buffer, n int) {
	o.binary(kernelMul, dst, a, b, n)
}

func (o *deviceOps) sub(dst, a, b compute.Buffer, n int) {
	o.binary(kernelSub, dst, a, b, n)
}

func (o *deviceOps) add(dst, a, b compute.Buffer, n int) {
	o.binary(kernelAdd, dst, a, b, n)
}

func (o *deviceOps) mulPlane(dst, stack, plane compute.Buffer, n, planeSize int) {
	o.enqueue(kernelMulPlane, elementRange(n),
		compute.BufferArg(dst), compute.BufferArg(stack), compute.BufferArg(plane), compute.IntArg(n), compute.IntArg(planeSize))
}

func (o *deviceOps) divPlane(dst, stack, plane compute.Buffer, n, planeSize int) {
	o.enqueue(kernelDivPlane, elementRange(n),
		compute.BufferArg(dst), compute.BufferArg(stack), compute.BufferArg(plane), compute.IntArg(n), compute.IntArg(planeSize))
}

func (o *deviceOps) addConst(dst, a compute.Buffer, c float32, n int) {
	o.enqueue(kernelAddConst, elementRange(n), compute.BufferArg(dst), compute.BufferArg(a), compute.FloatArg(c), compute.IntArg(n))
}

func (o *deviceOps) box(dst, src, scratch compute.Buffer, width, height, planes, r int) {
	o.enqueue(kernelBoxRows, compute.Range1D(height*planes),
		compute.BufferArg(src), compute.BufferArg(scratch), compute.IntArg(width), compute.IntArg(r))
	o.enqueue(kernelBoxCols, compute.Range2D(width, planes),
		compute.BufferArg(scratch), compute.BufferArg(dst), compute.IntArg(width), compute.IntArg(height), compute.IntArg(r))
}

func (o *deviceOps) downsample(dst, src compute.Buffer, width, height, planes, s int) {
	_, sh := rimage.SubsampledSize(width, height, s)
	o.enqueue(kernelSubsample, compute.Range2D(sh, planes),
		compute.BufferArg(src), compute.BufferArg(dst), compute.IntArg(width), compute.IntArg(height), compute.IntArg(s))
}

func (o *deviceOps) upsample(dst, src compute.Buffer, srcWidth, srcHeight, width, height, planes, s int) {
	o.enqueue(kernelUpsample, compute.Range2D(height, planes),
		compute.BufferArg(src), compute.BufferArg(dst), compute.IntArg(srcWidth), compute.IntArg(srcHeight),
		compute.IntArg(width), compute.IntArg(height), compute.IntArg(s))
}

func (o *deviceOps) splitChannels(img, r, g, b compute.Buffer, n int) {
	o.enqueue(kernelSplitChannels, elementRange(n),
		compute.BufferArg(img), compute.BufferArg(r), compute.BufferArg(g), compute.BufferArg(b), compute.IntArg(n))
}
