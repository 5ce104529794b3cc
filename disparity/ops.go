package disparity

import (
	"go.viam.com/disparity/rimage"
)

// The element-wise steps of the guided filter. Every function handles the index range
// [from, to) so the host loops and the device kernels share one definition of each float32
// operation.

func mulRange(dst, a, b []float32, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = a[i] * b[i]
	}
}

// mulPlaneRange multiplies a stack of planes by one plane of planeSize samples.
func mulPlaneRange(dst, stack, plane []float32, planeSize, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = stack[i] * plane[i%planeSize]
	}
}

func divPlaneRange(dst, stack, plane []float32, planeSize, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = stack[i] / plane[i%planeSize]
	}
}

func subRange(dst, a, b []float32, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = a[i] - b[i]
	}
}

func addRange(dst, a, b []float32, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = a[i] + b[i]
	}
}

func addConstRange(dst, a []float32, c float32, from, to int) {
	for i := from; i < to; i++ {
		dst[i] = a[i] + c
	}
}

// planeOps runs the steps of the guided filter on stacks of planes held in storage of type B.
// n counts elements, planeSize the elements of one plane of a stack.
type planeOps[B any] interface {
	mul(dst, a, b B, n int)
	mulPlane(dst, stack, plane B, n, planeSize int)
	divPlane(dst, stack, plane B, n, planeSize int)
	sub(dst, a, b B, n int)
	add(dst, a, b B, n int)
	addConst(dst, a B, c float32, n int)
	box(dst, src, scratch B, width, height, planes, r int)
	downsample(dst, src B, width, height, planes, s int)
	upsample(dst, src B, srcWidth, srcHeight, width, height, planes, s int)
}

// hostOps runs planeOps directly on host slices.
type hostOps struct{}

func (hostOps) mul(dst, a, b []float32, n int) {
	mulRange(dst, a, b, 0, n)
}

func (hostOps) mulPlane(dst, stack, plane []float32, n, planeSize int) {
	mulPlaneRange(dst, stack, plane, planeSize, 0, n)
}

func (hostOps) divPlane(dst, stack, plane []float32, n, planeSize int) {
	divPlaneRange(dst, stack, plane, planeSize, 0, n)
}

func (hostOps) sub(dst, a, b []float32, n int) {
	subRange(dst, a, b, 0, n)
}

func (hostOps) add(dst, a, b []float32, n int) {
	addRange(dst, a, b, 0, n)
}

func (hostOps) addConst(dst, a []float32, c float32, n int) {
	addConstRange(dst, a, c, 0, n)
}

func (hostOps) box(dst, src, scratch []float32, width, height, planes, r int) {
	rimage.BoxFilterStack(src, dst, scratch, width, height, planes, r)
}

func (hostOps) downsample(dst, src []float32, width, height, planes, s int) {
	sw, sh := rimage.SubsampledSize(width, height, s)
	n, ns := width*height, sw*sh
	for p := 0; p < planes; p++ {
		rimage.Downsample(src[p*n:(p+1)*n], width, height, dst[p*ns:(p+1)*ns], s)
	}
}

func (hostOps) upsample(dst, src []float32, srcWidth, srcHeight, width, height, planes, s int) {
	n, ns := width*height, srcWidth*srcHeight
	for p := 0; p < planes; p++ {
		rimage.Upsample(src[p*ns:(p+1)*ns], srcWidth, srcHeight, dst[p*n:(p+1)*n], width, height, s)
	}
}
