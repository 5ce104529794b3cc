package rimage

import (
	"math"

	"go.viam.com/disparity/utils"
)

// SubsampledSize returns the size of a width x height plane reduced by factor s, rounding up
// so the last partial block is kept.
func SubsampledSize(width, height, s int) (int, int) {
	return utils.CeilDiv(width, s), utils.CeilDiv(height, s)
}

// DownsampleRow writes row ys of the s x s block average of src into dst. src is
// width x height, dst is the SubsampledSize. Partial blocks at the right and bottom edges
// average only the samples they cover. With s == 1 the output equals the input exactly.
func DownsampleRow(src []float32, width, height int, dst []float32, s, ys int) {
	dstWidth := utils.CeilDiv(width, s)
	y0, y1 := ys*s, utils.MinInt((ys+1)*s, height)
	for xs := 0; xs < dstWidth; xs++ {
		x0, x1 := xs*s, utils.MinInt((xs+1)*s, width)
		sum := 0.0
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				sum += float64(src[y*width+x])
			}
		}
		dst[ys*dstWidth+xs] = float32(sum / float64((y1-y0)*(x1-x0)))
	}
}

// Downsample reduces a whole plane with DownsampleRow.
func Downsample(src []float32, width, height int, dst []float32, s int) {
	_, dstHeight := SubsampledSize(width, height, s)
	for ys := 0; ys < dstHeight; ys++ {
		DownsampleRow(src, width, height, dst, s, ys)
	}
}

// samplePos maps full resolution coordinate v onto a reduced axis of length n, returning the
// two neighbouring samples and the interpolation weight of the second one.
func samplePos(v, s, n int) (int, int, float32) {
	f := (float64(v)+0.5)/float64(s) - 0.5
	if f < 0 {
		f = 0
	}
	if limit := float64(n - 1); f > limit {
		f = limit
	}
	i0 := int(math.Floor(f))
	i1 := utils.MinInt(i0+1, n-1)
	return i0, i1, float32(f - float64(i0))
}

func lerp(a, b, t float32) float32 {
	return a + float32((b-a)*t)
}

// UpsampleRow writes row y of the bilinear enlargement of src (srcWidth x srcHeight, reduced
// by s) into dst, which is width wide. With s == 1 the output equals the input exactly.
func UpsampleRow(src []float32, srcWidth, srcHeight int, dst []float32, width, s, y int) {
	y0, y1, ty := samplePos(y, s, srcHeight)
	top := src[y0*srcWidth : (y0+1)*srcWidth]
	bottom := src[y1*srcWidth : (y1+1)*srcWidth]
	for x := 0; x < width; x++ {
		x0, x1, tx := samplePos(x, s, srcWidth)
		dst[y*width+x] = lerp(lerp(top[x0], top[x1], tx), lerp(bottom[x0], bottom[x1], tx), ty)
	}
}

// Upsample enlarges a whole plane with UpsampleRow.
func Upsample(src []float32, srcWidth, srcHeight int, dst []float32, width, height, s int) {
	for y := 0; y < height; y++ {
		UpsampleRow(src, srcWidth, srcHeight, dst, width, s, y)
	}
}
