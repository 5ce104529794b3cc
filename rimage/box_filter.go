package rimage

import "go.viam.com/disparity/utils"

// BoxFilterRow writes the mean of the (2r+1)-wide window centred on every sample of one row
// of src into dst. Samples past either end repeat the edge sample, so every window holds
// exactly 2r+1 samples and the scale is always 1/(2r+1). src and dst must not overlap.
func BoxFilterRow(src, dst []float32, r int) {
	last := len(src) - 1
	scale := 1 / float64(2*r+1)
	sum := 0.0
	for k := -r; k <= r; k++ {
		sum += float64(src[utils.ClampInt(k, 0, last)])
	}
	for x := 0; x <= last; x++ {
		dst[x] = float32(sum * scale)
		sum += float64(src[utils.MinInt(x+r+1, last)]) - float64(src[utils.MaxInt(x-r, 0)])
	}
}

// BoxFilterColumn is BoxFilterRow for column x of a width x height plane stored row by row.
func BoxFilterColumn(src, dst []float32, width, height, x, r int) {
	last := height - 1
	scale := 1 / float64(2*r+1)
	sum := 0.0
	for k := -r; k <= r; k++ {
		sum += float64(src[utils.ClampInt(k, 0, last)*width+x])
	}
	for y := 0; y <= last; y++ {
		dst[y*width+x] = float32(sum * scale)
		sum += float64(src[utils.MinInt(y+r+1, last)*width+x]) - float64(src[utils.MaxInt(y-r, 0)*width+x])
	}
}

// BoxFilter computes the separable windowed mean of a plane: rows of src into scratch, then
// columns of scratch into dst. All three slices hold width*height samples; src may equal dst.
func BoxFilter(src, dst, scratch []float32, width, height, r int) {
	for y := 0; y < height; y++ {
		BoxFilterRow(src[y*width:(y+1)*width], scratch[y*width:(y+1)*width], r)
	}
	for x := 0; x < width; x++ {
		BoxFilterColumn(scratch, dst, width, height, x, r)
	}
}

// BoxFilterStack applies BoxFilter to each of the planes stored back to back in src.
func BoxFilterStack(src, dst, scratch []float32, width, height, planes, r int) {
	n := width * height
	for p := 0; p < planes; p++ {
		BoxFilter(src[p*n:(p+1)*n], dst[p*n:(p+1)*n], scratch[:n], width, height, r)
	}
}
