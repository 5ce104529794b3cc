package rimage

import "go.viam.com/disparity/utils"

// GradientOffset is added to every horizontal derivative so a flat region reads 0.5.
const GradientOffset = 0.5

// Luma returns the Rec. 601 luminance of a normalized color.
func Luma(r, g, b float32) float32 {
	return 0.299*r + 0.587*g + 0.114*b
}

// HorizontalGradientRow writes the central horizontal derivative of the luma of row y plus
// GradientOffset into dst (width samples). The first and last columns reuse the edge sample
// as their missing neighbour.
func HorizontalGradientRow(img *ColorImage, y int, dst []float32) {
	last := img.width - 1
	lumaAt := func(x int) float32 {
		r, g, b := img.Get(utils.ClampInt(x, 0, last), y)
		return Luma(r, g, b)
	}
	for x := 0; x <= last; x++ {
		dst[x] = 0.5*(lumaAt(x+1)-lumaAt(x-1)) + GradientOffset
	}
}

// HorizontalGradient computes HorizontalGradientRow for every row into dst.
func HorizontalGradient(img *ColorImage, dst *Plane) {
	for y := 0; y < img.height; y++ {
		HorizontalGradientRow(img, y, dst.data[y*dst.width:(y+1)*dst.width])
	}
}
