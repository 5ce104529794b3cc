// Package testutils provides synthetic inputs for stereo tests.
package testutils

import (
	"math/rand"

	"go.viam.com/disparity/rimage"
)

// RandomColorImage returns an image of independent uniform random colors.
func RandomColorImage(width, height int, seed int64) *rimage.ColorImage {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	img := rimage.NewColorImage(width, height)
	data := img.Data()
	for i := range data {
		data[i] = rng.Float32()
	}
	return img
}

// ShiftedStereoPair returns a random left image and a right image holding the same scene
// moved by d0 pixels, so right(x) = left(x+d0). Columns of the right image with no source
// pixel get fresh random colors.
func ShiftedStereoPair(width, height, d0 int, seed int64) (left, right *rimage.ColorImage) {
	left = RandomColorImage(width, height, seed)
	right = RandomColorImage(width, height, seed+1)
	for y := 0; y < height; y++ {
		for x := 0; x+d0 < width; x++ {
			r, g, b := left.Get(x+d0, y)
			right.Set(x, y, r, g, b)
		}
	}
	return left, right
}

// UniformColorImage returns an image filled with one color.
func UniformColorImage(width, height int, r, g, b float32) *rimage.ColorImage {
	img := rimage.NewColorImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, r, g, b)
		}
	}
	return img
}
