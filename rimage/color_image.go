package rimage

import (
	"image"
	"image/color"
)

// ColorImage is an RGB image of normalized float32 samples in [0, 1]. Samples are interleaved
// (r, g, b, r, g, b, ...) row by row, which is also the layout uploaded to compute devices.
type ColorImage struct {
	width, height int
	data          []float32
}

// NewColorImage returns a black image of the given size.
func NewColorImage(width, height int) *ColorImage {
	return &ColorImage{
		width:  width,
		height: height,
		data:   make([]float32, width*height*3),
	}
}

// NewColorImageFromStdImage converts any image.Image into a normalized ColorImage. Alpha is
// ignored. The result always starts at (0, 0) regardless of img.Bounds().Min.
func NewColorImageFromStdImage(img image.Image) *ColorImage {
	bounds := img.Bounds()
	out := NewColorImage(bounds.Dx(), bounds.Dy())
	const maxValue = float32(0xffff)
	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Set(x, y, float32(r)/maxValue, float32(g)/maxValue, float32(b)/maxValue)
		}
	}
	return out
}

// Width returns the number of columns.
func (i *ColorImage) Width() int {
	return i.width
}

// Height returns the number of rows.
func (i *ColorImage) Height() int {
	return i.height
}

// Bounds returns the image rectangle.
func (i *ColorImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// In reports whether (x, y) lies inside the image.
func (i *ColorImage) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// Data returns the interleaved backing slice.
func (i *ColorImage) Data() []float32 {
	return i.data
}

func (i *ColorImage) kxy(x, y int) int {
	return 3 * ((y * i.width) + x)
}

// Get returns the three channels at (x, y).
func (i *ColorImage) Get(x, y int) (float32, float32, float32) {
	k := i.kxy(x, y)
	return i.data[k], i.data[k+1], i.data[k+2]
}

// Set writes the three channels at (x, y).
func (i *ColorImage) Set(x, y int, r, g, b float32) {
	k := i.kxy(x, y)
	i.data[k] = r
	i.data[k+1] = g
	i.data[k+2] = b
}

// SameSize reports whether both images have the same dimensions.
func (i *ColorImage) SameSize(other *ColorImage) bool {
	return i.width == other.width && i.height == other.height
}

// CopyFrom overwrites i with the samples of src. Sizes must match.
func (i *ColorImage) CopyFrom(src *ColorImage) {
	copy(i.data, src.data)
}

// Clone returns a deep copy.
func (i *ColorImage) Clone() *ColorImage {
	out := NewColorImage(i.width, i.height)
	out.CopyFrom(i)
	return out
}

// SplitChannels writes the pixels [from, to) of interleaved into three planar slices.
func SplitChannels(interleaved, r, g, b []float32, from, to int) {
	for k := from; k < to; k++ {
		r[k] = interleaved[3*k]
		g[k] = interleaved[3*k+1]
		b[k] = interleaved[3*k+2]
	}
}

// ToStdImage converts back to 8-bit NRGBA, clamping out-of-range samples.
func (i *ColorImage) ToStdImage() *image.NRGBA {
	out := image.NewNRGBA(i.Bounds())
	for y := 0; y < i.height; y++ {
		for x := 0; x < i.width; x++ {
			r, g, b := i.Get(x, y)
			out.SetNRGBA(x, y, color.NRGBA{to8(r), to8(g), to8(b), 255})
		}
	}
	return out
}

func to8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
