package rimage

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/disparity/utils"
)

// DisparityMap holds one 8-bit disparity per pixel.
type DisparityMap struct {
	width, height int
	data          []uint8
}

// NewDisparityMap returns a zeroed map.
func NewDisparityMap(width, height int) *DisparityMap {
	return &DisparityMap{width, height, make([]uint8, width*height)}
}

// Width returns the number of columns.
func (dm *DisparityMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DisparityMap) Height() int {
	return dm.height
}

// Data returns the backing slice.
func (dm *DisparityMap) Data() []uint8 {
	return dm.data
}

// At returns the disparity at (x, y).
func (dm *DisparityMap) At(x, y int) uint8 {
	return dm.data[y*dm.width+x]
}

// Set writes the disparity at (x, y).
func (dm *DisparityMap) Set(x, y int, d uint8) {
	dm.data[y*dm.width+x] = d
}

// Contains reports whether (x, y) is inside the map.
func (dm *DisparityMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// CopyFrom overwrites dm with src. Sizes must match.
func (dm *DisparityMap) CopyFrom(src *DisparityMap) {
	copy(dm.data, src.data)
}

// Clone returns a deep copy.
func (dm *DisparityMap) Clone() *DisparityMap {
	out := NewDisparityMap(dm.width, dm.height)
	out.CopyFrom(dm)
	return out
}

// Equal reports whether both maps have the same size and values.
func (dm *DisparityMap) Equal(other *DisparityMap) bool {
	if dm.width != other.width || dm.height != other.height {
		return false
	}
	for k := range dm.data {
		if dm.data[k] != other.data[k] {
			return false
		}
	}
	return true
}

// FractionWithin returns the fraction of pixels where dm and other differ by at most tolerance.
func (dm *DisparityMap) FractionWithin(other *DisparityMap, tolerance int) float64 {
	if len(dm.data) == 0 {
		return 1
	}
	within := 0
	for k := range dm.data {
		if utils.AbsInt(int(dm.data[k])-int(other.data[k])) <= tolerance {
			within++
		}
	}
	return float64(within) / float64(len(dm.data))
}

// ToGray renders the map as a gray image, multiplying each disparity by scale so small
// disparity ranges remain visible. Values saturate at 255; a negative scale draws black.
func (dm *DisparityMap) ToGray(scale int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, dm.width, dm.height))
	for k, d := range dm.data {
		out.Pix[k] = uint8(utils.ClampInt(int(d)*scale, 0, 255))
	}
	return out
}

// ToPrettyPicture renders the map with a blue (far) to red (near) hue ramp. Zero disparities
// are drawn black.
func (dm *DisparityMap) ToPrettyPicture(maxDisparity int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, dm.width, dm.height))
	palette := make([]color.RGBA, 256)
	for d := 1; d < len(palette); d++ {
		ratio := float64(utils.MinInt(d, maxDisparity)) / float64(utils.MaxInt(maxDisparity, 1))
		r, g, b := colorful.Hsv(240*(1-ratio), 1, 1).RGB255()
		palette[d] = color.RGBA{r, g, b, 255}
	}
	palette[0] = color.RGBA{0, 0, 0, 255}
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			out.SetRGBA(x, y, palette[dm.At(x, y)])
		}
	}
	return out
}

// ValidityMask marks the pixels whose disparity was confirmed by the opposite view.
type ValidityMask struct {
	width, height int
	data          []bool
}

// NewValidityMask returns an all-invalid mask.
func NewValidityMask(width, height int) *ValidityMask {
	return &ValidityMask{width, height, make([]bool, width*height)}
}

// Width returns the number of columns.
func (m *ValidityMask) Width() int {
	return m.width
}

// Height returns the number of rows.
func (m *ValidityMask) Height() int {
	return m.height
}

// Data returns the backing slice.
func (m *ValidityMask) Data() []bool {
	return m.data
}

// At reports whether (x, y) is valid.
func (m *ValidityMask) At(x, y int) bool {
	return m.data[y*m.width+x]
}

// Set marks (x, y).
func (m *ValidityMask) Set(x, y int, valid bool) {
	m.data[y*m.width+x] = valid
}

// Count returns the number of valid pixels.
func (m *ValidityMask) Count() int {
	n := 0
	for _, v := range m.data {
		if v {
			n++
		}
	}
	return n
}

// CopyFrom overwrites m with src. Sizes must match.
func (m *ValidityMask) CopyFrom(src *ValidityMask) {
	copy(m.data, src.data)
}

// Clone returns a deep copy.
func (m *ValidityMask) Clone() *ValidityMask {
	out := NewValidityMask(m.width, m.height)
	out.CopyFrom(m)
	return out
}

// Equal reports whether both masks are identical.
func (m *ValidityMask) Equal(other *ValidityMask) bool {
	if m.width != other.width || m.height != other.height {
		return false
	}
	for k := range m.data {
		if m.data[k] != other.data[k] {
			return false
		}
	}
	return true
}

// Contains reports whether every valid pixel of other is also valid in m.
func (m *ValidityMask) Contains(other *ValidityMask) bool {
	for k := range m.data {
		if other.data[k] && !m.data[k] {
			return false
		}
	}
	return true
}
