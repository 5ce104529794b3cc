package disparity

import (
	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// Matching cost weights. The color term dominates; the gradient term helps in flat regions
// where brightness differs between the cameras.
const (
	colorWeight float32 = 0.9
	gradWeight  float32 = 1 - colorWeight
)

// BorderConstant stands in for the colors and gradient of the other image wherever the
// shifted correspondent falls outside of it.
const BorderConstant float32 = 0.011

// Shift directions of a cost volume: the left referenced volume looks at x-d in the right
// image, the right referenced volume at x+d in the left image.
const (
	lookLeft  = -1
	lookRight = 1
)

func direction(s side) int {
	if s == leftSide {
		return lookLeft
	}
	return lookRight
}

// matchCost is the dissimilarity of two pixels given their colors and gradients.
func matchCost(r0, g0, b0, grad0, r1, g1, b1, grad1 float32) float32 {
	colorDiff := float32(float32(utils.AbsF32(r0-r1)+utils.AbsF32(g0-g1))+utils.AbsF32(b0-b1)) / 3
	gradDiff := utils.AbsF32(grad0 - grad1)
	return float32(colorWeight*colorDiff) + float32(gradWeight*gradDiff)
}

// BorderCost is the cost of a pixel with no correspondent in the other image.
func BorderCost(r, g, b, grad float32) float32 {
	return matchCost(r, g, b, grad, BorderConstant, BorderConstant, BorderConstant, BorderConstant)
}

// pixelCost computes the cost at (x, y) for disparity d. base and other are interleaved RGB,
// dir is lookLeft or lookRight.
func pixelCost(base, other, baseGrad, otherGrad []float32, width, x, y, d, dir int) float32 {
	i := y*width + x
	r0, g0, b0 := base[3*i], base[3*i+1], base[3*i+2]
	xo := x + dir*d
	if xo < 0 || xo >= width {
		return BorderCost(r0, g0, b0, baseGrad[i])
	}
	j := y*width + xo
	return matchCost(r0, g0, b0, baseGrad[i], other[3*j], other[3*j+1], other[3*j+2], otherGrad[j])
}

// Preprocess computes the offset horizontal luma gradient of img.
func Preprocess(img *rimage.ColorImage, grad *rimage.Plane) {
	rimage.HorizontalGradient(img, grad)
}

func buildPlane(base, other *rimage.ColorImage, baseGrad, otherGrad *rimage.Plane, d, dir int, out []float32) {
	width, height := base.Width(), base.Height()
	bd, od, bg, og := base.Data(), other.Data(), baseGrad.Data(), otherGrad.Data()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = pixelCost(bd, od, bg, og, width, x, y, d, dir)
		}
	}
}

// BuildLeft fills out with the left referenced cost plane for disparity d: pixel x of base
// (the left image) is compared with pixel x-d of other.
func BuildLeft(base, other *rimage.ColorImage, baseGrad, otherGrad *rimage.Plane, d int, out []float32) {
	buildPlane(base, other, baseGrad, otherGrad, d, lookLeft, out)
}

// BuildRight fills out with the right referenced cost plane for disparity d: pixel x of base
// (the right image) is compared with pixel x+d of other.
func BuildRight(base, other *rimage.ColorImage, baseGrad, otherGrad *rimage.Plane, d int, out []float32) {
	buildPlane(base, other, baseGrad, otherGrad, d, lookRight, out)
}
