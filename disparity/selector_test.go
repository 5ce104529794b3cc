package disparity

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/disparity/rimage"
)

func constantVolume(w, h, depth int, v float32) *rimage.CostVolume {
	cv := rimage.NewCostVolume(w, h, depth)
	for i := range cv.Data() {
		cv.Data()[i] = v
	}
	return cv
}

func TestSelectSingleMinimumPlane(t *testing.T) {
	const w, h, maxD = 9, 5, 12
	dm := rimage.NewDisparityMap(w, h)
	for k := 1; k < maxD; k++ {
		cv := constantVolume(w, h, maxD, 1)
		for i := range cv.Plane(k) {
			cv.Plane(k)[i] = 0.5
		}
		SelectDisparities(cv, dm)
		for _, d := range dm.Data() {
			test.That(t, d, test.ShouldEqual, uint8(k))
		}
	}
}

func TestSelectTiesAndPlaneZero(t *testing.T) {
	const w, h, maxD = 4, 3, 8
	dm := rimage.NewDisparityMap(w, h)

	// plane 0 is never chosen, even when it is the global minimum
	cv := constantVolume(w, h, maxD, 1)
	for i := range cv.Plane(0) {
		cv.Plane(0)[i] = -10
	}
	SelectDisparities(cv, dm)
	for _, d := range dm.Data() {
		test.That(t, d, test.ShouldEqual, uint8(1))
	}

	// equal minima resolve to the lowest disparity
	cv = constantVolume(w, h, maxD, 1)
	for _, k := range []int{5, 3, 6} {
		for i := range cv.Plane(k) {
			cv.Plane(k)[i] = 0
		}
	}
	SelectDisparities(cv, dm)
	for _, d := range dm.Data() {
		test.That(t, d, test.ShouldEqual, uint8(3))
	}

	// per pixel minimum
	cv = constantVolume(w, h, maxD, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cv.Plane(1 + (x+y)%(maxD-1))[y*w+x] = 0
		}
	}
	SelectRows(cv, dm, 1, 2)
	for x := 0; x < w; x++ {
		test.That(t, dm.At(x, 1), test.ShouldEqual, uint8(1+(x+1)%(maxD-1)))
	}
}

func TestSelectSinglePlane(t *testing.T) {
	dm := rimage.NewDisparityMap(2, 2)
	dm.Set(1, 1, 9)
	SelectDisparities(constantVolume(2, 2, 1, 0.3), dm)
	for _, d := range dm.Data() {
		test.That(t, d, test.ShouldEqual, uint8(0))
	}
}
