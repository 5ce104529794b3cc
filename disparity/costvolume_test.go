package disparity

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/testutils"
)

func TestBorderCostIsExact(t *testing.T) {
	for _, size := range []struct{ w, h, maxD int }{{5, 3, 4}, {17, 9, 16}, {64, 4, 40}, {3, 3, 8}} {
		left := testutils.RandomColorImage(size.w, size.h, 1)
		right := testutils.RandomColorImage(size.w, size.h, 2)
		leftGrad, rightGrad := rimage.NewPlane(size.w, size.h), rimage.NewPlane(size.w, size.h)
		Preprocess(left, leftGrad)
		Preprocess(right, rightGrad)

		plane := make([]float32, size.w*size.h)
		for d := 0; d < size.maxD; d++ {
			BuildLeft(left, right, leftGrad, rightGrad, d, plane)
			for y := 0; y < size.h; y++ {
				for x := 0; x < size.w && x < d; x++ {
					r, g, b := left.Get(x, y)
					test.That(t, plane[y*size.w+x], test.ShouldEqual, BorderCost(r, g, b, leftGrad.At(x, y)))
				}
			}
			BuildRight(right, left, rightGrad, leftGrad, d, plane)
			for y := 0; y < size.h; y++ {
				for x := size.w - 1; x >= 0 && x+d >= size.w; x-- {
					r, g, b := right.Get(x, y)
					test.That(t, plane[y*size.w+x], test.ShouldEqual, BorderCost(r, g, b, rightGrad.At(x, y)))
				}
			}
		}
	}
}

func TestBorderCostFormula(t *testing.T) {
	// color diff (0.989 + 0.489 + 0.011) / 3, gradient diff 0.489
	got := BorderCost(1, 0.5, 0.0, 0.5)
	colorDiff := (float32(1-BorderConstant) + float32(0.5-BorderConstant) + BorderConstant) / 3
	want := 0.9*colorDiff + 0.1*float32(0.5-BorderConstant)
	test.That(t, float64(got), test.ShouldAlmostEqual, float64(want), 1e-6)
}

func TestCostMatchesShiftedPair(t *testing.T) {
	const w, h, d0 = 40, 6, 7
	left, right := testutils.ShiftedStereoPair(w, h, d0, 3)
	leftGrad, rightGrad := rimage.NewPlane(w, h), rimage.NewPlane(w, h)
	Preprocess(left, leftGrad)
	Preprocess(right, rightGrad)

	plane := make([]float32, w*h)
	BuildLeft(left, right, leftGrad, rightGrad, d0, plane)
	for y := 0; y < h; y++ {
		for x := d0 + 1; x < w-1; x++ {
			test.That(t, plane[y*w+x], test.ShouldEqual, float32(0))
		}
	}
	BuildRight(right, left, rightGrad, leftGrad, d0, plane)
	for y := 0; y < h; y++ {
		for x := 1; x+d0 < w-1; x++ {
			test.That(t, plane[y*w+x], test.ShouldEqual, float32(0))
		}
	}

	// a wrong hypothesis costs something almost everywhere
	BuildLeft(left, right, leftGrad, rightGrad, d0+1, plane)
	zeros := 0
	for _, c := range plane {
		if c == 0 {
			zeros++
		}
	}
	test.That(t, zeros, test.ShouldBeLessThan, w)
}
