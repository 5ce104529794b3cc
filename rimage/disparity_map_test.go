package rimage

import (
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestDisparityMapBasics(t *testing.T) {
	dm := NewDisparityMap(4, 3)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.Contains(3, 2), test.ShouldBeTrue)
	test.That(t, dm.Contains(4, 0), test.ShouldBeFalse)
	dm.Set(1, 2, 7)
	test.That(t, dm.At(1, 2), test.ShouldEqual, uint8(7))

	other := dm.Clone()
	test.That(t, other.Equal(dm), test.ShouldBeTrue)
	other.Set(0, 0, 1)
	test.That(t, other.Equal(dm), test.ShouldBeFalse)
	other.Set(3, 0, 9)
	test.That(t, dm.FractionWithin(other, 1), test.ShouldAlmostEqual, 11.0/12.0)
	test.That(t, dm.FractionWithin(other, 9), test.ShouldAlmostEqual, 1.0)
}

func TestDisparityMapToGray(t *testing.T) {
	dm := NewDisparityMap(3, 1)
	dm.Set(0, 0, 2)
	dm.Set(1, 0, 40)
	dm.Set(2, 0, 200)
	gray := dm.ToGray(4)
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(8))
	test.That(t, gray.GrayAt(1, 0).Y, test.ShouldEqual, uint8(160))
	test.That(t, gray.GrayAt(2, 0).Y, test.ShouldEqual, uint8(255))

	gray = dm.ToGray(-3)
	for x := 0; x < 3; x++ {
		test.That(t, gray.GrayAt(x, 0).Y, test.ShouldEqual, uint8(0))
	}
}

func TestDisparityMapToPrettyPicture(t *testing.T) {
	dm := NewDisparityMap(3, 1)
	dm.Set(1, 0, 1)
	dm.Set(2, 0, 64)
	img := dm.ToPrettyPicture(64)
	test.That(t, img.RGBAAt(0, 0), test.ShouldResemble, color.RGBA{0, 0, 0, 255})
	far := img.RGBAAt(1, 0)
	near := img.RGBAAt(2, 0)
	test.That(t, far.B, test.ShouldBeGreaterThan, far.R)
	test.That(t, near.R, test.ShouldEqual, uint8(255))
	test.That(t, near.B, test.ShouldEqual, uint8(0))
}

func TestValidityMask(t *testing.T) {
	m := NewValidityMask(3, 2)
	test.That(t, m.Count(), test.ShouldEqual, 0)
	m.Set(2, 1, true)
	m.Set(0, 0, true)
	test.That(t, m.Count(), test.ShouldEqual, 2)
	test.That(t, m.At(2, 1), test.ShouldBeTrue)

	sub := NewValidityMask(3, 2)
	sub.Set(0, 0, true)
	test.That(t, m.Contains(sub), test.ShouldBeTrue)
	test.That(t, sub.Contains(m), test.ShouldBeFalse)
	test.That(t, m.Clone().Equal(m), test.ShouldBeTrue)
	test.That(t, sub.Equal(m), test.ShouldBeFalse)
}
