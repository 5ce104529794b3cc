package disparity

import (
	"go.viam.com/disparity/rimage"
)

// Frame is the per frame state shared by every stage. It is allocated once by the Estimator
// for a fixed size and overwritten every frame.
type Frame struct {
	Width, Height, MaxDisparity int

	Left, Right         *rimage.ColorImage
	LeftGrad, RightGrad *rimage.Plane
	LeftCost, RightCost *rimage.CostVolume
	LeftDisp, RightDisp *rimage.DisparityMap
	LeftMask, RightMask *rimage.ValidityMask
}

// NewFrame allocates the state for width x height pairs searched over maxDisparity planes.
func NewFrame(width, height, maxDisparity int) *Frame {
	return &Frame{
		Width:        width,
		Height:       height,
		MaxDisparity: maxDisparity,
		Left:         rimage.NewColorImage(width, height),
		Right:        rimage.NewColorImage(width, height),
		LeftGrad:     rimage.NewPlane(width, height),
		RightGrad:    rimage.NewPlane(width, height),
		LeftCost:     rimage.NewCostVolume(width, height, maxDisparity),
		RightCost:    rimage.NewCostVolume(width, height, maxDisparity),
		LeftDisp:     rimage.NewDisparityMap(width, height),
		RightDisp:    rimage.NewDisparityMap(width, height),
		LeftMask:     rimage.NewValidityMask(width, height),
		RightMask:    rimage.NewValidityMask(width, height),
	}
}

// side names the reference image of a volume.
type side int

const (
	leftSide side = iota
	rightSide
)

func (s side) String() string {
	if s == leftSide {
		return "left"
	}
	return "right"
}

var sides = [2]side{leftSide, rightSide}

func (f *Frame) image(s side) *rimage.ColorImage {
	if s == leftSide {
		return f.Left
	}
	return f.Right
}

func (f *Frame) grad(s side) *rimage.Plane {
	if s == leftSide {
		return f.LeftGrad
	}
	return f.RightGrad
}

func (f *Frame) cost(s side) *rimage.CostVolume {
	if s == leftSide {
		return f.LeftCost
	}
	return f.RightCost
}

func (f *Frame) disp(s side) *rimage.DisparityMap {
	if s == leftSide {
		return f.LeftDisp
	}
	return f.RightDisp
}
