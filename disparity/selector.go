package disparity

import (
	"go.viam.com/disparity/rimage"
)

// selectPixel returns the disparity with the lowest cost at pixel i of a volume whose planes
// hold planeSize samples. Plane 0 is never a candidate, and the first of equal minima wins.
func selectPixel(volume []float32, planeSize, i, maxDisparity int) uint8 {
	if maxDisparity < 2 {
		return 0
	}
	best := 1
	bestCost := volume[planeSize+i]
	for d := 2; d < maxDisparity; d++ {
		if c := volume[d*planeSize+i]; c < bestCost {
			best, bestCost = d, c
		}
	}
	return uint8(best)
}

// SelectRows writes the winner-take-all disparity of rows [from, to) of cv into dm.
func SelectRows(cv *rimage.CostVolume, dm *rimage.DisparityMap, from, to int) {
	width, planeSize, depth := cv.Width(), cv.PlaneSize(), cv.Depth()
	volume, out := cv.Data(), dm.Data()
	for i := from * width; i < to*width; i++ {
		out[i] = selectPixel(volume, planeSize, i, depth)
	}
}

// SelectDisparities writes the winner-take-all disparity of every pixel of cv into dm.
func SelectDisparities(cv *rimage.CostVolume, dm *rimage.DisparityMap) {
	SelectRows(cv, dm, 0, cv.Height())
}
