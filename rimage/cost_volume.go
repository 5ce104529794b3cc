package rimage

// CostVolume is a stack of Depth() planes of Width() x Height() matching costs. Plane d holds
// the cost of the hypothesis that a pixel moved d columns between the two views. The planes
// are contiguous so a plane is a sub-slice of Data().
type CostVolume struct {
	width, height, depth int
	data                 []float32
}

// NewCostVolume allocates a zeroed volume.
func NewCostVolume(width, height, depth int) *CostVolume {
	return &CostVolume{
		width:  width,
		height: height,
		depth:  depth,
		data:   make([]float32, width*height*depth),
	}
}

// Width returns the number of columns of each plane.
func (cv *CostVolume) Width() int {
	return cv.width
}

// Height returns the number of rows of each plane.
func (cv *CostVolume) Height() int {
	return cv.height
}

// Depth returns the number of planes.
func (cv *CostVolume) Depth() int {
	return cv.depth
}

// PlaneSize returns the number of samples in one plane.
func (cv *CostVolume) PlaneSize() int {
	return cv.width * cv.height
}

// Plane returns the backing slice of plane d.
func (cv *CostVolume) Plane(d int) []float32 {
	n := cv.PlaneSize()
	return cv.data[d*n : (d+1)*n]
}

// Data returns all planes back to back.
func (cv *CostVolume) Data() []float32 {
	return cv.data
}

// At returns the cost of pixel (x, y) on plane d.
func (cv *CostVolume) At(x, y, d int) float32 {
	return cv.data[(d*cv.height+y)*cv.width+x]
}
