package rimage

// Plane is a single-channel float32 image, stored row by row.
type Plane struct {
	width, height int
	data          []float32
}

// NewPlane returns a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{width, height, make([]float32, width*height)}
}

// Width returns the number of columns.
func (p *Plane) Width() int {
	return p.width
}

// Height returns the number of rows.
func (p *Plane) Height() int {
	return p.height
}

// Data returns the backing slice.
func (p *Plane) Data() []float32 {
	return p.data
}

// At returns the sample at (x, y).
func (p *Plane) At(x, y int) float32 {
	return p.data[y*p.width+x]
}

// Set writes the sample at (x, y).
func (p *Plane) Set(x, y int, v float32) {
	p.data[y*p.width+x] = v
}

// Fill sets every sample to v.
func (p *Plane) Fill(v float32) {
	for k := range p.data {
		p.data[k] = v
	}
}
