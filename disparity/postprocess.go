package disparity

import (
	"context"
	"math"

	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// minConsistentDisparity is the smallest disparity the consistency check accepts.
const minConsistentDisparity = 2

// CheckConsistencyRow validates row y of both maps against each other. A left pixel x with
// disparity d is valid if x-d is inside the image, the right map holds d there and d is at
// least 2; right pixels are checked symmetrically at x+d.
func CheckConsistencyRow(left, right *rimage.DisparityMap, leftMask, rightMask *rimage.ValidityMask, y int) {
	width := left.Width()
	l := left.Data()[y*width : (y+1)*width]
	r := right.Data()[y*width : (y+1)*width]
	lm := leftMask.Data()[y*width : (y+1)*width]
	rm := rightMask.Data()[y*width : (y+1)*width]
	for x := 0; x < width; x++ {
		d := int(l[x])
		lm[x] = d >= minConsistentDisparity && x-d >= 0 && int(r[x-d]) == d
		d = int(r[x])
		rm[x] = d >= minConsistentDisparity && x+d < width && int(l[x+d]) == d
	}
}

// CheckConsistency runs CheckConsistencyRow over every row.
func CheckConsistency(left, right *rimage.DisparityMap, leftMask, rightMask *rimage.ValidityMask) {
	for y := 0; y < left.Height(); y++ {
		CheckConsistencyRow(left, right, leftMask, rightMask, y)
	}
}

// FillHolesRow replaces every invalid pixel of row y with the smaller disparity of the nearest
// valid pixels to its left and right. If only one side has a valid pixel it is used; a row
// without valid pixels is left alone. The mask is not changed.
func FillHolesRow(dm *rimage.DisparityMap, mask *rimage.ValidityMask, y int) {
	width := dm.Width()
	row := dm.Data()[y*width : (y+1)*width]
	valid := mask.Data()[y*width : (y+1)*width]

	// left to right, remember the last valid value; then fold in the right neighbour
	lastValid := -1
	for x := 0; x < width; x++ {
		if valid[x] {
			lastValid = x
			continue
		}
		next := x + 1
		for next < width && !valid[next] {
			next++
		}
		switch {
		case lastValid >= 0 && next < width:
			fill := row[lastValid]
			if row[next] < fill {
				fill = row[next]
			}
			for k := x; k < next; k++ {
				row[k] = fill
			}
		case lastValid >= 0:
			for k := x; k < next; k++ {
				row[k] = row[lastValid]
			}
		case next < width:
			for k := x; k < next; k++ {
				row[k] = row[next]
			}
		}
		x = next - 1
	}
}

// FillHoles runs FillHolesRow over every row.
func FillHoles(dm *rimage.DisparityMap, mask *rimage.ValidityMask) {
	for y := 0; y < dm.Height(); y++ {
		FillHolesRow(dm, mask, y)
	}
}

// medianWeights is the spatial half of the median weight for every window offset.
type medianWeights struct {
	radius     int
	spatial    []float64 // (dx²+dy²)/(2σs²), row major over the window
	colorScale float64   // 1/(2σc²)
}

func newMedianWeights(radius int, sigmaSpatial, sigmaColor float64) medianWeights {
	side := 2*radius + 1
	w := medianWeights{
		radius:     radius,
		spatial:    make([]float64, side*side),
		colorScale: 1 / (2 * sigmaColor * sigmaColor),
	}
	spatialScale := 1 / (2 * sigmaSpatial * sigmaSpatial)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			w.spatial[(dy+radius)*side+dx+radius] = float64(dx*dx+dy*dy) * spatialScale
		}
	}
	return w
}

// weightedMedianPixel returns the weighted median disparity around (x, y) of src, weighting
// neighbours by spatial distance and by color distance in guide. hist has one bin per
// disparity and is cleared before use.
func weightedMedianPixel(
	src *rimage.DisparityMap, guide *rimage.ColorImage, w medianWeights, hist []float64, x, y int,
) uint8 {
	for i := range hist {
		hist[i] = 0
	}
	width, height := src.Width(), src.Height()
	side := 2*w.radius + 1
	r0, g0, b0 := guide.Get(x, y)
	total := 0.0
	for dy := -w.radius; dy <= w.radius; dy++ {
		yy := y + dy
		if yy < 0 || yy >= height {
			continue
		}
		for dx := -w.radius; dx <= w.radius; dx++ {
			xx := x + dx
			if xx < 0 || xx >= width {
				continue
			}
			d := int(src.At(xx, yy))
			if d >= len(hist) {
				continue
			}
			r, g, b := guide.Get(xx, yy)
			dr, dg, db := float64(r-r0), float64(g-g0), float64(b-b0)
			color := (dr*dr + dg*dg + db*db) * w.colorScale
			weight := math.Exp(-(w.spatial[(dy+w.radius)*side+dx+w.radius] + color))
			hist[d] += weight
			total += weight
		}
	}
	if total == 0 {
		return src.At(x, y)
	}
	half := total / 2
	cumulative := 0.0
	for d, weight := range hist {
		cumulative += weight
		if cumulative >= half {
			return uint8(d)
		}
	}
	return uint8(len(hist) - 1)
}

// PostProcessor validates, fills and smooths a pair of disparity maps on a worker pool.
type PostProcessor struct {
	pool         *utils.WorkerPool
	maxDisparity int
	weights      medianWeights
	allPixels    bool

	hist    [][]float64 // one histogram per pool worker
	srcCopy [2]*rimage.DisparityMap
}

// NewPostProcessor returns a PostProcessor for width x height maps configured by cfg.
func NewPostProcessor(cfg Config, width, height int, pool *utils.WorkerPool) *PostProcessor {
	cfg = cfg.WithDefaults()
	pp := &PostProcessor{
		pool:         pool,
		maxDisparity: cfg.MaxDisparity,
		weights:      newMedianWeights(cfg.MedianRadius, cfg.SigmaSpatial, cfg.SigmaColor),
		allPixels:    cfg.MedianAllPixels,
		hist:         make([][]float64, pool.Size()),
	}
	for i := range pp.hist {
		pp.hist[i] = make([]float64, cfg.MaxDisparity)
	}
	for i := range pp.srcCopy {
		pp.srcCopy[i] = rimage.NewDisparityMap(width, height)
	}
	return pp
}

// CheckAndFill runs the consistency check and then fills the holes of both maps.
func (pp *PostProcessor) CheckAndFill(
	ctx context.Context, left, right *rimage.DisparityMap, leftMask, rightMask *rimage.ValidityMask,
) error {
	height := left.Height()
	if err := pp.pool.ParallelFor(ctx, height, func(_, y int) {
		CheckConsistencyRow(left, right, leftMask, rightMask, y)
	}); err != nil {
		return err
	}
	return pp.pool.ParallelFor(ctx, 2*height, func(_, i int) {
		if i < height {
			FillHolesRow(left, leftMask, i)
		} else {
			FillHolesRow(right, rightMask, i-height)
		}
	})
}

// WeightedMedian smooths dm with the color weighted median guided by guide. Only pixels
// marked invalid in mask change unless the processor filters all pixels. Windows read from
// a copy of dm so results do not depend on row order.
func (pp *PostProcessor) WeightedMedian(
	ctx context.Context, dm *rimage.DisparityMap, mask *rimage.ValidityMask, guide *rimage.ColorImage,
) error {
	return pp.weightedMedian(ctx, 0, dm, mask, guide)
}

func (pp *PostProcessor) weightedMedian(
	ctx context.Context, copyIdx int, dm *rimage.DisparityMap, mask *rimage.ValidityMask, guide *rimage.ColorImage,
) error {
	src := pp.srcCopy[copyIdx]
	src.CopyFrom(dm)
	width := dm.Width()
	out, valid := dm.Data(), mask.Data()
	return pp.pool.ParallelFor(ctx, dm.Height(), func(worker, y int) {
		hist := pp.hist[worker]
		for x := 0; x < width; x++ {
			if !pp.allPixels && valid[y*width+x] {
				continue
			}
			out[y*width+x] = weightedMedianPixel(src, guide, pp.weights, hist, x, y)
		}
	})
}

// Process runs the consistency check, hole fill and weighted median on the maps of f.
func (pp *PostProcessor) Process(ctx context.Context, f *Frame) error {
	if err := pp.CheckAndFill(ctx, f.LeftDisp, f.RightDisp, f.LeftMask, f.RightMask); err != nil {
		return err
	}
	if err := pp.weightedMedian(ctx, 0, f.LeftDisp, f.LeftMask, f.Left); err != nil {
		return err
	}
	return pp.weightedMedian(ctx, 1, f.RightDisp, f.RightMask, f.Right)
}
