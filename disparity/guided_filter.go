package disparity

import (
	"github.com/pkg/errors"

	"go.viam.com/disparity/rimage"
	"go.viam.com/disparity/utils"
)

// Indices of the six independent entries of a symmetric 3x3 matrix.
const (
	symRR = iota
	symRG
	symRB
	symGG
	symGB
	symBB
	symCount
)

// channelPairs lists the channels multiplied for each entry of the covariance matrix.
var channelPairs = [symCount][2]int{
	symRR: {0, 0},
	symRG: {0, 1},
	symRB: {0, 2},
	symGG: {1, 1},
	symGB: {1, 2},
	symBB: {2, 2},
}

// filterGeometry is the full and reduced size of the planes a guided filter works on.
type filterGeometry struct {
	width, height       int
	subWidth, subHeight int
	subsample           int
	radius              int
}

func newFilterGeometry(width, height, subsample, radius int) filterGeometry {
	sw, sh := rimage.SubsampledSize(width, height, subsample)
	return filterGeometry{
		width:     width,
		height:    height,
		subWidth:  sw,
		subHeight: sh,
		subsample: subsample,
		radius:    utils.MaxInt(1, radius/subsample),
	}
}

func (g filterGeometry) planeSize() int {
	return g.width * g.height
}

func (g filterGeometry) subPlaneSize() int {
	return g.subWidth * g.subHeight
}

// guideSet holds the statistics of one guide image that every cost plane reuses.
type guideSet[B any] struct {
	full [3]B // planar channels at full resolution
	sub  [3]B // channels at reduced resolution
	mean [3]B
	cof  [symCount]B // cofactors of the regularized covariance matrix
	det  B
}

// guideScratch is the temporary storage needed while computing a guideSet.
type guideScratch[B any] struct {
	vars     [symCount]B
	tmp      B
	tmp2     B
	boxTemps B
}

// filterSet is the storage for filtering a stack of cost planes. cost doubles as the output.
type filterSet[B any] struct {
	cost    B
	up      [4]B // a_r, a_g, a_b and b at full resolution
	fullTmp B

	p        B
	meanP    B
	tmp      B
	tmp2     B
	boxTemps B
	cov      [3]B
	a        [3]B
	bias     B
}

// computeGuide derives means, covariances and cofactors from the planar guide channels in
// g.full.
func computeGuide[B any](ops planeOps[B], geom filterGeometry, g *guideSet[B], s *guideScratch[B]) {
	ns := geom.subPlaneSize()
	sw, sh, r := geom.subWidth, geom.subHeight, geom.radius
	for c := 0; c < 3; c++ {
		ops.downsample(g.sub[c], g.full[c], geom.width, geom.height, 1, geom.subsample)
		ops.box(g.mean[c], g.sub[c], s.boxTemps, sw, sh, 1, r)
	}
	for k, pair := range channelPairs {
		i, j := pair[0], pair[1]
		ops.mul(s.tmp, g.sub[i], g.sub[j], ns)
		ops.box(s.vars[k], s.tmp, s.boxTemps, sw, sh, 1, r)
		ops.mul(s.tmp, g.mean[i], g.mean[j], ns)
		ops.sub(s.vars[k], s.vars[k], s.tmp, ns)
		if i == j {
			ops.addConst(s.vars[k], s.vars[k], covarianceEpsilon, ns)
		}
	}

	v := s.vars
	cofactor := func(dst B, a, b, c, d B) {
		// dst = a*b - c*d
		ops.mul(s.tmp, a, b, ns)
		ops.mul(s.tmp2, c, d, ns)
		ops.sub(dst, s.tmp, s.tmp2, ns)
	}
	cofactor(g.cof[symRR], v[symGG], v[symBB], v[symGB], v[symGB])
	cofactor(g.cof[symRG], v[symGB], v[symRB], v[symRG], v[symBB])
	cofactor(g.cof[symRB], v[symRG], v[symGB], v[symGG], v[symRB])
	cofactor(g.cof[symGG], v[symRR], v[symBB], v[symRB], v[symRB])
	cofactor(g.cof[symGB], v[symRB], v[symRG], v[symRR], v[symGB])
	cofactor(g.cof[symBB], v[symRR], v[symGG], v[symRG], v[symRG])

	ops.mul(s.tmp, v[symRR], g.cof[symRR], ns)
	ops.mul(s.tmp2, v[symRG], g.cof[symRG], ns)
	ops.add(s.tmp, s.tmp, s.tmp2, ns)
	ops.mul(s.tmp2, v[symRB], g.cof[symRB], ns)
	ops.add(g.det, s.tmp, s.tmp2, ns)
}

// solveRows lists, per coefficient a_c, the cofactors forming row c of the adjugate.
var solveRows = [3][3]int{
	{symRR, symRG, symRB},
	{symRG, symGG, symGB},
	{symRB, symGB, symBB},
}

// filterStack runs the guided filter over the first planes cost planes of f.cost, writing
// the result back into f.cost.
func filterStack[B any](ops planeOps[B], geom filterGeometry, g *guideSet[B], f *filterSet[B], planes int) {
	n, ns := geom.planeSize(), geom.subPlaneSize()
	sw, sh, r := geom.subWidth, geom.subHeight, geom.radius
	nStack, nsStack := planes*n, planes*ns

	ops.downsample(f.p, f.cost, geom.width, geom.height, planes, geom.subsample)
	ops.box(f.meanP, f.p, f.boxTemps, sw, sh, planes, r)
	for c := 0; c < 3; c++ {
		ops.mulPlane(f.tmp, f.p, g.sub[c], nsStack, ns)
		ops.box(f.cov[c], f.tmp, f.boxTemps, sw, sh, planes, r)
		ops.mulPlane(f.tmp, f.meanP, g.mean[c], nsStack, ns)
		ops.sub(f.cov[c], f.cov[c], f.tmp, nsStack)
	}

	// a = adj(cov) * cov_p / det
	for c, row := range solveRows {
		ops.mulPlane(f.tmp, f.cov[0], g.cof[row[0]], nsStack, ns)
		ops.mulPlane(f.tmp2, f.cov[1], g.cof[row[1]], nsStack, ns)
		ops.add(f.tmp, f.tmp, f.tmp2, nsStack)
		ops.mulPlane(f.tmp2, f.cov[2], g.cof[row[2]], nsStack, ns)
		ops.add(f.tmp, f.tmp, f.tmp2, nsStack)
		ops.divPlane(f.a[c], f.tmp, g.det, nsStack, ns)
	}

	// b = mean_p - a_r*mean_r - a_g*mean_g - a_b*mean_b
	ops.mulPlane(f.tmp, f.a[0], g.mean[0], nsStack, ns)
	ops.sub(f.bias, f.meanP, f.tmp, nsStack)
	for c := 1; c < 3; c++ {
		ops.mulPlane(f.tmp, f.a[c], g.mean[c], nsStack, ns)
		ops.sub(f.bias, f.bias, f.tmp, nsStack)
	}

	coefficients := [4]B{f.a[0], f.a[1], f.a[2], f.bias}
	for k, coeff := range coefficients {
		ops.box(coeff, coeff, f.boxTemps, sw, sh, planes, r)
		ops.upsample(f.up[k], coeff, sw, sh, geom.width, geom.height, planes, geom.subsample)
	}

	// q = a_r*I_r + a_g*I_g + a_b*I_b + b
	ops.mulPlane(f.cost, f.up[0], g.full[0], nStack, n)
	for c := 1; c < 3; c++ {
		ops.mulPlane(f.fullTmp, f.up[c], g.full[c], nStack, n)
		ops.add(f.cost, f.cost, f.fullTmp, nStack)
	}
	ops.add(f.cost, f.cost, f.up[3], nStack)
}

// GuideStatistics are the per frame statistics of one guide image: its channels at full and
// reduced resolution, the channel means and the cofactors and determinant of the
// regularized local covariance matrix of every pixel.
type GuideStatistics struct {
	geom    filterGeometry
	set     guideSet[[]float32]
	scratch guideScratch[[]float32]
}

// NewGuideStatistics allocates statistics for width x height guides filtered with the given
// subsample factor and radius.
func NewGuideStatistics(width, height, subsample, radius int) *GuideStatistics {
	geom := newFilterGeometry(width, height, subsample, radius)
	n, ns := geom.planeSize(), geom.subPlaneSize()
	gs := &GuideStatistics{geom: geom}
	for c := 0; c < 3; c++ {
		gs.set.full[c] = make([]float32, n)
		gs.set.sub[c] = make([]float32, ns)
		gs.set.mean[c] = make([]float32, ns)
	}
	for k := 0; k < symCount; k++ {
		gs.set.cof[k] = make([]float32, ns)
		gs.scratch.vars[k] = make([]float32, ns)
	}
	gs.set.det = make([]float32, ns)
	gs.scratch.tmp = make([]float32, ns)
	gs.scratch.tmp2 = make([]float32, ns)
	gs.scratch.boxTemps = make([]float32, ns)
	return gs
}

// Compute fills the statistics from guide. It returns ErrSingularCovariance if a covariance
// matrix has a zero determinant.
func (gs *GuideStatistics) Compute(guide *rimage.ColorImage) error {
	rimage.SplitChannels(guide.Data(), gs.set.full[0], gs.set.full[1], gs.set.full[2], 0, gs.geom.planeSize())
	computeGuide[[]float32](hostOps{}, gs.geom, &gs.set, &gs.scratch)
	return checkDeterminant(gs.set.det, gs.geom.subWidth)
}

// Channel returns full resolution channel c (0 red, 1 green, 2 blue).
func (gs *GuideStatistics) Channel(c int) []float32 {
	return gs.set.full[c]
}

// Mean returns the box filtered reduced resolution channel c.
func (gs *GuideStatistics) Mean(c int) []float32 {
	return gs.set.mean[c]
}

// Determinant returns the determinant of the regularized covariance matrix per reduced pixel.
func (gs *GuideStatistics) Determinant() []float32 {
	return gs.set.det
}

// Covariance returns the regularized covariance matrix of reduced pixel i, row major.
func (gs *GuideStatistics) Covariance(i int) [9]float64 {
	v := gs.scratch.vars
	rr, rg, rb := float64(v[symRR][i]), float64(v[symRG][i]), float64(v[symRB][i])
	gg, gb, bb := float64(v[symGG][i]), float64(v[symGB][i]), float64(v[symBB][i])
	return [9]float64{rr, rg, rb, rg, gg, gb, rb, gb, bb}
}

// Cofactors returns the six cofactors of reduced pixel i in RR, RG, RB, GG, GB, BB order.
func (gs *GuideStatistics) Cofactors(i int) [6]float32 {
	var out [6]float32
	for k := 0; k < symCount; k++ {
		out[k] = gs.set.cof[k][i]
	}
	return out
}

// ReducedSize returns the size the statistics are computed at.
func (gs *GuideStatistics) ReducedSize() (int, int) {
	return gs.geom.subWidth, gs.geom.subHeight
}

func checkDeterminant(det []float32, width int) error {
	for i, d := range det {
		if d == 0 {
			return errors.Wrapf(ErrSingularCovariance, "at reduced pixel (%d, %d)", i%width, i/width)
		}
	}
	return nil
}

// FilterScratch is the per worker storage of the guided filter for one plane. After
// FilterPlane it holds the full resolution coefficients used for that plane.
type FilterScratch struct {
	set filterSet[[]float32]
}

// NewFilterScratch allocates scratch matching gs.
func NewFilterScratch(gs *GuideStatistics) *FilterScratch {
	n, ns := gs.geom.planeSize(), gs.geom.subPlaneSize()
	fs := &FilterScratch{}
	fs.set.cost = make([]float32, n)
	for k := range fs.set.up {
		fs.set.up[k] = make([]float32, n)
	}
	fs.set.fullTmp = make([]float32, n)
	fs.set.p = make([]float32, ns)
	fs.set.meanP = make([]float32, ns)
	fs.set.tmp = make([]float32, ns)
	fs.set.tmp2 = make([]float32, ns)
	fs.set.boxTemps = make([]float32, ns)
	for c := 0; c < 3; c++ {
		fs.set.cov[c] = make([]float32, ns)
		fs.set.a[c] = make([]float32, ns)
	}
	fs.set.bias = make([]float32, ns)
	return fs
}

// Coefficients returns the full resolution a_r, a_g, a_b and b of the last filtered plane.
func (fs *FilterScratch) Coefficients() (aR, aG, aB, b []float32) {
	return fs.set.up[0], fs.set.up[1], fs.set.up[2], fs.set.up[3]
}

// FilterPlane runs the guided filter over one cost plane in place.
func FilterPlane(gs *GuideStatistics, plane []float32, fs *FilterScratch) {
	copy(fs.set.cost, plane)
	filterStack[[]float32](hostOps{}, gs.geom, &gs.set, &fs.set, 1)
	copy(plane, fs.set.cost)
}
