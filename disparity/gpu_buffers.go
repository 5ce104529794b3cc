package disparity

import (
	"fmt"

	"go.viam.com/disparity/compute"
)

// gpuBuffer names every device buffer of the GPU backend.
type gpuBuffer int

const (
	bufLeftImage gpuBuffer = iota
	bufRightImage
	bufLeftGrad
	bufRightGrad
	bufLeftVolume
	bufRightVolume
	bufLeftDisparity
	bufRightDisparity

	// covariance entries, shared by both guides
	bufVarRR
	bufVarRG
	bufVarRB
	bufVarGG
	bufVarGB
	bufVarBB

	// full resolution stacks of one batch
	bufCostStack
	bufUpR
	bufUpG
	bufUpB
	bufUpBias
	bufFullTmp

	// reduced resolution stacks of one batch
	bufP
	bufMeanP
	bufTmp
	bufTmp2
	bufBoxTemps
	bufCovR
	bufCovG
	bufCovB
	bufAR
	bufAG
	bufAB
	bufBias

	// first of the guideFieldCount buffers of each guide
	bufLeftGuide
	bufRightGuide = bufLeftGuide + guideFieldCount
	numGPUBuffers = bufRightGuide + guideFieldCount
)

// Offsets of the buffers of one guide.
const (
	guideFull       = 0
	guideSub        = 3
	guideMean       = 6
	guideCof        = 9
	guideDet        = guideCof + symCount
	guideFieldCount = guideDet + 1
)

var channelNames = [3]string{"r", "g", "b"}

var symNames = [symCount]string{"rr", "rg", "rb", "gg", "gb", "bb"}

func guideBase(s side) gpuBuffer {
	if s == leftSide {
		return bufLeftGuide
	}
	return bufRightGuide
}

// gpuBufferSpecs declares every device buffer for the given geometry.
func gpuBufferSpecs(geom filterGeometry, maxDisparity, batch int) []compute.BufferSpec[gpuBuffer] {
	n, ns := geom.planeSize(), geom.subPlaneSize()
	f32 := func(id gpuBuffer, name string, size int) compute.BufferSpec[gpuBuffer] {
		return compute.BufferSpec[gpuBuffer]{ID: id, Name: name, Kind: compute.Float32, Len: size}
	}
	specs := []compute.BufferSpec[gpuBuffer]{
		f32(bufLeftImage, "left_image", 3*n),
		f32(bufRightImage, "right_image", 3*n),
		f32(bufLeftGrad, "left_gradient", n),
		f32(bufRightGrad, "right_gradient", n),
		f32(bufLeftVolume, "left_volume", maxDisparity*n),
		f32(bufRightVolume, "right_volume", maxDisparity*n),
		{ID: bufLeftDisparity, Name: "left_disparity", Kind: compute.Uint8, Len: n},
		{ID: bufRightDisparity, Name: "right_disparity", Kind: compute.Uint8, Len: n},
	}
	for k := 0; k < symCount; k++ {
		specs = append(specs, f32(bufVarRR+gpuBuffer(k), "var_"+symNames[k], ns))
	}
	specs = append(specs,
		f32(bufCostStack, "cost_stack", batch*n),
		f32(bufUpR, "coeff_r_full", batch*n),
		f32(bufUpG, "coeff_g_full", batch*n),
		f32(bufUpB, "coeff_b_full", batch*n),
		f32(bufUpBias, "coeff_bias_full", batch*n),
		f32(bufFullTmp, "full_tmp", batch*n),
		f32(bufP, "cost_reduced", batch*ns),
		f32(bufMeanP, "cost_mean", batch*ns),
		f32(bufTmp, "tmp", batch*ns),
		f32(bufTmp2, "tmp2", batch*ns),
		f32(bufBoxTemps, "box_scratch", batch*ns),
		f32(bufCovR, "cov_r", batch*ns),
		f32(bufCovG, "cov_g", batch*ns),
		f32(bufCovB, "cov_b", batch*ns),
		f32(bufAR, "coeff_r", batch*ns),
		f32(bufAG, "coeff_g", batch*ns),
		f32(bufAB, "coeff_b", batch*ns),
		f32(bufBias, "coeff_bias", batch*ns),
	)
	for _, s := range sides {
		base := guideBase(s)
		for c := 0; c < 3; c++ {
			specs = append(specs,
				f32(base+guideFull+gpuBuffer(c), fmt.Sprintf("%s_guide_%s", s, channelNames[c]), n),
				f32(base+guideSub+gpuBuffer(c), fmt.Sprintf("%s_guide_%s_reduced", s, channelNames[c]), ns),
				f32(base+guideMean+gpuBuffer(c), fmt.Sprintf("%s_guide_%s_mean", s, channelNames[c]), ns),
			)
		}
		for k := 0; k < symCount; k++ {
			specs = append(specs, f32(base+guideCof+gpuBuffer(k), fmt.Sprintf("%s_cofactor_%s", s, symNames[k]), ns))
		}
		specs = append(specs, f32(base+guideDet, fmt.Sprintf("%s_determinant", s), ns))
	}
	return specs
}

func guideBuffers(reg *compute.BufferRegistry[gpuBuffer], s side) guideSet[compute.Buffer] {
	base := guideBase(s)
	var g guideSet[compute.Buffer]
	for c := 0; c < 3; c++ {
		g.full[c] = reg.Get(base + guideFull + gpuBuffer(c))
		g.sub[c] = reg.Get(base + guideSub + gpuBuffer(c))
		g.mean[c] = reg.Get(base + guideMean + gpuBuffer(c))
	}
	for k := 0; k < symCount; k++ {
		g.cof[k] = reg.Get(base + guideCof + gpuBuffer(k))
	}
	g.det = reg.Get(base + guideDet)
	return g
}

func guideScratchBuffers(reg *compute.BufferRegistry[gpuBuffer]) guideScratch[compute.Buffer] {
	var s guideScratch[compute.Buffer]
	for k := 0; k < symCount; k++ {
		s.vars[k] = reg.Get(bufVarRR + gpuBuffer(k))
	}
	s.tmp = reg.Get(bufTmp)
	s.tmp2 = reg.Get(bufTmp2)
	s.boxTemps = reg.Get(bufBoxTemps)
	return s
}

func filterBuffers(reg *compute.BufferRegistry[gpuBuffer]) filterSet[compute.Buffer] {
	return filterSet[compute.Buffer]{
		cost:     reg.Get(bufCostStack),
		up:       [4]compute.Buffer{reg.Get(bufUpR), reg.Get(bufUpG), reg.Get(bufUpB), reg.Get(bufUpBias)},
		fullTmp:  reg.Get(bufFullTmp),
		p:        reg.Get(bufP),
		meanP:    reg.Get(bufMeanP),
		tmp:      reg.Get(bufTmp),
		tmp2:     reg.Get(bufTmp2),
		boxTemps: reg.Get(bufBoxTemps),
		cov:      [3]compute.Buffer{reg.Get(bufCovR), reg.Get(bufCovG), reg.Get(bufCovB)},
		a:        [3]compute.Buffer{reg.Get(bufAR), reg.Get(bufAG), reg.Get(bufAB)},
		bias:     reg.Get(bufBias),
	}
}
