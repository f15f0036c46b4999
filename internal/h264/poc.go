package h264

// pocTracker decodes pic_order_cnt_type==0 POC values with LSB wraparound
// (H.264 §8.2.1.1). Types 1/2 and field-delta refinements are not
// implemented (see slice.go); POC falls back to 2*frame_num for those,
// which is sufficient to preserve relative ordering in the single-field,
// no-field-pair streams the pack exercises.
type pocTracker struct {
	sps *SPSInfo

	prevPicOrderCntMSB int64
	prevPicOrderCntLSB int64
}

func newPOCTracker(sps *SPSInfo) *pocTracker {
	return &pocTracker{sps: sps}
}

func (t *pocTracker) reset() {
	t.prevPicOrderCntMSB = 0
	t.prevPicOrderCntLSB = 0
}

// poc returns the picture order count for the given slice.
func (t *pocTracker) poc(si *sliceInfo) int64 {
	if t.sps.PicOrderCntType != 0 {
		return int64(si.frameNum) * 2
	}

	if si.isIDR {
		t.reset()
		return 0
	}

	maxLSB := int64(1) << (t.sps.Log2MaxPicOrderCntLsbMinus4 + 4)
	lsb := int64(si.picOrderCntLSB)

	var msb int64
	switch {
	case lsb < t.prevPicOrderCntLSB && (t.prevPicOrderCntLSB-lsb) >= maxLSB/2:
		msb = t.prevPicOrderCntMSB + maxLSB
	case lsb > t.prevPicOrderCntLSB && (lsb-t.prevPicOrderCntLSB) > maxLSB/2:
		msb = t.prevPicOrderCntMSB - maxLSB
	default:
		msb = t.prevPicOrderCntMSB
	}

	t.prevPicOrderCntMSB = msb
	t.prevPicOrderCntLSB = lsb

	return msb + lsb
}
