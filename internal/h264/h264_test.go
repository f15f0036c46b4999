package h264

import (
	"testing"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpaccore/mediacore/internal/importer"
)

// bitWriter is a minimal MSB-first bit packer used only by these tests to
// hand-build Annex-B fixtures; production code never needs to encode SPS/
// PPS/slice headers, only parse them.
type bitWriter struct {
	bytes []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		bit := byte((v >> uint(i)) & 1)
		w.cur = w.cur<<1 | bit
		w.nbits++
		if w.nbits == 8 {
			w.bytes = append(w.bytes, w.cur)
			w.cur = 0
			w.nbits = 0
		}
	}
}

func (w *bitWriter) writeFlag(b bool) {
	if b {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
}

func bitLen(x uint32) int {
	n := 0
	for x > 0 {
		n++
		x >>= 1
	}
	return n
}

func (w *bitWriter) writeUE(v uint32) {
	temp := v + 1
	n := bitLen(temp)
	w.writeBits(0, n-1)
	w.writeBits(temp, n)
}

// bytesAligned flushes any partial byte, zero-padding it.
func (w *bitWriter) bytesAligned() []byte {
	if w.nbits > 0 {
		w.cur <<= (8 - w.nbits)
		w.bytes = append(w.bytes, w.cur)
		w.cur = 0
		w.nbits = 0
	}
	return w.bytes
}

type spsOpts struct {
	profileIdc           byte
	widthMbsMinus1       uint32
	heightMapUnitsMinus1 uint32
	frameMbsOnly         bool
	log2MaxFrameNumM4    uint32
	log2MaxPocLsbM4      uint32
}

func buildSPSNALU(o spsOpts) []byte {
	var w bitWriter
	w.writeBits(uint32(o.profileIdc), 8)
	w.writeBits(0, 8) // constraint flags
	w.writeBits(30, 8) // level_idc
	w.writeUE(0)       // seq_parameter_set_id
	w.writeUE(o.log2MaxFrameNumM4)
	w.writeUE(0) // pic_order_cnt_type
	w.writeUE(o.log2MaxPocLsbM4)
	w.writeUE(1)         // max_num_ref_frames
	w.writeFlag(false)   // gaps_in_frame_num_value_allowed_flag
	w.writeUE(o.widthMbsMinus1)
	w.writeUE(o.heightMapUnitsMinus1)
	w.writeFlag(o.frameMbsOnly)
	if !o.frameMbsOnly {
		w.writeFlag(false) // mb_adaptive_frame_field_flag
	}
	w.writeFlag(true)  // direct_8x8_inference_flag
	w.writeFlag(false) // frame_cropping_flag
	w.writeFlag(false) // vui_parameters_present_flag

	payload := w.bytesAligned()
	return append([]byte{0x67}, payload...) // nal_ref_idc=3, type=7 (SPS)
}

func buildPPSNALU(id, spsID uint32) []byte {
	var w bitWriter
	w.writeUE(id)
	w.writeUE(spsID)
	w.writeFlag(false) // entropy_coding_mode_flag
	w.writeFlag(false) // bottom_field_pic_order_in_frame_present_flag
	payload := w.bytesAligned()
	return append([]byte{0x68}, payload...) // type=8 (PPS)
}

type sliceOpts struct {
	isIDR         bool
	firstMB       uint32
	sliceType     uint32
	ppsID         uint32
	frameNum      uint32
	frameNumBits  int
	idrPicID      uint32
	pocLSB        uint32
	pocLSBBits    int
	frameMbsOnly  bool
}

func buildSliceNALU(o sliceOpts) []byte {
	var w bitWriter
	w.writeUE(o.firstMB)
	w.writeUE(o.sliceType)
	w.writeUE(o.ppsID)
	w.writeBits(o.frameNum, o.frameNumBits)
	if !o.frameMbsOnly {
		w.writeFlag(false) // field_pic_flag
	}
	if o.isIDR {
		w.writeUE(o.idrPicID)
	}
	w.writeBits(o.pocLSB, o.pocLSBBits)
	payload := w.bytesAligned()
	// Pad a few dummy slice_data bytes; the parser never reads this far.
	payload = append(payload, 0xAB, 0xCD, 0xEF, 0x80)

	typ := byte(naluTypeNonIDRSlice)
	refIdc := byte(2)
	if o.isIDR {
		typ = byte(mch264.NALUTypeIDR)
		refIdc = 3
	}
	header := refIdc<<5 | typ
	return append([]byte{header}, payload...)
}

// annexB wraps a list of raw NALUs with 00 00 00 01 start codes.
func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, n...)
	}
	return out
}

func TestParseSPSBaseline(t *testing.T) {
	nalu := buildSPSNALU(spsOpts{
		profileIdc:           66,
		widthMbsMinus1:       10, // (10+1)*16 = 176
		heightMapUnitsMinus1: 8,  // (8+1)*16 = 144
		frameMbsOnly:         true,
		log2MaxFrameNumM4:    0,
		log2MaxPocLsbM4:      2,
	})

	sps, err := ParseSPS(nalu)
	require.NoError(t, err)
	assert.EqualValues(t, 66, sps.ProfileIdc)
	assert.Equal(t, 176, sps.Width)
	assert.Equal(t, 144, sps.Height)
	assert.True(t, sps.FrameMbsOnlyFlag)
	assert.EqualValues(t, 0, sps.PicOrderCntType)
	assert.EqualValues(t, 2, sps.Log2MaxPicOrderCntLsbMinus4)
	assert.False(t, sps.HasChromaExtension())
	assert.Equal(t, 1, sps.PixelAspectNum)
	assert.Equal(t, 1, sps.PixelAspectDen)
}

func TestParseSPSHighProfileRejectsScalingLists(t *testing.T) {
	// High-profile streams with explicit scaling lists are deliberately
	// unsupported (rare, not exercised by any sample in the pack).
	var w bitWriter
	w.writeBits(100, 8) // profile_idc: High
	w.writeBits(0, 8)
	w.writeBits(30, 8)
	w.writeUE(0)       // seq_parameter_set_id
	w.writeUE(1)       // chroma_format_idc
	w.writeUE(0)       // bit_depth_luma_minus8
	w.writeUE(0)       // bit_depth_chroma_minus8
	w.writeFlag(false) // qpprime_y_zero_transform_bypass_flag
	w.writeFlag(true)  // seq_scaling_matrix_present_flag
	w.writeFlag(true)  // seq_scaling_list_present_flag[0]
	nalu := append([]byte{0x67}, w.bytesAligned()...)

	_, err := ParseSPS(nalu)
	assert.ErrorIs(t, err, errScalingListUnsupported)
}

func TestParsePPS(t *testing.T) {
	nalu := buildPPSNALU(0, 0)
	pps, err := ParsePPS(nalu)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pps.ID)
	assert.EqualValues(t, 0, pps.SPSID)
	assert.False(t, pps.BottomFieldPicOrderInFramePresentFlag)
}

func TestSameAUBoundaries(t *testing.T) {
	sps := &SPSInfo{FrameMbsOnlyFlag: true, Log2MaxPicOrderCntLsbMinus4: 2}
	pps := &PPSInfo{}

	idr := buildSliceNALU(sliceOpts{isIDR: true, firstMB: 0, sliceType: 7, ppsID: 0, frameNum: 0, frameNumBits: 4, pocLSB: 0, pocLSBBits: 6, frameMbsOnly: true})
	si1, err := parseSliceHeader(idr, sps, pps)
	require.NoError(t, err)
	assert.True(t, si1.isIDR)

	// Second slice of the SAME picture (continuation, firstMB != 0).
	cont := buildSliceNALU(sliceOpts{isIDR: true, firstMB: 50, sliceType: 7, ppsID: 0, frameNum: 0, frameNumBits: 4, pocLSB: 0, pocLSBBits: 6, frameMbsOnly: true})
	si2, err := parseSliceHeader(cont, sps, pps)
	require.NoError(t, err)
	assert.True(t, sameAU(si1, si2))

	// A later picture, different frame_num, firstMB back to 0: new AU.
	next := buildSliceNALU(sliceOpts{isIDR: false, firstMB: 0, sliceType: 0, ppsID: 0, frameNum: 1, frameNumBits: 4, pocLSB: 4, pocLSBBits: 6, frameMbsOnly: true})
	si3, err := parseSliceHeader(next, sps, pps)
	require.NoError(t, err)
	assert.False(t, sameAU(si1, si3))
	assert.False(t, sameAU(si2, si3))
}

func TestSplitAnnexB(t *testing.T) {
	a := []byte{0xAA, 0xBB}
	b := []byte{0xCC, 0xDD, 0xEE}
	buf := annexB(a, b)

	nalus, tail := splitAnnexB(buf)
	require.Len(t, nalus, 1)
	assert.Equal(t, a, nalus[0])
	assert.Equal(t, append([]byte{0x00, 0x00, 0x00, 0x01}, b...), tail)
}

func TestContainsRecoveryPointSEI(t *testing.T) {
	// SEI NALU: payloadType=6 (recovery_point), payloadSize=1, payload=0x00.
	sei := []byte{0x06, 0x06, 0x01, 0x00, 0x80}
	nalus := []nalUnit{{bytes: sei, typ: naluTypeSEI}}
	assert.True(t, containsRecoveryPointSEI(nalus))

	other := []byte{0x06, 0x00, 0x01, 0x00, 0x80} // payloadType 0
	nalus2 := []nalUnit{{bytes: other, typ: naluTypeSEI}}
	assert.False(t, containsRecoveryPointSEI(nalus2))
}

func TestEncodeAVCCLengthPrefixSize(t *testing.T) {
	small := []nalUnit{{bytes: []byte{0x67, 0x01, 0x02}}}
	payload, maxSize := encodeAVCC(small, 0)
	require.Len(t, payload, 1+3)
	assert.Equal(t, 3, maxSize)

	big := make([]byte, 300)
	large := []nalUnit{{bytes: big}}
	_, maxSize = encodeAVCC(large, 1)
	assert.Equal(t, 300, maxSize)
}

func TestFramerBasicAccessUnits(t *testing.T) {
	sps := buildSPSNALU(spsOpts{profileIdc: 66, widthMbsMinus1: 10, heightMapUnitsMinus1: 8, frameMbsOnly: true, log2MaxFrameNumM4: 0, log2MaxPocLsbM4: 2})
	pps := buildPPSNALU(0, 0)
	idr := buildSliceNALU(sliceOpts{isIDR: true, firstMB: 0, sliceType: 7, ppsID: 0, frameNum: 0, frameNumBits: 4, pocLSB: 0, pocLSBBits: 6, frameMbsOnly: true})
	p1 := buildSliceNALU(sliceOpts{isIDR: false, firstMB: 0, sliceType: 0, ppsID: 0, frameNum: 1, frameNumBits: 4, pocLSB: 4, pocLSBBits: 6, frameMbsOnly: true})

	f := NewFramer(0, 0)
	f.Feed(annexB(sps, pps, idr), 0, 0)
	f.Feed(annexB(p1), 3600, 0)

	samples, ierr := f.Flush()
	require.Nil(t, ierr)
	require.Len(t, samples, 2)

	assert.Equal(t, importer.RAPSync, samples[0].IsRAP)
	assert.EqualValues(t, 0, samples[0].DTS)
	assert.EqualValues(t, 3600, samples[1].DTS)

	desc := f.descriptor()
	assert.Equal(t, 176, desc.Width)
	assert.Equal(t, 144, desc.Height)
	assert.Equal(t, importer.CodecH264, desc.CodecID)
}

func TestFramerCTSReordersOutOfOrderPOC(t *testing.T) {
	sps := buildSPSNALU(spsOpts{profileIdc: 66, widthMbsMinus1: 10, heightMapUnitsMinus1: 8, frameMbsOnly: true, log2MaxFrameNumM4: 4, log2MaxPocLsbM4: 4})
	pps := buildPPSNALU(0, 0)

	f := NewFramer(0, 0)
	const dtsInc = 3600

	// Decode order IDR(poc0), P(poc8), B(poc4), B(poc6); display order is
	// therefore IDR, B(poc4), B(poc6), P(poc8).
	mk := func(isIDR bool, frameNum, poc uint32) []byte {
		return buildSliceNALU(sliceOpts{isIDR: isIDR, firstMB: 0, sliceType: 7, ppsID: 0, frameNum: frameNum, frameNumBits: 8, pocLSB: poc, pocLSBBits: 8, frameMbsOnly: true})
	}

	f.Feed(annexB(sps, pps, mk(true, 0, 0)), 0, 0)
	f.Feed(annexB(mk(false, 1, 8)), dtsInc, 0)
	f.Feed(annexB(mk(false, 2, 4)), 2*dtsInc, 0)
	f.Feed(annexB(mk(false, 3, 6)), 3*dtsInc, 0)

	samples, ierr := f.Flush()
	require.Nil(t, ierr)
	require.Len(t, samples, 4)

	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].DTS, samples[i-1].DTS)
		assert.GreaterOrEqual(t, samples[i].CTSOffset, int64(0))
	}

	// True display order is IDR, B(poc4), B(poc6), P(poc8) -> indices 0,2,3,1.
	assert.Less(t, samples[0].CTS, samples[2].CTS)
	assert.Less(t, samples[2].CTS, samples[3].CTS)
	assert.Less(t, samples[3].CTS, samples[1].CTS)
}
