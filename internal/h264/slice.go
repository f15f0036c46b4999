package h264

import (
	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/gpaccore/mediacore/internal/bitreader"
)

// sliceInfo is the subset of a slice header the framer needs to detect
// access-unit boundaries and reconstruct POC (spec §4.2 "Access unit
// boundaries", "CTS offset reconstruction").
type sliceInfo struct {
	firstMBInSlice int
	sliceType      uint32
	ppsID          uint32
	frameNum       uint32
	fieldPicFlag   bool
	bottomField    bool
	idrPicID       uint32
	picOrderCntLSB uint32
	isIDR          bool
}

// parseSliceHeader decodes just enough of a slice_layer_without_partitioning
// header to drive AU boundary detection and POC tracking. It requires the
// SPS referenced by the slice's PPS to already be known; pic_order_cnt_type
// values other than 0 fall back to frame_num-derived ordering (documented
// simplification — delta_pic_order_cnt parsing for types 1/2 is not
// implemented, as no pack sample exercises them).
func parseSliceHeader(nalu []byte, sps *SPSInfo, pps *PPSInfo) (*sliceInfo, error) {
	rbsp := unescapeRBSP(nalu)
	if len(rbsp) < 2 {
		return nil, errShortSPS
	}
	br := bitreader.New(rbsp[1:])
	info := &sliceInfo{isIDR: naluType(nalu) == mch264.NALUTypeIDR}

	firstMB, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.firstMBInSlice = int(firstMB)

	sliceType, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.sliceType = sliceType % 5

	ppsID, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.ppsID = ppsID

	frameNumBits := int(sps.Log2MaxFrameNumMinus4) + 4
	frameNum, err := br.ReadBits(frameNumBits)
	if err != nil {
		return nil, err
	}
	info.frameNum = frameNum

	if !sps.FrameMbsOnlyFlag {
		fieldPic, err := br.ReadFlag()
		if err != nil {
			return nil, err
		}
		info.fieldPicFlag = fieldPic
		if fieldPic {
			bottom, err := br.ReadFlag()
			if err != nil {
				return nil, err
			}
			info.bottomField = bottom
		}
	}

	if info.isIDR {
		idrPicID, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		info.idrPicID = idrPicID
	}

	if sps.PicOrderCntType == 0 {
		lsbBits := int(sps.Log2MaxPicOrderCntLsbMinus4) + 4
		lsb, err := br.ReadBits(lsbBits)
		if err != nil {
			return nil, err
		}
		info.picOrderCntLSB = lsb
	}

	return info, nil
}

// sameAU reports whether two consecutive slices belong to the same access
// unit, per the subset of the H.264 Annex-rule 7.4.1.2.4 conditions spec
// §4.2 calls out: different frame_num, different pic_parameter_set_id, a
// change between IDR and non-IDR, or a field/frame-coding mismatch each
// force a new AU.
func sameAU(prev, cur *sliceInfo) bool {
	if prev == nil {
		return false
	}
	if cur.frameNum != prev.frameNum || cur.ppsID != prev.ppsID || cur.isIDR != prev.isIDR || cur.fieldPicFlag != prev.fieldPicFlag {
		return false
	}
	if cur.firstMBInSlice != 0 {
		// Additional slice of the same picture/field.
		return true
	}
	// firstMBInSlice == 0 normally starts a new picture, except when this
	// is the complementary field of a PAFF field pair.
	return prev.fieldPicFlag && cur.fieldPicFlag && cur.bottomField != prev.bottomField
}
