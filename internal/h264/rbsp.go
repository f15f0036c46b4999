package h264

import mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

// unescapeRBSP removes H.264 emulation-prevention bytes (00 00 03 -> 00 00)
// from a NAL unit payload, yielding the raw RBSP bit-readers expect.
func unescapeRBSP(nalu []byte) []byte {
	out := make([]byte, 0, len(nalu))
	zeroCount := 0
	for _, b := range nalu {
		if zeroCount >= 2 && b == 0x03 {
			zeroCount = 0
			continue
		}
		if b == 0x00 {
			zeroCount++
		} else {
			zeroCount = 0
		}
		out = append(out, b)
	}
	return out
}

// naluType returns the nal_unit_type of a NALU (its first byte, masked to
// 5 bits), typed as mediacommon's h264.NALUType so classification can use
// its exported constants directly.
func naluType(nalu []byte) mch264.NALUType {
	if len(nalu) == 0 {
		return 0
	}
	return mch264.NALUType(nalu[0] & 0x1F)
}

// naluRefIdc returns the 2-bit nal_ref_idc of a NALU.
func naluRefIdc(nalu []byte) byte {
	if len(nalu) == 0 {
		return 0
	}
	return (nalu[0] >> 5) & 0x03
}

// naluTypeNonIDRSlice and naluTypeSEI have no mediacommon-exported constant
// (it only names SPS, PPS, AUD, and IDR); the rest of the classification
// switch uses mch264.NALUTypeSPS/PPS/AccessUnitDelimiter/IDR directly.
const (
	naluTypeNonIDRSlice mch264.NALUType = 1
	naluTypeSEI         mch264.NALUType = 6
)
