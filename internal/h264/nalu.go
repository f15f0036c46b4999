package h264

import mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

// splitAnnexB scans buf for Annex-B start codes (00 00 01 or 00 00 00 01)
// and returns the NALUs found between them (start-code and any trailing
// trailing_zero_8bits stripped). Bytes after the last recognized start
// code that don't yet contain a full NALU (no following start code seen)
// are returned as tail, to be prepended to the next Feed call.
func splitAnnexB(buf []byte) (nalus [][]byte, tail []byte) {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil, buf
	}
	for i, s := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1].pos
		} else {
			// Last NALU in this buffer: not yet known to be complete
			// unless the caller is flushing, so hold it back as tail.
			tail = buf[s.pos:]
			break
		}
		nalu := buf[s.pos+s.codeLen : end]
		nalu = trimTrailingZeros(nalu)
		if len(nalu) > 0 {
			nalus = append(nalus, nalu)
		}
	}
	return nalus, tail
}

type startCode struct {
	pos     int
	codeLen int
}

// findStartCodes locates every 00 00 01 (and its 00 00 00 01 variant)
// in buf.
func findStartCodes(buf []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] != 0 || buf[i+1] != 0 {
			continue
		}
		if buf[i+2] == 1 {
			out = append(out, startCode{pos: i, codeLen: 3})
			i += 2
			continue
		}
		if i+3 < len(buf) && buf[i+2] == 0 && buf[i+3] == 1 {
			out = append(out, startCode{pos: i, codeLen: 4})
			i += 3
		}
	}
	return out
}

// trimTrailingZeros removes trailing_zero_8bits bytes some encoders pad
// NALUs with before the next start code.
func trimTrailingZeros(nalu []byte) []byte {
	end := len(nalu)
	for end > 0 && nalu[end-1] == 0 {
		end--
	}
	return nalu[:end]
}

// trimSEIPadding drops trailing rbsp_trailing_bits padding bytes some
// encoders leave on SEI NALUs; harmless either way for a muxer, kept for
// parity with how the framer treats other NALU types.
func trimSEIPadding(raw []byte) []byte {
	return trimTrailingZeros(raw)
}

// containsIDR reports whether au has an IDR slice, the unambiguous
// sync-point signal. Delegates to mediacommon's h264.IsRandomAccess, the
// same call the relay's TS demuxer uses to classify keyframes.
func containsIDR(nalus []nalUnit) bool {
	raw := make([][]byte, len(nalus))
	for i, n := range nalus {
		raw[i] = n.bytes
	}
	return mch264.IsRandomAccess(raw)
}

// seiRecoveryPointType is the SEI payloadType for recovery_point
// (ITU-T H.264 Annex D.1.7).
const seiRecoveryPointType = 6

// containsRecoveryPointSEI reports whether au carries a recovery-point SEI
// message, which marks a non-IDR roll-recovery random access point
// (spec §4.2 RAP classification).
func containsRecoveryPointSEI(nalus []nalUnit) bool {
	for _, n := range nalus {
		if n.typ != naluTypeSEI {
			continue
		}
		if seiHasPayloadType(n.bytes, seiRecoveryPointType) {
			return true
		}
	}
	return false
}

// seiHasPayloadType scans an SEI NALU's payloadType/payloadSize chain
// (ITU-T H.264 §7.3.2.3.1: each is a run of 0xFF bytes adding 255 plus a
// final byte) looking for wantType.
func seiHasPayloadType(nalu []byte, wantType byte) bool {
	rbsp := unescapeRBSP(nalu)
	i := 1 // skip NAL header byte
	for i < len(rbsp) {
		payloadType := 0
		for i < len(rbsp) && rbsp[i] == 0xFF {
			payloadType += 255
			i++
		}
		if i >= len(rbsp) {
			return false
		}
		payloadType += int(rbsp[i])
		i++

		payloadSize := 0
		for i < len(rbsp) && rbsp[i] == 0xFF {
			payloadSize += 255
			i++
		}
		if i >= len(rbsp) {
			return false
		}
		payloadSize += int(rbsp[i])
		i++

		if payloadType == int(wantType) {
			return true
		}
		i += payloadSize
	}
	return false
}

// encodeAVCC repacks nalus as length-prefixed AVCC records using size
// length-size bytes per length. Returns the encoded payload and the
// largest single NALU size observed, used by the framer to decide
// whether the length-prefix width needs to widen.
func encodeAVCC(nalus []nalUnit, lengthSizeMinusOne byte) ([]byte, int) {
	size := int(lengthSizeMinusOne) + 1
	maxNALU := 0
	total := 0
	for _, n := range nalus {
		if len(n.bytes) > maxNALU {
			maxNALU = len(n.bytes)
		}
		total += size + len(n.bytes)
	}
	out := make([]byte, 0, total)
	for _, n := range nalus {
		out = append(out, encodeLength(len(n.bytes), size)...)
		out = append(out, n.bytes...)
	}
	return out, maxNALU
}

func encodeLength(n, size int) []byte {
	b := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}
