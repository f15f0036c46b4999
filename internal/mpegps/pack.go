package mpegps

import (
	"fmt"
	"io"
)

// skipPackHeader consumes the remainder of a pack header (the caller has
// already consumed the 4-byte "00 00 01 BA" start code) and returns the
// total number of bytes consumed after the start code.
//
// MPEG-2 layout: byte[0] (i.e. spec's byte[4] counting from the start
// code) has its top two bits == "01"; header is 10 more bytes (14 total
// incl. start code) followed by a variable stuffing length in the low 3
// bits of the 10th byte.
// MPEG-1 layout: 8 more bytes (12 total incl. start code), no stuffing.
func skipPackHeader(r io.Reader) (int, error) {
	var hdr [10]byte
	if _, err := io.ReadFull(r, hdr[:1]); err != nil {
		return 0, err
	}
	consumed := 1

	if hdr[0]&0xC0 == 0x40 {
		// MPEG-2: 9 more bytes to complete the 10-byte fixed header.
		if _, err := io.ReadFull(r, hdr[1:10]); err != nil {
			return consumed, err
		}
		consumed += 9
		stuffingLen := int(hdr[9] & 0x07)
		if stuffingLen > 0 {
			if _, err := io.CopyN(io.Discard, r, int64(stuffingLen)); err != nil {
				return consumed, err
			}
			consumed += stuffingLen
		}
		return consumed, nil
	}

	// MPEG-1: 7 more bytes to complete the 8-byte fixed header.
	if _, err := io.ReadFull(r, hdr[1:8]); err != nil {
		return consumed, err
	}
	consumed += 7
	return consumed, nil
}

// skipSystemEnd handles the "00 00 01 B9" end-of-stream code: the demuxer
// rewinds 2 bytes to allow multi-segment files (spec §4.1), implemented
// here as "report how far to rewind" since the caller owns the cursor.
const systemEndRewind = 2

func validateStartCode(b [4]byte) (byte, error) {
	if b[0] != 0x00 || b[1] != 0x00 || b[2] != 0x01 {
		return 0, fmt.Errorf("mpegps: not a start code: % x", b)
	}
	return b[3], nil
}
