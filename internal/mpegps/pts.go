// Package mpegps implements the MPEG-2 Program Stream pack/PES demuxer
// (spec §4.1): stream identification, pack/PES recognition, PES header
// parsing (three variants), timestamp recovery for headerless frames, and
// an index/seek layer built on recorded access points.
package mpegps

import "fmt"

// WritePTS encodes a 33-bit timestamp into the standard 5-byte MPEG PTS/DTS
// field, with the given 4-bit prefix nibble distinguishing PTS-only (0010),
// PTS-of-PTS+DTS (0011), or DTS-of-PTS+DTS (0001).
func WritePTS(prefix byte, ts uint64) [5]byte {
	ts &= (1 << 33) - 1
	var b [5]byte
	b[0] = (prefix << 4) | byte((ts>>29)&0x0E) | 0x01
	b[1] = byte((ts >> 22) & 0xFF)
	b[2] = byte((ts>>14)&0xFE) | 0x01
	b[3] = byte((ts >> 7) & 0xFF)
	b[4] = byte((ts<<1)&0xFE) | 0x01
	return b
}

// ReadPTS decodes a 5-byte PTS/DTS field and returns the 33-bit timestamp
// plus the 4-bit prefix nibble found in the top bits of the first byte.
func ReadPTS(b []byte) (ts uint64, prefix byte, err error) {
	if len(b) < 5 {
		return 0, 0, fmt.Errorf("mpegps: PTS field needs 5 bytes, got %d", len(b))
	}
	prefix = (b[0] >> 4) & 0x0F
	ts = uint64(b[0]&0x0E) << 29
	ts |= uint64(b[1]) << 22
	ts |= uint64(b[2]&0xFE) << 14
	ts |= uint64(b[3]) << 7
	ts |= uint64(b[4]&0xFE) >> 1
	return ts, prefix, nil
}
