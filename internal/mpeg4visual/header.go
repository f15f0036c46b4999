// Package mpeg4visual frames MPEG-1/2 Video and MPEG-4 Visual elementary
// streams, extracting sequence/VOL headers and reconstructing CTS offsets
// for B-frame reordering (spec §4.3).
package mpeg4visual

import "github.com/gpaccore/mediacore/internal/bitreader"

// Start codes (ISO/IEC 11172-2 / 13818-2 / 14496-2).
const (
	startCodeSequenceHeader    byte = 0xB3
	startCodeSequenceExt       byte = 0xB5
	startCodeGOP               byte = 0xB8
	startCodePictureHeader     byte = 0x00
	startCodeUserData          byte = 0xB2
	startCodeVOP               byte = 0xB6
	startCodeVOSStart          byte = 0xB0
	startCodeVOLMin            byte = 0x20
	startCodeVOLMax            byte = 0x2F
)

// PictureType is the closed set of MPEG-1/2/4 picture coding types.
type PictureType byte

// Picture types, per spec §4.3.
const (
	PictureI PictureType = 1
	PictureP PictureType = 2
	PictureB PictureType = 3
	PictureD PictureType = 4
)

// frameRateTable maps frame_rate_code (1..8) to a num/den pair, Table 6-4
// of ISO/IEC 11172-2.
var frameRateTable = [...][2]int{
	{0, 0}, // code 0 is forbidden
	{24000, 1001},
	{24, 1},
	{25, 1},
	{30000, 1001},
	{30, 1},
	{50, 1},
	{60000, 1001},
	{60, 1},
}

// SequenceInfo holds the MPEG-1/2 sequence_header fields the importer needs.
type SequenceInfo struct {
	Width, Height int

	AspectRatioCode byte
	FrameRateCode   byte
	FrameRateNum    int
	FrameRateDen    int

	BitRate       int // bits/sec, 400 bits granularity per the standard
	VBVBufferSize int

	IsMPEG2 bool // true once a sequence_extension has been observed
}

// parseSequenceHeader decodes the fields after the 00 00 01 B3 start code.
func parseSequenceHeader(payload []byte) (*SequenceInfo, error) {
	br := bitreader.New(payload)
	width, err := br.ReadBits(12)
	if err != nil {
		return nil, err
	}
	height, err := br.ReadBits(12)
	if err != nil {
		return nil, err
	}
	aspect, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	frCode, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	bitRate, err := br.ReadBits(18)
	if err != nil {
		return nil, err
	}
	if err := br.SkipBits(1); err != nil { // marker_bit
		return nil, err
	}
	vbv, err := br.ReadBits(10)
	if err != nil {
		return nil, err
	}

	info := &SequenceInfo{
		Width:           int(width),
		Height:          int(height),
		AspectRatioCode: byte(aspect),
		FrameRateCode:   byte(frCode),
		BitRate:         int(bitRate) * 400,
		VBVBufferSize:   int(vbv) * 16 * 1024,
	}
	if int(frCode) < len(frameRateTable) {
		info.FrameRateNum = frameRateTable[frCode][0]
		info.FrameRateDen = frameRateTable[frCode][1]
	}
	return info, nil
}

// applySequenceExtension widens width/height/bit_rate with the 2/2/12 extra
// bits a 00 00 01 B5 sequence_extension carries in MPEG-2 streams (the
// low-order bits of the fields in sequence_header become the high-order
// bits here: spec §4.3 "MPEG-2 extension adding 2 bits of each").
func applySequenceExtension(info *SequenceInfo, payload []byte) error {
	br := bitreader.New(payload)
	if _, err := br.ReadBits(8); err != nil { // profile_and_level_indication
		return err
	}
	if err := br.SkipBits(1); err != nil { // progressive_sequence
		return err
	}
	if err := br.SkipBits(2); err != nil { // chroma_format
		return err
	}
	widthExt, err := br.ReadBits(2)
	if err != nil {
		return err
	}
	heightExt, err := br.ReadBits(2)
	if err != nil {
		return err
	}
	bitRateExt, err := br.ReadBits(12)
	if err != nil {
		return err
	}

	info.Width |= int(widthExt) << 12
	info.Height |= int(heightExt) << 12
	info.BitRate |= int(bitRateExt) << 18
	info.IsMPEG2 = true
	return nil
}

// parsePictureCodingType reads the 3-bit picture_coding_type field out of a
// picture_header payload (after the 10-bit temporal_reference prefix).
func parsePictureCodingType(payload []byte) (PictureType, error) {
	br := bitreader.New(payload)
	if err := br.SkipBits(10); err != nil { // temporal_reference
		return 0, err
	}
	typ, err := br.ReadBits(3)
	if err != nil {
		return 0, err
	}
	return PictureType(typ), nil
}

// VOLInfo holds the MPEG-4 Visual Object Layer fields the importer needs.
// Only the rectangular, non-scalable case is handled (spec §4.3's table
// entries all describe progressive rectangular content).
type VOLInfo struct {
	Width, Height int

	VOPTimeIncrementResolution uint32
	FixedVOPRate               bool
	FixedVOPTimeIncrement      uint32
}

// parseVOL decodes enough of a video_object_layer payload (the start-code
// byte itself, in 0x20..0x2F, has already been stripped) to recover
// dimensions and timing. Scalability, sprite, and interlaced paths are not
// implemented (no sample pack exercises them); an error return means "skip
// this VOL, keep prior dimensions".
func parseVOL(payload []byte) (*VOLInfo, error) {
	br := bitreader.New(payload)
	if err := br.SkipBits(1); err != nil { // random_accessible_vol
		return nil, err
	}
	if err := br.SkipBits(8); err != nil { // video_object_type_indication
		return nil, err
	}
	isObjectLayerID, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	if isObjectLayerID {
		if err := br.SkipBits(4); err != nil { // video_object_layer_priority
			return nil, err
		}
	}
	aspectRatioInfo, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if aspectRatioInfo == 0xF { // extended_par
		if err := br.SkipBits(16); err != nil {
			return nil, err
		}
	}
	volControlParams, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	if volControlParams {
		if err := br.SkipBits(2); err != nil { // chroma_format
			return nil, err
		}
		if err := br.SkipBits(1); err != nil { // low_delay
			return nil, err
		}
		vbvParams, err := br.ReadFlag()
		if err != nil {
			return nil, err
		}
		if vbvParams {
			if err := br.SkipBits(79); err != nil {
				return nil, err
			}
		}
	}
	shape, err := br.ReadBits(2) // video_object_layer_shape; 0 == rectangular
	if err != nil {
		return nil, err
	}
	if err := br.SkipBits(1); err != nil { // marker_bit
		return nil, err
	}
	vopTimeIncRes, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	if err := br.SkipBits(1); err != nil { // marker_bit
		return nil, err
	}
	info := &VOLInfo{VOPTimeIncrementResolution: vopTimeIncRes}

	fixedVOPRate, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	info.FixedVOPRate = fixedVOPRate
	if fixedVOPRate {
		bits := bitsFor(vopTimeIncRes)
		inc, err := br.ReadBits(bits)
		if err != nil {
			return nil, err
		}
		info.FixedVOPTimeIncrement = inc
	}

	if shape != 0 { // non-rectangular: dimensions aren't in this field
		return info, nil
	}
	if err := br.SkipBits(1); err != nil { // marker_bit
		return nil, err
	}
	width, err := br.ReadBits(13)
	if err != nil {
		return nil, err
	}
	if err := br.SkipBits(1); err != nil { // marker_bit
		return nil, err
	}
	height, err := br.ReadBits(13)
	if err != nil {
		return nil, err
	}
	info.Width = int(width)
	info.Height = int(height)
	return info, nil
}

// bitsFor returns ceil(log2(n)) for the fixed_vop_time_increment field
// width, per ISO/IEC 14496-2 §6.3.4.
func bitsFor(n uint32) int {
	if n <= 1 {
		return 1
	}
	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}

// parseVOPCodingType reads the 2-bit vop_coding_type field at the start of
// a VOP payload.
func parseVOPCodingType(payload []byte) (PictureType, error) {
	br := bitreader.New(payload)
	typ, err := br.ReadBits(2)
	if err != nil {
		return 0, err
	}
	// 0=I, 1=P, 2=B, 3=S(GMC); map onto the same PictureType space as
	// MPEG-1/2 (D has no MPEG-4 analog).
	return PictureType(typ + 1), nil
}
