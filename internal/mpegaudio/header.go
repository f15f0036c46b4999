// Package mpegaudio frames MPEG-1/2/2.5 Audio Layer I/II/III elementary
// streams (MP3 and MPEG Audio) by locating frame-sync headers and deriving
// sample rate/channel/bitrate from the fixed header fields (spec §4.6).
package mpegaudio

import "github.com/gpaccore/mediacore/internal/importer"

// bitrateTableV1L3 and the sibling tables below are ISO/IEC 11172-3 Table
// B.1 (kbps), indexed by the 4-bit bitrate_index (0 and 15 are invalid).
var bitrateTableV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
var bitrateTableV1L2 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0}
var bitrateTableV1L1 = [16]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}
var bitrateTableV2L1 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}
var bitrateTableV2L23 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

// sampleRateTable is indexed by [version][sampling_rate_index]; version
// 0=2.5, 1=reserved, 2=MPEG-2, 3=MPEG-1 (the encoded field's own order).
var sampleRateTable = [4][4]int{
	{11025, 12000, 8000, 0},
	{0, 0, 0, 0},
	{22050, 24000, 16000, 0},
	{44100, 48000, 32000, 0},
}

// samplesPerFrameTable is indexed by [isMPEG1][layer] (layer 1=I, 2=II, 3=III).
var samplesPerFrameTable = [2][4]int{
	{0, 384, 1152, 576},  // MPEG-2/2.5
	{0, 384, 1152, 1152}, // MPEG-1
}

// Header is one parsed MPEG Audio frame header (ISO/IEC 11172-3 §2.4.1.3).
type Header struct {
	VersionID  byte // 0=2.5, 2=MPEG-2, 3=MPEG-1
	Layer      byte // 1, 2, or 3
	Protection bool // CRC present

	BitrateKbps int
	SampleRate  int
	Padding     bool
	ChannelMode byte // 0=stereo, 1=joint stereo, 2=dual channel, 3=mono

	FrameSize       int
	SamplesPerFrame int
}

// ParseHeader decodes the 4-byte frame header at the start of buf. Returns
// ok=false if buf doesn't begin with a valid 0xFFE sync word and consistent
// version/layer/bitrate/sample-rate fields.
func ParseHeader(buf []byte) (*Header, bool) {
	if len(buf) < 4 {
		return nil, false
	}
	if buf[0] != 0xFF || buf[1]&0xE0 != 0xE0 {
		return nil, false
	}
	versionID := (buf[1] >> 3) & 0x03
	layerID := (buf[1] >> 1) & 0x03
	protectionBit := buf[1] & 0x01
	if versionID == 1 || layerID == 0 {
		return nil, false // reserved
	}
	layer := 4 - layerID // layerID: 01=III,10=II,11=I -> layer 3,2,1

	bitrateIdx := (buf[2] >> 4) & 0x0F
	sampleRateIdx := (buf[2] >> 2) & 0x03
	padding := (buf[2]>>1)&0x01 != 0
	channelMode := (buf[3] >> 6) & 0x03

	sampleRate := sampleRateTable[versionID][sampleRateIdx]
	if sampleRate == 0 {
		return nil, false
	}

	bitrate := bitrateForLayer(versionID, layer, bitrateIdx)
	if bitrate == 0 {
		return nil, false
	}

	isMPEG1 := 0
	if versionID == 3 {
		isMPEG1 = 1
	}
	samplesPerFrame := samplesPerFrameTable[isMPEG1][layer]

	h := &Header{
		VersionID:       versionID,
		Layer:           layer,
		Protection:      protectionBit == 0,
		BitrateKbps:     bitrate,
		SampleRate:      sampleRate,
		Padding:         padding,
		ChannelMode:     channelMode,
		SamplesPerFrame: samplesPerFrame,
	}
	h.FrameSize = frameSize(h)
	if h.FrameSize < 4 {
		return nil, false
	}
	return h, true
}

func bitrateForLayer(versionID, layer, idx byte) int {
	isMPEG1 := versionID == 3
	switch {
	case isMPEG1 && layer == 1:
		return bitrateTableV1L1[idx]
	case isMPEG1 && layer == 2:
		return bitrateTableV1L2[idx]
	case isMPEG1 && layer == 3:
		return bitrateTableV1L3[idx]
	case !isMPEG1 && layer == 1:
		return bitrateTableV2L1[idx]
	default:
		return bitrateTableV2L23[idx]
	}
}

// frameSize computes the total frame length in bytes, ISO/IEC 11172-3
// §2.4.3.1's two formulas (Layer I uses a 4x sample-slot unit, Layers
// II/III use the samples-per-frame/8 form).
func frameSize(h *Header) int {
	pad := 0
	if h.Padding {
		pad = 1
	}
	if h.Layer == 1 {
		return (12*h.BitrateKbps*1000/h.SampleRate + pad) * 4
	}
	return h.SamplesPerFrame/8*h.BitrateKbps*1000/h.SampleRate + pad
}

// ChannelCount returns 1 for mono (channel_mode 3), 2 otherwise.
func (h *Header) ChannelCount() int {
	if h.ChannelMode == 3 {
		return 1
	}
	return 2
}

// CodecID maps the parsed layer onto the importer's codec enumeration:
// Layer III is MP3; Layers I/II are grouped as MPEG-2 Audio (ISO/IEC
// 13818-3), matching the distinction the spec draws in §4.6.
func (h *Header) CodecID() importer.CodecID {
	if h.Layer == 3 {
		return importer.CodecMP3
	}
	return importer.CodecMPEG2Audio
}
