package aac

import mpeg4audio "github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

// adtsSampleRates is Table 1.18 of ISO/IEC 13818-7, the sampling_frequency_index
// lookup every ADTS header (in any MPEG-4 Audio profile) uses.
var adtsSampleRates = []int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// adtsHeader is one parsed 7-byte (or 9-byte, protection_absent==0) ADTS
// fixed+variable header.
type adtsHeader struct {
	protectionAbsent bool
	profile          byte // profile - 1, i.e. the raw 2-bit field
	sampleRateIndex  byte
	channelConfig    byte
	frameLength      int // aac_frame_length: whole ADTS frame including this header
	headerLength     int // 7 or 9
}

// findADTSSync returns the offset of the next 12-bit 0xFFF sync word (with
// the layer bits confirmed zero) in buf, or -1.
func findADTSSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1]&0xF6 == 0xF0 {
			return i
		}
	}
	return -1
}

// parseADTSHeader decodes the fixed ADTS header fields the framer needs,
// grounded on the teacher's own hand-rolled ADTS reader (same bit layout,
// profile/sample-rate/channel-config field positions).
func parseADTSHeader(buf []byte) (*adtsHeader, bool) {
	if len(buf) < 7 {
		return nil, false
	}
	if buf[0] != 0xFF || buf[1]&0xF6 != 0xF0 {
		return nil, false
	}
	protectionAbsent := buf[1]&0x01 != 0
	profile := (buf[2] >> 6) & 0x03
	sampleRateIndex := (buf[2] >> 2) & 0x0F
	channelConfig := ((buf[2] & 0x01) << 2) | ((buf[3] >> 6) & 0x03)
	frameLength := (int(buf[3]&0x03) << 11) | (int(buf[4]) << 3) | int(buf[5]>>5)

	if int(sampleRateIndex) >= len(adtsSampleRates) || adtsSampleRates[sampleRateIndex] == 0 {
		return nil, false
	}
	if frameLength < 7 {
		return nil, false
	}

	h := &adtsHeader{
		protectionAbsent: protectionAbsent,
		profile:          profile,
		sampleRateIndex:  sampleRateIndex,
		channelConfig:    channelConfig,
		frameLength:      frameLength,
		headerLength:     7,
	}
	if !protectionAbsent {
		h.headerLength = 9
	}
	return h, true
}

// toAudioSpecificConfig builds the mediacommon config the teacher threads
// through its TS muxer/demuxer for AAC (mpeg4audio.AudioSpecificConfig),
// used both as the StreamDescriptor's CodecConfig and as the argument to
// mpeg4audio.ResolveChannelCount for channel_config==0 streams.
func (h *adtsHeader) toAudioSpecificConfig() *mpeg4audio.AudioSpecificConfig {
	// mediacommon's mpeg4audio package exports only ObjectTypeAACLC; every
	// ADTS profile maps onto it, matching the teacher's parseADTSHeader
	// (internal/relay/fmp4_adapter.go), which takes the same shortcut with
	// the same comment.
	return &mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   adtsSampleRates[h.sampleRateIndex],
		ChannelCount: int(h.channelConfig),
	}
}
