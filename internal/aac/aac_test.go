package aac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpaccore/mediacore/internal/importer"
)

// buildADTSFrame packs a minimal ADTS header (protection_absent=1, no CRC)
// around payload, per ISO/IEC 13818-7 Annex B.
func buildADTSFrame(profile, sampleRateIndex, channelConfig byte, payload []byte) []byte {
	frameLength := 7 + len(payload)
	h := make([]byte, 7)
	h[0] = 0xFF
	h[1] = 0xF1 // MPEG-4, layer 00, protection_absent=1
	h[2] = (profile << 6) | (sampleRateIndex << 2) | (channelConfig >> 2)
	h[3] = (channelConfig&0x03)<<6 | byte(frameLength>>11&0x03)
	h[4] = byte(frameLength >> 3)
	h[5] = byte(frameLength<<5) | 0x1F
	h[6] = 0xFC
	return append(h, payload...)
}

func TestParseADTSHeader(t *testing.T) {
	frame := buildADTSFrame(1, 4, 2, []byte{0xAB, 0xCD, 0xEF})
	h, ok := parseADTSHeader(frame)
	require.True(t, ok)
	assert.True(t, h.protectionAbsent)
	assert.Equal(t, byte(4), h.sampleRateIndex)
	assert.Equal(t, byte(2), h.channelConfig)
	assert.Equal(t, 7, h.headerLength)
	assert.Equal(t, len(frame), h.frameLength)

	cfg := h.toAudioSpecificConfig()
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 2, cfg.ChannelCount)
}

func TestFindADTSSyncSkipsGarbage(t *testing.T) {
	buf := append([]byte{0x00, 0x11, 0x22}, buildADTSFrame(1, 3, 2, []byte{0x01})...)
	assert.Equal(t, 3, findADTSSync(buf))
}

func TestFramerEmitsSampleAcrossFeedCalls(t *testing.T) {
	f := NewFramer(0, 1)
	payload := []byte{0x11, 0x22, 0x33, 0x44}
	frame := buildADTSFrame(1, 4, 2, payload)

	f.Feed(frame[:5], 0, 0) // split mid-header
	f.Feed(frame[5:], 0, 0)

	sample, desc, ok, ierr := f.NextSample()
	require.Nil(t, ierr)
	require.True(t, ok)
	assert.Equal(t, payload, sample.Data)
	assert.Equal(t, importer.RAPSync, sample.IsRAP)
	assert.Equal(t, 44100, desc.SampleRate)
	assert.Equal(t, 2, desc.Channels)
}

func TestFramerAssignsIncreasingDTSWithinOneFeedCall(t *testing.T) {
	f := NewFramer(0, 1)
	one := buildADTSFrame(1, 4, 2, []byte{0x01, 0x02})
	two := buildADTSFrame(1, 4, 2, []byte{0x03, 0x04})

	f.Feed(append(one, two...), 0, 0)

	samples, ierr := f.Flush()
	require.Nil(t, ierr)
	require.Len(t, samples, 2)
	assert.Less(t, samples[0].DTS, samples[1].DTS)
}
