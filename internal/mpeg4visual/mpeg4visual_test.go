package mpeg4visual

import (
	"testing"

	"github.com/gpaccore/mediacore/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter is a tiny MSB-first bit packer used only to build test
// fixtures; production code here only ever reads these fields.
type bitWriter struct {
	bytes []byte
	cur   byte
	nbits uint
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		bit := byte((v >> uint(i)) & 1)
		w.cur = (w.cur << 1) | bit
		w.nbits++
		if w.nbits == 8 {
			w.bytes = append(w.bytes, w.cur)
			w.cur = 0
			w.nbits = 0
		}
	}
}

func (w *bitWriter) writeFlag(v bool) {
	if v {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
}

func (w *bitWriter) bytesAligned() []byte {
	if w.nbits > 0 {
		w.cur <<= (8 - w.nbits)
		w.bytes = append(w.bytes, w.cur)
		w.cur = 0
		w.nbits = 0
	}
	return w.bytes
}

func startCode(code byte, payload []byte) []byte {
	out := []byte{0, 0, 1, code}
	return append(out, payload...)
}

func buildSequenceHeaderPayload(width, height, aspect, frCode, bitRate, vbv uint32) []byte {
	w := &bitWriter{}
	w.writeBits(width, 12)
	w.writeBits(height, 12)
	w.writeBits(aspect, 4)
	w.writeBits(frCode, 4)
	w.writeBits(bitRate, 18)
	w.writeFlag(true) // marker_bit
	w.writeBits(vbv, 10)
	return w.bytesAligned()
}

func buildSequenceExtPayload(widthExt, heightExt, bitRateExt uint32) []byte {
	w := &bitWriter{}
	w.writeBits(0x62, 8) // profile_and_level_indication (arbitrary)
	w.writeFlag(true)    // progressive_sequence
	w.writeBits(1, 2)    // chroma_format 4:2:0
	w.writeBits(widthExt, 2)
	w.writeBits(heightExt, 2)
	w.writeBits(bitRateExt, 12)
	return w.bytesAligned()
}

func buildPictureHeaderPayload(temporalRef uint32, typ PictureType) []byte {
	w := &bitWriter{}
	w.writeBits(temporalRef, 10)
	w.writeBits(uint32(typ), 3)
	w.writeBits(0, 3) // pad to byte boundary, discarded by the parser
	return w.bytesAligned()
}

func TestParseSequenceHeader(t *testing.T) {
	payload := buildSequenceHeaderPayload(352, 288, 1, 3, 260, 10)
	info, err := parseSequenceHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, 352, info.Width)
	assert.Equal(t, 288, info.Height)
	assert.Equal(t, byte(1), info.AspectRatioCode)
	assert.Equal(t, byte(3), info.FrameRateCode)
	assert.Equal(t, 25, info.FrameRateNum)
	assert.Equal(t, 1, info.FrameRateDen)
	assert.Equal(t, 260*400, info.BitRate)
	assert.False(t, info.IsMPEG2)
}

func TestApplySequenceExtensionWidensDimensions(t *testing.T) {
	info, err := parseSequenceHeader(buildSequenceHeaderPayload(4095, 4095, 1, 5, 10, 1))
	require.NoError(t, err)

	err = applySequenceExtension(info, buildSequenceExtPayload(1, 1, 0))
	require.NoError(t, err)
	assert.True(t, info.IsMPEG2)
	assert.Equal(t, 4095|(1<<12), info.Width)
	assert.Equal(t, 4095|(1<<12), info.Height)
}

func TestParsePictureCodingType(t *testing.T) {
	typ, err := parsePictureCodingType(buildPictureHeaderPayload(42, PictureP))
	require.NoError(t, err)
	assert.Equal(t, PictureP, typ)
}

func TestSplitStartCodes(t *testing.T) {
	seq := startCode(startCodeSequenceHeader, buildSequenceHeaderPayload(176, 144, 1, 5, 10, 1))
	pic := startCode(startCodePictureHeader, buildPictureHeaderPayload(0, PictureI))
	buf := append(append([]byte{}, seq...), pic...)

	units, positions, tail := splitStartCodes(buf)
	require.Len(t, units, 1) // the trailing unit (picture header) has no terminator, held as tail
	assert.Equal(t, startCodeSequenceHeader, units[0].code)
	assert.Equal(t, []int{0}, positions)
	assert.NotEmpty(t, tail)
}

func TestFramerBasicIFrame(t *testing.T) {
	f := NewFramer(0, 0)

	seq := startCode(startCodeSequenceHeader, buildSequenceHeaderPayload(352, 288, 1, 5, 10, 1))
	pic := startCode(startCodePictureHeader, buildPictureHeaderPayload(0, PictureI))
	sliceData := []byte{0xAB, 0xCD, 0xEF}

	f.Feed(append(append(append([]byte{}, seq...), pic...), sliceData...), 0, 0)

	samples, ierr := f.Flush()
	require.Nil(t, ierr)
	require.Len(t, samples, 1)
	assert.Equal(t, importer.RAPSync, samples[0].IsRAP)
	assert.Equal(t, int64(0), samples[0].DTS)

	desc := f.descriptor()
	assert.Equal(t, 352, desc.Width)
	assert.Equal(t, 288, desc.Height)
	assert.Equal(t, importer.CodecMPEG1Video, desc.CodecID)
}

func TestFramerPacksCTSForBFrames(t *testing.T) {
	f := NewFramer(0, 0)
	const dtsInc = 3600

	mk := func(typ PictureType) []byte {
		return append(startCode(startCodePictureHeader, buildPictureHeaderPayload(0, typ)), 0xAB, 0xCD)
	}

	// Decode order I, P, B, B; display order I, B, B, P.
	f.Feed(mk(PictureI), 0, 0)
	f.Feed(mk(PictureP), dtsInc, 0)
	f.Feed(mk(PictureB), 2*dtsInc, 0)
	f.Feed(mk(PictureB), 3*dtsInc, 0)

	samples, ierr := f.Flush()
	require.Nil(t, ierr)
	require.Len(t, samples, 4)

	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].DTS, samples[i-1].DTS)
	}
	// Display order by CTS should be I, B, B, P -> indices 0, 2, 3, 1.
	assert.Less(t, samples[0].CTS, samples[2].CTS)
	assert.Less(t, samples[2].CTS, samples[3].CTS)
	assert.Less(t, samples[3].CTS, samples[1].CTS)
}

func TestMaybeDetectDivX(t *testing.T) {
	f := NewFramer(0, 0)
	payload := append([]byte("DivX"), []byte("500Build1234p")...)
	payload = append(payload, 0)
	f.maybeDetectDivX(payload)
	assert.True(t, f.divxPacked)
}
