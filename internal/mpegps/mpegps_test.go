package mpegps

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory importer.Source backing test PS streams.
type fakeSource struct {
	data []byte
	pos  int64
}

func (f *fakeSource) Read(buf []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(buf, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *fakeSource) Seek(abs int64) error {
	if abs < 0 || abs > int64(len(f.data)) {
		return fmt.Errorf("fakeSource: seek out of range: %d", abs)
	}
	f.pos = abs
	return nil
}

func (f *fakeSource) Size() (int64, bool) {
	return int64(len(f.data)), true
}

func buildPackHeader() []byte {
	return []byte{0x00, 0x00, 0x01, 0xBA, 0x44, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF8}
}

func buildSystemEnd() []byte {
	return []byte{0x00, 0x00, 0x01, 0xB9}
}

// buildPES constructs an MPEG-2-style PES packet with a PTS-only header.
func buildPES(streamID byte, ts uint64, payload []byte) []byte {
	hdr := []byte{0x80, 0x80, 0x05}
	pts := WritePTS(0x2, ts)
	hdr = append(hdr, pts[:]...)
	hdr = append(hdr, payload...)
	pktLen := len(hdr)
	out := []byte{0x00, 0x00, 0x01, streamID, byte(pktLen >> 8), byte(pktLen & 0xFF)}
	return append(out, hdr...)
}

func TestPTSRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 90000, 1<<33 - 1, 12345678901, 4294967296}
	for _, prefix := range []byte{0x1, 0x2, 0x3} {
		for _, ts := range cases {
			b := WritePTS(prefix, ts)
			gotTS, gotPrefix, err := ReadPTS(b[:])
			require.NoError(t, err)
			assert.Equal(t, ts&((1<<33)-1), gotTS)
			assert.Equal(t, prefix, gotPrefix)
		}
	}
}

func TestDemuxBasicFrames(t *testing.T) {
	var buf []byte
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("frame1"))...)
	buf = append(buf, buildPES(0xE0, 180000, []byte("frame2"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	fr1, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "frame1", string(fr1.Data))
	assert.EqualValues(t, 90000, fr1.DTS)
	assert.EqualValues(t, 90000, fr1.CTS)

	fr2, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "frame2", string(fr2.Data))
	assert.EqualValues(t, 180000, fr2.DTS)

	_, err = d.GetFrame(0xE0, UnitTicks90kHz)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDemuxMillisecondUnit(t *testing.T) {
	var buf []byte
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("x"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	fr, err := d.GetFrame(0xE0, UnitMilliseconds)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, fr.DTS)
}

func TestDemuxRecoversFromLeadingGarbage(t *testing.T) {
	garbage := []byte{0x12, 0x34, 0x00, 0x01, 0xAB, 0x00, 0x00, 0x00}
	var buf []byte
	buf = append(buf, garbage...)
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("recovered"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	fr, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(fr.Data))
}

func TestDemuxSystemEndContinuesIntoNextSegment(t *testing.T) {
	var buf []byte
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("seg1"))...)
	buf = append(buf, buildSystemEnd()...)
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 180000, []byte("seg2"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	fr1, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "seg1", string(fr1.Data))

	fr2, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "seg2", string(fr2.Data))
}

func TestDemuxMultiplexedStreams(t *testing.T) {
	var buf []byte
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("video1"))...)
	buf = append(buf, buildPES(0xC0, 92000, []byte("audio1"))...)
	buf = append(buf, buildPES(0xE0, 93600, []byte("video2"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	vfr, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "video1", string(vfr.Data))

	afr, err := d.GetFrame(0xC0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "audio1", string(afr.Data))

	vfr2, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.Equal(t, "video2", string(vfr2.Data))
}

func TestAccessPointIndexSparsity(t *testing.T) {
	idx, err := NewAccessPointIndex()
	require.NoError(t, err)
	defer idx.Close()

	for i := int64(0); i < 10; i++ {
		require.NoError(t, idx.TryInsert(RecordedAccessPoint{DTS: i * 90000, ByteOffset: i * 1000}))
	}

	// Frames arrive one second apart; only entries >=5s past the last
	// recorded anchor should be kept (spec §8 "MPEG-2 PS index sparsity").
	assert.Equal(t, 2, idx.Len())

	p0, err := idx.At(0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, p0.DTS)

	p1, err := idx.At(1)
	require.NoError(t, err)
	assert.EqualValues(t, 450000, p1.DTS)
}

func TestAccessPointIndexFindFloor(t *testing.T) {
	idx, err := NewAccessPointIndex()
	require.NoError(t, err)
	defer idx.Close()

	for i := int64(0); i < 5; i++ {
		require.NoError(t, idx.TryInsert(RecordedAccessPoint{DTS: i * RecordMinGap, ByteOffset: i * 2048}))
	}

	floor, err := idx.FindFloor(RecordMinGap*2 + 1000)
	require.NoError(t, err)
	require.GreaterOrEqual(t, floor, 0)
	p, err := idx.At(floor)
	require.NoError(t, err)
	assert.EqualValues(t, RecordMinGap*2, p.DTS)

	floor, err = idx.FindFloor(-1)
	require.NoError(t, err)
	assert.Equal(t, -1, floor)
}

func TestDemuxSeekJumpsNearTarget(t *testing.T) {
	const frameGap = 22500 // 250ms at 90kHz
	const nFrames = 60     // 15s of content, enough to span several access points

	var buf []byte
	buf = append(buf, buildPackHeader()...)
	for i := 0; i < nFrames; i++ {
		ts := uint64(i) * frameGap
		buf = append(buf, buildPES(0xE0, ts, []byte(fmt.Sprintf("f%02d", i)))...)
	}

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	// Drain every frame once to populate the access-point index.
	for {
		if _, err := d.GetFrame(0xE0, UnitTicks90kHz); err != nil {
			require.ErrorIs(t, err, io.EOF)
			break
		}
	}

	const targetMs = 8000
	serr := d.Seek(0xE0, targetMs)
	require.Nil(t, serr)

	fr, err := d.GetFrame(0xE0, UnitTicks90kHz)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fr.DTS, int64(targetMs)*tickRate/1000)
}

func TestDemuxProbeDiscoversStreams(t *testing.T) {
	var buf []byte
	buf = append(buf, buildPackHeader()...)
	buf = append(buf, buildPES(0xE0, 90000, []byte("v"))...)
	buf = append(buf, buildPES(0xC0, 90000, []byte("a"))...)

	d := Open(&fakeSource{data: buf})
	defer d.Close()

	result, ierr := d.Probe()
	require.Nil(t, ierr)
	require.Len(t, result.Streams, 2)

	kinds := map[byte]StreamKind{}
	for _, s := range result.Streams {
		kinds[s.StreamID] = s.Kind
	}
	assert.Equal(t, KindVideo, kinds[0xE0])
	assert.Equal(t, KindMPEGAudio, kinds[0xC0])
}
