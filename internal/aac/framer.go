// Package aac frames raw ADTS AAC elementary streams, deriving the
// AudioSpecificConfig a sink needs and resolving channel_config==0 streams
// against the first access unit, the same way the teacher's MPEG-TS
// relay does for mediacommon's mpeg4audio.CodecMPEG4Audio track (spec
// §4.4).
package aac

import (
	mpeg4audio "github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/gpaccore/mediacore/internal/importer"
)

// Framer implements importer.CodecFramer for ADTS-framed AAC.
type Framer struct {
	streamID int

	carry    []byte
	carryDTS int64

	cfg           *mpeg4audio.AudioSpecificConfig
	needsResolve  bool
	dtsIncrement  int64
	framesPerSmpl int

	desc    *importer.StreamDescriptor
	samples []importer.MediaSample
}

// NewFramer creates an AAC ADTS framer for one logical stream.
// framesPerSample is stored on the framer but not applied: every ADTS
// frame becomes its own sample whatever its value.
func NewFramer(streamID int, framesPerSample int) *Framer {
	if framesPerSample < 1 {
		framesPerSample = 1
	}
	return &Framer{streamID: streamID, framesPerSmpl: framesPerSample}
}

func (f *Framer) CodecID() importer.CodecID {
	return importer.CodecAACMP4
}

// Feed scans data for ADTS frames, emitting one pending sample per ADTS
// frame found. Unlike H.264/MPEG-4 Visual, ADTS
// carries no start-code ambiguity across buffer boundaries: a header is
// either fully present with its declared frameLength, or it isn't yet,
// so carry-over is a plain byte count rather than a start-code search.
func (f *Framer) Feed(data []byte, dts, cts int64) {
	buf := data
	firstDTS := dts
	if len(f.carry) > 0 {
		buf = append(append([]byte(nil), f.carry...), data...)
		firstDTS = f.carryDTS
	}

	pos := 0
	curDTS := firstDTS
	for {
		sync := findADTSSync(buf[pos:])
		if sync < 0 {
			f.carry = nil
			return
		}
		pos += sync
		if len(buf)-pos < 7 {
			break // incomplete header, wait for more data
		}
		h, ok := parseADTSHeader(buf[pos:])
		if !ok {
			pos++ // false sync, resync one byte forward
			continue
		}
		if len(buf)-pos < h.frameLength {
			break // frame not fully buffered yet
		}

		if f.cfg == nil {
			f.onNewConfig(h)
		}

		payload := buf[pos+h.headerLength : pos+h.frameLength]
		f.appendFrame(payload, curDTS)
		curDTS += f.dtsIncrement

		pos += h.frameLength
	}

	f.carry = append([]byte(nil), buf[pos:]...)
	f.carryDTS = curDTS
	_ = cts
}

func (f *Framer) onNewConfig(h *adtsHeader) {
	f.cfg = h.toAudioSpecificConfig()
	f.needsResolve = h.channelConfig == 0
	fps := float64(f.cfg.SampleRate) / 1024.0
	if fps > 0 {
		f.dtsIncrement = int64(90000 / fps)
	}
}

// appendFrame buffers one AAC access unit's raw payload (ADTS header
// stripped) as a pending sample, resolving a channel_config==0 header
// against the first access unit's sync/PCE data the way the teacher's TS
// demuxer resolves it on receipt of the first AU (mpeg4audio.
// ResolveChannelCount, internal/relay/ts_demuxer.go).
func (f *Framer) appendFrame(payload []byte, dts int64) {
	if f.needsResolve {
		if n := mpeg4audio.ResolveChannelCount(f.cfg, payload, 2); n > 0 {
			f.cfg.ChannelCount = n
		}
		f.needsResolve = false
	}

	sample := importer.MediaSample{
		Data:     append([]byte(nil), payload...),
		DTS:      dts,
		CTS:      dts,
		IsRAP:    importer.RAPSync, // every AAC raw_data_block is independently decodable
		StreamID: f.streamID,
	}
	f.samples = append(f.samples, sample)
}

func (f *Framer) NextSample() (importer.MediaSample, *importer.StreamDescriptor, bool, *importer.Error) {
	if len(f.samples) == 0 {
		return importer.MediaSample{}, nil, false, nil
	}
	sample := f.samples[0]
	f.samples = f.samples[1:]
	return sample, f.descriptor(), true, nil
}

func (f *Framer) descriptor() *importer.StreamDescriptor {
	if f.desc == nil {
		f.desc = &importer.StreamDescriptor{
			StreamType:      importer.StreamAudio,
			CodecID:         importer.CodecAACMP4,
			Timescale:       90000,
			SamplesPerFrame: 1024,
		}
	}
	if f.cfg != nil {
		f.desc.CodecConfig = f.cfg
		f.desc.SampleRate = f.cfg.SampleRate
		f.desc.Channels = f.cfg.ChannelCount
	}
	return f.desc
}

// Flush returns every buffered sample; AAC framing needs no end-of-stream
// reordering (no B-frame analog in this codec).
func (f *Framer) Flush() ([]importer.MediaSample, *importer.Error) {
	out := f.samples
	f.samples = nil
	return out, nil
}
