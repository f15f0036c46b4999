package mpegaudio

import "github.com/gpaccore/mediacore/internal/importer"

// Framer implements importer.CodecFramer for raw MPEG-1/2/2.5 Audio
// elementary streams, the same carry-over-by-declared-length strategy
// internal/aac uses (a frame header always states its own total length,
// so no start-code search across buffer boundaries is needed).
type Framer struct {
	streamID int

	carry    []byte
	carryDTS int64

	hdr          *Header
	dtsIncrement int64

	desc    *importer.StreamDescriptor
	samples []importer.MediaSample
}

// NewFramer creates an MPEG Audio framer for one logical stream.
func NewFramer(streamID int) *Framer {
	return &Framer{streamID: streamID}
}

func (f *Framer) CodecID() importer.CodecID {
	if f.hdr != nil {
		return f.hdr.CodecID()
	}
	return importer.CodecMP3
}

// Feed scans data for frame-sync headers, emitting one sample per frame.
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
		sync := findSync(buf[pos:])
		if sync < 0 {
			f.carry = nil
			return
		}
		pos += sync
		if len(buf)-pos < 4 {
			break
		}
		h, ok := ParseHeader(buf[pos:])
		if !ok {
			pos++
			continue
		}
		if len(buf)-pos < h.FrameSize {
			break
		}

		if f.hdr == nil {
			f.onNewHeader(h)
		}

		payload := buf[pos : pos+h.FrameSize]
		f.samples = append(f.samples, importer.MediaSample{
			Data:     append([]byte(nil), payload...),
			DTS:      curDTS,
			CTS:      curDTS,
			IsRAP:    importer.RAPSync,
			StreamID: f.streamID,
		})
		curDTS += f.dtsIncrement

		pos += h.FrameSize
	}

	f.carry = append([]byte(nil), buf[pos:]...)
	f.carryDTS = curDTS
	_ = cts
}

func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xFF && buf[i+1]&0xE0 == 0xE0 {
			return i
		}
	}
	return -1
}

func (f *Framer) onNewHeader(h *Header) {
	f.hdr = h
	if h.SamplesPerFrame > 0 && h.SampleRate > 0 {
		fps := float64(h.SampleRate) / float64(h.SamplesPerFrame)
		f.dtsIncrement = int64(90000 / fps)
	}
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
			StreamType: importer.StreamAudio,
			Timescale:  90000,
		}
	}
	if f.hdr != nil {
		f.desc.CodecID = f.hdr.CodecID()
		f.desc.SampleRate = f.hdr.SampleRate
		f.desc.Channels = f.hdr.ChannelCount()
		f.desc.SamplesPerFrame = f.hdr.SamplesPerFrame
	}
	return f.desc
}

// Flush returns every buffered sample.
func (f *Framer) Flush() ([]importer.MediaSample, *importer.Error) {
	out := f.samples
	f.samples = nil
	return out, nil
}
