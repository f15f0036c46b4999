package mpegps

import (
	"context"
	"io"

	"github.com/gpaccore/mediacore/internal/h264"
	"github.com/gpaccore/mediacore/internal/importer"
	"github.com/gpaccore/mediacore/internal/mpeg4visual"
	"github.com/gpaccore/mediacore/internal/mpegaudio"
)

// ProgramStreamImporter implements importer.Importer over a Demuxer,
// dispatching each demuxed Frame to the per-codec CodecFramer that matches
// its StreamKind (spec §4.1 container identification feeding into the
// per-codec framers of §4.2-§4.6).
//
// Only KindVideo and KindMPEGAudio currently resolve to a concrete
// CodecFramer: AC-3 and LPCM private-stream-1 substreams are classified by
// the demuxer but have no framer package of their own yet, so Configure
// rejects them with StatusNotSupported rather than silently dropping
// frames.
type ProgramStreamImporter struct {
	dx       *Demuxer
	streamID byte

	req  *importer.ImportRequest
	sink importer.Sink

	framer importer.CodecFramer

	desc     *importer.StreamDescriptor
	handle   importer.StreamHandle
	declared bool
	eos      bool
}

// NewProgramStreamImporter constructs an unconfigured importer; Configure
// must be called before Process.
func NewProgramStreamImporter() *ProgramStreamImporter {
	return &ProgramStreamImporter{}
}

// Probe opens a fresh Demuxer over src and reports the elementary streams
// found in the bounded prefix scan.
func (p *ProgramStreamImporter) Probe(_ context.Context, src importer.Source, _ importer.ProbeFlags) (importer.TrackCatalog, *importer.Error) {
	dx := Open(src)
	defer dx.Close()

	res, err := dx.Probe()
	if err != nil {
		return importer.TrackCatalog{}, err
	}

	var prog importer.ProgramInfo
	for _, s := range res.Streams {
		prog.Tracks = append(prog.Tracks, importer.TrackInfo{
			StreamID:   int(s.StreamID),
			StreamType: streamTypeFor(s.Kind),
			CodecID:    provisionalCodec(s.Kind),
		})
	}
	return importer.TrackCatalog{Tracks: prog.Tracks, Programs: []importer.ProgramInfo{prog}}, nil
}

// Configure probes src for its stream list, selects the one req.StreamID
// names (or the first stream when req.StreamID == 0), and builds the
// matching CodecFramer. Video's concrete codec (H.264 vs MPEG-1/2/4
// Visual) isn't resolvable from stream_id alone, so it's sniffed from the
// first frame's start-code payload in Process.
func (p *ProgramStreamImporter) Configure(_ context.Context, src importer.Source, req *importer.ImportRequest, sink importer.Sink) *importer.Error {
	if req == nil {
		req = importer.NewImportRequest()
	}
	if err := req.Validate(); err != nil {
		return err
	}

	dx := Open(src)
	res, err := dx.Probe()
	if err != nil {
		dx.Close()
		return err
	}
	if len(res.Streams) == 0 {
		dx.Close()
		return importer.NewError(importer.StatusNotSupported, "no elementary streams found in program stream")
	}

	target := res.Streams[0]
	if req.StreamID != 0 {
		found := false
		for _, s := range res.Streams {
			if int(s.StreamID) == req.StreamID {
				target, found = s, true
				break
			}
		}
		if !found {
			dx.Close()
			return importer.NewError(importer.StatusBadParam, "stream id %d not found", req.StreamID)
		}
	}

	switch target.Kind {
	case KindVideo:
		// resolved lazily: p.framer stays nil until the first frame is seen.
	case KindMPEGAudio:
		p.framer = mpegaudio.NewFramer(int(target.StreamID))
	default:
		dx.Close()
		return importer.NewError(importer.StatusNotSupported, "stream kind %d not supported", target.Kind)
	}

	p.dx = dx
	p.streamID = target.StreamID
	p.req = req
	p.sink = sink
	return nil
}

// Process pulls one demuxed Frame and feeds it to the codec framer,
// writing whatever samples become ready to the sink.
func (p *ProgramStreamImporter) Process(_ context.Context) (importer.Poll, *importer.Error) {
	if p.eos {
		return importer.PollDone, nil
	}
	if p.req.Abort {
		p.eos = true
		return importer.PollDone, nil
	}

	fr, err := p.dx.GetFrame(p.streamID, UnitTicks90kHz)
	if err == io.EOF {
		return p.finish()
	}
	if err != nil {
		return importer.PollDone, importer.WrapError(importer.StatusNonCompliantBitstream, err)
	}

	if p.framer == nil {
		p.framer = newVisualFramer(sniffVisualCodec(fr.Data), int(p.streamID), p.req.VideoFPS)
	}

	p.framer.Feed(fr.Data, fr.DTS, fr.CTS)
	return p.drain()
}

// drain pulls every ready sample from the framer, declaring the stream on
// the first one, stopping on backpressure.
func (p *ProgramStreamImporter) drain() (importer.Poll, *importer.Error) {
	for {
		sample, desc, ok, ferr := p.framer.NextSample()
		if ferr != nil {
			return importer.PollDone, ferr
		}
		if desc != nil {
			p.desc = desc
		}
		if !ok {
			return importer.PollReady, nil
		}
		poll, werr := p.emit(sample)
		if werr != nil || poll == importer.PollPending {
			return poll, werr
		}
	}
}

func (p *ProgramStreamImporter) emit(sample importer.MediaSample) (importer.Poll, *importer.Error) {
	if !p.declared {
		if p.desc == nil {
			return importer.PollDone, importer.NewError(importer.StatusNonCompliantBitstream, "no stream descriptor available before first sample")
		}
		p.handle = p.sink.DeclareStream(*p.desc)
		p.declared = true
	}
	wouldBlock, werr := p.sink.WriteSample(p.handle, sample)
	if werr != nil {
		return importer.PollDone, importer.WrapError(importer.StatusIOError, werr)
	}
	if wouldBlock {
		return importer.PollPending, nil
	}
	return importer.PollReady, nil
}

func (p *ProgramStreamImporter) finish() (importer.Poll, *importer.Error) {
	p.eos = true
	if p.framer == nil {
		return importer.PollDone, nil
	}
	samples, err := p.framer.Flush()
	if err != nil {
		return importer.PollDone, err
	}
	for _, s := range samples {
		if poll, werr := p.emit(s); werr != nil {
			return importer.PollDone, werr
		} else if poll == importer.PollPending {
			break
		}
	}
	if p.declared {
		p.sink.SignalEOS(p.handle)
	}
	return importer.PollDone, nil
}

// Event is a no-op: a program stream import is a linear forward drain, and
// Seek is exposed separately on the Demuxer for callers that need random
// access ahead of import.
func (p *ProgramStreamImporter) Event(importer.Event) {}

// Close releases the Demuxer's access-point index files.
func (p *ProgramStreamImporter) Close() error {
	if p.dx == nil {
		return nil
	}
	return p.dx.Close()
}

func streamTypeFor(k StreamKind) importer.StreamType {
	switch k {
	case KindVideo:
		return importer.StreamVisual
	case KindMPEGAudio, KindAC3, KindLPCM:
		return importer.StreamAudio
	default:
		return importer.StreamGeneric
	}
}

// provisionalCodec reports Probe's best guess before any bitstream has
// been parsed; video's exact codec is refined once Configure/Process sees
// the first start-code payload.
func provisionalCodec(k StreamKind) importer.CodecID {
	switch k {
	case KindVideo:
		return importer.CodecH264
	case KindMPEGAudio:
		return importer.CodecMP3
	case KindAC3:
		return importer.CodecAC3
	default:
		return importer.CodecUnknown
	}
}

// sniffVisualCodec inspects the first start-code payload byte in data to
// tell an MPEG-1/2/4 Visual picture/VOP code (ISO/IEC 11172-2/13818-2/
// 14496-2) apart from an H.264 NALU header; mpegps classifies stream_id
// 0xE0-0xEF as video but doesn't distinguish the codec itself.
func sniffVisualCodec(data []byte) importer.CodecID {
	for i := 0; i+3 < len(data); i++ {
		if data[i] != 0x00 || data[i+1] != 0x00 || data[i+2] != 0x01 {
			continue
		}
		code := data[i+3]
		switch {
		case code == 0xB3, code == 0xB8, code == 0xB0, code == 0xB6, code == 0xB2:
			return importer.CodecMPEG4Visual
		case code >= 0x20 && code <= 0x2F:
			return importer.CodecMPEG4Visual
		default:
			return importer.CodecH264
		}
	}
	return importer.CodecH264
}

func newVisualFramer(codec importer.CodecID, streamID int, fps float64) importer.CodecFramer {
	if codec == importer.CodecMPEG4Visual {
		return mpeg4visual.NewFramer(streamID, fps)
	}
	return h264.NewFramer(streamID, 0)
}
