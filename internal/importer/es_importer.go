package importer

import (
	"context"
	"io"
)

// rawESDTSIncrement is the per-Process()-call timestamp tick used when a
// Source carries no container-level timing at all (a bare elementary
// stream file, as opposed to PES/pack timestamps from a demuxer). It is the
// same 25fps-at-90kHz default h264.Framer uses for its own dtsIncrement
// until VUI timing is parsed, and mpeg4visual.Framer uses unless a VideoFPS
// override is given.
const rawESDTSIncrement = 90000 / 25

// ElementaryStreamImporter implements Importer by driving a single
// CodecFramer directly off a Source, with no container demuxing step
// (spec §2/§6 "uniform entry point": every container demuxer and
// elementary-stream framer is reachable behind the same Importer
// interface). It is codec-agnostic: callers construct it with whichever
// concrete framer (h264.NewFramer, mpeg4visual.NewFramer, aac.NewFramer,
// mpegaudio.NewFramer, ...) matches the source, so this package never
// needs to import those codec packages itself.
//
// Source.Read is expected to yield roughly one container-level frame per
// call, the same granularity CodecFramer.Feed documents ("one
// container-level frame, e.g. one PES payload"); a Source that instead
// returns arbitrarily large raw chunks will still produce correct sample
// data (the framer's carry-over buffering handles any split), but the
// start-code framers (H.264, MPEG-1/2/4 Visual) give every access unit that
// starts in one such chunk that chunk's synthesized DTS tick, while the
// ADTS and MPEG audio framers step DTS per frame from it.
type ElementaryStreamImporter struct {
	framer CodecFramer

	src  Source
	sink Sink
	req  *ImportRequest

	desc     *StreamDescriptor
	handle   StreamHandle
	declared bool

	tick int64
	eos  bool
	buf  []byte
}

// esReadChunkSize bounds one Source.Read call's buffer size.
const esReadChunkSize = 64 * 1024

// NewElementaryStreamImporter wraps framer as a complete Importer.
func NewElementaryStreamImporter(framer CodecFramer) *ElementaryStreamImporter {
	return &ElementaryStreamImporter{framer: framer, buf: make([]byte, esReadChunkSize)}
}

// Probe reports the single stream this importer will ever produce; a bare
// elementary stream file carries no container-level metadata to scan
// ahead of time; codec details (dimensions, sample rate, ...) only
// resolve once Configure/Process has parsed the stream's own headers.
func (e *ElementaryStreamImporter) Probe(_ context.Context, _ Source, _ ProbeFlags) (TrackCatalog, *Error) {
	info := TrackInfo{StreamID: 0, StreamType: StreamGeneric, CodecID: e.framer.CodecID()}
	return TrackCatalog{
		Tracks:   []TrackInfo{info},
		Programs: []ProgramInfo{{Tracks: []TrackInfo{info}}},
	}, nil
}

// Configure binds the importer to src/sink. req.StreamID is ignored (a
// bare elementary stream has exactly one).
func (e *ElementaryStreamImporter) Configure(_ context.Context, src Source, req *ImportRequest, sink Sink) *Error {
	if req == nil {
		req = NewImportRequest()
	}
	if err := req.Validate(); err != nil {
		return err
	}
	e.src, e.sink, e.req = src, sink, req
	return nil
}

// Process reads one chunk from src, feeds it to the framer, and writes
// whatever samples became ready to sink.
func (e *ElementaryStreamImporter) Process(_ context.Context) (Poll, *Error) {
	if e.eos {
		return PollDone, nil
	}
	if e.req.Abort {
		e.eos = true
		return PollDone, nil
	}

	n, rerr := e.src.Read(e.buf)
	if n > 0 {
		e.tick += rawESDTSIncrement
		e.framer.Feed(e.buf[:n], e.tick, e.tick)
		if poll, err := e.drain(); err != nil || poll == PollPending {
			return poll, err
		}
	}
	switch {
	case rerr == io.EOF:
		return e.finish()
	case rerr != nil:
		return PollDone, WrapError(StatusIOError, rerr)
	default:
		return PollReady, nil
	}
}

// drain pulls every sample the framer currently has ready and writes it
// to the sink, stopping early on backpressure.
func (e *ElementaryStreamImporter) drain() (Poll, *Error) {
	for {
		sample, desc, ok, err := e.framer.NextSample()
		if err != nil {
			return PollDone, err
		}
		if desc != nil {
			e.desc = desc
		}
		if !ok {
			return PollReady, nil
		}
		poll, werr := e.emit(sample)
		if werr != nil || poll == PollPending {
			return poll, werr
		}
	}
}

func (e *ElementaryStreamImporter) emit(sample MediaSample) (Poll, *Error) {
	if !e.declared {
		if e.desc == nil {
			return PollDone, NewError(StatusNonCompliantBitstream, "no stream descriptor available before first sample")
		}
		e.handle = e.sink.DeclareStream(*e.desc)
		e.declared = true
	}
	wouldBlock, werr := e.sink.WriteSample(e.handle, sample)
	if werr != nil {
		return PollDone, WrapError(StatusIOError, werr)
	}
	if wouldBlock {
		return PollPending, nil
	}
	return PollReady, nil
}

// finish flushes the framer's trailing buffered samples and signals EOS.
func (e *ElementaryStreamImporter) finish() (Poll, *Error) {
	e.eos = true
	samples, err := e.framer.Flush()
	if err != nil {
		return PollDone, err
	}
	for _, s := range samples {
		if poll, werr := e.emit(s); werr != nil {
			return PollDone, werr
		} else if poll == PollPending {
			// Flush is a terminal drain with no further Process() calls to
			// resume on: a sink that never stops blocking here simply
			// drops the remainder rather than deadlocking the caller.
			break
		}
	}
	if e.declared {
		e.sink.SignalEOS(e.handle)
	}
	return PollDone, nil
}

// Event is a no-op: a single-framer elementary stream import is a linear
// forward drain with no seek/pause state of its own to change.
func (e *ElementaryStreamImporter) Event(Event) {}

// Close releases nothing of its own; the Source's lifecycle belongs to
// its caller.
func (e *ElementaryStreamImporter) Close() error {
	return nil
}
