package importer

import "context"

// Poll is the state-machine result of one Process() step (spec §5
// "Coroutines / async": would_block/EOS/Err modeled as
// Poll::Ready|Pending|Done rather than recursive callbacks).
type Poll int

// Poll values.
const (
	// PollReady means the step completed without backpressure (zero or more
	// samples were emitted); call Process again.
	PollReady Poll = iota
	// PollPending means the sink applied backpressure; the importer's
	// cursor is intact and the next Process() resumes without rewinding.
	PollPending
	// PollDone means EOS or Abort was observed; no further samples follow.
	PollDone
)

// TrackInfo summarizes one stream discovered by Probe, without emitting
// any samples.
type TrackInfo struct {
	StreamID   int
	StreamType StreamType
	CodecID    CodecID
	DurationMS int64
}

// ProgramInfo groups TrackInfo entries that belong to one logical program
// (relevant to multiplexed containers like MPEG-2 PS with several
// interleaved elementary streams).
type ProgramInfo struct {
	Tracks []TrackInfo
}

// TrackCatalog is the result of a non-destructive Probe call.
type TrackCatalog struct {
	Tracks   []TrackInfo
	Programs []ProgramInfo
}

// Event is a playback control event accepted by Importer.Event (spec §6).
type Event struct {
	Kind    EventKind
	StartMS int64 // for EventPlay
	Speed   float64
}

// EventKind is the closed set of events Importer.Event accepts.
type EventKind int

// Event kinds.
const (
	EventPlay EventKind = iota
	EventStop
	EventSetSpeed
)

// Importer is the uniform entry point every container demuxer and
// elementary-stream framer implements (spec §2 "Importer/Loader API", §6
// "Importer API").
type Importer interface {
	// Probe inspects the source non-destructively and returns what could
	// be determined; partial track lists are allowed (spec §7
	// "User-visible behavior").
	Probe(ctx context.Context, src Source, flags ProbeFlags) (TrackCatalog, *Error)

	// Configure binds the importer to one stream of src per req. Returns a
	// *Error with StatusNotSupported/StatusBadParam for configuration
	// contradictions detected up front.
	Configure(ctx context.Context, src Source, req *ImportRequest, sink Sink) *Error

	// Process runs one step of the main loop: it consumes available input
	// and emits zero or more samples to the sink.
	Process(ctx context.Context) (Poll, *Error)

	// Event accepts a playback control event.
	Event(evt Event)

	// Close releases all resources owned by this importer.
	Close() error
}

// ProbeFlags controls how much work Probe is allowed to do.
type ProbeFlags struct {
	// FullScan forces Probe to read to EOF even when a bounded prefix scan
	// would normally suffice (spec §4.1 "Probing for container metadata").
	FullScan bool
}

// CodecFramer is the per-codec dispatch contract (spec §9: "per-codec
// framing is dispatched by function pointer (text_process); in the
// target, this is a CodecFramer trait with one implementation per codec").
// Each elementary-stream package (h264, aac, mpegaudio, mpeg4visual)
// implements it.
type CodecFramer interface {
	// CodecID returns the codec this framer produces samples for.
	CodecID() CodecID

	// Feed appends one container-level frame (e.g. one PES payload) along
	// with the DTS/CTS the container assigned it. Elementary-stream
	// framers that re-derive their own timestamps (H.264 CTS/POC
	// reconstruction, MPEG-4 Visual B-frame packing) use dts as the
	// decode-order anchor and may override cts entirely.
	Feed(data []byte, dts, cts int64)

	// NextSample attempts to frame one access unit from buffered input.
	// ok=false with a nil error means "need more data"; call Feed again.
	NextSample() (sample MediaSample, desc *StreamDescriptor, ok bool, err *Error)

	// Flush signals EOS: no more Feed calls will happen. The framer should
	// emit any final buffered access unit and perform final CTS packing.
	Flush() (samples []MediaSample, err *Error)
}
