package importer

// TimestampContext holds per-stream timestamp-reconstruction state. It is
// internal bookkeeping the demuxers/framers maintain across samples; it is
// never exposed to a sink.
type TimestampContext struct {
	// FirstDTS is the earliest DTS observed across all streams in the
	// container; used as the container's stream-zero reference.
	FirstDTS int64

	// DTSIncrement is the nominal per-frame DTS delta for fixed-rate video.
	DTSIncrement int64

	// LastTS/FramesSinceLastTS reconstruct timestamps for frames that carry
	// no explicit PTS/DTS of their own (e.g. PES packets without a
	// timestamp): ts = LastTS + FramesSinceLastTS*DTSIncrement.
	LastTS             int64
	FramesSinceLastTS int64

	// H.264-specific CTS reconstruction state (spec §4.2, §3).
	HasCTSOffset bool
	MaxBDepth    int
	POCShift     int64
	MinPOC       int64
	POCDiff      int64
	LastPOC      int64
	MaxLastPOC   int64
	MaxLastBPOC  int64
	BFrames      int
	MaxDelay     int
	MaxTotalDelay int

	// RefFrameIndex is the index of the most recent reference frame whose
	// CTSOffset is still pending final packing.
	RefFrameIndex int
}

// NewTimestampContext returns a zero-value TimestampContext with POCDiff
// left at 0 (callers fall back to 1 per spec §9's Open Question decision
// when it is still 0 at end of stream).
func NewTimestampContext() *TimestampContext {
	return &TimestampContext{}
}
