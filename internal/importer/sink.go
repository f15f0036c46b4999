package importer

// StreamHandle identifies a stream declared with a Sink.
type StreamHandle int

// Sink is the collaborator interface the core writes decoded samples into
// (spec §6 "Sink interface"). The ISOBMFF/MP4 writer that ultimately
// consumes these calls lives outside the core.
type Sink interface {
	// DeclareStream registers a new output track and returns a handle used
	// for subsequent WriteSample/SetStreamProperty/SignalEOS calls.
	DeclareStream(desc StreamDescriptor) StreamHandle

	// WriteSample hands one sample to the sink. wouldBlock=true with a nil
	// error means the sink accepted the sample and is applying backpressure:
	// the caller returns PollPending and writes nothing more until the next
	// Process() step.
	WriteSample(handle StreamHandle, sample MediaSample) (wouldBlock bool, err error)

	// SetStreamProperty records a property derived mid-stream (e.g.
	// "ttxt:last_dur") that could not be known when the stream was
	// declared.
	SetStreamProperty(handle StreamHandle, key string, value any)

	// SignalEOS marks a stream as finished; no further samples follow.
	SignalEOS(handle StreamHandle)
}

// NullSink is a Sink that discards everything; useful for probing or tests
// that only care about demuxer-side behavior.
type NullSink struct {
	Declared []StreamDescriptor
	Written  []struct {
		Handle StreamHandle
		Sample MediaSample
	}
}

// DeclareStream implements Sink.
func (s *NullSink) DeclareStream(desc StreamDescriptor) StreamHandle {
	s.Declared = append(s.Declared, desc)
	return StreamHandle(len(s.Declared) - 1)
}

// WriteSample implements Sink.
func (s *NullSink) WriteSample(handle StreamHandle, sample MediaSample) (bool, error) {
	s.Written = append(s.Written, struct {
		Handle StreamHandle
		Sample MediaSample
	}{handle, sample})
	return false, nil
}

// SetStreamProperty implements Sink.
func (s *NullSink) SetStreamProperty(StreamHandle, string, any) {}

// SignalEOS implements Sink.
func (s *NullSink) SignalEOS(StreamHandle) {}
