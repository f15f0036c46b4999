package mpegps

// StreamKind classifies an MPEG-2 PS elementary stream by its stream_id
// (spec §4.1 "Stream identification rules").
type StreamKind int

// Stream kinds.
const (
	KindUnknown StreamKind = iota
	KindVideo
	KindMPEGAudio
	KindAC3
	KindLPCM
)

const (
	startCodePackHeader = 0xBA
	startCodeSystemEnd  = 0xB9
	startCodePrivate1   = 0xBD

	videoStreamIDMin = 0xE0
	videoStreamIDMax = 0xEF
	audioStreamIDMin = 0xC0
	audioStreamIDMax = 0xDF

	ac3SubstreamMin  = 0x80
	ac3SubstreamMax  = 0x8F
	lpcmSubstreamMin = 0xA0
	lpcmSubstreamMax = 0xAF
)

// ClassifyStreamID returns the StreamKind for a top-level MPEG-2 PS
// stream_id byte. Private streams (0xBD) require a substream byte to
// disambiguate further; callers should use ClassifyPrivateSubstream for
// those.
func ClassifyStreamID(streamID byte) StreamKind {
	switch {
	case streamID >= videoStreamIDMin && streamID <= videoStreamIDMax:
		return KindVideo
	case streamID >= audioStreamIDMin && streamID <= audioStreamIDMax:
		return KindMPEGAudio
	default:
		return KindUnknown
	}
}

// ClassifyPrivateSubstream disambiguates a stream_id == 0xBD private
// stream's first payload byte into AC-3 or LPCM, per spec §4.1.
func ClassifyPrivateSubstream(substreamID byte) StreamKind {
	switch {
	case substreamID >= ac3SubstreamMin && substreamID <= ac3SubstreamMax:
		return KindAC3
	case substreamID >= lpcmSubstreamMin && substreamID <= lpcmSubstreamMax:
		return KindLPCM
	default:
		return KindUnknown
	}
}

// IsPrivateStream1 reports whether streamID is the 0xBD private stream.
func IsPrivateStream1(streamID byte) bool {
	return streamID == startCodePrivate1
}
