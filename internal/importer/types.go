// Package importer defines the core data model and orchestration contracts
// shared by every container demuxer and elementary-stream framer: samples,
// stream descriptors, the sink/source collaborator interfaces, and the
// option surface passed into an import session.
package importer

// RAPKind classifies a MediaSample's random-access capability, per
// ISOBMFF §8.6.4's Stream/Random Access Point sub-kinds.
type RAPKind int

// RAP kinds.
const (
	RAPNone RAPKind = iota
	RAPSync
	RAPSyncShadow
	RAPSAP1
	RAPSAP2
	RAPSAP3
)

// String returns the human-readable name of a RAPKind.
func (k RAPKind) String() string {
	switch k {
	case RAPSync:
		return "sync"
	case RAPSyncShadow:
		return "sync-shadow"
	case RAPSAP1:
		return "sap1"
	case RAPSAP2:
		return "sap2"
	case RAPSAP3:
		return "sap3"
	default:
		return "none"
	}
}

// StreamType is the closed enumeration of logical output track kinds.
type StreamType int

// Stream types.
const (
	StreamVisual StreamType = iota
	StreamAudio
	StreamText
	StreamScene
	StreamObjectDescriptor
	StreamSubpic
	StreamMPEG7
	StreamIPMP
	StreamOCI
	StreamFonts
	StreamGeneric
)

// CodecID is the closed enumeration of codecs the core can frame or
// describe. Values are stable and safe to persist.
type CodecID int

// Codec identifiers.
const (
	CodecUnknown CodecID = iota
	CodecH264
	CodecMPEG1Video
	CodecMPEG2Video
	CodecMPEG4Visual
	CodecH263
	CodecMP3
	CodecMPEG2Audio
	CodecAACMP4
	CodecAC3
	CodecAMR
	CodecAMRWB
	CodecQCELP
	CodecEVRC
	CodecSMV
	CodecJPEG
	CodecPNG
	CodecJPEG2000
	CodecTX3G
	CodecWebVTT
	CodecTTML
	CodecSimpleText
	CodecLASeR
	CodecGeneric
)

// String returns the canonical codec name.
func (c CodecID) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecMPEG1Video:
		return "MPEG-1 Video"
	case CodecMPEG2Video:
		return "MPEG-2 Video"
	case CodecMPEG4Visual:
		return "MPEG-4 Visual"
	case CodecH263:
		return "H263"
	case CodecMP3:
		return "MP3"
	case CodecMPEG2Audio:
		return "MPEG-2 Audio"
	case CodecAACMP4:
		return "AAC-MP4"
	case CodecAC3:
		return "AC3"
	case CodecAMR:
		return "AMR"
	case CodecAMRWB:
		return "AMR-WB"
	case CodecQCELP:
		return "QCELP"
	case CodecEVRC:
		return "EVRC"
	case CodecSMV:
		return "SMV"
	case CodecJPEG:
		return "JPEG"
	case CodecPNG:
		return "PNG"
	case CodecJPEG2000:
		return "JPEG-2000"
	case CodecTX3G:
		return "TX3G"
	case CodecWebVTT:
		return "WebVTT"
	case CodecTTML:
		return "TTML"
	case CodecSimpleText:
		return "simple-text"
	case CodecLASeR:
		return "LASeR"
	case CodecGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// SubsampleRange describes one byte range of a MediaSample, used when a
// sample aggregates logically distinct pieces (e.g. TTML embedded
// resources) that a sink needs to address individually.
type SubsampleRange struct {
	Offset int
	Length int
}

// MediaSample is one access unit leaving the core, ready for the sink.
type MediaSample struct {
	// Data is the sample payload. Ownership transfers to the sink on
	// acceptance; the importer never reads it again afterward.
	Data []byte

	// DTS and CTS are in the stream's declared Timescale units.
	// Invariant: CTS = DTS + CTSOffset, CTSOffset >= 0 after final packing.
	DTS       int64
	CTS       int64
	CTSOffset int64

	IsRAP    RAPKind
	Duration int64 // 0 means "not specified"

	Subsamples []SubsampleRange

	StreamID int
}

// StreamDescriptor describes one logical output track. Constructed at the
// first sample; immutable thereafter except for CodecConfig, which may be
// refined once more when the framer finishes parsing initialization
// headers (e.g. the first SPS/PPS, or ADTS frame).
type StreamDescriptor struct {
	StreamType StreamType
	CodecID    CodecID
	Timescale  uint32

	// CodecConfig holds one of a closed set of concrete config types
	// depending on CodecID (*h264.DecoderConfigRecord for H.264,
	// mediacommon's *mpeg4audio.AudioSpecificConfig for AAC,
	// *mpeg4visual.VisualConfig for MPEG-1/2/4 Visual; unset for MPEG audio).
	CodecConfig any

	// Visual extras.
	Width              int
	Height             int
	PixelAspectNum     int
	PixelAspectDen     int
	HorizontalOffset   int
	VerticalOffset     int
	ZOrder             int

	// Audio extras.
	SampleRate     int
	Channels       int
	BitsPerSample  int
	SamplesPerFrame int

	Language     string
	DurationHint int64
}
