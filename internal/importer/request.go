package importer

import "github.com/creasty/defaults"

// StxtMode is the simple-text output packaging option (spec §6).
type StxtMode string

// Simple-text packaging modes.
const (
	StxtModeNone StxtMode = "none"
	StxtModeTX3G StxtMode = "tx3g"
	StxtModeVTT  StxtMode = "vtt"
)

// SBRMode selects AAC SBR signaling.
type SBRMode string

// SBR modes.
const (
	SBRModeNone     SBRMode = "none"
	SBRModeImplicit SBRMode = "implicit"
	SBRModeExplicit SBRMode = "explicit"
)

// ImportRequest describes one import session's target and options (spec
// §2 "ImportRequest", §6 "Option surface"). Defaulted with creasty/defaults
// so callers only set the fields they care about.
type ImportRequest struct {
	// StreamID selects which logical stream within a multi-stream source
	// to import. 0 means "first/only stream".
	StreamID int

	// DurationCapMS caps how much of the source is imported, in
	// milliseconds. 0 means unlimited.
	DurationCapMS int64 `default:"0"`

	// VideoFPS overrides the detected frame rate. 0 means auto-detect;
	// 10000.0 means "detect, or fall back to 25 if detection fails".
	VideoFPS float64 `default:"0"`

	// FramesPerSample packs N frames per sample for 3GPP frame-aggregated
	// audio (AMR/EVRC/SMV). Valid range 1-15.
	FramesPerSample int `default:"1"`

	// ForcedSizeLength forces the H.264 NALU size field width (1, 2, or 4
	// bytes). 0 means auto-tune (spec §4.2 "NALU size length self-tuning").
	ForcedSizeLength int `default:"0"`

	// NoFrameDrop is accepted but not read by any framer: the MPEG-4
	// Visual framer keeps not-coded N-VOPs whatever its value.
	NoFrameDrop bool `default:"false"`

	// SBR selects AAC SBR signaling mode.
	SBR SBRMode `default:"none"`

	// UseDataRef emits samples as byte-range references to the source file
	// rather than copies.
	UseDataRef bool `default:"false"`

	// TTML options.
	TTMLSplit bool   `default:"false"`
	TTMLEmbed bool   `default:"false"`
	TTMLZeroMS int64 `default:"0"`
	TTMLCTS    bool  `default:"false"`
	TTMLDurMS  int64 `default:"0"`

	// NoDefBox / NoFlush control subtitle layout/flush policy.
	NoDefBox bool `default:"false"`
	NoFlush  bool `default:"false"`

	// Stxt selects simple-text output packaging.
	Stxt StxtMode `default:"none"`

	// Abort is checked at the start of each Process call, not between the
	// samples written within one call and not during Probe; once it is
	// seen, Process returns PollDone with no further samples emitted (spec
	// §5 "Cancellation").
	Abort bool `default:"false"`
}

// NewImportRequest returns an ImportRequest with every default applied.
func NewImportRequest() *ImportRequest {
	r := &ImportRequest{}
	_ = defaults.Set(r)
	return r
}

// Validate checks for configuration contradictions that must fail fast at
// configure() time (spec §7 "Configuration contradictions").
func (r *ImportRequest) Validate() *Error {
	if r.FramesPerSample < 1 || r.FramesPerSample > 15 {
		return NewError(StatusBadParam, "frames_per_sample must be in 1..15, got %d", r.FramesPerSample)
	}
	switch r.ForcedSizeLength {
	case 0, 1, 2, 4:
	default:
		return NewError(StatusBadParam, "forced_size_length must be one of {0,1,2,4}, got %d", r.ForcedSizeLength)
	}
	return nil
}
