package mpegps

import (
	"bufio"
	"io"

	"github.com/gpaccore/mediacore/internal/importer"
)

// TimestampUnit selects the unit a Frame's DTS/CTS are reported in.
type TimestampUnit int

const (
	UnitTicks90kHz TimestampUnit = iota
	UnitMilliseconds
)

const tickRate = 90000

// defaultDTSIncrement is used to reconstruct timestamps for PES packets
// that carry neither a PTS nor a DTS, when no better estimate is known
// (spec §4.1 "timestamp recovery"). 3600 ticks == 25fps at 90kHz, a common
// default for PAL-region Program Stream captures. Callers that know a
// stream's real frame/sample duration (typically the per-codec ES framer,
// once it has parsed the first access unit) should call SetDTSIncrement.
const defaultDTSIncrement = tickRate / 25

// Frame is one demuxed elementary-stream access unit, still container-scoped
// (no codec-level reframing has happened yet).
type Frame struct {
	StreamID   byte
	SubstreamID byte // only meaningful when StreamID == private stream 1 (0xBD)
	Kind       StreamKind
	Data       []byte
	DTS        int64
	CTS        int64
	ByteOffset int64 // offset of the PES packet this frame came from
}

type streamState struct {
	id           byte
	substream    byte
	kind         StreamKind
	index        *AccessPointIndex
	pending      []Frame
	framesSinceTS int64
	lastDTS      int64
	hasLastDTS   bool
	dtsIncrement int64
	firstDTS     int64
	hasFirstDTS  bool
}

func newStreamState(id, substream byte, kind StreamKind) (*streamState, error) {
	idx, err := NewAccessPointIndex()
	if err != nil {
		return nil, err
	}
	return &streamState{
		id:           id,
		substream:    substream,
		kind:         kind,
		index:        idx,
		dtsIncrement: defaultDTSIncrement,
	}, nil
}

// Demuxer reads pack/PES structure from a Source and yields Frames per
// stream, maintaining a RecordedAccessPoint index as it parses forward.
//
// readPos tracks the logical byte position of the next unread byte. It is
// kept independent of sr's own counter: br (bufio.Reader) prefetches ahead
// of the underlying Source in chunks, so sr.Offset() reflects how much has
// been pulled from the Source, not how much has actually been consumed by
// the parser. Every consuming read advances readPos explicitly instead.
type Demuxer struct {
	sr          *sourceReader
	br          *bufio.Reader
	readPos     int64
	streams     map[byte]*streamState
	order       []byte // stream IDs in first-seen order, for deterministic Probe output
	firstDTS    int64
	hasFirstDTS bool
}

// Open wraps src for pack/PES scanning. It performs no I/O beyond what the
// first Probe/GetFrame call triggers.
func Open(src importer.Source) *Demuxer {
	sr := newSourceReader(src)
	return &Demuxer{
		sr:      sr,
		br:      bufio.NewReaderSize(sr, 64*1024),
		streams: make(map[byte]*streamState),
	}
}

// ProbeResult summarizes the streams discovered during a bounded scan.
type ProbeResult struct {
	Streams []ProbeStream
}

type ProbeStream struct {
	StreamID  byte
	Kind      StreamKind
	FirstDTS  int64
}

// probeScanCap bounds how much of the stream Probe reads, per spec §4.1
// "probe (bounded prefix/suffix scan)".
const probeScanCap = 256 * 1024

// Probe performs a bounded forward scan (up to probeScanCap bytes) to
// discover the set of elementary streams present and each one's first DTS,
// without committing to full decode. It does not disturb GetFrame's
// subsequent forward-read state: Probe must be called before any GetFrame
// call on this Demuxer.
func (d *Demuxer) Probe() (ProbeResult, *importer.Error) {
	start := d.readPos
	limit := start + probeScanCap
	var result ProbeResult
	seen := make(map[byte]bool)
	for d.readPos < limit {
		fr, err := d.nextFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, importer.WrapError(importer.StatusNonCompliantBitstream, err)
		}
		key := fr.StreamID
		if fr.StreamID == startCodePrivate1 {
			key = fr.SubstreamID | 0x80 // fold substream into key space to disambiguate
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Streams = append(result.Streams, ProbeStream{
			StreamID: fr.StreamID,
			Kind:     fr.Kind,
			FirstDTS: fr.DTS,
		})
	}
	// Rewind so GetFrame starts again from the frames the scan consumed,
	// with timestamp recovery starting afresh.
	if err := d.seekTo(start); err != nil {
		return result, importer.WrapError(importer.StatusIOError, err)
	}
	for _, st := range d.streams {
		st.hasLastDTS, st.framesSinceTS = false, 0
	}
	return result, nil
}

// FirstCTS returns the earliest DTS observed across all streams so far, in
// 90kHz ticks. Call after at least one GetFrame/Probe.
func (d *Demuxer) FirstCTS() int64 {
	return d.firstDTS
}

// SetDTSIncrement overrides the per-frame timestamp-recovery increment (in
// 90kHz ticks) for a stream, once its true frame/sample duration is known.
func (d *Demuxer) SetDTSIncrement(streamID byte, ticks int64) {
	if st, ok := d.streams[streamID]; ok {
		st.dtsIncrement = ticks
	}
}

// GetFrame returns the next Frame for streamID, reading and buffering
// frames for other streams as a side effect. Returns io.EOF when the
// underlying source is exhausted and no more frames for streamID remain.
func (d *Demuxer) GetFrame(streamID byte, unit TimestampUnit) (Frame, error) {
	st := d.streams[streamID]
	for st == nil || len(st.pending) == 0 {
		fr, err := d.nextFrame()
		if err != nil {
			return Frame{}, err
		}
		target := d.streams[fr.StreamID]
		target.pending = append(target.pending, fr)
		if fr.StreamID == streamID {
			st = target
		}
	}
	fr := st.pending[0]
	st.pending = st.pending[1:]
	if unit == UnitMilliseconds {
		fr.DTS = fr.DTS * 1000 / tickRate
		fr.CTS = fr.CTS * 1000 / tickRate
	}
	return fr, nil
}

// Seek repositions the stream so the next GetFrame(streamID, ...) call
// returns the first frame of streamID at or after tMsec: it binary-searches
// streamID's RecordedAccessPoint index (FindFloor) for the last anchor at
// or before tMsec, jumps there, and reads forward, discarding earlier
// frames of streamID (approach from below; no interpolation step). If the
// index is empty, Seek rewinds to the start of the file and relies on the
// caller to discard frames before tMsec.
func (d *Demuxer) Seek(streamID byte, tMsec int64) *importer.Error {
	target := tMsec * tickRate / 1000
	st, ok := d.streams[streamID]
	if !ok || st.index.Len() == 0 {
		if err := d.seekTo(0); err != nil {
			return importer.WrapError(importer.StatusIOError, err)
		}
		return nil
	}

	floor, err := st.index.FindFloor(target)
	if err != nil {
		return importer.WrapError(importer.StatusIOError, err)
	}
	var anchor RecordedAccessPoint
	if floor < 0 {
		anchor, _ = st.index.At(0)
	} else {
		anchor, err = st.index.At(floor)
		if err != nil {
			return importer.WrapError(importer.StatusIOError, err)
		}
	}

	if err := d.seekTo(anchor.ByteOffset); err != nil {
		return importer.WrapError(importer.StatusIOError, err)
	}

	// Approach from below: linearly consume frames for streamID until one
	// at or after target is reached, then push it back as the head of
	// pending so the caller's next GetFrame observes it.
	for {
		fr, err := d.nextFrame()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return importer.WrapError(importer.StatusNonCompliantBitstream, err)
		}
		if fr.StreamID != streamID {
			tgt := d.streams[fr.StreamID]
			tgt.pending = append(tgt.pending, fr)
			continue
		}
		if fr.DTS < target {
			continue // below the seek target: discard, not queue
		}
		st.pending = append([]Frame{fr}, st.pending...)
		return nil
	}
}

// Close releases any per-stream disk-backed index files.
func (d *Demuxer) Close() error {
	var first error
	for _, st := range d.streams {
		if err := st.index.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// seekTo repositions the underlying Source and drops the buffered reader
// (which may hold bytes prefetched past the old logical position),
// resyncing readPos to the new absolute offset. Per-stream pending queues
// and indexes are preserved.
func (d *Demuxer) seekTo(abs int64) error {
	if err := d.sr.SeekTo(abs); err != nil {
		return err
	}
	d.br = bufio.NewReaderSize(d.sr, 64*1024)
	d.readPos = abs
	return nil
}

// nextFrame scans forward for the next usable PES payload, transparently
// skipping pack headers, recovering across system-end codes, and folding
// in per-stream state (index insertion, timestamp recovery). Returns
// io.EOF when the source is exhausted.
func (d *Demuxer) nextFrame() (Frame, error) {
	for {
		startCode, err := d.findStartCode()
		if err != nil {
			return Frame{}, err
		}

		switch startCode {
		case startCodePackHeader:
			n, err := skipPackHeader(d.br)
			d.readPos += int64(n)
			if err != nil {
				return Frame{}, err
			}
			continue
		case startCodeSystemEnd:
			// Rewind 2 bytes: a new pack/PES sequence may continue
			// immediately (multi-segment concatenated PS files).
			target := d.readPos - systemEndRewind
			if target < 0 {
				target = 0
			}
			if err := d.seekTo(target); err != nil {
				return Frame{}, err
			}
			continue
		}

		streamID := startCode
		frameOffset := d.readPos - 4

		var lenBuf [2]byte
		if _, err := io.ReadFull(d.br, lenBuf[:]); err != nil {
			return Frame{}, err
		}
		d.readPos += 2
		pktLen := int(lenBuf[0])<<8 | int(lenBuf[1])

		var hdr []byte
		if pktLen > 0 {
			hdr = make([]byte, pktLen)
			n, err := io.ReadFull(d.br, hdr)
			d.readPos += int64(n)
			if err != nil && err != io.ErrUnexpectedEOF {
				return Frame{}, err
			}
			hdr = hdr[:n] // tolerate a PES packet truncated at EOF
		} else {
			// Indeterminate length: not used by any stream_id this
			// demuxer classifies as known, so skip scanning for the
			// next start code instead of guessing a length.
			continue
		}

		payloadOffset, pts, dts, err := ParsePESHeader(hdr)
		if err != nil || payloadOffset > len(hdr) {
			continue // corrupt PES header: resync on the next start code
		}
		payload := hdr[payloadOffset:]

		var substream byte
		kind := ClassifyStreamID(streamID)
		if IsPrivateStream1(streamID) {
			if len(payload) == 0 {
				continue
			}
			substream = payload[0]
			payload = payload[1:]
			kind = ClassifyPrivateSubstream(substream)
		}
		if kind == KindUnknown {
			continue
		}

		st, ok := d.streams[streamID]
		if !ok {
			st, err = newStreamState(streamID, substream, kind)
			if err != nil {
				return Frame{}, err
			}
			d.streams[streamID] = st
			d.order = append(d.order, streamID)
		}

		frameDTS, frameCTS := d.resolveTimestamps(st, pts, dts)

		if !d.hasFirstDTS || frameDTS < d.firstDTS {
			d.firstDTS = frameDTS
			d.hasFirstDTS = true
		}
		if !st.hasFirstDTS {
			st.firstDTS = frameDTS
			st.hasFirstDTS = true
		}
		if err := st.index.TryInsert(RecordedAccessPoint{DTS: frameDTS, ByteOffset: frameOffset}); err != nil {
			return Frame{}, err
		}

		return Frame{
			StreamID:    streamID,
			SubstreamID: substream,
			Kind:        kind,
			Data:        payload,
			DTS:         frameDTS,
			CTS:         frameCTS,
			ByteOffset:  frameOffset,
		}, nil
	}
}

// resolveTimestamps fills in DTS/CTS for a PES packet, reconstructing
// missing fields per spec §4.1 "timestamp recovery": PTS defaults to DTS
// and vice versa when only one is present; when neither is present, the
// next timestamp is extrapolated from the last known one plus the number
// of frames seen since, times the stream's DTS increment.
func (d *Demuxer) resolveTimestamps(st *streamState, pts, dts *int64) (frameDTS, frameCTS int64) {
	switch {
	case dts != nil && pts != nil:
		frameDTS, frameCTS = *dts, *pts
	case pts != nil:
		frameDTS, frameCTS = *pts, *pts
	case dts != nil:
		frameDTS, frameCTS = *dts, *dts
	default:
		if st.hasLastDTS {
			frameDTS = st.lastDTS + st.framesSinceTS*st.dtsIncrement
		}
		frameCTS = frameDTS
	}

	st.lastDTS = frameDTS
	st.hasLastDTS = true
	if pts != nil || dts != nil {
		st.framesSinceTS = 1
	} else {
		st.framesSinceTS++
	}
	return frameDTS, frameCTS
}

// findStartCode advances the reader byte-by-byte until it has consumed a
// full 00 00 01 xx start code, returning xx. Any non-start-code bytes
// encountered along the way are silently skipped — this is the "scans
// forward recovering from corruption" behavior spec §4.1 describes; there
// is no hard window because scanning always continues until a valid code
// or EOF is found.
func (d *Demuxer) findStartCode() (byte, error) {
	var window [3]byte
	filled := 0
	for {
		b, err := d.br.ReadByte()
		if err != nil {
			return 0, err
		}
		d.readPos++
		if filled < 3 {
			window[filled] = b
			filled++
			continue
		}
		if window[0] == 0x00 && window[1] == 0x00 && window[2] == 0x01 {
			return b, nil
		}
		window[0], window[1], window[2] = window[1], window[2], b
	}
}
