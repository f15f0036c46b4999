package mpeg4visual

import (
	"bytes"

	"github.com/gpaccore/mediacore/internal/importer"
)

// unit is one start-code-delimited chunk of an MPEG-1/2/4 Visual stream,
// the visual-codec analog of an H.264 NALU.
type unit struct {
	code    byte // the byte following 00 00 01, or the VOL code in 0x20..0x2F
	payload []byte
}

// picture is one pending access unit: a picture/VOP header plus whatever
// slice/macroblock data units followed it, and the container DTS it
// arrived with.
type picture struct {
	units []unit
	dts   int64
	typ   PictureType
}

// Framer implements importer.CodecFramer for MPEG-1, MPEG-2, and MPEG-4
// Visual elementary streams (spec §4.3).
type Framer struct {
	streamID int

	carry    []byte
	carryDTS int64 // dts the Feed call that produced carry was fed with

	seq     *SequenceInfo
	vol     *VOLInfo
	isMPEG4 bool

	configHeader []byte // raw header units before the first picture; restarted by each parsed sequence_header or VOL

	curPic     *picture
	pendingPics []picture

	dtsIncrement int64
	hasBFrames   bool

	desc *importer.StreamDescriptor

	samples []importer.MediaSample
	ptypes  []PictureType

	divxPacked bool

	finalized bool
}

// NewFramer creates an MPEG-1/2/4 Visual framer for one logical stream.
// fps, when >0, sets the dts increment (spec §4.3's VideoFPS request
// option); otherwise it stays at the 25fps default. The sequence header's
// frame_rate_code is parsed into SequenceInfo but does not change the dts
// increment.
func NewFramer(streamID int, fps float64) *Framer {
	f := &Framer{
		streamID:     streamID,
		dtsIncrement: defaultVisualDTSIncrement,
	}
	if fps > 0 {
		f.dtsIncrement = int64(90000 / fps)
	}
	return f
}

const defaultVisualDTSIncrement = 90000 / 25

func (f *Framer) CodecID() importer.CodecID {
	if f.isMPEG4 {
		return importer.CodecMPEG4Visual
	}
	if f.seq != nil && f.seq.IsMPEG2 {
		return importer.CodecMPEG2Video
	}
	return importer.CodecMPEG1Video
}

// Feed splits data into start-code units and folds them into pictures,
// closing the current picture whenever a new picture_header/VOP starts.
func (f *Framer) Feed(data []byte, dts, cts int64) {
	carryLen := len(f.carry)
	carryDTS := f.carryDTS
	// buf is always a private copy: units and the tail outlive this call,
	// and the caller may reuse data.
	buf := append(append([]byte(nil), f.carry...), data...)
	f.carry = nil

	units, positions, tail := splitStartCodes(buf)
	f.carry = tail
	f.carryDTS = dts

	for i, u := range units {
		// A unit's start code may have arrived in a previous Feed call's
		// tail (only completed now that this call's data terminates it):
		// use the DTS it actually arrived with, not this call's.
		unitDTS := dts
		if positions[i] < carryLen {
			unitDTS = carryDTS
		}
		f.processUnit(u, unitDTS)
	}
}

// processUnit folds one start-code unit into the picture under
// construction (or the pre-picture config-header accumulator).
func (f *Framer) processUnit(u unit, dts int64) {
	switch {
	case u.code == startCodeSequenceHeader:
		if seq, err := parseSequenceHeader(u.payload); err == nil {
			f.seq = seq
			f.configHeader = nil
		}
		f.appendConfigOrUnit(u, dts)

	case u.code == startCodeSequenceExt:
		if f.seq != nil {
			_ = applySequenceExtension(f.seq, u.payload)
		}
		f.appendConfigOrUnit(u, dts)

	case u.code == startCodeGOP:
		f.appendConfigOrUnit(u, dts)

	case u.code == startCodeUserData:
		f.maybeDetectDivX(u.payload)
		f.appendConfigOrUnit(u, dts)

	case u.code == startCodePictureHeader:
		typ, err := parsePictureCodingType(u.payload)
		f.closeCurrent()
		f.curPic = &picture{dts: dts}
		if err == nil {
			f.curPic.typ = typ
			if typ == PictureB {
				f.hasBFrames = true
			}
		}
		f.appendUnit(u)

	case u.code == startCodeVOSStart:
		f.isMPEG4 = true
		f.appendConfigOrUnit(u, dts)

	case u.code >= startCodeVOLMin && u.code <= startCodeVOLMax:
		f.isMPEG4 = true
		if vol, err := parseVOL(u.payload); err == nil {
			f.vol = vol
			f.configHeader = nil
		}
		f.appendConfigOrUnit(u, dts)

	case u.code == startCodeVOP:
		typ, err := parseVOPCodingType(u.payload)
		f.closeCurrent()
		f.curPic = &picture{dts: dts}
		if err == nil {
			f.curPic.typ = typ
			if typ == PictureB {
				f.hasBFrames = true
			}
		}
		f.appendUnit(u)

	default:
		// Slice / macroblock data: belongs to whatever picture is open.
		if f.curPic == nil {
			return // no picture header seen yet, drop stray data
		}
		f.appendUnit(u)
	}
}

// appendUnit adds a unit to the picture currently being assembled.
func (f *Framer) appendUnit(u unit) {
	if f.curPic == nil {
		return
	}
	f.curPic.units = append(f.curPic.units, u)
}

// appendConfigOrUnit routes a header-level unit (sequence/GOP/user-data/VOL)
// either into the not-yet-started configHeader accumulator, or, once a
// picture is open, into that picture's unit list (mid-stream headers, e.g.
// a GOP-repeated sequence_header, travel with the picture they precede).
func (f *Framer) appendConfigOrUnit(u unit, dts int64) {
	if f.curPic != nil {
		f.appendUnit(u)
		return
	}
	f.configHeader = append(f.configHeader, encodeStartCode(u)...)
}

func (f *Framer) closeCurrent() {
	if f.curPic == nil {
		return
	}
	f.pendingPics = append(f.pendingPics, *f.curPic)
	f.curPic = nil
}

// maybeDetectDivX scans a user_data payload for the DivX packed-bitstream
// marker ("DivX" ... "p" for packed) and records that the stream is packed.
// The marker is not rewritten (it stays "p" in the payload and in the
// decoder config), and the throwaway N-VOPs that packed streams interleave
// between real P-VOP pairs are passed through like any other VOP.
func (f *Framer) maybeDetectDivX(payload []byte) {
	const marker = "DivX"
	idx := bytes.Index(payload, []byte(marker))
	if idx < 0 {
		return
	}
	rest := payload[idx+len(marker):]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		end = len(rest)
	}
	tag := rest[:end]
	if len(tag) > 0 && tag[len(tag)-1] == 'p' {
		f.divxPacked = true
	}
}

// encodeStartCode re-wraps a unit with its 00 00 01 start code for storage
// in the decoder-config byte run.
func encodeStartCode(u unit) []byte {
	out := make([]byte, 0, 4+len(u.payload))
	out = append(out, 0, 0, 1, u.code)
	out = append(out, u.payload...)
	return out
}

// NextSample drains one completed picture into a provisional MediaSample.
// CTS packing for B-frame reordering is only finalized at Flush, mirroring
// the H.264 framer's CTS-buffering contract.
func (f *Framer) NextSample() (importer.MediaSample, *importer.StreamDescriptor, bool, *importer.Error) {
	if len(f.pendingPics) == 0 {
		return importer.MediaSample{}, nil, false, nil
	}
	pic := f.pendingPics[0]
	f.pendingPics = f.pendingPics[1:]

	payload := encodePicture(pic.units)

	rapKind := importer.RAPNone
	if pic.typ == PictureI {
		rapKind = importer.RAPSync
	}

	sample := importer.MediaSample{
		Data:     payload,
		DTS:      pic.dts,
		CTS:      pic.dts,
		IsRAP:    rapKind,
		StreamID: f.streamID,
	}

	if f.hasBFrames {
		f.samples = append(f.samples, sample)
		f.ptypes = append(f.ptypes, pic.typ)
		return importer.MediaSample{}, f.descriptor(), false, nil
	}

	return sample, f.descriptor(), true, nil
}

// encodePicture concatenates a picture's start-code units back into a flat
// byte stream. Unlike H.264's AVCC, visual elementary streams keep their
// Annex-B-style start codes in the sample payload itself (spec §4.3: no
// length-prefix re-encoding for this family).
func encodePicture(units []unit) []byte {
	var total int
	for _, u := range units {
		total += 4 + len(u.payload)
	}
	out := make([]byte, 0, total)
	for _, u := range units {
		out = append(out, encodeStartCode(u)...)
	}
	return out
}

func (f *Framer) descriptor() *importer.StreamDescriptor {
	if f.desc == nil {
		f.desc = &importer.StreamDescriptor{
			StreamType: importer.StreamVisual,
			Timescale:  90000,
		}
	}
	f.desc.CodecID = f.CodecID()
	if f.seq != nil {
		f.desc.Width = f.seq.Width
		f.desc.Height = f.seq.Height
	}
	if f.vol != nil && f.vol.Width > 0 {
		f.desc.Width = f.vol.Width
		f.desc.Height = f.vol.Height
	}
	if len(f.configHeader) > 0 {
		f.desc.CodecConfig = &VisualConfig{
			Bytes:      append([]byte(nil), f.configHeader...),
			DivXPacked: f.divxPacked,
		}
	}
	return f.desc
}

// Flush closes any trailing picture, packs CTS offsets for B-frame
// reordering if any B pictures were observed, and returns every buffered
// sample.
func (f *Framer) Flush() ([]importer.MediaSample, *importer.Error) {
	// A trailing unit held in carry (no following start code arrived to
	// terminate it) is only incomplete with respect to more stream data
	// that will never come: end of stream is itself the terminator.
	if len(f.carry) >= 4 {
		code := f.carry[3]
		payload := f.carry[4:]
		f.carry = nil
		f.processUnit(unit{code: code, payload: payload}, f.carryDTS)
	}
	f.closeCurrent()
	for len(f.pendingPics) > 0 {
		sample, _, ok, err := f.NextSample()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // buffered internally by NextSample for CTS packing
		}
		f.samples = append(f.samples, sample)
	}

	if f.hasBFrames {
		packCTS(f.samples, f.ptypes, f.dtsIncrement)
	}

	out := f.samples
	f.samples = nil
	f.ptypes = nil
	f.finalized = true
	return out, nil
}

// packCTS performs the one-pass end-of-stream CTS reconstruction spec §4.3
// describes: each non-B (reference) picture's CTS is deferred by
// (consecutive_b_count + 1) * dtsInc, where consecutive_b_count is the
// number of B pictures immediately following it in decode order before the
// next reference picture (or end of stream). B pictures display as soon as
// they decode, so they keep CTSOffset == 0.
func packCTS(samples []importer.MediaSample, types []PictureType, dtsInc int64) {
	for i := range samples {
		if types[i] == PictureB {
			continue
		}
		bCount := 0
		for j := i + 1; j < len(samples) && types[j] == PictureB; j++ {
			bCount++
		}
		offset := int64(bCount+1) * dtsInc
		samples[i].CTSOffset = offset
		samples[i].CTS = samples[i].DTS + offset
	}
}
