// Package h264 frames Annex-B H.264 elementary streams into access units,
// builds an AVCDecoderConfigurationRecord, classifies random-access points,
// and reconstructs CTS offsets for B-frame reordering (spec §4.2).
package h264

import (
	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/gpaccore/mediacore/internal/importer"
)

// accessUnit is one pending AU: its constituent NALUs plus the container
// DTS it arrived with.
type accessUnit struct {
	nalus []nalUnit
	dts   int64
	slice *sliceInfo // representative slice (the last one appended before this AU closed); nil if no slice NALU present
}

type nalUnit struct {
	bytes []byte
	typ   mch264.NALUType
}

// Framer implements importer.CodecFramer for Annex-B H.264 streams.
type Framer struct {
	streamID int

	carry    []byte // unterminated tail bytes from the previous Feed call
	carryDTS int64  // dts of the Feed call in which carry's NALU started

	curAU      []nalUnit
	curDTS     int64 // container DTS the current AU's first NALU arrived with
	prevSlice  *sliceInfo
	pendingAUs []accessUnit

	sps    *SPSInfo
	pps    map[uint32]*PPSInfo
	config *DecoderConfigRecord

	cts          *ctsReconstructor
	dtsIncrement int64
	paff         bool

	lengthSizeMinusOne byte
	maxNALUSize         int
	forcedLengthSize    bool

	desc          *importer.StreamDescriptor
	descPublished bool

	samples     []importer.MediaSample
	sampleNALUs [][]nalUnit // parallel to samples, for length-size rewriting at Flush
	finalized   bool
}

// NewFramer creates an H.264 framer for one logical stream. forcedLength,
// when >0, fixes the NALU length-prefix size (spec §4.2 "NALU size length
// self-tuning": a source can request forced 32-bit sizes); otherwise the
// framer self-tunes starting from 1 byte.
func NewFramer(streamID int, forcedLength int) *Framer {
	f := &Framer{
		streamID:         streamID,
		pps:              make(map[uint32]*PPSInfo),
		dtsIncrement:     defaultH264DTSIncrement,
		lengthSizeMinusOne: 0,
	}
	if forcedLength > 0 {
		f.lengthSizeMinusOne = byte(forcedLength - 1)
		f.forcedLengthSize = true
	}
	return f
}

// defaultH264DTSIncrement assumes 25fps at 90kHz until VUI timing info (or
// an explicit request) says otherwise.
const defaultH264DTSIncrement = 90000 / 25

func (f *Framer) CodecID() importer.CodecID {
	return importer.CodecH264
}

// Feed splits data (one container-level frame, Annex-B framed) into NAL
// units and folds them into access units, closing the current AU whenever
// an AUD is seen or a new slice's header indicates a new picture.
func (f *Framer) Feed(data []byte, dts, cts int64) {
	// buf is always a private copy: NALUs and the tail outlive this call,
	// and the caller may reuse data.
	startsInCarry := len(findStartCodes(f.carry)) > 0
	carryDTS := f.carryDTS
	buf := append(append([]byte(nil), f.carry...), data...)
	f.carry = nil

	nalus, tail := splitAnnexB(buf)
	f.carry = tail
	if !startsInCarry || len(nalus) > 0 {
		f.carryDTS = dts
	}

	for i, raw := range nalus {
		// The first NALU completes the carried tail, so it keeps the DTS of
		// the call it started in.
		dts := dts
		if i == 0 && startsInCarry {
			dts = carryDTS
		}
		typ := naluType(raw)
		switch typ {
		case mch264.NALUTypeAccessUnitDelimiter:
			f.closeAU(f.prevSlice)
			f.prevSlice = nil
			continue
		case mch264.NALUTypeSPS:
			if sps, err := ParseSPS(raw); err == nil {
				f.onNewSPS(sps)
			}
			f.appendNALU(nalUnit{bytes: raw, typ: typ}, dts)
			continue
		case mch264.NALUTypePPS:
			if pps, err := ParsePPS(raw); err == nil {
				f.pps[pps.ID] = pps
				if f.config != nil {
					f.config.AddPPS(pps)
				}
			}
			f.appendNALU(nalUnit{bytes: raw, typ: typ}, dts)
			continue
		case naluTypeSEI:
			f.appendNALU(nalUnit{bytes: trimSEIPadding(raw), typ: typ}, dts)
			continue
		}

		if typ != mch264.NALUTypeIDR && typ != naluTypeNonIDRSlice {
			f.appendNALU(nalUnit{bytes: raw, typ: typ}, dts)
			continue
		}

		if f.sps == nil {
			continue // can't parse a slice header without its SPS yet
		}
		pps := f.pps[0]
		si, err := parseSliceHeader(raw, f.sps, pps)
		if err != nil {
			continue
		}

		if f.prevSlice != nil && !sameAU(f.prevSlice, si) {
			f.closeAU(f.prevSlice)
		}
		f.appendNALU(nalUnit{bytes: raw, typ: typ}, dts)
		f.prevSlice = si
	}
}

// appendNALU adds one NALU to the access unit under construction, recording
// the container DTS it arrived with the first time the AU is started.
func (f *Framer) appendNALU(n nalUnit, dts int64) {
	if len(f.curAU) == 0 {
		f.curDTS = dts
	}
	f.curAU = append(f.curAU, n)
}

func (f *Framer) onNewSPS(sps *SPSInfo) {
	f.sps = sps
	f.paff = !sps.FrameMbsOnlyFlag
	if f.cts == nil {
		f.cts = newCTSReconstructor(sps)
	}
	if sps.HasTiming && sps.TimeScale > 0 && sps.NumUnitsInTick > 0 {
		fps := float64(sps.TimeScale) / (2 * float64(sps.NumUnitsInTick))
		if sps.FixedFrameRate && fps > 0 && fps <= 50 {
			f.dtsIncrement = int64(90000 / fps)
		}
	}
	f.config = NewDecoderConfigRecord(sps, nil, f.lengthSizeMinusOne)
	f.descPublished = false
}

// closeAU finalizes the current access unit into pendingAUs and resets the
// working buffer, using the DTS recorded when the AU was started. slice is
// the representative slice header for the AU being closed (the last slice
// appended before closure), or nil if it contained none.
func (f *Framer) closeAU(slice *sliceInfo) {
	if len(f.curAU) == 0 {
		return
	}
	f.pendingAUs = append(f.pendingAUs, accessUnit{nalus: f.curAU, dts: f.curDTS, slice: slice})
	f.curAU = nil
}

// NextSample drains one completed access unit into a MediaSample. An AU
// with a parsed slice header is buffered for CTS reconstruction and
// reported as ok=false: such samples are returned only by Flush(), with
// their final CTS (until then CTSOffset holds the raw POC). AUs without a
// parsed slice are returned at once with CTS == DTS.
func (f *Framer) NextSample() (importer.MediaSample, *importer.StreamDescriptor, bool, *importer.Error) {
	if len(f.pendingAUs) == 0 {
		return importer.MediaSample{}, nil, false, nil
	}
	au := f.pendingAUs[0]
	f.pendingAUs = f.pendingAUs[1:]

	payload, maxSize := encodeAVCC(au.nalus, f.lengthSizeMinusOne)
	if maxSize > f.maxNALUSize {
		f.maxNALUSize = maxSize
	}
	f.maybeWidenLength()

	rapKind := importer.RAPNone
	if containsIDR(au.nalus) {
		rapKind = importer.RAPSync
	} else if containsRecoveryPointSEI(au.nalus) {
		rapKind = importer.RAPSAP3 // roll-recovery anchor, not a sync point
	}

	sample := importer.MediaSample{
		Data:     payload,
		DTS:      au.dts,
		CTS:      au.dts,
		IsRAP:    rapKind,
		StreamID: f.streamID,
	}

	if au.slice != nil && f.cts != nil {
		f.samples = append(f.samples, sample)
		f.sampleNALUs = append(f.sampleNALUs, au.nalus)
		f.cts.observe(f.samples, len(f.samples)-1, au.slice)
		// Samples are buffered rather than returned immediately: CTS
		// reconstruction needs the full decode-order run to pack offsets
		// at Flush(). Callers that need low-latency streaming output
		// should treat NextSample as "not yet" until Flush is reached.
		return importer.MediaSample{}, f.descriptor(), false, nil
	}

	return sample, f.descriptor(), true, nil
}

func (f *Framer) descriptor() *importer.StreamDescriptor {
	if f.desc == nil {
		f.desc = &importer.StreamDescriptor{
			StreamType: importer.StreamVisual,
			CodecID:    importer.CodecH264,
			Timescale:  90000,
		}
	}
	if f.sps != nil {
		f.desc.Width = f.sps.Width
		f.desc.Height = f.sps.Height
		f.desc.PixelAspectNum = f.sps.PixelAspectNum
		f.desc.PixelAspectDen = f.sps.PixelAspectDen
		f.desc.CodecConfig = f.config
	}
	return f.desc
}

// Flush closes any trailing access unit, runs final CTS packing if engaged,
// and returns every buffered sample.
func (f *Framer) Flush() ([]importer.MediaSample, *importer.Error) {
	// End of stream terminates the NALU held back as carry.
	if len(f.carry) > 0 {
		f.Feed([]byte{0, 0, 0, 1}, f.carryDTS, 0)
		f.carry = nil
	}
	if len(f.curAU) > 0 {
		f.closeAU(f.prevSlice)
	}
	// AUs with no parseable slice (SPS not yet seen, or an AU carrying only
	// SEI/AUD NALUs) bypass CTS buffering entirely and are collected apart
	// from the reordering pipeline below.
	var immediate []importer.MediaSample
	for len(f.pendingAUs) > 0 {
		sample, _, ok, err := f.NextSample()
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // buffered internally by NextSample for CTS packing
		}
		immediate = append(immediate, sample)
	}

	if f.cts != nil {
		f.cts.finalize(f.samples, f.dtsIncrement, f.paff)
	}

	// Re-encode every buffered sample with the final, widest length size
	// observed across the run (spec §4.2 "rewrites any sample already
	// emitted to the sink via a rewrite-samples operation"). Samples
	// collected in immediate never went through this buffering, so their
	// NALU length prefixes reflect whatever width was current when they
	// were encoded.
	for i, nalus := range f.sampleNALUs {
		payload, _ := encodeAVCC(nalus, f.lengthSizeMinusOne)
		f.samples[i].Data = payload
	}

	out := append(f.samples, immediate...)
	f.samples = nil
	f.sampleNALUs = nil
	f.finalized = true
	return out, nil
}

// maybeWidenLength upgrades the NALU length-prefix size once a NALU
// exceeds the representable range for the current width, per spec §4.2
// "NALU size length self-tuning". Only {1,2,4} byte widths are valid; a
// forced length size never widens.
func (f *Framer) maybeWidenLength() {
	if f.forcedLengthSize {
		return
	}
	size := int(f.lengthSizeMinusOne) + 1
	switch {
	case f.maxNALUSize >= 1<<16:
		f.lengthSizeMinusOne = 3
	case size == 1 && f.maxNALUSize >= 1<<8:
		f.lengthSizeMinusOne = 1
	}
	if f.config != nil {
		f.config.LengthSizeMinusOne = f.lengthSizeMinusOne
	}
}
