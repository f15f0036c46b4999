package h264

import "bytes"

// DecoderConfigRecord is an AVCDecoderConfigurationRecord (ISO/IEC
// 14496-15 §5.2.4.1), built from the SPS/PPS NAL units observed so far.
// It is stored verbatim into StreamDescriptor.CodecConfig.
type DecoderConfigRecord struct {
	ConfigurationVersion byte
	AVCProfileIndication byte
	ProfileCompatibility byte
	AVCLevelIndication   byte
	LengthSizeMinusOne   byte // NALU length-prefix size - 1; only {0,1,3} valid

	SPS [][]byte
	PPS [][]byte

	// High-profile extension fields (ISO/IEC 14496-15 §5.2.4.1.2),
	// present only when AVCProfileIndication is one of {100,110,122,144}.
	HasChromaExtension   bool
	ChromaFormat         byte
	BitDepthLumaMinus8   byte
	BitDepthChromaMinus8 byte
}

// NewDecoderConfigRecord builds a record from the first SPS/PPS pair
// observed, per spec §4.2 "Configuration extraction".
func NewDecoderConfigRecord(sps *SPSInfo, pps *PPSInfo, lengthSizeMinusOne byte) *DecoderConfigRecord {
	r := &DecoderConfigRecord{
		ConfigurationVersion: 1,
		AVCProfileIndication: sps.ProfileIdc,
		ProfileCompatibility: sps.ConstraintSetFlags,
		AVCLevelIndication:   sps.LevelIdc,
		LengthSizeMinusOne:   lengthSizeMinusOne,
		SPS:                  [][]byte{append([]byte(nil), sps.RBSP...)},
	}
	if pps != nil {
		r.PPS = [][]byte{append([]byte(nil), pps.RBSP...)}
	}
	if sps.HasChromaExtension() {
		r.HasChromaExtension = true
		r.ChromaFormat = sps.ChromaFormatIdc
		r.BitDepthLumaMinus8 = sps.BitDepthLumaMinus8
		r.BitDepthChromaMinus8 = sps.BitDepthChromaMinus8
	}
	return r
}

// AddPPS appends another PPS RBSP if not already present (multi-PPS
// streams, e.g. SVC-style pictures switching parameter sets mid-stream).
func (r *DecoderConfigRecord) AddPPS(pps *PPSInfo) {
	for _, existing := range r.PPS {
		if bytes.Equal(existing, pps.RBSP) {
			return
		}
	}
	r.PPS = append(r.PPS, append([]byte(nil), pps.RBSP...))
}

// Marshal encodes the record into its ISOBMFF box-payload byte layout
// (everything after the avcC box's size/type header).
func (r *DecoderConfigRecord) Marshal() []byte {
	var buf bytes.Buffer
	buf.WriteByte(r.ConfigurationVersion)
	buf.WriteByte(r.AVCProfileIndication)
	buf.WriteByte(r.ProfileCompatibility)
	buf.WriteByte(r.AVCLevelIndication)
	buf.WriteByte(0xFC | r.LengthSizeMinusOne&0x03)

	buf.WriteByte(0xE0 | byte(len(r.SPS))&0x1F)
	for _, sps := range r.SPS {
		buf.WriteByte(byte(len(sps) >> 8))
		buf.WriteByte(byte(len(sps)))
		buf.Write(sps)
	}

	buf.WriteByte(byte(len(r.PPS)))
	for _, pps := range r.PPS {
		buf.WriteByte(byte(len(pps) >> 8))
		buf.WriteByte(byte(len(pps)))
		buf.Write(pps)
	}

	if r.HasChromaExtension {
		buf.WriteByte(0xFC | r.ChromaFormat&0x03)
		buf.WriteByte(0xF8 | r.BitDepthLumaMinus8&0x07)
		buf.WriteByte(0xF8 | r.BitDepthChromaMinus8&0x07)
		buf.WriteByte(0) // numOfSequenceParameterSetExt, none tracked
	}

	return buf.Bytes()
}
