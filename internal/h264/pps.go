package h264

import "github.com/gpaccore/mediacore/internal/bitreader"

// PPSInfo holds the picture-parameter-set fields needed to cross-reference a
// slice header against its SPS (spec §4.2 "Configuration extraction": PPS
// similarly parsed; store verbatim").
type PPSInfo struct {
	RBSP []byte

	ID  uint32
	SPSID uint32

	BottomFieldPicOrderInFramePresentFlag bool
}

// ParsePPS decodes the handful of PPS fields the slice-header/POC reader
// needs; the rest of the PPS RBSP is stored verbatim for the
// AVCDecoderConfigurationRecord's pictureParameterSets list.
func ParsePPS(nalu []byte) (*PPSInfo, error) {
	rbsp := unescapeRBSP(nalu)
	if len(rbsp) < 2 {
		return nil, errShortPPS
	}
	br := bitreader.New(rbsp[1:])

	info := &PPSInfo{RBSP: append([]byte(nil), nalu...)}

	id, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.ID = id

	spsID, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.SPSID = spsID

	if err := br.SkipBits(1); err != nil { // entropy_coding_mode_flag
		return nil, err
	}
	bottomFieldPresent, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	info.BottomFieldPicOrderInFramePresentFlag = bottomFieldPresent

	return info, nil
}
