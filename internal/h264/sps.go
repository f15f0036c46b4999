package h264

import "github.com/gpaccore/mediacore/internal/bitreader"

// SPSInfo holds the sequence-parameter-set fields the importer needs for
// AVCDecoderConfigurationRecord construction, timescale selection, and
// slice-header/POC decoding (spec §4.2 "Configuration extraction").
type SPSInfo struct {
	RBSP []byte // verbatim NALU bytes, stored into sequenceParameterSets

	ProfileIdc         byte
	ConstraintSetFlags byte
	LevelIdc           byte

	ChromaFormatIdc     byte // defaults to 1 (4:2:0) when absent
	BitDepthLumaMinus8  byte
	BitDepthChromaMinus8 byte

	Log2MaxFrameNumMinus4        uint32
	PicOrderCntType              uint32
	Log2MaxPicOrderCntLsbMinus4  uint32
	FrameMbsOnlyFlag             bool

	Width  int
	Height int

	HasTiming       bool
	NumUnitsInTick  uint32
	TimeScale       uint32
	FixedFrameRate  bool

	PixelAspectNum int
	PixelAspectDen int
}

// highProfileIDs are the profile_idc values that carry the AVCC extension
// fields (chroma_format_idc/bit_depth, ISO/IEC 14496-15 §5.2.4.1.2).
var highProfileIDs = map[byte]bool{100: true, 110: true, 122: true, 144: true}

func (s *SPSInfo) HasChromaExtension() bool {
	return highProfileIDs[s.ProfileIdc]
}

// ParseSPS decodes the fields listed in spec §4.2 from a raw (start-code
// stripped) SPS NAL unit, including the nal_unit_type/ref_idc leading byte.
func ParseSPS(nalu []byte) (*SPSInfo, error) {
	rbsp := unescapeRBSP(nalu)
	if len(rbsp) < 4 {
		return nil, errShortSPS
	}
	br := bitreader.New(rbsp[1:]) // skip the NAL header byte

	info := &SPSInfo{RBSP: append([]byte(nil), nalu...), ChromaFormatIdc: 1}

	profileIdc, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	info.ProfileIdc = byte(profileIdc)

	constraintFlags, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	info.ConstraintSetFlags = byte(constraintFlags)

	levelIdc, err := br.ReadBits(8)
	if err != nil {
		return nil, err
	}
	info.LevelIdc = byte(levelIdc)

	if _, err := br.ReadUE(); err != nil { // seq_parameter_set_id
		return nil, err
	}

	if info.HasChromaExtension() {
		chromaFmt, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		info.ChromaFormatIdc = byte(chromaFmt)
		if chromaFmt == 3 {
			if err := br.SkipBits(1); err != nil { // separate_colour_plane_flag
				return nil, err
			}
		}
		bdLuma, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		info.BitDepthLumaMinus8 = byte(bdLuma)
		bdChroma, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		info.BitDepthChromaMinus8 = byte(bdChroma)
		if err := br.SkipBits(1); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}
		seqScalingPresent, err := br.ReadFlag()
		if err != nil {
			return nil, err
		}
		if seqScalingPresent {
			count := 8
			if info.ChromaFormatIdc == 3 {
				count = 12
			}
			for i := 0; i < count; i++ {
				present, err := br.ReadFlag()
				if err != nil {
					return nil, err
				}
				if present {
					// Scaling lists aren't needed downstream; skip remains
					// unsupported (exotic, not used by any pack sample) —
					// abort cleanly rather than mis-parse the rest of SPS.
					return nil, errScalingListUnsupported
				}
			}
		}
	}

	log2MaxFrameNumMinus4, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.Log2MaxFrameNumMinus4 = log2MaxFrameNumMinus4

	picOrderCntType, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	info.PicOrderCntType = picOrderCntType

	switch picOrderCntType {
	case 0:
		lsbMinus4, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		info.Log2MaxPicOrderCntLsbMinus4 = lsbMinus4
	case 1:
		if err := br.SkipBits(1); err != nil { // delta_pic_order_always_zero_flag
			return nil, err
		}
		if _, err := br.ReadSE(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err := br.ReadSE(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		numRefFrames, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < numRefFrames; i++ {
			if _, err := br.ReadSE(); err != nil {
				return nil, err
			}
		}
	}

	if _, err := br.ReadUE(); err != nil { // max_num_ref_frames
		return nil, err
	}
	if err := br.SkipBits(1); err != nil { // gaps_in_frame_num_value_allowed_flag
		return nil, err
	}

	picWidthInMbsMinus1, err := br.ReadUE()
	if err != nil {
		return nil, err
	}
	picHeightInMapUnitsMinus1, err := br.ReadUE()
	if err != nil {
		return nil, err
	}

	frameMbsOnly, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	info.FrameMbsOnlyFlag = frameMbsOnly
	if !frameMbsOnly {
		if err := br.SkipBits(1); err != nil { // mb_adaptive_frame_field_flag
			return nil, err
		}
	}
	if err := br.SkipBits(1); err != nil { // direct_8x8_inference_flag
		return nil, err
	}

	frameCropping, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	var cropLeft, cropRight, cropTop, cropBottom uint32
	if frameCropping {
		if cropLeft, err = br.ReadUE(); err != nil {
			return nil, err
		}
		if cropRight, err = br.ReadUE(); err != nil {
			return nil, err
		}
		if cropTop, err = br.ReadUE(); err != nil {
			return nil, err
		}
		if cropBottom, err = br.ReadUE(); err != nil {
			return nil, err
		}
	}

	mbWidthC, mbHeightC := 2, 2
	if info.ChromaFormatIdc == 0 {
		mbWidthC, mbHeightC = 0, 0
	} else if info.ChromaFormatIdc == 3 {
		mbWidthC, mbHeightC = 1, 1
	}
	cropUnitX, cropUnitY := 1, 2-boolToInt(frameMbsOnly)
	if mbWidthC != 0 {
		cropUnitX = mbWidthC
		cropUnitY = mbHeightC * (2 - boolToInt(frameMbsOnly))
	}

	width := (int(picWidthInMbsMinus1) + 1) * 16
	height := (int(picHeightInMapUnitsMinus1) + 1) * 16 * (2 - boolToInt(frameMbsOnly))
	width -= cropUnitX * int(cropLeft+cropRight)
	height -= cropUnitY * int(cropTop+cropBottom)
	info.Width = width
	info.Height = height

	vuiPresent, err := br.ReadFlag()
	if err != nil {
		return nil, err
	}
	if vuiPresent {
		parseVUI(br, info)
	}

	if info.PixelAspectNum == 0 {
		info.PixelAspectNum, info.PixelAspectDen = 1, 1
	}

	return info, nil
}

func parseVUI(br *bitreader.Reader, info *SPSInfo) {
	aspectRatioPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if aspectRatioPresent {
		idc, err := br.ReadBits(8)
		if err != nil {
			return
		}
		if idc == 255 { // Extended_SAR
			num, err := br.ReadBits(16)
			if err != nil {
				return
			}
			den, err := br.ReadBits(16)
			if err != nil {
				return
			}
			info.PixelAspectNum, info.PixelAspectDen = int(num), int(den)
		} else if idc < uint32(len(sarTable)) {
			info.PixelAspectNum, info.PixelAspectDen = sarTable[idc][0], sarTable[idc][1]
		}
	}

	overscanPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if overscanPresent {
		if err := br.SkipBits(1); err != nil {
			return
		}
	}

	videoSignalPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if videoSignalPresent {
		if err := br.SkipBits(4); err != nil { // video_format(3) + video_full_range_flag(1)
			return
		}
		colourDescPresent, err := br.ReadFlag()
		if err != nil {
			return
		}
		if colourDescPresent {
			if err := br.SkipBits(24); err != nil {
				return
			}
		}
	}

	chromaLocPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if chromaLocPresent {
		if _, err := br.ReadUE(); err != nil {
			return
		}
		if _, err := br.ReadUE(); err != nil {
			return
		}
	}

	timingPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if timingPresent {
		numUnits, err := br.ReadBits(32)
		if err != nil {
			return
		}
		timeScale, err := br.ReadBits(32)
		if err != nil {
			return
		}
		fixedFrameRate, err := br.ReadFlag()
		if err != nil {
			return
		}
		info.HasTiming = true
		info.NumUnitsInTick = numUnits
		info.TimeScale = timeScale
		info.FixedFrameRate = fixedFrameRate
	}
	// Remaining VUI fields (HRD parameters, bitstream restrictions) do not
	// affect anything this importer derives; parsing stops here.
}

// sarTable is Table E-1 of the H.264 spec (aspect_ratio_idc 1..16).
var sarTable = [][2]int{
	{0, 0}, {1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11},
	{32, 11}, {80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3}, {3, 2}, {2, 1},
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
