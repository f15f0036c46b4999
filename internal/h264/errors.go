package h264

import "errors"

var (
	errShortSPS               = errors.New("h264: SPS NALU too short")
	errScalingListUnsupported = errors.New("h264: explicit scaling lists not supported")
	errShortPPS               = errors.New("h264: PPS NALU too short")
)
