package frame

import (
	"fmt"
	"strings"
)

// Mode selects the image-processing transform applied to each frame.
// The numeric values are part of the telemetry wire format.
type Mode int32

const (
	ModeGrayscale Mode = iota
	ModeEdgeDetect
	ModeBlur
	ModePassthrough
)

func (m Mode) String() string {
	switch m {
	case ModeGrayscale:
		return "grayscale"
	case ModeEdgeDetect:
		return "edge"
	case ModeBlur:
		return "blur"
	case ModePassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m >= ModeGrayscale && m <= ModePassthrough
}

// ParseMode accepts a mode name (with a few aliases) or its numeric value.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grayscale", "gray", "grey", "0":
		return ModeGrayscale, nil
	case "edge", "edgedetect", "canny", "1":
		return ModeEdgeDetect, nil
	case "blur", "2":
		return ModeBlur, nil
	case "passthrough", "original", "none", "3":
		return ModePassthrough, nil
	}
	return ModeGrayscale, fmt.Errorf("unknown processing mode %q", s)
}
