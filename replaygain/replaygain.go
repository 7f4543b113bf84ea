// Package replaygain converts between the numeric gain/peak domain and the
// canonical tag string representations.
//
// Gains are decibel adjustments stored as "<n> dB" with 2 decimal places.
// Peaks are linear amplitude ratios stored with 6 decimal places. Legacy
// files sometimes store a bare number for the gain, which is accepted when
// parsing.
package replaygain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformedTag = errors.New("malformed replaygain tag")

// Level is one computed loudness measurement, at either track or album scope.
type Level struct {
	GaindB, Peak float64
}

func FormatGain(v float64) string {
	return fmt.Sprintf("%.2f dB", v)
}

func FormatPeak(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func ParseGain(s string) (float64, error) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return v, nil
	}
	num, unit, ok := strings.Cut(strings.TrimSpace(s), " ")
	if ok && strings.EqualFold(unit, "dB") {
		if v, err := strconv.ParseFloat(num, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: gain %q", ErrMalformedTag, s)
}

func ParsePeak(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: peak %q", ErrMalformedTag, s)
	}
	return v, nil
}
