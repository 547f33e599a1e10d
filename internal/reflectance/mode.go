package reflectance

import (
	"fmt"
	"strings"
)

// Mode selects which processed form of a channel a query returns.
type Mode int

const (
	// ModeMedian returns the sliding window median. It is the zero value and
	// also the fallback for any Mode value not listed here.
	ModeMedian Mode = iota
	// ModeRaw returns the most recent unprocessed sample.
	ModeRaw
	// ModeMean returns the sliding window mean.
	ModeMean
	// ModeFiltered returns the exponential filter estimate.
	ModeFiltered
)

var modeNames = map[Mode]string{
	ModeMedian:   "median",
	ModeRaw:      "raw",
	ModeMean:     "mean",
	ModeFiltered: "filtered",
}

func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a configuration string to a Mode. "none"/"latest" are
// accepted for raw and "ema" for filtered.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "median", "":
		return ModeMedian, nil
	case "raw", "none", "latest":
		return ModeRaw, nil
	case "mean":
		return ModeMean, nil
	case "filtered", "ema":
		return ModeFiltered, nil
	default:
		return ModeMedian, fmt.Errorf("unknown signal mode %q: expected raw, mean, median or filtered", s)
	}
}

// Channel identifies one of the processor's tracked signals.
type Channel int

const (
	ChannelLeft Channel = iota
	ChannelRight
	// ChannelDifference tracks leftRaw - rightRaw.
	ChannelDifference
)

func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	case ChannelDifference:
		return "difference"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}
