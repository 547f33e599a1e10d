// Package linetrack classifies line-following drift from the processed
// reflectance difference.
//
// The classifier uses hysteresis: drifting past MistakeThreshold in one
// direction flags a mistake, and the flag clears only once the signal
// overshoots RecoveryThreshold in the opposite direction. A plain return to
// zero does not clear it, because both sensors reading the same background
// also looks like zero.
package linetrack

import (
	"fmt"

	"github.com/banshee-data/linefollow/internal/reflectance"
)

// Mistake is the monitor state.
type Mistake int

const (
	MistakeNone Mistake = iota
	MistakeDriftedLeft
	MistakeDriftedRight
)

func (m Mistake) String() string {
	switch m {
	case MistakeNone:
		return "none"
	case MistakeDriftedLeft:
		return "drifted_left"
	case MistakeDriftedRight:
		return "drifted_right"
	default:
		return fmt.Sprintf("mistake(%d)", int(m))
	}
}

// MarshalText renders the state name, so JSON telemetry carries strings.
func (m Mistake) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (m *Mistake) UnmarshalText(b []byte) error {
	v, err := ParseMistake(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMistake returns the state with the given name.
func ParseMistake(s string) (Mistake, error) {
	switch s {
	case "none":
		return MistakeNone, nil
	case "drifted_left":
		return MistakeDriftedLeft, nil
	case "drifted_right":
		return MistakeDriftedRight, nil
	}
	return MistakeNone, fmt.Errorf("unknown mistake %q", s)
}

// Config fixes the monitor thresholds and the signal it watches.
// RecoveryThreshold is expected to be smaller than MistakeThreshold; this is
// not checked.
type Config struct {
	MistakeThreshold  float64
	RecoveryThreshold float64
	Mode              reflectance.Mode
}

// DefaultConfig returns the thresholds tuned on the XRP line sensor.
func DefaultConfig() Config {
	return Config{
		MistakeThreshold:  0.25,
		RecoveryThreshold: 0.1,
		Mode:              reflectance.ModeMedian,
	}
}

// Next computes the state that follows prev after observing reflectance.
// The mistake checks run first; the recovery check runs afterwards on their
// result, so both can fire in the same tick.
func Next(prev Mistake, reflectance, mistakeThreshold, recoveryThreshold float64) Mistake {
	state := prev
	if reflectance > mistakeThreshold {
		state = MistakeDriftedRight
	} else if reflectance < -mistakeThreshold {
		state = MistakeDriftedLeft
	}

	if (state == MistakeDriftedLeft && reflectance > recoveryThreshold) ||
		(state == MistakeDriftedRight && reflectance < -recoveryThreshold) {
		state = MistakeNone
	}
	return state
}

// Monitor tracks the current Mistake for one processor's difference channel.
type Monitor struct {
	processor *reflectance.Processor
	cfg       Config
	current   Mistake
}

// NewMonitor returns a monitor in the MistakeNone state reading from p.
func NewMonitor(p *reflectance.Processor, cfg Config) *Monitor {
	return &Monitor{processor: p, cfg: cfg}
}

// Config returns the thresholds and mode fixed at construction.
func (m *Monitor) Config() Config { return m.cfg }

// Current returns the state as of the last Update or Observe.
func (m *Monitor) Current() Mistake { return m.current }

// Signal returns the value the monitor evaluates: the processor's difference
// channel under the configured mode.
func (m *Monitor) Signal() float64 {
	return m.processor.Query(reflectance.ChannelDifference, m.cfg.Mode)
}

// Update re-evaluates the state from the processor. Call it once per tick,
// after the processor has been updated.
func (m *Monitor) Update() Mistake {
	return m.Observe(m.Signal())
}

// Observe advances the state from an already-processed reflectance value.
func (m *Monitor) Observe(reflectance float64) Mistake {
	m.current = Next(m.current, reflectance, m.cfg.MistakeThreshold, m.cfg.RecoveryThreshold)
	return m.current
}
