package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned by constructors given a parameter outside
// its documented domain.
var ErrInvalidParameter = errors.New("invalid parameter")

// ExponentialFilter is a first-order low-pass filter:
//
//	estimate = gain*estimate + (1-gain)*input
//
// A larger gain smooths more and lags more. The estimate is not assumed to
// start at zero; seed it with Set before the first Update.
type ExponentialFilter struct {
	gain  float64
	value float64
}

// NewExponentialFilter returns a filter with the given gain. Gains outside the
// closed interval [0, 1], NaN included, fail with ErrInvalidParameter.
func NewExponentialFilter(gain float64) (*ExponentialFilter, error) {
	if !(gain >= 0 && gain <= 1) {
		return nil, fmt.Errorf("%w: exponential filter gain must be between 0 and 1, got %v", ErrInvalidParameter, gain)
	}
	return &ExponentialFilter{gain: gain}, nil
}

// Gain returns the smoothing gain fixed at construction.
func (f *ExponentialFilter) Gain() float64 {
	return f.gain
}

// Set overwrites the current estimate.
func (f *ExponentialFilter) Set(value float64) {
	f.value = value
}

// Get returns the current estimate.
func (f *ExponentialFilter) Get() float64 {
	return f.value
}

// Update folds value into the estimate and returns the new estimate.
func (f *ExponentialFilter) Update(value float64) float64 {
	f.value = f.gain*f.value + (1.0-f.gain)*value
	return f.value
}
