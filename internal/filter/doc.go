// Package filter owns the scalar signal-conditioning primitives used by the
// line follower.
//
// Responsibilities: first-order exponential smoothing (ExponentialFilter) and
// fixed-capacity windowed statistics (SlidingWindow). Both types are plain
// in-memory state owned by a single control-loop goroutine; neither locks.
//
// Dependency rule: this package imports nothing from the rest of the module.
package filter
