package telemetry

import "sync"

// Recorder keeps the most recent frames in a fixed-size ring. It is safe for
// one writer (the control loop) and many readers (HTTP handlers).
type Recorder struct {
	mu     sync.RWMutex
	frames []Frame
	next   int
	full   bool
}

// NewRecorder returns a recorder holding up to capacity frames. A capacity
// below one is treated as one.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{frames: make([]Frame, capacity)}
}

func (r *Recorder) Report(f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[r.next] = f
	r.next = (r.next + 1) % len(r.frames)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// Len returns the number of frames held.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *Recorder) lenLocked() int {
	if r.full {
		return len(r.frames)
	}
	return r.next
}

// Latest returns the most recent frame and whether one exists.
func (r *Recorder) Latest() (Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lenLocked() == 0 {
		return Frame{}, false
	}
	i := (r.next - 1 + len(r.frames)) % len(r.frames)
	return r.frames[i], true
}

// Recent returns up to n frames, oldest first. n <= 0 returns everything held.
func (r *Recorder) Recent(n int) []Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	held := r.lenLocked()
	if n <= 0 || n > held {
		n = held
	}
	out := make([]Frame, n)
	start := (r.next - n + len(r.frames)) % len(r.frames)
	for i := 0; i < n; i++ {
		out[i] = r.frames[(start+i)%len(r.frames)]
	}
	return out
}
