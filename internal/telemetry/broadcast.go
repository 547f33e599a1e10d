package telemetry

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many frames a subscriber may fall behind before
// frames are dropped for it.
const subscriberBuffer = 64

// Broadcaster fans frames out to any number of subscribers. Report never
// blocks the control loop: a subscriber whose buffer is full misses frames.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan Frame
	closed      bool
	dropped     atomic.Uint64
}

// NewBroadcaster returns a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan Frame)}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The ID is passed to Unsubscribe. The
// channel is closed on Unsubscribe or Close; after Close it is returned
// already closed.
func (b *Broadcaster) Subscribe() (string, <-chan Frame) {
	id := randomID()
	ch := make(chan Frame, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Dropped returns the number of frames not delivered to slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broadcaster) Report(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- f:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Close closes every subscriber channel. Later subscribers get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
