package device

import (
	"sync"
	"sync/atomic"
)

// timestampTracker follows server playback timestamps through the output
// pipeline. A timestamp is recorded when its packet is dequeued for decoding
// and retired when the decoded audio reaches the codec port. The last
// retired timestamp is readable lock free so the capture path can report
// what the speaker is currently playing.
type timestampTracker struct {
	last    atomic.Uint32
	mu      sync.Mutex
	pending []uint32
	limit   int
}

func newTimestampTracker(limit int) *timestampTracker {
	if limit < 1 {
		limit = 1
	}
	return &timestampTracker{limit: limit}
}

// Dispatch records ts as in flight. When the pending window is full the
// oldest entry is evicted, matching the packet it was dropped with.
func (t *timestampTracker) Dispatch(ts uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) >= t.limit {
		copy(t.pending, t.pending[1:])
		t.pending = t.pending[:len(t.pending)-1]
	}
	t.pending = append(t.pending, ts)
}

// Retire marks ts as played and publishes it as the last output timestamp.
// Entries older than ts are discarded, they were skipped or dropped.
func (t *timestampTracker) Retire(ts uint32) {
	t.mu.Lock()
	i := 0
	for i < len(t.pending) && t.pending[i] <= ts {
		i++
	}
	t.pending = append(t.pending[:0], t.pending[i:]...)
	if len(t.pending) == 0 {
		t.pending = nil
	}
	t.mu.Unlock()
	t.last.Store(ts)
}

// Last returns the most recently played timestamp.
func (t *timestampTracker) Last() uint32 {
	return t.last.Load()
}

// InFlight returns the number of dispatched but not yet played timestamps.
func (t *timestampTracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// LagMillis returns the spread between the newest dispatched timestamp and
// the last played one, in milliseconds. Zero when nothing is in flight.
func (t *timestampTracker) LagMillis() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return 0
	}
	newest := t.pending[len(t.pending)-1]
	last := t.last.Load()
	if newest <= last {
		return 0
	}
	return newest - last
}

// Reset discards all pending timestamps and zeroes the last output
// timestamp. Called when the audio channel closes or playback is aborted.
func (t *timestampTracker) Reset() {
	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
	t.last.Store(0)
}
