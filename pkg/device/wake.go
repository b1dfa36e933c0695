package device

import (
	"context"
	"sync/atomic"
)

// Wake conditions for the control loop. Producers set bits from any
// goroutine; the loop consumes and clears them atomically each turn.
const (
	wakeSchedule uint32 = 1 << iota
	wakeAudioInput
	wakeAudioOutput
	wakeVersionDone
)

// wakeFlags is a level triggered event mask with a one slot doorbell. A set
// bit stays pending until the loop swaps it out, so coalesced wakeups never
// lose a condition.
type wakeFlags struct {
	bits   atomic.Uint32
	notify chan struct{}
}

func newWakeFlags() *wakeFlags {
	return &wakeFlags{notify: make(chan struct{}, 1)}
}

// Set raises bit and rings the doorbell.
func (w *wakeFlags) Set(bit uint32) {
	w.bits.Or(bit)
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

// Wait blocks until at least one bit is raised or ctx is done, then clears
// and returns the raised bits.
func (w *wakeFlags) Wait(ctx context.Context) (uint32, error) {
	for {
		if bits := w.bits.Swap(0); bits != 0 {
			return bits, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-w.notify:
		}
	}
}
