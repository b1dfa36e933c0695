package device

import "sync"

// taskKind selects a serialized lane in the background executor. Tasks of
// the same kind never run concurrently with each other; tasks of different
// kinds may.
type taskKind int

const (
	taskEncode taskKind = iota
	taskDecode
	taskKinds
)

// backgroundTask runs heavy audio work off the control loop. Each kind has
// its own FIFO lane drained by at most one goroutine at a time, so a decode
// in flight delays the next decode but not an encode.
type backgroundTask struct {
	mu      sync.Mutex
	done    sync.Cond
	lanes   [taskKinds][]func()
	running [taskKinds]bool
	closed  bool
}

func newBackgroundTask() *backgroundTask {
	bt := &backgroundTask{}
	bt.done.L = &bt.mu
	return bt
}

// Schedule queues fn on the lane for kind and starts a drainer if none is
// running. After Close, fn is dropped.
func (bt *backgroundTask) Schedule(kind taskKind, fn func()) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.closed {
		return
	}
	bt.lanes[kind] = append(bt.lanes[kind], fn)
	if !bt.running[kind] {
		bt.running[kind] = true
		go bt.drain(kind)
	}
}

func (bt *backgroundTask) drain(kind taskKind) {
	bt.mu.Lock()
	for len(bt.lanes[kind]) > 0 {
		fn := bt.lanes[kind][0]
		bt.lanes[kind][0] = nil
		bt.lanes[kind] = bt.lanes[kind][1:]
		bt.mu.Unlock()
		fn()
		bt.mu.Lock()
	}
	bt.lanes[kind] = nil
	bt.running[kind] = false
	bt.done.Broadcast()
	bt.mu.Unlock()
}

// WaitForCompletion blocks until every lane is idle and empty. Used on
// state transitions so stale encode and decode results cannot leak into the
// next state.
func (bt *backgroundTask) WaitForCompletion() {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	for bt.busyLocked() {
		bt.done.Wait()
	}
}

func (bt *backgroundTask) busyLocked() bool {
	for k := taskKind(0); k < taskKinds; k++ {
		if bt.running[k] || len(bt.lanes[k]) > 0 {
			return true
		}
	}
	return false
}

// Close drops queued tasks and rejects new ones. Running tasks finish.
func (bt *backgroundTask) Close() {
	bt.mu.Lock()
	bt.closed = true
	for k := taskKind(0); k < taskKinds; k++ {
		bt.lanes[k] = nil
	}
	bt.mu.Unlock()
	bt.WaitForCompletion()
}
