package device

import "sync"

// outPacket is one encoded frame waiting for the playback pipeline. Frames
// from the server carry a playback timestamp and are tracked; frames from
// built-in sounds are not.
type outPacket struct {
	payload   []byte
	timestamp uint32
	track     bool
}

// packetQueue is a bounded FIFO of downstream audio packets. When full, the
// oldest packet is dropped so playback stays near real time instead of
// drifting behind the server.
type packetQueue struct {
	mu      sync.Mutex
	items   []outPacket
	limit   int
	dropped uint64
}

func newPacketQueue(limit int) *packetQueue {
	if limit < 1 {
		limit = 1
	}
	return &packetQueue{limit: limit}
}

// Push appends p, dropping the oldest packet if the queue is full. It
// reports whether a packet was dropped.
func (q *packetQueue) Push(p outPacket) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	var dropped bool
	if len(q.items) >= q.limit {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, p)
	return dropped
}

// SetLimit changes the queue bound. Existing packets beyond the new limit
// are dropped from the front.
func (q *packetQueue) SetLimit(limit int) {
	if limit < 1 {
		limit = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limit = limit
	for len(q.items) > q.limit {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
	}
}

// Pop removes and returns the oldest packet.
func (q *packetQueue) Pop() (outPacket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return outPacket{}, false
	}
	p := q.items[0]
	q.items[0] = outPacket{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return p, true
}

// Len returns the number of queued packets.
func (q *packetQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all queued packets.
func (q *packetQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Dropped returns the total number of packets dropped since creation.
func (q *packetQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
