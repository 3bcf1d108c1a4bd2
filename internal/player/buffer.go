package player

import (
	"context"
	"sync"
)

// packetQueue is a bounded FIFO of opus packets between the resource reader
// and the sender. Push blocks while full; Pop blocks while empty.
type packetQueue struct {
	mu      sync.Mutex
	ring    [][]byte
	head    int
	count   int
	closed  bool
	eos     bool
	changed *sync.Cond
}

func newPacketQueue(capacity int) *packetQueue {
	q := &packetQueue{ring: make([][]byte, capacity)}
	q.changed = sync.NewCond(&q.mu)
	return q
}

// Push stores a copy of pkt, waiting for room. It returns false if the queue
// was closed, ended, or ctx finished first.
func (q *packetQueue) Push(ctx context.Context, pkt []byte) bool {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == len(q.ring) && !q.closed && !q.eos && ctx.Err() == nil {
		q.changed.Wait()
	}
	if q.closed || q.eos || ctx.Err() != nil {
		return false
	}

	q.ring[(q.head+q.count)%len(q.ring)] = append([]byte(nil), pkt...)
	q.count++
	q.changed.Broadcast()
	return true
}

// Pop returns the oldest packet. After MarkEOS it drains what is left and
// then reports false; after Close or ctx end it reports false at once.
func (q *packetQueue) Pop(ctx context.Context) ([]byte, bool) {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for q.count == 0 && !q.closed && !q.eos && ctx.Err() == nil {
		q.changed.Wait()
	}
	if q.closed || ctx.Err() != nil || q.count == 0 {
		return nil, false
	}

	pkt := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.changed.Broadcast()
	return pkt, true
}

func (q *packetQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// MarkEOS stops accepting packets; queued ones can still be popped.
func (q *packetQueue) MarkEOS() {
	q.mu.Lock()
	q.eos = true
	q.mu.Unlock()
	q.changed.Broadcast()
}

func (q *packetQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.changed.Broadcast()
}

// wake lets waiters re-check their context.
func (q *packetQueue) wake() {
	q.mu.Lock()
	q.changed.Broadcast()
	q.mu.Unlock()
}
