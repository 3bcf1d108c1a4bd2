package player

import (
	"context"
	"testing"
	"time"
)

func TestPacketQueueOrderAndDrain(t *testing.T) {
	q := newPacketQueue(2)
	ctx := context.Background()

	src := []byte{1}
	if !q.Push(ctx, src) || !q.Push(ctx, []byte{2}) {
		t.Fatal("push failed")
	}
	src[0] = 9
	q.MarkEOS()
	if q.Push(ctx, []byte{3}) {
		t.Fatal("push after end of stream")
	}

	for _, want := range []byte{1, 2} {
		pkt, ok := q.Pop(ctx)
		if !ok || pkt[0] != want {
			t.Fatalf("pop = %v %v, want %d", pkt, ok, want)
		}
	}
	if _, ok := q.Pop(ctx); ok {
		t.Fatal("pop after drain")
	}
}

func TestPacketQueuePushWaitsForRoom(t *testing.T) {
	q := newPacketQueue(1)
	ctx := context.Background()
	q.Push(ctx, []byte{1})

	pushed := make(chan bool)
	go func() { pushed <- q.Push(ctx, []byte{2}) }()

	select {
	case <-pushed:
		t.Fatal("push into a full queue returned")
	case <-time.After(20 * time.Millisecond):
	}
	if _, ok := q.Pop(ctx); !ok {
		t.Fatal("pop failed")
	}
	if !<-pushed {
		t.Fatal("push failed after room was made")
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d", q.Len())
	}
}

func TestPacketQueueContextAndClose(t *testing.T) {
	q := newPacketQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := q.Pop(ctx); ok {
		t.Fatal("pop on empty queue returned a packet")
	}

	q.Push(context.Background(), []byte{1})
	q.Close()
	if _, ok := q.Pop(context.Background()); ok {
		t.Fatal("pop after close")
	}
}
