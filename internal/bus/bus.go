// Package bus implements the Event Bus: a bounded, multi-producer,
// multi-consumer broadcast channel of event.ProcessEvent values.
// Slow subscribers observe an explicit Lag signal instead of blocking
// publishers.
package bus

import (
	"context"
	"io"
	"sync"

	"github.com/healerd/healer/internal/event"
)

// Bus is a ring-buffer broadcast channel. Publishers never block on slow
// subscribers: the ring simply overwrites the oldest retained event, and a
// lagging subscriber is told how many events it missed on its next Recv.
type Bus struct {
	mu       sync.RWMutex
	capacity uint64
	ring     []event.ProcessEvent
	next     uint64 // total events published so far; also the next write index mod capacity
	closed   bool
	wake     chan struct{} // closed and replaced on every Publish and on Close
}

// New creates a Bus retaining the most recent capacity events.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		capacity: uint64(capacity),
		ring:     make([]event.ProcessEvent, capacity),
		wake:     make(chan struct{}),
	}
}

// Publish fans evt out to every subscriber. A no-op after Close.
func (b *Bus) Publish(evt event.ProcessEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.ring[b.next%b.capacity] = evt
	b.next++
	old := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

// Close causes all current and future subscribers' Recv calls to return
// io.EOF once they have drained any events still in the ring.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	old := b.wake
	b.mu.Unlock()
	close(old)
}

// Lag reports that a Receiver was outpaced and N events were skipped; it
// resumes from the oldest event still retained in the ring.
type Lag struct{ N uint64 }

// Receiver is a single subscriber's cursor into the Bus.
type Receiver struct {
	bus    *Bus
	cursor uint64
}

// Subscribe registers a new Receiver starting from the next event published
// after this call (subscribers never see history from before they joined).
func (b *Bus) Subscribe() *Receiver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Receiver{bus: b, cursor: b.next}
}

// Recv blocks until the next event is available, a lag is detected, the bus
// is closed (returns io.EOF), or ctx is done.
func (r *Receiver) Recv(ctx context.Context) (event.ProcessEvent, *Lag, error) {
	for {
		r.bus.mu.RLock()
		next := r.bus.next
		closed := r.bus.closed
		cap64 := r.bus.capacity
		wake := r.bus.wake
		r.bus.mu.RUnlock()

		var oldest uint64
		if next > cap64 {
			oldest = next - cap64
		}
		if r.cursor < oldest {
			skipped := oldest - r.cursor
			r.cursor = oldest
			return event.ProcessEvent{}, &Lag{N: skipped}, nil
		}
		if r.cursor < next {
			r.bus.mu.RLock()
			evt := r.bus.ring[r.cursor%cap64]
			r.bus.mu.RUnlock()
			r.cursor++
			return evt, nil, nil
		}
		if closed {
			return event.ProcessEvent{}, nil, io.EOF
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return event.ProcessEvent{}, nil, ctx.Err()
		}
	}
}
