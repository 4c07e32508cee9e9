package service

import (
	"sync"

	"veritas/internal/audit/models"
)

// ringBuffer is a bounded, thread-safe buffer for committed events awaiting
// fan-out. When full, the oldest events are dropped to make room: the
// primary store already holds the authoritative copy, so losing a mirror
// under sustained backpressure is preferable to blocking submissions.
type ringBuffer struct {
	mu       sync.Mutex
	events   []models.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &ringBuffer{
		events:   make([]models.Event, capacity),
		capacity: capacity,
	}
}

// enqueue adds an event, dropping the oldest if necessary. Returns true if
// an old event was evicted.
func (b *ringBuffer) enqueue(event models.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := false
	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		evicted = true
	}
	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
	return evicted
}

// dequeueBatch removes up to n events from the buffer.
func (b *ringBuffer) dequeueBatch(n int) []models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	result := make([]models.Event, n)
	for i := range n {
		result[i] = b.events[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedCount() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
