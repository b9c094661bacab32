package router

import (
	"sync"
)

// growThreshold is the fill percentage at which a Buffer doubles.
const growThreshold = 70

// Buffer is a thread-safe FIFO that doubles its capacity when it reaches
// 70% full, so producers never block.
type Buffer[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	closed   bool
	received int64
	sent     int64
	resizes  int
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](initialCapacity int) *Buffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &Buffer[T]{buf: make([]T, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends item. Returns false if the buffer is closed.
func (b *Buffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := max(len(b.buf)*growThreshold/100, 1)
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
	b.received++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available. It returns false once the
// buffer is closed and empty.
func (b *Buffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// TryReceive returns the next item without blocking.
func (b *Buffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// DrainTo removes up to limit items (all when limit <= 0) in FIFO order.
func (b *Buffer[T]) DrainTo(limit int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	return out
}

// Close stops accepting items and wakes blocked receivers. Items already
// queued can still be received.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *Buffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
	ResizeCount   int
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      len(b.buf),
		TotalReceived: b.received,
		TotalSent:     b.sent,
		ResizeCount:   b.resizes,
	}
}

// pop removes the head item. Must be called with lock held and count > 0.
func (b *Buffer[T]) pop() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // release for GC
	b.head = (b.head + 1) % len(b.buf)
	b.count--
	b.sent++
	return item
}

// grow doubles the capacity, unwrapping the ring. Must be called with lock held.
func (b *Buffer[T]) grow() {
	next := make([]T, len(b.buf)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.buf[b.head:b.tail])
		} else {
			n := copy(next, b.buf[b.head:])
			copy(next[n:], b.buf[:b.tail])
		}
	}

	b.buf = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}

// BufferedSink queues events for a consumer running on its own goroutine.
type BufferedSink struct {
	buf *Buffer[Event]
}

// NewBufferedSink creates a sink backed by a Buffer of the given initial capacity.
func NewBufferedSink(initialCapacity int) *BufferedSink {
	return &BufferedSink{buf: NewBuffer[Event](initialCapacity)}
}

// Handle implements Sink. Events arriving after Close are dropped.
func (s *BufferedSink) Handle(e Event) {
	s.buf.Send(e)
}

// Buffer returns the underlying queue for the consumer.
func (s *BufferedSink) Buffer() *Buffer[Event] {
	return s.buf
}

// Close closes the underlying queue.
func (s *BufferedSink) Close() {
	s.buf.Close()
}
