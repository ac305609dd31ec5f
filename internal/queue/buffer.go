package queue

import "sync"

// Buffer collects items from a producer goroutine until a consumer drains
// them. Each appended item is returned by exactly one Drain.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewBuffer[T any]() *Buffer[T] {
	return &Buffer[T]{}
}

func (b *Buffer[T]) Append(items ...T) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	b.items = append(b.items, items...)
	b.mu.Unlock()
}

// Drain returns everything buffered since the last drain and empties the buffer.
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	return items
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
