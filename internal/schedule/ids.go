package schedule

import "sync"

// IDAllocator hands out increasing integer IDs. Each owner keeps its own
// allocator so ID assignment stays deterministic in tests.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

func NewIDAllocator(start int) *IDAllocator {
	return &IDAllocator{next: start}
}

func (a *IDAllocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}
