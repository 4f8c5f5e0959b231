package watcher

import "sync"

// SeenTracker remembers the most recent event ids up to a fixed capacity.
// The oldest id is forgotten first.
type SeenTracker struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	next     int
	capacity int
}

func NewSeenTracker(capacity int) *SeenTracker {
	if capacity <= 0 {
		capacity = 1000
	}
	return &SeenTracker{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

func (t *SeenTracker) Seen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// Mark records id and reports whether it was new.
func (t *SeenTracker) Mark(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return false
	}
	if len(t.order) < t.capacity {
		t.order = append(t.order, id)
	} else {
		delete(t.seen, t.order[t.next])
		t.order[t.next] = id
		t.next = (t.next + 1) % t.capacity
	}
	t.seen[id] = struct{}{}
	return true
}

func (t *SeenTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
