package node

import (
	"sync"
	"time"
)

// MessageFilter is a bounded, time-windowed set of recently seen message
// identifiers, used to drop replays and duplicates before they reach the
// voting layer. The time source is injected so tests can drive the window
// without sleeping.
type MessageFilter struct {
	sync.Mutex

	window   time.Duration
	capacity int
	seen     map[string]time.Time
	order    []string
	now      func() time.Time
}

// NewMessageFilter creates a filter remembering identifiers for the given
// window, holding at most capacity entries.
func NewMessageFilter(window time.Duration, capacity int) *MessageFilter {
	return &MessageFilter{
		window:   window,
		capacity: capacity,
		seen:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Insert records the identifier and reports whether it was new. A false
// return means the message was already seen within the window and should be
// dropped.
func (f *MessageFilter) Insert(id string) bool {
	f.Lock()
	defer f.Unlock()

	now := f.now()
	f.sweep(now)

	if _, ok := f.seen[id]; ok {
		return false
	}

	if len(f.seen) >= f.capacity {
		f.evictOldest()
	}

	f.seen[id] = now
	f.order = append(f.order, id)

	return true
}

// Contains reports whether the identifier is currently remembered.
func (f *MessageFilter) Contains(id string) bool {
	f.Lock()
	defer f.Unlock()

	t, ok := f.seen[id]
	return ok && f.now().Sub(t) < f.window
}

// Len returns the number of remembered identifiers.
func (f *MessageFilter) Len() int {
	f.Lock()
	defer f.Unlock()
	return len(f.seen)
}

// sweep drops identifiers older than the window. The order slice may retain
// stale entries for already-deleted ids; evictOldest skips them.
func (f *MessageFilter) sweep(now time.Time) {
	kept := f.order[:0]
	for _, id := range f.order {
		t, ok := f.seen[id]
		if !ok {
			continue
		}
		if now.Sub(t) >= f.window {
			delete(f.seen, id)
			continue
		}
		kept = append(kept, id)
	}
	f.order = kept
}

func (f *MessageFilter) evictOldest() {
	for len(f.order) > 0 {
		id := f.order[0]
		f.order = f.order[1:]
		if _, ok := f.seen[id]; ok {
			delete(f.seen, id)
			return
		}
	}
}
