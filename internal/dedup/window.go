// Package dedup tracks recently seen transaction signatures to collapse
// duplicate deliveries caused by reconnect replay or multi-path confirmation.
package dedup

import (
	"container/list"
	"sync"
	"time"

	"solana-pool-monitor/internal/observability"
)

// DefaultCapacity bounds the window when no capacity is configured.
const DefaultCapacity = 65536

// Window is a bounded recency set of transaction signatures. Least-recently
// seen entries are evicted past capacity, and entries older than MaxAge are
// expired on access. A signature evicted and replayed later is treated as
// new; that is the accepted bounded-memory trade-off.
type Window struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	order    *list.List // front = most recently seen
	items    map[string]*list.Element

	now func() time.Time
}

type entry struct {
	sig    string
	seenAt time.Time
}

// NewWindow creates a window holding up to capacity signatures. maxAge of 0
// disables the age bound.
func NewWindow(capacity int, maxAge time.Duration) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		maxAge:   maxAge,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Seen reports whether sig is already in the window, refreshing its recency.
// Unknown signatures are inserted, evicting the least-recently-seen entry
// when the window is full.
func (w *Window) Seen(sig string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expire(now)

	if el, ok := w.items[sig]; ok {
		el.Value.(*entry).seenAt = now
		w.order.MoveToFront(el)
		return true
	}

	w.items[sig] = w.order.PushFront(&entry{sig: sig, seenAt: now})

	for w.order.Len() > w.capacity {
		w.evictOldest()
	}

	observability.SetDedupWindowSize(len(w.items))
	return false
}

// Len returns the number of tracked signatures.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// expire drops entries older than maxAge. Caller holds the lock.
func (w *Window) expire(now time.Time) {
	if w.maxAge <= 0 {
		return
	}
	for {
		back := w.order.Back()
		if back == nil {
			return
		}
		if now.Sub(back.Value.(*entry).seenAt) <= w.maxAge {
			return
		}
		w.evictOldest()
	}
}

// evictOldest removes the least-recently-seen entry. Caller holds the lock.
func (w *Window) evictOldest() {
	back := w.order.Back()
	if back == nil {
		return
	}
	w.order.Remove(back)
	delete(w.items, back.Value.(*entry).sig)
}
