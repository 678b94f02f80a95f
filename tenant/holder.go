package tenant

import "sync"

// Listener is notified when a Holder switches from one tenant to another.
type Listener func(previous, current string)

// Holder keeps the current tenant for a single-tenant client process (a CLI
// session, an embedded admin client). Servers use WithTenant instead.
type Holder struct {
	mu        sync.RWMutex
	current   string
	nextID    int
	listeners map[int]Listener
}

// NewHolder creates a holder seeded with an initial tenant (may be empty).
func NewHolder(initial string) *Holder {
	return &Holder{current: initial, listeners: make(map[int]Listener)}
}

// GetCurrent returns the held tenant, "" when none.
func (h *Holder) GetCurrent() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// SetCurrent replaces the held tenant. Listeners run only when the value
// actually changes, after the lock is released.
func (h *Holder) SetCurrent(tenantID string) {
	h.mu.Lock()
	previous := h.current
	if previous == tenantID {
		h.mu.Unlock()
		return
	}
	h.current = tenantID
	snapshot := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		snapshot = append(snapshot, l)
	}
	h.mu.Unlock()

	for _, l := range snapshot {
		l(previous, tenantID)
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (h *Holder) Subscribe(l Listener) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}
