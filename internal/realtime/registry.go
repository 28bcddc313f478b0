package realtime

import (
	"log/slog"
	"sync"
)

// Conn is the write side of a live push channel. *websocket.Conn
// satisfies it; tests substitute their own. Defined consumer-side per
// Go convention.
type Conn interface {
	WriteJSON(v any) error
}

// Registry tracks live push channels per gent identity. A gent may hold
// several open channels at once (multiple clients); an identity whose
// last channel goes away is removed entirely so the table never leaks
// empty sets.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[Conn]struct{})}
}

// Register adds a channel to the gent's live set.
func (r *Registry) Register(gentID string, c Conn) {
	r.mu.Lock()
	set, ok := r.conns[gentID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[gentID] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()

	slog.Debug("channel registered", "gent_id", gentID)
}

// Unregister removes a channel from the gent's live set, reclaiming the
// identity entry when the set empties. Unknown channels are a no-op.
func (r *Registry) Unregister(gentID string, c Conn) {
	r.mu.Lock()
	if set, ok := r.conns[gentID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.conns, gentID)
		}
	}
	r.mu.Unlock()

	slog.Debug("channel unregistered", "gent_id", gentID)
}

// Push delivers the payload to every live channel of the gent.
// Best-effort: a failed write is logged and skipped so one broken
// channel never blocks delivery to the rest; the broken channel is
// cleaned up by its own read loop through the normal disconnect path.
// Pushing to a gent with zero channels is a no-op.
func (r *Registry) Push(gentID string, payload map[string]any) {
	// Snapshot under the read lock; the actual writes happen outside it
	// so a slow channel cannot stall Register/Unregister.
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns[gentID]))
	for c := range r.conns[gentID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if err := c.WriteJSON(payload); err != nil {
			slog.Debug("push delivery failed", "gent_id", gentID, "error", err)
		}
	}
}

// Connections returns the number of live channels for the gent.
func (r *Registry) Connections(gentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[gentID])
}
