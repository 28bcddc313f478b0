package notify

// TypeGigsChanged tells a gent that the set or content of their
// assigned gigs changed and should be refetched.
const TypeGigsChanged = "gigs_changed"

// Event represents a gig change notification addressed to one gent.
type Event struct {
	Type   string
	GentID string
}

// Notifier delivers gig change notifications.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Notify sends an event to all registered notifiers. Delivery is
// fire-and-forget: each notifier runs on its own goroutine so the
// triggering store mutation never waits on transport I/O.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		go n.Notify(event)
	}
}
