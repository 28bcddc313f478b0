package notify

import "log/slog"

// Pusher abstracts the connection registry's fan-out method.
// Defined consumer-side per Go convention.
type Pusher interface {
	Push(gentID string, payload map[string]any)
}

// PushNotifier forwards gig change events to the live-connection
// registry for delivery over open channels.
type PushNotifier struct {
	pusher Pusher
}

// NewPushNotifier creates a PushNotifier over the given registry.
func NewPushNotifier(pusher Pusher) *PushNotifier {
	return &PushNotifier{pusher: pusher}
}

// Notify pushes the event to every live channel of the addressed gent.
func (n *PushNotifier) Notify(event Event) {
	switch event.Type {
	case TypeGigsChanged:
		n.pusher.Push(event.GentID, map[string]any{"type": TypeGigsChanged})
	default:
		slog.Debug("push notifier: unknown event type", "type", event.Type)
	}
}
