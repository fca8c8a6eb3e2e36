package fake

import (
	"context"
	"sync"

	"vigil/internal/escalate"
)

var _ escalate.Notifier = (*Notifier)(nil)

// Notification is one delivered alert.
type Notification struct {
	Channel  string
	Severity string
	Message  string
}

// Notifier collects alerts for assertion in tests.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

// Fail makes every Notify return err until Fail(nil).
func (n *Notifier) Fail(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

func (n *Notifier) Notify(ctx context.Context, channel, severity, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, Notification{Channel: channel, Severity: severity, Message: message})
	return nil
}

// Sent returns all delivered notifications.
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
