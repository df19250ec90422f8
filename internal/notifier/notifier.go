// Package notifier delivers desktop notifications and reports click and
// close events back to the agent. Platform-specific.
package notifier

import (
	"errors"

	"github.com/acu-preview/agent/internal/notify"
)

// ErrUnsupported is returned when the platform has no notification service.
// Detected once at startup; the agent short-circuits all display attempts.
var ErrUnsupported = errors.New("notifier: notifications not supported on this platform")

// EventKind discriminates notification lifecycle events.
type EventKind int

const (
	// EventClicked means the user activated the notification.
	EventClicked EventKind = iota
	// EventClosed means the notification was dismissed or expired.
	EventClosed
)

// Event is a notification lifecycle event keyed by platform ID.
type Event struct {
	Kind EventKind
	ID   uint32
}

// Notifier is the interface for platform notification delivery.
type Notifier interface {
	// Show displays a notification and returns its platform ID. Requests
	// sharing a tag replace each other rather than stacking.
	Show(req notify.Request) (uint32, error)
	// Close dismisses a displayed notification. Idempotent.
	Close(id uint32) error
	// Events streams click/close events until Shutdown.
	Events() <-chan Event
	// Shutdown releases platform resources and closes the event stream.
	Shutdown() error
}

// New returns the platform notifier, or a Nop notifier together with
// ErrUnsupported when no notification service is reachable.
func New(appName string) (Notifier, error) {
	n, err := newPlatformNotifier(appName)
	if err != nil {
		return NewNop(), ErrUnsupported
	}
	return n, nil
}

// Nop is a notifier for platforms without a notification service. Show
// always fails with ErrUnsupported; events never fire.
type Nop struct {
	events chan Event
}

// NewNop creates a no-op notifier.
func NewNop() *Nop {
	return &Nop{events: make(chan Event)}
}

func (n *Nop) Show(notify.Request) (uint32, error) { return 0, ErrUnsupported }
func (n *Nop) Close(uint32) error                  { return nil }
func (n *Nop) Events() <-chan Event                { return n.events }

func (n *Nop) Shutdown() error {
	close(n.events)
	return nil
}
