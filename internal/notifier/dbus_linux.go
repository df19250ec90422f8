//go:build linux

package notifier

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notify"
)

var log = logging.L("notifier")

const (
	dbusDest      = "org.freedesktop.Notifications"
	dbusPath      = "/org/freedesktop/Notifications"
	dbusInterface = "org.freedesktop.Notifications"

	// defaultActionKey is the action invoked when the notification body
	// itself is clicked, per the freedesktop spec.
	defaultActionKey = "default"
)

// dbusNotifier delivers notifications through the session bus
// org.freedesktop.Notifications service.
type dbusNotifier struct {
	appName string
	conn    *dbus.Conn
	obj     dbus.BusObject
	events  chan Event
	signals chan *dbus.Signal

	mu       sync.Mutex
	byTag    map[string]uint32 // tag -> platform ID, for coalescing
	active   map[uint32]bool   // IDs this notifier created
	shutdown bool
}

func newPlatformNotifier(appName string) (Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("notifier: connect session bus: %w", err)
	}

	n := &dbusNotifier{
		appName: appName,
		conn:    conn,
		obj:     conn.Object(dbusDest, dbusPath),
		events:  make(chan Event, 16),
		signals: make(chan *dbus.Signal, 16),
		byTag:   make(map[string]uint32),
		active:  make(map[uint32]bool),
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusPath),
		dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		return nil, fmt.Errorf("notifier: match ActionInvoked: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(dbusPath),
		dbus.WithMatchInterface(dbusInterface),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		return nil, fmt.Errorf("notifier: match NotificationClosed: %w", err)
	}

	conn.Signal(n.signals)
	go n.pump()

	return n, nil
}

// Show displays a notification via the Notify D-Bus method. A request whose
// tag matches a still-active notification replaces it (replaces_id), which
// is how the platform coalesces duplicates.
func (n *dbusNotifier) Show(req notify.Request) (uint32, error) {
	n.mu.Lock()
	replaces := uint32(0)
	if req.Tag != "" {
		replaces = n.byTag[req.Tag]
	}
	n.mu.Unlock()

	actions := []string{defaultActionKey, "Open"}
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(1)),
		"image-path":    dbus.MakeVariant(req.Badge),
		"desktop-entry": dbus.MakeVariant(n.appName),
	}

	var id uint32
	call := n.obj.Call(dbusInterface+".Notify", 0,
		n.appName, replaces, req.Icon, req.Title, req.Body,
		actions, hints, int32(-1))
	if call.Err != nil {
		return 0, fmt.Errorf("notifier: show: %w", call.Err)
	}
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("notifier: read notification id: %w", err)
	}

	n.mu.Lock()
	n.active[id] = true
	if req.Tag != "" {
		n.byTag[req.Tag] = id
	}
	n.mu.Unlock()

	return id, nil
}

// Close dismisses a notification. Closing an already-closed or unknown ID
// is a no-op on the bus side, so this is idempotent.
func (n *dbusNotifier) Close(id uint32) error {
	call := n.obj.Call(dbusInterface+".CloseNotification", 0, id)
	if call.Err != nil {
		return fmt.Errorf("notifier: close %d: %w", id, call.Err)
	}
	return nil
}

func (n *dbusNotifier) Events() <-chan Event {
	return n.events
}

func (n *dbusNotifier) Shutdown() error {
	n.mu.Lock()
	if n.shutdown {
		n.mu.Unlock()
		return nil
	}
	n.shutdown = true
	n.mu.Unlock()

	n.conn.RemoveSignal(n.signals)
	close(n.signals)
	return nil
}

// pump converts bus signals for our notifications into Events.
func (n *dbusNotifier) pump() {
	defer close(n.events)

	for sig := range n.signals {
		switch sig.Name {
		case dbusInterface + ".ActionInvoked":
			id, key, ok := decodeActionInvoked(sig.Body)
			if !ok {
				log.Warn("malformed ActionInvoked signal", "body", sig.Body)
				continue
			}
			if key != defaultActionKey {
				continue
			}
			if n.owns(id) {
				n.emit(Event{Kind: EventClicked, ID: id})
			}

		case dbusInterface + ".NotificationClosed":
			id, ok := decodeClosed(sig.Body)
			if !ok {
				log.Warn("malformed NotificationClosed signal", "body", sig.Body)
				continue
			}
			if n.forget(id) {
				n.emit(Event{Kind: EventClosed, ID: id})
			}
		}
	}
}

func (n *dbusNotifier) owns(id uint32) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active[id]
}

// forget drops tracking state for a closed notification. Returns whether
// the ID belonged to this notifier.
func (n *dbusNotifier) forget(id uint32) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.active[id] {
		return false
	}
	delete(n.active, id)
	for tag, tagged := range n.byTag {
		if tagged == id {
			delete(n.byTag, tag)
		}
	}
	return true
}

func (n *dbusNotifier) emit(ev Event) {
	select {
	case n.events <- ev:
	default:
		log.Warn("event channel full, dropping", "id", ev.ID, "kind", ev.Kind)
	}
}

func decodeActionInvoked(body []interface{}) (uint32, string, bool) {
	if len(body) != 2 {
		return 0, "", false
	}
	id, ok := body[0].(uint32)
	if !ok {
		return 0, "", false
	}
	key, ok := body[1].(string)
	if !ok {
		return 0, "", false
	}
	return id, key, true
}

func decodeClosed(body []interface{}) (uint32, bool) {
	if len(body) < 1 {
		return 0, false
	}
	id, ok := body[0].(uint32)
	return id, ok
}
