// Package agent implements the background notification agent: it displays
// notifications for push events and app requests, and routes notification
// clicks to an open app instance or a fresh window.
package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notifier"
	"github.com/acu-preview/agent/internal/notify"
)

// NavigateTimeout bounds how long a direct navigation request may block a
// click before the instruction-message fallback takes over.
const NavigateTimeout = 5 * time.Second

// Client is the agent's view of a connected foreground app instance.
type Client interface {
	Origin() string
	Navigate(url string, timeout time.Duration) error
	SendNavigate(instr ipc.NavigationInstruction) error
	Focus() error
}

// ClientDirectory enumerates connected app instances. Order is the
// registration order; the click handler picks the first matching origin.
type ClientDirectory interface {
	Clients() []Client
}

// WindowOpener opens a new app window at the given URL when no instance is
// connected.
type WindowOpener interface {
	Open(url string) error
}

// instanceState tracks a notification through its lifetime.
type instanceState int

const (
	stateDisplayed instanceState = iota
	stateClicked
	stateClosed
)

// instance is the agent's record of one displayed notification.
type instance struct {
	id    string // internal correlation ID
	tag   string
	data  ipc.NotificationData
	state instanceState
}

// Agent owns the platform-level lifecycle of notifications.
type Agent struct {
	origin   string
	notifier notifier.Notifier
	clients  ClientDirectory
	opener   WindowOpener

	// set when the notifier reported ErrUnsupported at startup; all display
	// attempts short-circuit
	unsupported bool

	mu        sync.Mutex
	displayed map[uint32]*instance // platform ID -> record
}

// Option configures an Agent.
type Option func(*Agent)

// WithOpener sets the opener used when no app instance is connected. A nil
// opener means opening windows is not supported and clicks with no client
// do nothing.
func WithOpener(opener WindowOpener) Option {
	return func(a *Agent) { a.opener = opener }
}

// WithUnsupportedNotifier marks the platform as having no notification
// service, short-circuiting all display attempts.
func WithUnsupportedNotifier() Option {
	return func(a *Agent) { a.unsupported = true }
}

// New creates an Agent for the given app origin.
func New(origin string, n notifier.Notifier, clients ClientDirectory, opts ...Option) *Agent {
	a := &Agent{
		origin:    origin,
		notifier:  n,
		clients:   clients,
		displayed: make(map[uint32]*instance),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandlePush processes an incoming push payload. Malformed payloads are
// dropped with a diagnostic; display failures are logged and never
// propagate.
func (a *Agent) HandlePush(raw []byte) {
	req, err := notify.ParsePush(raw)
	if err != nil {
		log.Warn("dropping malformed push payload", "error", err)
		return
	}

	if _, err := a.show(req); err != nil {
		log.Warn("push notification display failed", "error", err)
	}
}

// OnClientMessage dispatches messages from connected app instances. Wired
// as the registry's message handler.
func (a *Agent) OnClientMessage(s *Session, env *ipc.Envelope) {
	switch env.Type {
	case ipc.TypeShowNotification:
		a.handleShowRequest(s, env)
	default:
		log.Warn("unknown message type", "type", env.Type, "sessionId", s.SessionID)
	}
}

// handleShowRequest displays a notification on behalf of an app instance.
// Every failure is caught here; the app gets a delivered=false result and
// its own state transition is never blocked.
func (a *Agent) handleShowRequest(s *Session, env *ipc.Envelope) {
	req, err := ipc.UnmarshalPayload[ipc.ShowNotificationRequest](env)
	if err != nil {
		log.Warn("invalid show_notification payload", "error", err)
		if sendErr := s.ReplyError(env.ID, ipc.TypeShowResult, "invalid payload"); sendErr != nil {
			log.Warn("failed to send show error", "error", sendErr)
		}
		return
	}

	id, err := a.show(notify.FromShowRequest(req))
	if err != nil {
		log.Warn("notification display failed", "error", err, "title", req.Title)
		if sendErr := s.Reply(env.ID, ipc.TypeShowResult, ipc.ShowResult{Delivered: false}); sendErr != nil {
			log.Warn("failed to send show result", "error", sendErr)
		}
		return
	}

	if err := s.Reply(env.ID, ipc.TypeShowResult, ipc.ShowResult{Delivered: true, NotificationID: id}); err != nil {
		log.Warn("failed to send show result", "id", env.ID, "error", err)
	}
}

// show displays a resolved request and records it for click-time readback.
func (a *Agent) show(req notify.Request) (string, error) {
	if a.unsupported {
		return "", notifier.ErrUnsupported
	}

	platformID, err := a.notifier.Show(req)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	a.mu.Lock()
	a.displayed[platformID] = &instance{
		id:   id,
		tag:  req.Tag,
		data: req.Data,
	}
	a.mu.Unlock()

	logging.WithNotification(log, id, req.Data.Type).Info("notification displayed",
		"title", req.Title, "tag", req.Tag)
	return id, nil
}

// Run pumps notifier events until the event stream closes.
func (a *Agent) Run() {
	for ev := range a.notifier.Events() {
		switch ev.Kind {
		case notifier.EventClicked:
			a.handleClick(ev.ID)
		case notifier.EventClosed:
			a.handleClose(ev.ID)
		}
	}
}

// handleClick routes a notification click: close the notification first,
// then navigate an existing matching app instance or open a new window.
// Duplicate clicks are idempotent; re-running the navigation is harmless.
func (a *Agent) handleClick(platformID uint32) {
	a.mu.Lock()
	inst, ok := a.displayed[platformID]
	if !ok {
		a.mu.Unlock()
		log.Debug("click for unknown notification", "platformId", platformID)
		return
	}
	inst.state = stateClicked
	data := inst.data
	nlog := logging.WithNotification(log, inst.id, data.Type)
	a.mu.Unlock()

	// Always close first, before any navigation
	if err := a.notifier.Close(platformID); err != nil {
		nlog.Warn("failed to close notification", "error", err)
	}

	targetURL := notify.TargetURL(a.origin, data.Type)
	view := notify.ResolveTarget(data.Type)
	nlog.Info("notification clicked", "target", targetURL)

	client := a.firstMatchingClient()
	if client == nil {
		if a.opener == nil {
			nlog.Debug("no app instance connected and window opening not supported")
			return
		}
		if err := a.opener.Open(targetURL); err != nil {
			nlog.Warn("failed to open new window", "error", err)
		}
		return
	}

	if err := client.Navigate(targetURL, NavigateTimeout); err != nil {
		// Direct navigation failed; deliver the instruction instead. The
		// fallback carries the same view/type the navigation would have.
		nlog.Warn("direct navigation failed, falling back to message", "error", err)
		instr := ipc.NavigationInstruction{
			View:             string(view),
			NotificationType: data.Type,
		}
		if err := client.SendNavigate(instr); err != nil {
			nlog.Warn("failed to send navigation instruction", "error", err)
		}
	}

	// Navigation failure never prevents focus
	if err := client.Focus(); err != nil {
		nlog.Warn("failed to focus app instance", "error", err)
	}
}

// handleClose is observational only.
func (a *Agent) handleClose(platformID uint32) {
	a.mu.Lock()
	inst, ok := a.displayed[platformID]
	if ok {
		inst.state = stateClosed
		delete(a.displayed, platformID)
	}
	a.mu.Unlock()

	if ok {
		logging.WithNotification(log, inst.id, inst.data.Type).Debug("notification closed")
	}
}

// firstMatchingClient returns the first connected app instance whose origin
// matches the agent's own origin, in registration order.
func (a *Agent) firstMatchingClient() Client {
	for _, c := range a.clients.Clients() {
		if c.Origin() == a.origin {
			return c
		}
	}
	return nil
}
