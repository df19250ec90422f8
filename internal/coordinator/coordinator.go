package coordinator

import (
	"context"
	"net/url"

	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/notifier"
	"github.com/acu-preview/agent/internal/notify"
	"github.com/acu-preview/agent/internal/permission"
)

// Coordinator ties the IPC client, permission manager, and view state
// together into the app-facing notification surface. Business code calls
// NotifyBusinessEvent and moves on; nothing here ever fails the caller.
type Coordinator struct {
	client *Client
	perms  *permission.Manager
	view   *ViewState
	local  notifier.Notifier
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLocalNotifier installs a direct-display fallback used when the agent
// cannot be reached or declines delivery.
func WithLocalNotifier(n notifier.Notifier) Option {
	return func(c *Coordinator) { c.local = n }
}

// New creates a Coordinator. The client's navigation and focus handlers
// should be wired to the returned value (see BindHandlers).
func New(client *Client, perms *permission.Manager, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		perms:  perms,
		view:   NewViewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindHandlers returns the IPC handlers that keep this coordinator's view
// state in sync with agent-driven navigation. onFocus may be nil.
func (c *Coordinator) BindHandlers(onFocus func()) Handlers {
	return Handlers{
		OnNavigateRequest: c.handleNavigateURL,
		OnNavigate: func(instr ipc.NavigationInstruction) {
			c.view.Apply(instr.View, instr.NotificationType)
		},
		OnFocus: onFocus,
	}
}

// View returns the coordinator's navigation state.
func (c *Coordinator) View() *ViewState {
	return c.view
}

// Permission returns the current notification permission state.
func (c *Coordinator) Permission() permission.State {
	return c.perms.State()
}

// RequestPermission runs the delayed one-shot permission flow.
func (c *Coordinator) RequestPermission(ctx context.Context) bool {
	return c.perms.RequestOnce(ctx)
}

// NotifyBusinessEvent dispatches the fixed notification template for a
// business event. All failures are swallowed and logged: the purchasing
// action that triggered the event has already succeeded, and a notification
// hiccup must not unwind it.
func (c *Coordinator) NotifyBusinessEvent(ctx context.Context, kind notify.Kind) {
	req, ok := notify.BusinessEvent(kind)
	if !ok {
		log.Warn("no notification template for event", logging.KeyNotificationKind, string(kind))
		return
	}

	if !c.perms.Ensure(ctx) {
		log.Info("notification permission not granted, skipping",
			logging.KeyNotificationKind, string(kind))
		return
	}

	result, err := c.client.ShowNotification(req)
	if err == nil && result.Delivered {
		log.Debug("notification delivered",
			logging.KeyNotificationID, result.NotificationID,
			logging.KeyNotificationKind, string(kind))
		return
	}
	if err != nil {
		log.Warn("agent show failed, trying direct display",
			logging.KeyNotificationKind, string(kind), logging.KeyError, err)
	} else {
		log.Warn("agent declined delivery, trying direct display",
			logging.KeyNotificationKind, string(kind))
	}

	c.showDirect(req, kind)
}

// showDirect is the fallback display path. Its failures are terminal and
// only logged.
func (c *Coordinator) showDirect(req ipc.ShowNotificationRequest, kind notify.Kind) {
	if c.local == nil {
		return
	}
	if _, err := c.local.Show(notify.FromShowRequest(req)); err != nil {
		log.Warn("direct display failed",
			logging.KeyNotificationKind, string(kind), logging.KeyError, err)
	}
}

// handleNavigateURL applies a direct-navigation URL from the agent to the
// view state. Parse failure is the only rejection; a URL that parses is
// always acknowledged.
func (c *Coordinator) handleNavigateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	q := u.Query()
	c.view.Apply(q.Get("view"), q.Get("type"))
	return nil
}

// ConsumeLaunchURL applies the view/type query parameters of an app launch
// URL as a navigation, then returns the URL with both parameters stripped.
// The stripped URL is what the app should display in place of the original
// (replace semantics, no history entry).
func (c *Coordinator) ConsumeLaunchURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	q := u.Query()
	view := q.Get("view")
	typ := q.Get("type")
	if view != "" {
		c.view.Apply(view, typ)
	}

	q.Del("view")
	q.Del("type")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
