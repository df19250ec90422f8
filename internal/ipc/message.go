package ipc

import "encoding/json"

// Message type constants for agent<->app communication.
const (
	TypeHello    = "hello"
	TypeHelloAck = "hello_ack"
	TypePing     = "ping"
	TypePong     = "pong"

	// App -> agent
	TypeShowNotification = "show_notification"
	TypeShowResult       = "show_result"

	// Agent -> app
	TypeNavigateRequest = "navigate_request"
	TypeNavigateResult  = "navigate_result"
	TypeNavigate        = "navigate"
	TypeFocus           = "focus"

	TypeDisconnect = "disconnect"
)

// MaxMessageSize is the maximum size of a JSON IPC message (256KB).
// Notification payloads are small; anything larger is a protocol violation.
const MaxMessageSize = 256 * 1024

// ProtocolVersion is the current IPC protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all IPC messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error,omitempty"`
	HMAC    string          `json:"hmac"`
}

// Hello is sent by a foreground app instance after connecting.
type Hello struct {
	ProtocolVersion int    `json:"protocolVersion"`
	Origin          string `json:"origin"`
	SessionID       string `json:"sessionId"`
	PID             int    `json:"pid"`
}

// HelloAck is sent by the agent back to the app instance.
type HelloAck struct {
	Accepted   bool   `json:"accepted"`
	SessionKey string `json:"sessionKey,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// NotificationData is the opaque payload attached to a notification at
// display time and read back at click time. Type is one of the business
// event kinds; unrecognized values route to the root view.
type NotificationData struct {
	Type   string `json:"type,omitempty"`
	Action string `json:"action,omitempty"`
}

// NotificationOptions carries the display options of a notification.
// Missing icon/badge/body fields are default-substituted by the agent.
type NotificationOptions struct {
	Body  string           `json:"body,omitempty"`
	Icon  string           `json:"icon,omitempty"`
	Badge string           `json:"badge,omitempty"`
	Tag   string           `json:"tag,omitempty"`
	Data  NotificationData `json:"data"`
}

// ShowNotificationRequest asks the agent to display a notification.
type ShowNotificationRequest struct {
	Title   string              `json:"title"`
	Options NotificationOptions `json:"options"`
}

// ShowResult is the agent's response after a show_notification request.
type ShowResult struct {
	Delivered      bool   `json:"delivered"`
	NotificationID string `json:"notificationId,omitempty"`
}

// NavigateRequest asks an app instance to load the given URL directly.
// The app replies with navigate_result; an error reply means the runtime
// rejected the navigation and the agent falls back to a navigate message.
type NavigateRequest struct {
	URL string `json:"url"`
}

// NavigateResult is the app's response to a navigate_request.
type NavigateResult struct {
	OK bool `json:"ok"`
}

// NavigationInstruction tells an app instance which view to show. Fire and
// forget, delivered at most once.
type NavigationInstruction struct {
	View             string `json:"view"`
	NotificationType string `json:"notificationType,omitempty"`
}
