package notify

import (
	"encoding/json"
	"fmt"

	"github.com/acu-preview/agent/internal/ipc"
)

// PushPayload is the JSON body of an incoming push event. Every field is
// optional; missing fields get the documented defaults.
type PushPayload struct {
	Title string               `json:"title,omitempty"`
	Body  string               `json:"body,omitempty"`
	Icon  string               `json:"icon,omitempty"`
	Badge string               `json:"badge,omitempty"`
	Data  ipc.NotificationData `json:"data"`
}

// ParsePush decodes a raw push body and resolves it into a display Request.
// A malformed body is an error; the caller drops the event.
func ParsePush(raw []byte) (Request, error) {
	var p PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Request{}, fmt.Errorf("notify: parse push payload: %w", err)
	}
	r := Request{
		Title: p.Title,
		Body:  p.Body,
		Icon:  p.Icon,
		Badge: p.Badge,
		Data:  p.Data,
	}
	r.ApplyDefaults()
	return r, nil
}
