// Package notify holds the notification domain model: business event kinds,
// push payload defaults, the fixed business templates, and the mapping from
// a notification's type to the view it navigates to when clicked.
package notify

import (
	"net/url"

	"github.com/acu-preview/agent/internal/ipc"
)

// Kind is a business-event tag carried in a notification's data payload.
type Kind string

const (
	KindPO         Kind = "po"
	KindBill       Kind = "bill"
	KindPrepayment Kind = "prepayment"
	KindPurchases  Kind = "purchases"
)

// ParseKind returns the Kind for s, or ok=false for anything outside the
// closed set.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPO, KindBill, KindPrepayment, KindPurchases:
		return Kind(s), true
	}
	return "", false
}

// View identifies a foreground screen a notification can navigate to.
type View string

const (
	ViewRoot      View = ""
	ViewApprovals View = "approvals"
	ViewPurchases View = "purchases"
)

// ParseView returns the View for s, or ok=false for unknown values.
// The root view is not addressable by name.
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewApprovals, ViewPurchases:
		return View(s), true
	}
	return ViewRoot, false
}

// Documented defaults substituted for missing push payload fields.
const (
	DefaultTitle = "Acu Preview"
	DefaultBody  = "You have a new notification"
	DefaultIcon  = "/icons/android/android-launchericon-192-192.png"
	DefaultBadge = "/icons/android/android-launchericon-96-96.png"
)

// Request is a fully-resolved notification ready for display.
type Request struct {
	Title string
	Body  string
	Icon  string
	Badge string
	Tag   string
	Data  ipc.NotificationData
}

// ApplyDefaults substitutes the documented default for each missing field
// independently. Defaults apply per-field, not all-or-nothing.
func (r *Request) ApplyDefaults() {
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	if r.Body == "" {
		r.Body = DefaultBody
	}
	if r.Icon == "" {
		r.Icon = DefaultIcon
	}
	if r.Badge == "" {
		r.Badge = DefaultBadge
	}
}

// FromShowRequest builds a display Request from an app-supplied
// show_notification message, applying the same defaults as the push path.
func FromShowRequest(req ipc.ShowNotificationRequest) Request {
	r := Request{
		Title: req.Title,
		Body:  req.Options.Body,
		Icon:  req.Options.Icon,
		Badge: req.Options.Badge,
		Tag:   req.Options.Tag,
		Data:  req.Options.Data,
	}
	r.ApplyDefaults()
	return r
}

// ResolveTarget maps a notification data type to the view a click navigates
// to. Approval kinds route to the approvals view, purchases to the purchases
// view, anything else falls back to the root view.
func ResolveTarget(dataType string) View {
	switch Kind(dataType) {
	case KindPO, KindBill, KindPrepayment:
		return ViewApprovals
	case KindPurchases:
		return ViewPurchases
	}
	return ViewRoot
}

// TargetURL builds the URL a click on a notification of the given data type
// navigates to, rooted at the app origin.
func TargetURL(origin, dataType string) string {
	view := ResolveTarget(dataType)
	if view == ViewRoot {
		return origin + "/"
	}
	q := url.Values{}
	q.Set("view", string(view))
	if view == ViewApprovals {
		q.Set("type", dataType)
	}
	return origin + "/?" + q.Encode()
}
