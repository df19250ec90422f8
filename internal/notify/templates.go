package notify

import "github.com/acu-preview/agent/internal/ipc"

// template is a fixed business-event notification literal.
type template struct {
	title string
	body  string
	tag   string
}

var templates = map[Kind]template{
	KindPO: {
		title: "New PO for Approval",
		body:  "You have 1 new Purchase Order pending approval",
		tag:   "po-approval",
	},
	KindBill: {
		title: "New Bill for Approval",
		body:  "You have 1 new Bill pending approval",
		tag:   "bill-approval",
	},
	KindPrepayment: {
		title: "New Prepayment for Approval",
		body:  "You have 1 new Prepayment pending approval",
		tag:   "prepayment-approval",
	},
	KindPurchases: {
		title: "Purchases Enabled",
		body:  "You can now view and manage purchases",
		tag:   "purchases-enabled",
	},
}

// action values attached to the business templates.
const (
	actionApproval = "approval"
	actionEnabled  = "enabled"
)

// BusinessEvent returns the fixed notification request for a business event
// kind, as a show_notification message body.
func BusinessEvent(kind Kind) (ipc.ShowNotificationRequest, bool) {
	tpl, ok := templates[kind]
	if !ok {
		return ipc.ShowNotificationRequest{}, false
	}
	action := actionApproval
	if kind == KindPurchases {
		action = actionEnabled
	}
	return ipc.ShowNotificationRequest{
		Title: tpl.title,
		Options: ipc.NotificationOptions{
			Body: tpl.body,
			Tag:  tpl.tag,
			Data: ipc.NotificationData{Type: string(kind), Action: action},
		},
	}, true
}
