package coordinator

import (
	"sync"

	"github.com/acu-preview/agent/internal/notify"
)

// Screen identifies the app's top-level screen.
type Screen string

const (
	ScreenRoot      Screen = "root"
	ScreenApprovals Screen = "approvals"
	ScreenPurchases Screen = "purchases"
)

// ViewState is the foreground app's navigation model: which screen is
// showing and, on the approvals screen, which approval category is selected.
type ViewState struct {
	mu       sync.Mutex
	screen   Screen
	category string
}

// NewViewState starts at the root screen.
func NewViewState() *ViewState {
	return &ViewState{screen: ScreenRoot}
}

// Apply handles a navigation instruction. An unknown or empty view is a
// no-op: the app stays where it is.
func (v *ViewState) Apply(view, notificationType string) {
	switch notify.View(view) {
	case notify.ViewApprovals:
		v.mu.Lock()
		v.screen = ScreenApprovals
		v.category = notificationType
		v.mu.Unlock()
	case notify.ViewPurchases:
		v.mu.Lock()
		v.screen = ScreenPurchases
		v.category = ""
		v.mu.Unlock()
	}
}

// Reset returns to the root screen.
func (v *ViewState) Reset() {
	v.mu.Lock()
	v.screen = ScreenRoot
	v.category = ""
	v.mu.Unlock()
}

// Current returns the active screen and, for approvals, the selected
// category ("" when none applies).
func (v *ViewState) Current() (Screen, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.screen, v.category
}
