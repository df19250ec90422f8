// Package permission models notification permission: a tri-state flag owned
// by the platform, mirrored by the app for gating. Once granted, the result
// is cached so the user is never re-prompted across reloads; once denied,
// the state is read-only for the rest of the session.
package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/acu-preview/agent/internal/logging"
)

var log = logging.L("permission")

// State is the tri-state permission value.
type State string

const (
	StateDefault State = "default"
	StateGranted State = "granted"
	StateDenied  State = "denied"
)

// Prompter asks the user for notification permission. Single-shot; no
// cancellation contract beyond the context.
type Prompter interface {
	Prompt(ctx context.Context) (State, error)
}

// Manager coordinates the prompt-once flow around the cached granted flag.
type Manager struct {
	store    *Store
	prompter Prompter
	delay    time.Duration

	mu       sync.Mutex
	state    State
	prompted bool
}

// NewManager creates a Manager. The cached granted flag short-circuits
// prompting entirely.
func NewManager(store *Store, prompter Prompter, delay time.Duration) *Manager {
	state := StateDefault
	if store != nil && store.Granted() {
		state = StateGranted
	}
	return &Manager{
		store:    store,
		prompter: prompter,
		delay:    delay,
		state:    state,
	}
}

// State returns the current permission state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Granted reports whether notifications may be shown.
func (m *Manager) Granted() bool {
	return m.State() == StateGranted
}

// RequestOnce waits the configured delay (so the prompt does not interrupt
// initial render), then ensures permission was requested. Returns whether
// permission is granted.
func (m *Manager) RequestOnce(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return m.Granted()
	case <-time.After(m.delay):
	}
	return m.Ensure(ctx)
}

// Ensure prompts the user if, and only if, the state is still default and
// no prompt has happened this session. Denied is terminal: no retries, no
// nagging. Returns whether permission is granted.
func (m *Manager) Ensure(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != StateDefault || m.prompted {
		granted := m.state == StateGranted
		m.mu.Unlock()
		return granted
	}
	m.prompted = true
	prompter := m.prompter
	m.mu.Unlock()

	if prompter == nil {
		return false
	}

	result, err := prompter.Prompt(ctx)
	if err != nil {
		log.Warn("permission prompt failed", "error", err)
		return false
	}

	m.mu.Lock()
	m.state = result
	m.mu.Unlock()

	switch result {
	case StateGranted:
		log.Info("notification permission granted")
		if m.store != nil {
			if err := m.store.SetGranted(); err != nil {
				// Lost update is tolerated: worst case one extra prompt
				// next session
				log.Warn("failed to persist permission flag", "error", err)
			}
		}
		return true
	case StateDenied:
		log.Warn("notification permission denied")
	}
	return false
}

// ConsolePrompter asks on a terminal. Anything other than an explicit yes
// or no leaves the state at default, like a dismissed platform prompt.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p *ConsolePrompter) Prompt(ctx context.Context) (State, error) {
	if _, err := fmt.Fprint(p.Out, "Allow Acu Preview to show notifications? [y/n] "); err != nil {
		return StateDefault, err
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return StateDefault, ctx.Err()
	case ans := <-ch:
		if ans.err != nil && ans.line == "" {
			return StateDefault, ans.err
		}
		switch strings.ToLower(strings.TrimSpace(ans.line)) {
		case "y", "yes":
			return StateGranted, nil
		case "n", "no":
			return StateDenied, nil
		}
		return StateDefault, nil
	}
}
