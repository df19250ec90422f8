package permission

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakePrompter struct {
	mu     sync.Mutex
	result State
	err    error
	calls  int
}

func (p *fakePrompter) Prompt(ctx context.Context) (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result, p.err
}

func (p *fakePrompter) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreGrantedFlagPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := openTestStore(t, path)
	if store.Granted() {
		t.Fatal("fresh store must not report granted")
	}
	if err := store.SetGranted(); err != nil {
		t.Fatalf("set granted: %v", err)
	}
	if !store.Granted() {
		t.Fatal("granted flag not readable after set")
	}
	store.Close()

	// Reopen: the flag survives restarts
	reopened := openTestStore(t, path)
	if !reopened.Granted() {
		t.Fatal("granted flag lost across reopen")
	}
}

func TestEnsurePromptsOnceWhileDefault(t *testing.T) {
	prompter := &fakePrompter{result: StateDefault}
	m := NewManager(nil, prompter, 0)

	if m.Ensure(context.Background()) {
		t.Fatal("dismissed prompt must not grant")
	}
	if m.State() != StateDefault {
		t.Fatalf("state %q, want default after dismissal", m.State())
	}

	// Second Ensure in the same session must not re-prompt
	m.Ensure(context.Background())
	if prompter.callCount() != 1 {
		t.Fatalf("prompted %d times, want 1", prompter.callCount())
	}
}

func TestEnsureGrantPersistsToStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openTestStore(t, path)
	prompter := &fakePrompter{result: StateGranted}
	m := NewManager(store, prompter, 0)

	if !m.Ensure(context.Background()) {
		t.Fatal("expected grant")
	}
	if !store.Granted() {
		t.Fatal("grant not persisted")
	}

	// A fresh manager over the same store never prompts
	again := &fakePrompter{result: StateDenied}
	m2 := NewManager(store, again, 0)
	if !m2.Granted() {
		t.Fatal("cached grant not loaded")
	}
	m2.Ensure(context.Background())
	if again.callCount() != 0 {
		t.Fatal("cached grant must short-circuit prompting")
	}
}

func TestEnsureDeniedIsTerminalAndNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store := openTestStore(t, path)
	prompter := &fakePrompter{result: StateDenied}
	m := NewManager(store, prompter, 0)

	if m.Ensure(context.Background()) {
		t.Fatal("denied must not grant")
	}
	if m.State() != StateDenied {
		t.Fatalf("state %q, want denied", m.State())
	}
	m.Ensure(context.Background())
	if prompter.callCount() != 1 {
		t.Fatalf("prompted %d times after denial, want 1", prompter.callCount())
	}

	// Denied never reaches the store; next session starts at default
	if store.Granted() {
		t.Fatal("denial must not be persisted")
	}
}

func TestRequestOnceHonorsDelayAndContext(t *testing.T) {
	prompter := &fakePrompter{result: StateGranted}
	m := NewManager(nil, prompter, 10*time.Millisecond)

	if !m.RequestOnce(context.Background()) {
		t.Fatal("expected grant after delay")
	}

	// A cancelled context skips the prompt entirely
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	m2 := NewManager(nil, &fakePrompter{result: StateGranted}, time.Hour)
	if m2.RequestOnce(cancelled) {
		t.Fatal("cancelled request must not grant")
	}
}

func TestConsolePrompterAnswers(t *testing.T) {
	tests := []struct {
		input string
		want  State
	}{
		{"y\n", StateGranted},
		{"YES\n", StateGranted},
		{"n\n", StateDenied},
		{"No\n", StateDenied},
		{"\n", StateDefault},
		{"later\n", StateDefault},
	}
	for _, tc := range tests {
		p := &ConsolePrompter{In: strings.NewReader(tc.input), Out: &strings.Builder{}}
		got, err := p.Prompt(context.Background())
		if err != nil {
			t.Fatalf("input %q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("input %q: got %q, want %q", tc.input, got, tc.want)
		}
	}
}
