package agent

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/notifier"
	"github.com/acu-preview/agent/internal/notify"
)

const testOrigin = "https://preview.example.com"

// eventLog records cross-fake call ordering.
type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

type fakeNotifier struct {
	log     *eventLog
	mu      sync.Mutex
	nextID  uint32
	shown   []notify.Request
	showErr error
	events  chan notifier.Event
}

func newFakeNotifier(log *eventLog) *fakeNotifier {
	return &fakeNotifier{log: log, events: make(chan notifier.Event, 8)}
}

func (f *fakeNotifier) Show(req notify.Request) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return 0, f.showErr
	}
	f.nextID++
	f.shown = append(f.shown, req)
	f.log.add(fmt.Sprintf("show:%d", f.nextID))
	return f.nextID, nil
}

func (f *fakeNotifier) Close(id uint32) error {
	f.log.add(fmt.Sprintf("close:%d", id))
	return nil
}

func (f *fakeNotifier) Events() <-chan notifier.Event { return f.events }
func (f *fakeNotifier) Shutdown() error               { close(f.events); return nil }

func (f *fakeNotifier) shownRequests() []notify.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Request, len(f.shown))
	copy(out, f.shown)
	return out
}

type fakeClient struct {
	log         *eventLog
	origin      string
	name        string
	navigateErr error

	mu        sync.Mutex
	navigated []string
	instrs    []ipc.NavigationInstruction
	focused   int
}

func (f *fakeClient) Origin() string { return f.origin }

func (f *fakeClient) Navigate(url string, _ time.Duration) error {
	f.log.add("navigate:" + f.name)
	if f.navigateErr != nil {
		return f.navigateErr
	}
	f.mu.Lock()
	f.navigated = append(f.navigated, url)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) SendNavigate(instr ipc.NavigationInstruction) error {
	f.log.add("sendNavigate:" + f.name)
	f.mu.Lock()
	f.instrs = append(f.instrs, instr)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Focus() error {
	f.log.add("focus:" + f.name)
	f.mu.Lock()
	f.focused++
	f.mu.Unlock()
	return nil
}

type fakeDirectory struct {
	clients []Client
}

func (f *fakeDirectory) Clients() []Client { return f.clients }

type fakeOpener struct {
	log    *eventLog
	mu     sync.Mutex
	opened []string
}

func (f *fakeOpener) Open(url string) error {
	f.log.add("open")
	f.mu.Lock()
	f.opened = append(f.opened, url)
	f.mu.Unlock()
	return nil
}

func TestHandlePushSubstitutesDefaults(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	a := New(testOrigin, fn, &fakeDirectory{})

	a.HandlePush([]byte(`{"data":{"type":"bill"}}`))

	shown := fn.shownRequests()
	if len(shown) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(shown))
	}
	if shown[0].Title != "Acu Preview" {
		t.Errorf("title %q, want default", shown[0].Title)
	}
	if shown[0].Body != "You have a new notification" {
		t.Errorf("body %q, want default", shown[0].Body)
	}
	if shown[0].Data.Type != "bill" {
		t.Errorf("data type %q, want bill", shown[0].Data.Type)
	}
}

func TestHandlePushDropsMalformedPayload(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	a := New(testOrigin, fn, &fakeDirectory{})

	a.HandlePush([]byte(`{not json`))

	if len(fn.shownRequests()) != 0 {
		t.Fatal("malformed payload must not display a notification")
	}
}

func TestClickClosesFirstThenNavigatesFirstMatch(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	foreign := &fakeClient{log: log, origin: "https://other.example.com", name: "foreign"}
	first := &fakeClient{log: log, origin: testOrigin, name: "first"}
	second := &fakeClient{log: log, origin: testOrigin, name: "second"}
	dir := &fakeDirectory{clients: []Client{foreign, first, second}}
	opener := &fakeOpener{log: log}
	a := New(testOrigin, fn, dir, WithOpener(opener))

	a.HandlePush([]byte(`{"data":{"type":"po"}}`))
	a.handleClick(1)

	wantURL := testOrigin + "/?type=po&view=approvals"
	if len(first.navigated) != 1 || first.navigated[0] != wantURL {
		t.Errorf("first client navigated %v, want [%s]", first.navigated, wantURL)
	}
	if first.focused != 1 {
		t.Errorf("first client focused %d times, want 1", first.focused)
	}
	if len(second.navigated) != 0 || len(foreign.navigated) != 0 {
		t.Error("only the first matching client should be navigated")
	}
	if len(opener.opened) != 0 {
		t.Error("no new window when a matching client exists")
	}

	entries := log.snapshot()
	// show, then close before navigate
	want := []string{"show:1", "close:1", "navigate:first", "focus:first"}
	if len(entries) != len(want) {
		t.Fatalf("event order %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Fatalf("event order %v, want %v", entries, want)
		}
	}
}

func TestClickNavigateFailureFallsBackToInstructionAndFocuses(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	client := &fakeClient{log: log, origin: testOrigin, name: "c", navigateErr: ErrNavigateRejected}
	a := New(testOrigin, fn, &fakeDirectory{clients: []Client{client}})

	a.HandlePush([]byte(`{"data":{"type":"prepayment"}}`))
	a.handleClick(1)

	if len(client.instrs) != 1 {
		t.Fatalf("expected 1 navigation instruction, got %d", len(client.instrs))
	}
	instr := client.instrs[0]
	if instr.View != "approvals" || instr.NotificationType != "prepayment" {
		t.Errorf("instruction %+v, want approvals/prepayment", instr)
	}
	if client.focused != 1 {
		t.Errorf("focused %d times, want 1 despite navigation failure", client.focused)
	}
}

func TestClickWithoutMatchingClientOpensWindow(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	foreign := &fakeClient{log: log, origin: "https://other.example.com", name: "foreign"}
	opener := &fakeOpener{log: log}
	a := New(testOrigin, fn, &fakeDirectory{clients: []Client{foreign}}, WithOpener(opener))

	a.HandlePush([]byte(`{"data":{"type":"purchases"}}`))
	a.handleClick(1)

	wantURL := testOrigin + "/?view=purchases"
	if len(opener.opened) != 1 || opener.opened[0] != wantURL {
		t.Errorf("opened %v, want [%s]", opener.opened, wantURL)
	}
	if len(foreign.navigated) != 0 || foreign.focused != 0 {
		t.Error("foreign-origin client must not be touched")
	}
}

func TestClickWithoutClientOrOpenerDoesNothing(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	a := New(testOrigin, fn, &fakeDirectory{})

	a.HandlePush([]byte(`{"data":{"type":"po"}}`))
	a.handleClick(1) // must not panic
}

func TestClickUnknownTypeTargetsRoot(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	opener := &fakeOpener{log: log}
	a := New(testOrigin, fn, &fakeDirectory{}, WithOpener(opener))

	a.HandlePush([]byte(`{"data":{"type":"mystery"}}`))
	a.handleClick(1)

	if len(opener.opened) != 1 || opener.opened[0] != testOrigin+"/" {
		t.Errorf("opened %v, want root URL", opener.opened)
	}
}

func TestClickForUnknownNotificationIsIgnored(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	opener := &fakeOpener{log: log}
	a := New(testOrigin, fn, &fakeDirectory{}, WithOpener(opener))

	a.handleClick(99)

	if len(opener.opened) != 0 {
		t.Error("unknown notification click must not navigate")
	}
}

func TestDuplicateClicksAreIdempotent(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	client := &fakeClient{log: log, origin: testOrigin, name: "c"}
	a := New(testOrigin, fn, &fakeDirectory{clients: []Client{client}})

	a.HandlePush([]byte(`{"data":{"type":"bill"}}`))
	a.handleClick(1)
	a.handleClick(1)

	// Re-running navigation is harmless; both clicks navigate + focus
	if len(client.navigated) != 2 {
		t.Errorf("navigated %d times, want 2", len(client.navigated))
	}
	if client.focused != 2 {
		t.Errorf("focused %d times, want 2", client.focused)
	}
}

func TestUnsupportedPlatformShortCircuitsDisplay(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	a := New(testOrigin, fn, &fakeDirectory{}, WithUnsupportedNotifier())

	a.HandlePush([]byte(`{"data":{"type":"po"}}`))

	if len(fn.shownRequests()) != 0 {
		t.Fatal("unsupported platform must not reach the notifier")
	}
}

func TestRunPumpsClickAndCloseEvents(t *testing.T) {
	log := &eventLog{}
	fn := newFakeNotifier(log)
	opener := &fakeOpener{log: log}
	a := New(testOrigin, fn, &fakeDirectory{}, WithOpener(opener))

	a.HandlePush([]byte(`{"data":{"type":"purchases"}}`))

	done := make(chan struct{})
	go func() {
		a.Run()
		close(done)
	}()

	fn.events <- notifier.Event{Kind: notifier.EventClicked, ID: 1}
	fn.events <- notifier.Event{Kind: notifier.EventClosed, ID: 1}
	fn.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after event stream closed")
	}

	if len(opener.opened) != 1 {
		t.Fatalf("click event not dispatched, opened %v", opener.opened)
	}

	// Closed event removed the record; a later click for the same ID is a no-op
	a.handleClick(1)
	if len(opener.opened) != 1 {
		t.Error("click after close should be ignored")
	}
}
