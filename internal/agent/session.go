package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/logging"
)

var log = logging.L("agent")

// Session represents a connected foreground app instance.
type Session struct {
	SessionID   string
	AppOrigin   string
	PID         int
	ConnectedAt time.Time

	conn     *ipc.Conn
	mu       sync.Mutex
	lastSeen time.Time
	pending  map[string]chan *ipc.Envelope // request ID -> response channel
}

// NewSession creates a session for a completed hello handshake.
func NewSession(conn *ipc.Conn, hello ipc.Hello) *Session {
	return &Session{
		SessionID:   hello.SessionID,
		AppOrigin:   hello.Origin,
		PID:         hello.PID,
		ConnectedAt: time.Now(),
		conn:        conn,
		lastSeen:    time.Now(),
		pending:     make(map[string]chan *ipc.Envelope),
	}
}

// Origin returns the URL origin this app instance reported at handshake.
func (s *Session) Origin() string {
	return s.AppOrigin
}

// Navigate asks the app instance to load the given URL directly and waits
// for its reply. An error reply means the runtime rejected the navigation.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	id := "nav-" + uuid.NewString()
	resp, err := s.sendAndWait(id, ipc.TypeNavigateRequest, ipc.NavigateRequest{URL: url}, timeout)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: %s", ErrNavigateRejected, resp.Error)
	}
	result, err := ipc.UnmarshalPayload[ipc.NavigateResult](resp)
	if err != nil {
		return fmt.Errorf("agent: invalid navigate result: %w", err)
	}
	if !result.OK {
		return ErrNavigateRejected
	}
	return nil
}

// SendNavigate delivers a fire-and-forget navigation instruction. Best
// effort, at most once.
func (s *Session) SendNavigate(instr ipc.NavigationInstruction) error {
	return s.conn.SendTyped("nav-"+uuid.NewString(), ipc.TypeNavigate, instr)
}

// Focus asks the app instance to bring itself to the foreground.
func (s *Session) Focus() error {
	return s.conn.SendTyped("focus-"+uuid.NewString(), ipc.TypeFocus, nil)
}

// Reply sends a typed response envelope for a received request.
func (s *Session) Reply(id, msgType string, payload any) error {
	return s.conn.SendTyped(id, msgType, payload)
}

// ReplyError sends an error response envelope for a received request.
func (s *Session) ReplyError(id, msgType, errMsg string) error {
	return s.conn.SendError(id, msgType, errMsg)
}

func (s *Session) sendAndWait(id, msgType string, payload any, timeout time.Duration) (*ipc.Envelope, error) {
	ch := make(chan *ipc.Envelope, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.conn.SendTyped(id, msgType, payload); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok || resp == nil {
			return nil, fmt.Errorf("agent: session closed while waiting for response")
		}
		return resp, nil
	case <-time.After(timeout):
		return nil, ErrCommandTimeout
	}
}

// handleResponse routes a received envelope to a pending request channel.
// Returns true if the envelope matched a pending request.
func (s *Session) handleResponse(env *ipc.Envelope) bool {
	s.mu.Lock()
	ch, ok := s.pending[env.ID]
	s.mu.Unlock()

	if ok {
		select {
		case ch <- env:
		default:
			log.Warn("response channel full, dropping", "id", env.ID)
		}
		return true
	}
	return false
}

// Touch updates the last-seen timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// IdleDuration returns how long this session has been idle.
func (s *Session) IdleDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastSeen)
}

// Close closes the underlying connection and cancels all pending requests.
func (s *Session) Close() error {
	s.mu.Lock()
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	s.mu.Unlock()
	return s.conn.Close()
}

// RecvLoop reads messages from the connection and dispatches them. Returns
// when the connection is closed or a read fails.
func (s *Session) RecvLoop(onMessage func(*Session, *ipc.Envelope)) {
	for {
		env, err := s.conn.Recv()
		if err != nil {
			log.Debug("session recv loop ended", "sessionId", s.SessionID, "error", err)
			return
		}
		s.Touch()

		// Replies to our own navigate requests come back on this loop
		if s.handleResponse(env) {
			continue
		}

		onMessage(s, env)
	}
}
