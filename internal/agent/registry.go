package agent

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acu-preview/agent/internal/ipc"
)

const (
	// HandshakeTimeout is the deadline for completing the hello exchange
	// after connecting.
	HandshakeTimeout = 5 * time.Second

	// IdleTimeout disconnects app instances that send no messages for this
	// duration.
	IdleTimeout = 30 * time.Minute

	// IdleCheckInterval is how often to scan for idle sessions.
	IdleCheckInterval = 60 * time.Second
)

// MessageHandler is called when an app instance sends a message that isn't
// a response to a pending request.
type MessageHandler func(session *Session, env *ipc.Envelope)

// Registry manages IPC connections from foreground app instances. The
// session list preserves registration order; that order is the documented
// enumeration order for click dispatch ("first matching origin wins").
type Registry struct {
	socketPath string
	listener   net.Listener

	mu       sync.RWMutex
	sessions []*Session
	closed   bool

	onMessage MessageHandler
}

// NewRegistry creates a new app-instance registry.
func NewRegistry(socketPath string, onMessage MessageHandler) *Registry {
	return &Registry{
		socketPath: socketPath,
		onMessage:  onMessage,
	}
}

// Listen starts the IPC listener. Blocks until stopChan is closed.
func (r *Registry) Listen(stopChan <-chan struct{}) error {
	if err := r.setupSocket(); err != nil {
		return fmt.Errorf("agent: setup socket: %w", err)
	}

	log.Info("client registry listening", "path", r.socketPath)

	go r.idleReaper(stopChan)

	go func() {
		for {
			conn, err := r.listener.Accept()
			if err != nil {
				r.mu.RLock()
				closed := r.closed
				r.mu.RUnlock()
				if closed {
					return
				}
				log.Warn("accept error", "error", err)
				continue
			}
			go r.handleConnection(conn)
		}
	}()

	<-stopChan
	r.Close()
	return nil
}

// Close shuts down the registry and all sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*Session, len(r.sessions))
	copy(sessions, r.sessions)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	if r.listener != nil {
		r.listener.Close()
	}

	if runtime.GOOS != "windows" {
		os.Remove(r.socketPath)
	}

	log.Info("client registry closed")
}

// Clients returns the connected app instances in registration order.
func (r *Registry) Clients() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, len(r.sessions))
	for i, s := range r.sessions {
		clients[i] = s
	}
	return clients
}

// SessionCount returns the number of connected app instances.
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) handleConnection(rawConn net.Conn) {
	rawConn.SetDeadline(time.Now().Add(HandshakeTimeout))

	conn := ipc.NewConn(rawConn)

	env, err := conn.Recv()
	if err != nil {
		log.Warn("hello read failed", "error", err)
		conn.Close()
		return
	}

	if env.Type != ipc.TypeHello {
		log.Warn("expected hello, got", "type", env.Type)
		conn.Close()
		return
	}

	var hello ipc.Hello
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		log.Warn("invalid hello payload", "error", err)
		conn.Close()
		return
	}

	if hello.ProtocolVersion != ipc.ProtocolVersion {
		conn.SendTyped(env.ID, ipc.TypeHelloAck, ipc.HelloAck{
			Accepted: false,
			Reason:   fmt.Sprintf("unsupported protocol version %d", hello.ProtocolVersion),
		})
		conn.Close()
		return
	}

	if hello.Origin == "" {
		conn.SendTyped(env.ID, ipc.TypeHelloAck, ipc.HelloAck{
			Accepted: false,
			Reason:   "missing origin",
		})
		conn.Close()
		return
	}

	if hello.SessionID == "" {
		hello.SessionID = uuid.NewString()
	}

	sessionKey, err := ipc.GenerateSessionKey()
	if err != nil {
		log.Error("failed to generate session key", "error", err)
		conn.Close()
		return
	}

	ack := ipc.HelloAck{
		Accepted:   true,
		SessionKey: hex.EncodeToString(sessionKey),
	}
	if err := conn.SendTyped(env.ID, ipc.TypeHelloAck, ack); err != nil {
		log.Warn("failed to send hello ack", "error", err)
		conn.Close()
		return
	}

	conn.SetSessionKey(sessionKey)
	rawConn.SetDeadline(time.Time{})

	session := NewSession(conn, hello)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		session.Close()
		return
	}
	r.sessions = append(r.sessions, session)
	r.mu.Unlock()

	log.Info("app instance connected",
		"sessionId", session.SessionID,
		"origin", session.AppOrigin,
		"pid", session.PID,
	)

	// Blocks until disconnect
	session.RecvLoop(func(s *Session, env *ipc.Envelope) {
		switch env.Type {
		case ipc.TypePing:
			s.conn.SendTyped(env.ID, ipc.TypePong, nil)
		case ipc.TypePong:
			// Keepalive answer, nothing to do
		case ipc.TypeDisconnect:
			log.Info("app instance disconnecting", "sessionId", s.SessionID)
			s.Close()
		default:
			if r.onMessage != nil {
				r.onMessage(s, env)
			}
		}
	})

	// RecvLoop also exits on corrupt frames; close the session here so the
	// fd is released and pending request waiters fail fast instead of
	// burning their full timeout.
	session.Close()
	r.removeSession(session)
	log.Info("app instance disconnected", "sessionId", session.SessionID)
}

func (r *Registry) removeSession(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sessions {
		if s == session {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
}

func (r *Registry) setupSocket() error {
	if runtime.GOOS == "windows" {
		// Standard TCP listener on localhost as a named-pipe stand-in.
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		r.listener = listener
		log.Info("windows IPC using TCP fallback", "addr", listener.Addr())
		return nil
	}

	// Remove stale socket file
	os.Remove(r.socketPath)

	dir := filepath.Dir(r.socketPath)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	listener, err := net.Listen("unix", r.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.socketPath, err)
	}

	if err := os.Chmod(r.socketPath, 0770); err != nil {
		listener.Close()
		return fmt.Errorf("chmod %s: %w", r.socketPath, err)
	}

	r.listener = listener
	return nil
}

func (r *Registry) idleReaper(stopChan <-chan struct{}) {
	ticker := time.NewTicker(IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapIdleSessions()
		case <-stopChan:
			return
		}
	}
}

func (r *Registry) reapIdleSessions() {
	r.mu.RLock()
	var toClose []*Session
	for _, s := range r.sessions {
		if s.IdleDuration() > IdleTimeout {
			toClose = append(toClose, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range toClose {
		log.Info("disconnecting idle app instance", "sessionId", s.SessionID, "idle", s.IdleDuration())
		s.Close()
		r.removeSession(s)
	}
}
