// Package coordinator is the foreground side of the notification subsystem:
// it connects an app instance to the background agent, dispatches business
// events as notifications, and keeps the app's view state in line with
// navigation coming back from notification clicks.
package coordinator

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/acu-preview/agent/internal/ipc"
	"github.com/acu-preview/agent/internal/logging"
)

var log = logging.L("coordinator")

// ShowTimeout bounds how long a show_notification waits for its result.
const ShowTimeout = 5 * time.Second

// Handlers receive agent-initiated messages. All callbacks are optional.
type Handlers struct {
	// OnNavigateRequest is called for a direct-navigation request carrying a
	// full URL. A nil return acknowledges the navigation as applied.
	OnNavigateRequest func(url string) error

	// OnNavigate is called for a fire-and-forget navigation instruction.
	OnNavigate func(instr ipc.NavigationInstruction)

	// OnFocus is called when the agent asks this instance to foreground.
	OnFocus func()
}

// Client is the app-instance side of the IPC connection to the agent.
type Client struct {
	socketPath string
	origin     string
	sessionID  string
	handlers   Handlers

	connMu   sync.Mutex // guards conn against Stop racing connect
	conn     *ipc.Conn
	ready    atomic.Bool
	stopChan chan struct{}

	pendingMu sync.Mutex
	pending   map[string]chan *ipc.Envelope
}

// NewClient creates a client for the agent socket at socketPath, announcing
// the given app origin.
func NewClient(socketPath, origin string, handlers Handlers) *Client {
	return &Client{
		socketPath: socketPath,
		origin:     origin,
		sessionID:  "app-" + uuid.NewString(),
		handlers:   handlers,
		stopChan:   make(chan struct{}),
		pending:    make(map[string]chan *ipc.Envelope),
	}
}

// Run connects to the agent, performs the hello handshake, and enters the
// command loop. Blocks until Stop is called or the connection drops.
func (c *Client) Run() error {
	if err := c.connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.conn.Close()

	if err := c.handshake(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	log.Info("connected to agent", "sessionId", c.sessionID, "origin", c.origin)

	c.ready.Store(true)
	defer c.ready.Store(false)
	return c.commandLoop()
}

// SetHandlers installs the agent-message handlers. Must be called before
// Run.
func (c *Client) SetHandlers(h Handlers) {
	c.handlers = h
}

// Connected reports whether the handshake has completed and the command
// loop is running.
func (c *Client) Connected() bool {
	return c.ready.Load()
}

// Stop signals the client to shut down gracefully.
func (c *Client) Stop() {
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		conn.SendTyped("disconnect", ipc.TypeDisconnect, nil)
		conn.Close()
	}
}

// ShowNotification asks the agent to display a notification and waits for
// the delivery result.
func (c *Client) ShowNotification(req ipc.ShowNotificationRequest) (ipc.ShowResult, error) {
	if !c.ready.Load() {
		return ipc.ShowResult{}, errors.New("coordinator: not connected")
	}

	id := "show-" + uuid.NewString()
	ch := c.registerPendingResponse(id)
	defer c.unregisterPendingResponse(id)

	if err := c.conn.SendTyped(id, ipc.TypeShowNotification, req); err != nil {
		return ipc.ShowResult{}, fmt.Errorf("coordinator: send show request: %w", err)
	}

	select {
	case env, ok := <-ch:
		if !ok || env == nil {
			return ipc.ShowResult{}, errors.New("coordinator: connection closed while waiting for show result")
		}
		if env.Error != "" {
			return ipc.ShowResult{}, fmt.Errorf("coordinator: show rejected: %s", env.Error)
		}
		result, err := ipc.UnmarshalPayload[ipc.ShowResult](env)
		if err != nil {
			return ipc.ShowResult{}, fmt.Errorf("coordinator: invalid show result: %w", err)
		}
		return result, nil
	case <-time.After(ShowTimeout):
		return ipc.ShowResult{}, errors.New("coordinator: show request timed out")
	case <-c.stopChan:
		return ipc.ShowResult{}, errors.New("coordinator: client stopped")
	}
}

func (c *Client) connect() error {
	// The agent listens on a unix socket except on Windows, where it falls
	// back to loopback TCP and the path carries host:port.
	network := "unix"
	if strings.Contains(c.socketPath, ":") {
		network = "tcp"
	}
	raw, err := net.Dial(network, c.socketPath)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = ipc.NewConn(raw)
	c.connMu.Unlock()

	// Stop may have run while dialing; don't leave the fresh conn open.
	select {
	case <-c.stopChan:
		raw.Close()
		return errors.New("coordinator: client stopped")
	default:
	}
	return nil
}

func (c *Client) handshake() error {
	hello := ipc.Hello{
		ProtocolVersion: ipc.ProtocolVersion,
		Origin:          c.origin,
		SessionID:       c.sessionID,
		PID:             os.Getpid(),
	}
	if err := c.conn.SendTyped("hello", ipc.TypeHello, hello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	env, err := c.conn.Recv()
	if err != nil {
		return fmt.Errorf("recv hello ack: %w", err)
	}
	if env.Type != ipc.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got %s", env.Type)
	}

	var ack ipc.HelloAck
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		return fmt.Errorf("unmarshal hello ack: %w", err)
	}
	if !ack.Accepted {
		return fmt.Errorf("handshake rejected: %s", ack.Reason)
	}

	key, err := hex.DecodeString(ack.SessionKey)
	if err != nil {
		return fmt.Errorf("decode session key: %w", err)
	}
	c.conn.SetSessionKey(key)
	return nil
}

func (c *Client) commandLoop() error {
	defer c.closePendingResponses()

	for {
		select {
		case <-c.stopChan:
			return nil
		default:
		}

		// Read deadline lets us check stopChan periodically
		c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		env, err := c.conn.Recv()
		if err != nil {
			if isTimeout(err) {
				// Keepalive
				if pingErr := c.conn.SendTyped("ping", ipc.TypePing, nil); pingErr != nil {
					return fmt.Errorf("keepalive ping failed: %w", pingErr)
				}
				continue
			}
			select {
			case <-c.stopChan:
				return nil
			default:
			}
			return fmt.Errorf("recv: %w", err)
		}

		switch env.Type {
		case ipc.TypePing:
			if err := c.conn.SendTyped(env.ID, ipc.TypePong, nil); err != nil {
				return fmt.Errorf("pong send failed: %w", err)
			}

		case ipc.TypePong:
			// Answer to our keepalive ping

		case ipc.TypeNavigateRequest:
			c.handleNavigateRequest(env)

		case ipc.TypeNavigate:
			c.handleNavigate(env)

		case ipc.TypeFocus:
			if c.handlers.OnFocus != nil {
				c.handlers.OnFocus()
			}

		case ipc.TypeShowResult:
			if !c.resolvePendingResponse(env) {
				log.Warn("unsolicited show_result", "id", env.ID)
			}

		case ipc.TypeDisconnect:
			log.Info("disconnect received from agent")
			return nil

		default:
			log.Warn("unknown message type", "type", env.Type)
		}
	}
}

func (c *Client) handleNavigateRequest(env *ipc.Envelope) {
	var req ipc.NavigateRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		c.conn.SendError(env.ID, ipc.TypeNavigateResult, fmt.Sprintf("invalid navigate request: %v", err))
		return
	}

	if c.handlers.OnNavigateRequest != nil {
		if err := c.handlers.OnNavigateRequest(req.URL); err != nil {
			log.Warn("navigation rejected", "url", req.URL, "error", err)
			c.conn.SendError(env.ID, ipc.TypeNavigateResult, err.Error())
			return
		}
	}
	if err := c.conn.SendTyped(env.ID, ipc.TypeNavigateResult, ipc.NavigateResult{OK: true}); err != nil {
		log.Warn("failed to send navigate result", "id", env.ID, "error", err)
	}
}

func (c *Client) handleNavigate(env *ipc.Envelope) {
	var instr ipc.NavigationInstruction
	if err := json.Unmarshal(env.Payload, &instr); err != nil {
		log.Warn("invalid navigate instruction", "error", err)
		return
	}
	if c.handlers.OnNavigate != nil {
		c.handlers.OnNavigate(instr)
	}
}

func (c *Client) registerPendingResponse(id string) chan *ipc.Envelope {
	ch := make(chan *ipc.Envelope, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	return ch
}

func (c *Client) unregisterPendingResponse(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Client) resolvePendingResponse(env *ipc.Envelope) bool {
	var ch chan *ipc.Envelope
	c.pendingMu.Lock()
	ch = c.pending[env.ID]
	if ch != nil {
		delete(c.pending, env.ID)
	}
	c.pendingMu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case ch <- env:
	default:
		log.Warn("pending response channel full, dropping", "id", env.ID)
	}
	close(ch)
	return true
}

func (c *Client) closePendingResponses() {
	c.pendingMu.Lock()
	chans := make([]chan *ipc.Envelope, 0, len(c.pending))
	for id, ch := range c.pending {
		delete(c.pending, id)
		chans = append(chans, ch)
	}
	c.pendingMu.Unlock()
	for _, ch := range chans {
		close(ch)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
