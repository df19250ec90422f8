// Package push maintains the WebSocket connection to the push gateway and
// delivers raw push payloads to the agent.
package push

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acu-preview/agent/internal/logging"
	"github.com/acu-preview/agent/internal/secmem"
)

var log = logging.L("push")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// Config holds push client configuration. The token lives in a Secret so it
// cannot leak through logs or serialized diagnostics.
type Config struct {
	GatewayURL string
	Token      *secmem.Secret
}

// Handler receives the raw JSON body of each push event. Payload validation
// is the agent's concern, not the transport's.
type Handler func(payload []byte)

// Client manages the WebSocket connection to the push gateway.
type Client struct {
	config    *Config
	conn      *websocket.Conn
	connMu    sync.RWMutex
	handler   Handler
	done      chan struct{}
	stopOnce  sync.Once
	isRunning bool
	runningMu sync.RWMutex
}

// New creates a new push client.
func New(cfg *Config, handler Handler) *Client {
	return &Client{
		config:  cfg,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start begins the connect/reconnect loop. Blocks until Stop.
func (c *Client) Start() {
	c.runningMu.Lock()
	if c.isRunning {
		c.runningMu.Unlock()
		return
	}
	c.isRunning = true
	c.runningMu.Unlock()

	c.reconnectLoop()
}

// Stop gracefully closes the connection.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.runningMu.Lock()
		c.isRunning = false
		c.runningMu.Unlock()

		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.config.Token.Zero()
		log.Info("push client stopped")
	})
}

func (c *Client) connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	conn.SetReadLimit(maxMessageSize)
	log.Info("connected", "gateway", c.config.GatewayURL)
	return nil
}

func (c *Client) buildWSURL() (string, error) {
	gatewayURL, err := url.Parse(c.config.GatewayURL)
	if err != nil {
		return "", err
	}

	switch gatewayURL.Scheme {
	case "https":
		gatewayURL.Scheme = "wss"
	case "http":
		gatewayURL.Scheme = "ws"
	}

	gatewayURL.Path = "/api/v1/push/subscribe"
	q := gatewayURL.Query()
	if token := c.config.Token.Reveal(); token != "" {
		q.Set("token", token)
	}
	gatewayURL.RawQuery = q.Encode()

	return gatewayURL.String(), nil
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Warn("connection failed", "error", err)

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			log.Info("retrying", "delay", sleep)
			select {
			case <-c.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = initialBackoff

		done := make(chan struct{})
		go c.pingPump(done)
		c.readPump()
		close(done)

		c.runningMu.RLock()
		running := c.isRunning
		c.runningMu.RUnlock()
		if !running {
			return
		}
	}
}

func (c *Client) readPump() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", "error", err)
			}
			return
		}

		c.handler(message)
	}
}

func (c *Client) pingPump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return

		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
