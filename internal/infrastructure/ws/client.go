// Package ws implements the realtime transport: a websocket client with an
// idempotent connect, a fixed-interval heartbeat, bounded fixed-delay
// reconnection, and a typed publish/subscribe fan-out for inbound frames.
package ws

import (
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/api/metrics"
	"github.com/opsdesk/desk-agent/internal/core/domain"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultReconnectDelay    = 5 * time.Second
	defaultMaxReconnects     = 5
	writeTimeout             = 10 * time.Second
)

// Options configures the realtime client.
type Options struct {
	// Endpoint is the websocket base URL; the bearer token is appended as
	// the final path segment.
	Endpoint string
	// HeartbeatInterval is the keep-alive ping period. Defaults to 30s.
	HeartbeatInterval time.Duration
	// ReconnectDelay is the fixed wait before each reconnection attempt.
	// Deliberately not exponential. Defaults to 5s.
	ReconnectDelay time.Duration
	// MaxReconnects bounds consecutive reconnection attempts. The budget
	// refills only once a connection delivers a frame. Defaults to 5.
	MaxReconnects int
	Log           zerolog.Logger
}

// Client is the single owner of the realtime socket.
type Client struct {
	opts       Options
	dialer     *websocket.Dialer
	emitter    *emitter
	instanceID string

	mu        sync.Mutex
	state     ports.ConnState
	conn      *websocket.Conn
	attempts  int
	gen       uint64 // bumped on Connect/Disconnect to invalidate stale goroutines
	reconnect *time.Timer
	stopBeat  chan struct{}

	// gorilla permits one concurrent writer; wmu serialises data writes.
	wmu sync.Mutex
}

var _ ports.Transport = (*Client)(nil)

// New creates a disconnected client. Call Connect to start the machine.
func New(opts Options) *Client {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = defaultMaxReconnects
	}
	return &Client{
		opts:       opts,
		dialer:     &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		emitter:    newEmitter(opts.Log),
		instanceID: uuid.NewString(),
	}
}

// Connect starts connecting with the given token. A no-op while already
// connected or connecting, so at most one live socket exists per client.
func (c *Client) Connect(token string) {
	c.mu.Lock()
	if c.state == ports.StateConnected || c.state == ports.StateConnecting {
		c.mu.Unlock()
		return
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.state = ports.StateConnecting
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen, token)
}

// Disconnect closes the socket with the normal close code, which suppresses
// reconnection on the peer-observed close. Safe when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	c.teardownLocked()
	if c.state != ports.StateDisconnected {
		c.opts.Log.Info().Str("instance_id", c.instanceID).Msg("realtime disconnected")
	}
	c.state = ports.StateDisconnected
	c.attempts = 0
	c.mu.Unlock()
}

// Send transmits frame when connected. Otherwise the frame is dropped, never
// queued, and domain.ErrNotConnected is returned.
func (c *Client) Send(frame domain.Frame) error {
	if err := c.write(frame); err != nil {
		metrics.FramesDroppedTotal.WithLabelValues("not_connected").Inc()
		c.opts.Log.Warn().
			Str("frame_type", frame.Type).
			Msg("outbound frame dropped: not connected")
		return domain.ErrNotConnected
	}
	return nil
}

// On registers fn for frameType (or domain.FrameAll) and returns its disposer.
func (c *Client) On(frameType string, fn func(domain.Frame)) func() {
	return c.emitter.on(frameType, fn)
}

// State reports the current lifecycle state.
func (c *Client) State() ports.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the socket is currently established.
func (c *Client) IsConnected() bool {
	return c.State() == ports.StateConnected
}

// InstanceID returns the process-lifetime identity of this client. It is
// stable across reconnects and surfaces in the status API and log fields.
func (c *Client) InstanceID() string {
	return c.instanceID
}

func (c *Client) dial(gen uint64, token string) {
	endpoint, err := c.buildURL(token)
	if err != nil {
		c.opts.Log.Error().Err(err).Msg("invalid realtime endpoint")
		c.mu.Lock()
		if gen == c.gen {
			c.state = ports.StateDisconnected
		}
		c.mu.Unlock()
		return
	}

	conn, resp, err := c.dialer.Dial(endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen || c.state != ports.StateConnecting {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.opts.Log.Warn().Err(err).Msg("realtime dial failed")
		c.scheduleReconnect(gen, token)
		return
	}

	c.conn = conn
	c.state = ports.StateConnected
	c.stopBeat = make(chan struct{})
	stop := c.stopBeat
	c.mu.Unlock()

	metrics.ConnectionState.Set(1)
	c.opts.Log.Info().Str("instance_id", c.instanceID).Msg("realtime connected")

	go c.heartbeat(stop)
	go c.readLoop(conn, gen, token)
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64, token string) {
	stable := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			normal := websocket.IsCloseError(err, websocket.CloseNormalClosure)
			c.handleClose(gen, token, normal)
			return
		}

		// A delivered frame proves the connection stable and refills the
		// retry budget. An open that dies before delivering anything keeps
		// burning attempts, so a flapping peer cannot reconnect forever.
		if !stable {
			stable = true
			c.mu.Lock()
			if gen == c.gen {
				c.attempts = 0
			}
			c.mu.Unlock()
		}

		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			metrics.FramesDroppedTotal.WithLabelValues("malformed").Inc()
			c.opts.Log.Debug().Msg("malformed frame dropped")
			continue
		}

		metrics.FramesReceivedTotal.WithLabelValues(frame.Type).Inc()
		c.emitter.emit(frame)
	}
}

func (c *Client) handleClose(gen uint64, token string, normal bool) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	if normal {
		c.state = ports.StateDisconnected
		c.mu.Unlock()
		c.opts.Log.Info().Msg("realtime closed normally")
		return
	}
	c.mu.Unlock()
	c.scheduleReconnect(gen, token)
}

func (c *Client) scheduleReconnect(gen uint64, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.teardownLocked()

	if c.attempts >= c.opts.MaxReconnects {
		c.state = ports.StateDisconnected
		c.opts.Log.Warn().
			Int("attempts", c.attempts).
			Msg("reconnect attempts exhausted, giving up")
		return
	}

	c.attempts++
	c.state = ports.StateReconnecting
	metrics.ReconnectsTotal.Inc()
	c.opts.Log.Info().
		Int("attempt", c.attempts).
		Dur("delay", c.opts.ReconnectDelay).
		Msg("scheduling reconnect")

	c.reconnect = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.mu.Lock()
		if gen != c.gen || c.state != ports.StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.state = ports.StateConnecting
		c.mu.Unlock()
		c.dial(gen, token)
	})
}

func (c *Client) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Keep-alive failures are swallowed; the read loop notices a
			// dead socket and drives reconnection.
			if err := c.write(domain.Frame{Type: domain.FramePing}); err != nil {
				c.opts.Log.Debug().Err(err).Msg("heartbeat send failed")
			}
		}
	}
}

func (c *Client) write(frame domain.Frame) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == ports.StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return domain.ErrNotConnected
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}

// teardownLocked stops the heartbeat and releases the socket. Caller holds mu.
func (c *Client) teardownLocked() {
	if c.stopBeat != nil {
		close(c.stopBeat)
		c.stopBeat = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	metrics.ConnectionState.Set(0)
}

func (c *Client) buildURL(token string) (string, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(token)
	return u.String(), nil
}
