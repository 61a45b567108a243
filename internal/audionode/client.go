// Package audionode maintains the control/event channel to the remote
// audio-processing node. One client serves every guild: commands are
// multiplexed by guild key and the node's event stream is demultiplexed
// again at the consumption point.
package audionode

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
	"groovekeeper/pkg/retrylimit"
)

const eventBuffer = 256

// Config describes one node endpoint.
type Config struct {
	Addr       string // host:port
	Password   string
	Secure     bool
	UserID     string // bot user ID, sent on the handshake
	ClientName string
}

// Client owns exactly one websocket to the node. Commands are
// fire-and-forget: while the connection is down they are dropped and no
// history is kept — sessions re-issue their current track after the
// reconnect event.
type Client struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	events chan player.NodeEvent
}

// New creates a client. Run must be called before commands reach the node.
func New(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		log:    log.With().Str("component", "audionode").Str("addr", cfg.Addr).Logger(),
		events: make(chan player.NodeEvent, eventBuffer),
	}
}

// Events returns the node's event stream. The channel closes when Run
// returns.
func (c *Client) Events() <-chan player.NodeEvent {
	return c.events
}

// Connected reports whether the control channel is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run connects to the node and keeps the connection alive until ctx is
// done, reconnecting with backoff. Every successful (re)connect emits
// NodeReconnected; every drop emits NodeDisconnected.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	retry := retrylimit.DefaultRetryConfig()
	retry.OnRetry = func(attempt int, err error) {
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("node dial failed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := retrylimit.WithRetry(ctx, retry, func() error {
			return c.dial(ctx)
		}); err != nil {
			return err
		}

		c.log.Info().Msg("node connected")
		c.emit(player.NodeEvent{Type: player.NodeReconnected})

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		err := c.readLoop(ctx, conn)
		c.teardown()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("node connection lost")
		c.emit(player.NodeEvent{Type: player.NodeDisconnected})
	}
}

func (c *Client) dial(ctx context.Context) error {
	scheme := "ws"
	if c.cfg.Secure {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s/v4/websocket", scheme, c.cfg.Addr)

	headers := http.Header{}
	headers.Set("Authorization", c.cfg.Password)
	headers.Set("User-Id", c.cfg.UserID)
	headers.Set("Client-Name", c.cfg.ClientName)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the context is torn down.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, ok, err := decodeEvent(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable node message")
			continue
		}
		if ok {
			c.emit(ev)
		}
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// emit never blocks; a full buffer drops the event with a log line, the
// same way the node itself treats a slow consumer.
func (c *Client) emit(ev player.NodeEvent) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn().Stringer("type", ev.Type).Str("guild", ev.GuildID).Msg("event buffer full, dropping node event")
	}
}

// submit serializes one write to the node.
func (c *Client) submit(payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		c.log.Debug().Msg("node down, dropping command")
		return
	}
	if err := c.conn.WriteJSON(payload); err != nil {
		c.log.Warn().Err(err).Msg("node write failed")
	}
}

// PlayTrack implements player.Node.
func (c *Client) PlayTrack(guildID string, t player.Track, positionMS int64, generation uint64) {
	c.submit(playPayload{
		Op:         "play",
		GuildID:    guildID,
		Track:      encodeTrack(t),
		PositionMS: positionMS,
		Generation: generation,
	})
}

// SetPaused implements player.Node.
func (c *Client) SetPaused(guildID string, paused bool, generation uint64) {
	c.submit(pausePayload{Op: "pause", GuildID: guildID, Pause: paused, Generation: generation})
}

// SetVolume implements player.Node.
func (c *Client) SetVolume(guildID string, volume int, generation uint64) {
	c.submit(volumePayload{Op: "volume", GuildID: guildID, Volume: volume, Generation: generation})
}

// StopPlayback implements player.Node.
func (c *Client) StopPlayback(guildID string, generation uint64) {
	c.submit(stopPayload{Op: "stop", GuildID: guildID, Generation: generation})
}
