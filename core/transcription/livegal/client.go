// Package livegal streams session audio to the live-galgame server's
// transcription websocket and relays transcript events back.
package livegal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
)

const (
	defaultCadence    = 500 * time.Millisecond
	defaultQueueDepth = 4
)

// Client holds at most one live websocket connection. Opening a new
// connection always tears the previous one down first.
type Client struct {
	url        string
	cadence    time.Duration
	queueDepth int

	mu      sync.Mutex
	conn    *websocket.Conn
	status  transcription.Status
	queue   [][]byte
	cancel  context.CancelFunc
	options transcription.Options

	// connMu serializes websocket writes, the gorilla connection does
	// not allow concurrent writers.
	connMu sync.Mutex
}

type ClientOption func(*Client)

// WithCadence overrides the outbound audio flush cadence.
func WithCadence(cadence time.Duration) ClientOption {
	return func(c *Client) { c.cadence = cadence }
}

// WithQueueDepth overrides the outbound chunk buffer depth.
func WithQueueDepth(depth int) ClientOption {
	return func(c *Client) { c.queueDepth = depth }
}

func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		cadence:    defaultCadence,
		queueDepth: defaultQueueDepth,
		status:     transcription.StatusClosed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open connects to the transcription endpoint. An existing connection
// is closed first, nothing is drained from it.
func (c *Client) Open(ctx context.Context, opts ...transcription.Option) error {
	options := transcription.Options{}
	for _, opt := range opts {
		opt(&options)
	}

	c.teardown()

	c.mu.Lock()
	c.options = options
	c.mu.Unlock()
	c.setStatus(transcription.StatusConnecting)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setStatus(transcription.StatusClosed)
		return fmt.Errorf("failed to open transcription socket: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()
	c.setStatus(transcription.StatusOpen)

	go c.readAndProcessMessages(conn)
	go c.flushAudio(loopCtx, conn)

	return nil
}

// SendAudio queues a captured audio chunk. The queue is bounded, the
// oldest chunk is dropped first when full.
func (c *Client) SendAudio(audio []byte) error {
	chunk := make([]byte, len(audio))
	copy(chunk, audio)

	c.mu.Lock()
	c.queue = append(c.queue, chunk)
	if overflow := len(c.queue) - c.queueDepth; overflow > 0 {
		c.queue = c.queue[overflow:]
	}
	c.mu.Unlock()

	return nil
}

// Status reports the current connection state.
func (c *Client) Status() transcription.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) Close(context.Context) error {
	c.setStatus(transcription.StatusClosing)
	c.teardown()
	c.setStatus(transcription.StatusClosed)
	return nil
}

func (c *Client) teardown() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.conn = nil
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		c.connMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.connMu.Unlock()
		conn.Close()
	}
}

func (c *Client) setStatus(status transcription.Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	callback := c.options.StatusCallback
	c.mu.Unlock()

	if changed && callback != nil {
		callback(status)
	}
}

func (c *Client) readAndProcessMessages(conn *websocket.Conn) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("transcription socket closed", "error", err)
			}
			c.markClosed(conn)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		c.processMessage(msg)
	}
}

// markClosed collapses the connection into the closed state unless a
// newer connection has already replaced it.
func (c *Client) markClosed(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	conn.Close()
	if cancel != nil {
		cancel()
	}
	c.setStatus(transcription.StatusClosed)
}

type serverMessage struct {
	Text    *string            `json:"text"`
	Speaker string             `json:"speaker"`
	Options []narrative.Option `json:"options"`
}

func (c *Client) processMessage(msg []byte) {
	parsed, err := parseServerMessage(msg)
	if err != nil {
		logger.Warn("discarding malformed transcription message", "error", err)
		return
	}

	c.mu.Lock()
	options := c.options
	c.mu.Unlock()

	if parsed.Text != nil && *parsed.Text != "" && options.TranscriptCallback != nil {
		options.TranscriptCallback(*parsed.Text, parsed.Speaker)
	}
	if parsed.Options != nil && options.OptionsCallback != nil {
		options.OptionsCallback(parsed.Options)
	}
}

func parseServerMessage(msg []byte) (serverMessage, error) {
	var parsed serverMessage
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return serverMessage{}, fmt.Errorf("failed to unmarshal transcription message: %w", err)
	}
	return parsed, nil
}

// flushAudio pushes queued chunks as binary frames at a fixed cadence
// while the connection is open.
func (c *Client) flushAudio(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn || c.status != transcription.StatusOpen {
				c.mu.Unlock()
				return
			}
			chunks := c.queue
			c.queue = nil
			c.mu.Unlock()

			for _, chunk := range chunks {
				c.connMu.Lock()
				err := conn.WriteMessage(websocket.BinaryMessage, chunk)
				c.connMu.Unlock()
				if err != nil {
					logger.Warn("failed to write audio chunk", "error", err)
					c.markClosed(conn)
					return
				}
			}
		}
	}
}
