// Package deepgram is an alternative transcription backend speaking
// Deepgram's streaming protocol. It only surfaces finalized utterances;
// branch options never arrive on this channel.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/transcription"
)

const listenURL = "wss://api.deepgram.com/v1/listen"

type Client struct {
	language string

	mu      sync.Mutex
	conn    *websocket.Conn
	options transcription.Options

	accumulated string
}

type ClientOption func(*Client)

// WithLanguage sets the transcription language (default zh-CN, matching
// the session dialogue).
func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{language: "zh-CN"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Open(ctx context.Context, opts ...transcription.Option) error {
	options := transcription.Options{EncodingInfo: media.DefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	if err := c.Close(ctx); err != nil {
		return err
	}

	conn, err := c.connect(ctx, options.EncodingInfo)
	if err != nil {
		if options.StatusCallback != nil {
			options.StatusCallback(transcription.StatusClosed)
		}
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.options = options
	c.accumulated = ""
	c.mu.Unlock()

	if options.StatusCallback != nil {
		options.StatusCallback(transcription.StatusOpen)
	}

	go c.readAndProcessMessages(conn, options)
	return nil
}

func (c *Client) connect(ctx context.Context, encodingInfo media.EncodingInfo) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	listen, _ := url.Parse(listenURL)
	queryParams := listen.Query()
	queryParams.Set("encoding", string(encodingInfo.Format))
	queryParams.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	listen.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listen.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (c *Client) SendAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (c *Client) Close(context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return conn.Close()
}

func (c *Client) readAndProcessMessages(conn *websocket.Conn, options transcription.Options) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("deepgram socket closed", "error", err)
			}

			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()

			if options.StatusCallback != nil {
				options.StatusCallback(transcription.StatusClosed)
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		c.processMessage(msg, options)
	}
}

func (c *Client) processMessage(msg []byte, options transcription.Options) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("discarding malformed deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("discarding malformed deepgram message", "error", err)
			return
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if len(transcript) > 0 {
			c.mu.Lock()
			c.accumulated += " " + transcript
			c.mu.Unlock()
		}
		if msgResp.SpeechFinal {
			c.flushUtterance(options)
		}

	case api.TypeUtteranceEndResponse:
		c.flushUtterance(options)
	}
}

func (c *Client) flushUtterance(options transcription.Options) {
	c.mu.Lock()
	utterance := strings.TrimSpace(c.accumulated)
	c.accumulated = ""
	c.mu.Unlock()

	if len(utterance) > 0 && options.TranscriptCallback != nil {
		options.TranscriptCallback(utterance, "")
	}
}
