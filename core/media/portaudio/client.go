// Package portaudio captures microphone audio through PortAudio. It is
// the fallback input for platforms where the miniaudio backend is not
// available.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/livegal/livegal-core/core/media"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in      []int16
	stopped atomic.Bool
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: failed to initialize: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, media.DefaultSampleRate, bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: failed to open stream: %w", media.ErrDeviceUnavailable)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

// Stream reads capture buffers until the context is cancelled or
// StopStream is called. Blocks; run it on its own goroutine.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("portaudio: failed to start stream: %w", err)
	}
	c.stopped.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.stopped.Load() {
			return nil
		}

		if err := c.stream.Read(); err != nil {
			return fmt.Errorf("portaudio: failed to read from stream: %w", err)
		}

		audioBuffer := bytes.Buffer{}
		binary.Write(&audioBuffer, binary.LittleEndian, c.in)
		onAudio(audioBuffer.Bytes())
	}
}

func (c *Client) StopStream() error {
	c.stopped.Store(true)
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("portaudio: failed to stop stream: %w", err)
	}
	return nil
}

func (c *Client) EncodingInfo() media.EncodingInfo {
	return media.DefaultEncodingInfo()
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}
