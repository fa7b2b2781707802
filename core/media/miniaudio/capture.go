// Package miniaudio captures microphone audio through malgo.
package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/livegal/livegal-core/core/media"
)

// Client is a media.AudioSource over the default capture device.
type Client struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	onAudio func(audio []byte)

	mu sync.Mutex
}

func NewClient() (*Client, error) {
	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("miniaudio: failed to initialize context: %w", err)
	}

	client := &Client{audioContext: audioContext}
	if err := client.initDevice(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) initDevice() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(media.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			c.mu.Lock()
			onAudio := c.onAudio
			c.mu.Unlock()
			if onAudio != nil {
				onAudio(pInput[:n])
			}
		},
	})
	if err != nil {
		return fmt.Errorf("miniaudio: failed to initialize capture device: %w", err)
	}

	return nil
}

func (c *Client) Stream(_ context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("miniaudio: device not initialized: %w", media.ErrDeviceUnavailable)
	}
	if c.device.IsStarted() {
		c.onAudio = onAudio
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("miniaudio: failed to start capture device: %w", err)
	}

	c.onAudio = onAudio
	return nil
}

func (c *Client) StopStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("miniaudio: failed to stop capture device: %w", err)
	}

	c.onAudio = nil
	return nil
}

func (c *Client) EncodingInfo() media.EncodingInfo {
	return media.DefaultEncodingInfo()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.onAudio = nil

	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}
