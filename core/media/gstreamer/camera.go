// Package gstreamer captures camera frames through a GStreamer pipeline.
package gstreamer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/livegal/livegal-core/core/media"
)

const defaultStartTimeout = 5 * time.Second

// Camera is a media.VideoSource backed by v4l2 devices, one per facing
// mode. Open builds a fresh pipeline per acquisition; the returned
// track keeps only the most recent decoded frame.
type Camera struct {
	devices map[media.FacingMode]string
	width   int
	height  int
	fps     int

	initOnce sync.Once
}

type CameraOption func(*Camera)

// WithResolution overrides the capture resolution (default 1280x720).
func WithResolution(width, height int) CameraOption {
	return func(c *Camera) {
		c.width = width
		c.height = height
	}
}

// WithFramerate overrides the capture framerate (default 15).
func WithFramerate(fps int) CameraOption {
	return func(c *Camera) { c.fps = fps }
}

func NewCamera(devices map[media.FacingMode]string, opts ...CameraOption) (*Camera, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("gstreamer: at least one camera device is required")
	}

	c := &Camera{
		devices: devices,
		width:   1280,
		height:  720,
		fps:     15,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Camera) Open(ctx context.Context, facing media.FacingMode) (media.VideoTrack, error) {
	device, ok := c.devices[facing]
	if !ok {
		return nil, fmt.Errorf("gstreamer: no device configured for facing %q: %w",
			facing, media.ErrDeviceUnavailable)
	}

	c.initOnce.Do(func() { gst.Init(nil) })

	description := fmt.Sprintf(
		"v4l2src device=%s ! videoconvert ! videoscale ! "+
			"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1 ! "+
			"appsink name=sink sync=false max-buffers=1 drop=true",
		device, c.width, c.height, c.fps,
	)

	pipeline, err := gst.NewPipelineFromString(description)
	if err != nil {
		return nil, fmt.Errorf("gstreamer: failed to build pipeline for %s: %w", device, err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, fmt.Errorf("gstreamer: failed to find appsink: %w", err)
	}
	sink := app.SinkFromElement(sinkElement)

	track := &cameraTrack{pipeline: pipeline, width: c.width, height: c.height}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: track.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, classifyDeviceError(device, err)
	}

	if err := awaitPlaying(ctx, pipeline); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, classifyDeviceError(device, err)
	}

	logger.Info("camera opened", "device", device, "facing", string(facing))
	return track, nil
}

// classifyDeviceError maps pipeline startup failures onto the device
// error taxonomy. v4l2 reports EACCES in the message text, that is the
// only signal we get through the bus.
func classifyDeviceError(device string, err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "permission") {
		return fmt.Errorf("gstreamer: cannot open %s: %w", device, media.ErrPermissionDenied)
	}
	return fmt.Errorf("gstreamer: cannot open %s: %v: %w", device, err, media.ErrDeviceUnavailable)
}

func awaitPlaying(ctx context.Context, pipeline *gst.Pipeline) error {
	timeout := defaultStartTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	bus := pipeline.GetPipelineBus()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("pipeline did not reach playing state within %s", timeout)
		}

		msg := bus.TimedPop(remaining)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			return msg.ParseError()
		case gst.MessageStateChanged:
			if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
				return nil
			}
		}
	}
}

type cameraTrack struct {
	pipeline *gst.Pipeline
	width    int
	height   int

	mu      sync.Mutex
	latest  *media.Frame
	seq     uint64
	stopped atomic.Bool
}

func (t *cameraTrack) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	// GStreamer reuses the buffer after the callback returns.
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	t.mu.Lock()
	t.seq++
	t.latest = &media.Frame{
		Seq:       t.seq,
		Timestamp: time.Now(),
		Width:     t.width,
		Height:    t.height,
		Data:      frameData,
	}
	t.mu.Unlock()

	return gst.FlowOK
}

func (t *cameraTrack) Frame() (media.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.latest == nil {
		return media.Frame{}, fmt.Errorf("gstreamer: no frame decoded yet")
	}
	return *t.latest, nil
}

func (t *cameraTrack) Stop() error {
	if !t.stopped.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("gstreamer: failed to stop pipeline: %w", err)
	}
	return nil
}
