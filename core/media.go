package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/livegal/livegal-core/core/media"
)

// MediaHandle is one successful device acquisition. Generation strictly
// increases across acquisitions; stale async results are discarded by
// comparing against the manager's current generation.
type MediaHandle struct {
	Facing     media.FacingMode
	Generation uint64

	video media.VideoTrack
}

// mediaCapture owns the capture device pair. The video track is
// exclusive to the active handle; the audio source is a single
// microphone shared across facings, restarted per acquisition.
type mediaCapture struct {
	video media.VideoSource
	audio media.AudioSource

	mu         sync.Mutex
	handle     *MediaHandle
	generation uint64

	switching     atomic.Bool
	audioStreamed atomic.Bool

	onAudio func(audio []byte)
}

func newMediaCapture(video media.VideoSource, audio media.AudioSource, onAudio func(audio []byte)) *mediaCapture {
	if onAudio == nil {
		onAudio = func([]byte) {}
	}
	return &mediaCapture{video: video, audio: audio, onAudio: onAudio}
}

// Acquire opens the camera for the given facing mode. On failure the
// prior handle stays intact; on success the prior handle's tracks are
// stopped before the new one becomes active.
func (m *mediaCapture) Acquire(ctx context.Context, facing media.FacingMode) (*MediaHandle, error) {
	if m == nil || m.video == nil {
		return nil, fmt.Errorf("no video source configured: %w", media.ErrDeviceUnavailable)
	}

	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.mu.Unlock()

	track, err := m.video.Open(ctx, facing)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s camera: %w", facing, err)
	}

	m.mu.Lock()
	if generation != m.generation {
		// A newer acquisition or release superseded this one while the
		// device was opening.
		m.mu.Unlock()
		if stopErr := track.Stop(); stopErr != nil {
			logger.Warn("failed to stop superseded video track", "error", stopErr)
		}
		return nil, fmt.Errorf("acquisition superseded: %w", media.ErrDeviceUnavailable)
	}

	previous := m.handle
	handle := &MediaHandle{Facing: facing, Generation: generation, video: track}
	m.handle = handle
	m.mu.Unlock()

	if previous != nil {
		if err := previous.video.Stop(); err != nil {
			logger.Warn("failed to stop previous video track", "error", err)
		}
	}

	m.startAudio(ctx)
	return handle, nil
}

// SwitchFacing flips to the opposite camera. Re-entrant calls are
// rejected rather than interleaved.
func (m *mediaCapture) SwitchFacing(ctx context.Context) (*MediaHandle, error) {
	if !m.switching.CompareAndSwap(false, true) {
		return nil, ErrSwitchInProgress
	}
	defer m.switching.Store(false)

	m.mu.Lock()
	facing := media.FacingFront
	if m.handle != nil {
		facing = m.handle.Facing.Opposite()
	}
	m.mu.Unlock()

	return m.Acquire(ctx, facing)
}

// Release stops every held track. Bumping the generation here discards
// the result of any in-flight acquisition once it resolves.
func (m *mediaCapture) Release() {
	m.mu.Lock()
	m.generation++
	handle := m.handle
	m.handle = nil
	m.mu.Unlock()

	if handle != nil {
		if err := handle.video.Stop(); err != nil {
			logger.Warn("failed to stop video track", "error", err)
		}
	}

	m.stopAudio()
}

// CurrentFrame snapshots the active video at native resolution.
func (m *mediaCapture) CurrentFrame() (media.Frame, error) {
	m.mu.Lock()
	handle := m.handle
	m.mu.Unlock()

	if handle == nil {
		return media.Frame{}, ErrNoActiveVideo
	}

	frame, err := handle.video.Frame()
	if err != nil {
		return media.Frame{}, fmt.Errorf("%w: %v", ErrNoActiveVideo, err)
	}
	return frame, nil
}

// Facing reports the active facing mode, if any.
func (m *mediaCapture) Facing() (media.FacingMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handle == nil {
		return "", false
	}
	return m.handle.Facing, true
}

func (m *mediaCapture) EncodingInfo() media.EncodingInfo {
	if m == nil || m.audio == nil {
		return media.DefaultEncodingInfo()
	}
	return m.audio.EncodingInfo()
}

func (m *mediaCapture) startAudio(ctx context.Context) {
	if m.audio == nil {
		return
	}
	if !m.audioStreamed.CompareAndSwap(false, true) {
		return
	}

	go func() {
		if err := m.audio.Stream(ctx, m.onAudio); err != nil {
			m.audioStreamed.Store(false)
			logger.Warn("failed to stream audio input", "error", err)
		}
	}()
}

func (m *mediaCapture) stopAudio() {
	if m.audio == nil {
		return
	}
	if !m.audioStreamed.CompareAndSwap(true, false) {
		return
	}

	if err := m.audio.StopStream(); err != nil {
		logger.Warn("failed to stop audio input", "error", err)
	}
}

func (m *mediaCapture) Close() {
	m.Release()
	if m.audio != nil {
		m.audio.Close()
	}
}
