package session

import (
	"context"
	"fmt"

	"github.com/livegal/livegal-core/core/events"
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
)

// transcriptionChannel is the facade over the configured transcription
// client, normalizing optional wiring the way the media facade does.
type transcriptionChannel struct {
	client TranscriptionClient

	emitEvent eventEmitter
	onStatus  func(status transcription.Status)
}

func newTranscriptionChannel(client TranscriptionClient) *transcriptionChannel {
	return &transcriptionChannel{
		client:    client,
		emitEvent: noopEventEmitter,
		onStatus:  func(transcription.Status) {},
	}
}

func (t *transcriptionChannel) isConfigured() bool {
	return t != nil && t.client != nil
}

func (t *transcriptionChannel) SetEventEmitter(emitEvent eventEmitter) {
	if t != nil && emitEvent != nil {
		t.emitEvent = emitEvent
	}
}

func (t *transcriptionChannel) SetStatusCallback(onStatus func(status transcription.Status)) {
	if t != nil && onStatus != nil {
		t.onStatus = onStatus
	}
}

// Open (re)establishes the channel against the active media handle's
// audio. The client tears down any prior connection itself.
func (t *transcriptionChannel) Open(ctx context.Context, encodingInfo media.EncodingInfo) error {
	if !t.isConfigured() {
		return nil
	}

	channelOptions := []transcription.Option{
		transcription.WithEncodingInfo(encodingInfo),
		transcription.WithTranscriptCallback(t.invokeTranscript),
		transcription.WithOptionsCallback(t.invokeOptions),
		transcription.WithStatusCallback(t.invokeStatus),
	}

	if err := t.client.Open(ctx, channelOptions...); err != nil {
		return fmt.Errorf("failed to open transcription channel: %w", err)
	}

	return nil
}

func (t *transcriptionChannel) SendAudio(audio []byte) error {
	if !t.isConfigured() {
		return nil
	}

	return t.client.SendAudio(audio)
}

func (t *transcriptionChannel) Close(ctx context.Context) error {
	if !t.isConfigured() {
		return nil
	}

	switch c := t.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close transcription client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close transcription client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

func (t *transcriptionChannel) invokeTranscript(text, speaker string) {
	t.emitEvent(events.NewTranscriptReceived(text, speaker))
}

func (t *transcriptionChannel) invokeOptions(options []narrative.Option) {
	t.emitEvent(events.NewOptionsReceived(options))
}

func (t *transcriptionChannel) invokeStatus(status transcription.Status) {
	t.onStatus(status)
}
