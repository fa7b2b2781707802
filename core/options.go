package session

import (
	"context"
	"time"

	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
	"github.com/livegal/livegal-core/core/vision"
)

type SessionOption func(*Session)

// TranscriptionClient streams session audio out and transcript events
// back in. Close is optional and detected by type switch.
type TranscriptionClient interface {
	Open(ctx context.Context, opts ...transcription.Option) error
	SendAudio(audio []byte) error
}

// NarrativeClient generates story beats for cue or option triggers.
type NarrativeClient interface {
	Generate(ctx context.Context, request narrative.Request) (*narrative.Reply, error)
}

// ClassifierClient classifies an encoded frame.
type ClassifierClient interface {
	Classify(ctx context.Context, image []byte) (*vision.Result, error)
}

func WithVideoSource(source media.VideoSource) SessionOption {
	return func(s *Session) { s.videoSource = source }
}

func WithAudioSource(source media.AudioSource) SessionOption {
	return func(s *Session) { s.audioSource = source }
}

func WithTranscriptionClient(client TranscriptionClient) SessionOption {
	return func(s *Session) { s.transcriptionClient = client }
}

func WithNarrativeClient(client NarrativeClient) SessionOption {
	return func(s *Session) { s.narrativeClient = client }
}

func WithClassifierClient(client ClassifierClient) SessionOption {
	return func(s *Session) { s.classifierClient = client }
}

// WithGuardianPolicy overrides the guardian target class, confidence
// threshold and polling period.
func WithGuardianPolicy(policy GuardianPolicy) SessionOption {
	return func(s *Session) { s.guardianPolicy = policy }
}

// WithInitialFacing sets the camera acquired at startup (default front).
func WithInitialFacing(facing media.FacingMode) SessionOption {
	return func(s *Session) { s.initialFacing = facing }
}

// WithRevealInterval overrides the typewriter cadence (default 32ms).
func WithRevealInterval(interval time.Duration) SessionOption {
	return func(s *Session) { s.revealInterval = interval }
}

// WithHistoryLimit bounds how many dialogue lines are carried as
// context into branch requests (default 8).
func WithHistoryLimit(limit int) SessionOption {
	return func(s *Session) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}
