package session

import (
	"github.com/jinzhu/copier"
	"github.com/livegal/livegal-core/core/narrative"
)

// Snapshot is a point-in-time copy of the externally visible session
// state, safe to read off the run loop.
type Snapshot struct {
	State          State
	ActiveSpeaker  string
	LastTranscript string
	PendingOptions []narrative.Option
}

// Snapshot copies the visible state under the session lock. The option
// slice is deep copied so the caller cannot race the run loop.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := Snapshot{
		State:          s.state,
		ActiveSpeaker:  s.activeSpeaker,
		LastTranscript: s.lastTranscript,
	}

	if err := copier.CopyWithOption(
		&snapshot.PendingOptions,
		&s.pendingOptions,
		copier.Option{DeepCopy: true},
	); err != nil {
		logger.Warn("failed to copy pending options", "error", err)
	}

	return snapshot
}
