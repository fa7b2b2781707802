package events

import "github.com/livegal/livegal-core/core/narrative"

const (
	// KindTranscriptReceived identifies a finalized transcript line.
	KindTranscriptReceived Kind = "transcript.received"
	// KindOptionsReceived identifies a branch option list pushed by the
	// transcription channel.
	KindOptionsReceived Kind = "transcript.options_received"
)

// TranscriptReceived carries one transcript line in arrival order.
type TranscriptReceived struct {
	Base
	Text    string
	Speaker string
}

// NewTranscriptReceived creates a transcript line event.
func NewTranscriptReceived(text, speaker string) TranscriptReceived {
	return TranscriptReceived{Base: NewBase(KindTranscriptReceived), Text: text, Speaker: speaker}
}

// OptionsReceived carries a replacement branch option list.
type OptionsReceived struct {
	Base
	Options []narrative.Option
}

// NewOptionsReceived creates an option list event.
func NewOptionsReceived(options []narrative.Option) OptionsReceived {
	return OptionsReceived{Base: NewBase(KindOptionsReceived), Options: options}
}
