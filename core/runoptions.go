package session

import (
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
	"github.com/livegal/livegal-core/core/vision"
)

// RunOptions carry the UI-facing callbacks for one Run call. All
// callbacks are optional.
type RunOptions struct {
	onStateChanged   func(state State)
	onTranscript     func(text, speaker string)
	onDialogue       func(visible string)
	onDialogueDone   func(text string)
	onSpeakerChanged func(speaker string)
	onOptionsChanged func(options []narrative.Option)
	onAlert          func(result vision.Result)
	onAlertDismissed func()
	onChannelStatus  func(status transcription.Status)
	onDeviceError    func(err error)
	onFacingChanged  func(facing media.FacingMode)
}

type RunOption func(*RunOptions)

// WithStateChangedCallback reports every state machine transition.
func WithStateChangedCallback(callback func(state State)) RunOption {
	return func(o *RunOptions) { o.onStateChanged = callback }
}

// WithTranscriptCallback reports transcript lines in arrival order.
func WithTranscriptCallback(callback func(text, speaker string)) RunOption {
	return func(o *RunOptions) { o.onTranscript = callback }
}

// WithDialogueCallback reports the partially revealed dialogue text.
func WithDialogueCallback(callback func(visible string)) RunOption {
	return func(o *RunOptions) { o.onDialogue = callback }
}

// WithDialogueDoneCallback reports a fully revealed dialogue line.
func WithDialogueDoneCallback(callback func(text string)) RunOption {
	return func(o *RunOptions) { o.onDialogueDone = callback }
}

// WithSpeakerChangedCallback reports the active speaker name.
func WithSpeakerChangedCallback(callback func(speaker string)) RunOption {
	return func(o *RunOptions) { o.onSpeakerChanged = callback }
}

// WithOptionsChangedCallback reports replacement of the option list. An
// empty list clears the option UI.
func WithOptionsChangedCallback(callback func(options []narrative.Option)) RunOption {
	return func(o *RunOptions) { o.onOptionsChanged = callback }
}

// WithAlertCallback reports guardian alerts, independent of session
// state.
func WithAlertCallback(callback func(result vision.Result)) RunOption {
	return func(o *RunOptions) { o.onAlert = callback }
}

// WithAlertDismissedCallback reports that a guardian warning was
// dismissed.
func WithAlertDismissedCallback(callback func()) RunOption {
	return func(o *RunOptions) { o.onAlertDismissed = callback }
}

// WithChannelStatusCallback reports transcription connection state.
func WithChannelStatusCallback(callback func(status transcription.Status)) RunOption {
	return func(o *RunOptions) { o.onChannelStatus = callback }
}

// WithDeviceErrorCallback reports device failures, including rejected
// re-entrant camera switches.
func WithDeviceErrorCallback(callback func(err error)) RunOption {
	return func(o *RunOptions) { o.onDeviceError = callback }
}

// WithFacingChangedCallback reports a completed camera switch.
func WithFacingChangedCallback(callback func(facing media.FacingMode)) RunOption {
	return func(o *RunOptions) { o.onFacingChanged = callback }
}
