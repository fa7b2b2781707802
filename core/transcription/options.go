// Package transcription defines the option contract shared by
// transcription channel backends.
package transcription

import (
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
)

// Status is the lifecycle state of a transcription connection.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosing    Status = "closing"
	StatusClosed     Status = "closed"
)

type Options struct {
	EncodingInfo media.EncodingInfo

	TranscriptCallback func(text string, speaker string)
	OptionsCallback    func(options []narrative.Option)
	StatusCallback     func(status Status)
}

type Option func(*Options)

// WithEncodingInfo declares the raw audio format the channel will carry.
func WithEncodingInfo(encodingInfo media.EncodingInfo) Option {
	return func(o *Options) { o.EncodingInfo = encodingInfo }
}

// WithTranscriptCallback is invoked for every parsed text event, in
// arrival order.
func WithTranscriptCallback(callback func(text string, speaker string)) Option {
	return func(o *Options) { o.TranscriptCallback = callback }
}

// WithOptionsCallback is invoked when the server pushes a branch option
// list alongside or instead of a transcript.
func WithOptionsCallback(callback func(options []narrative.Option)) Option {
	return func(o *Options) { o.OptionsCallback = callback }
}

// WithStatusCallback reports connection lifecycle transitions.
func WithStatusCallback(callback func(status Status)) Option {
	return func(o *Options) { o.StatusCallback = callback }
}
