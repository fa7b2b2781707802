// Package session orchestrates a live galgame session: it owns the
// capture devices, the transcription channel, the narrative engine and
// the guardian poller, and keeps their independently-paced activity
// consistent through a single event loop.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/livegal/livegal-core/core/events"
	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
	"github.com/livegal/livegal-core/core/vision"
)

const (
	defaultHistoryLimit   = 8
	defaultSpeaker        = "主角"
	defaultBranchSpeaker  = "系统"
	eventQueueDepth       = 128
	historyLineSeparator  = "\n"
	historySpeakerDivider = "："
)

// cueSubstrings mark a transcript line as question-like; any hit
// triggers narrative branch generation.
var cueSubstrings = []string{"?", "？", "吗", "为什么", "怎么"}

func matchesCue(text string) bool {
	for _, cue := range cueSubstrings {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

// Session is the top-level state machine. All session state is mutated
// on the Run loop goroutine; producers on other goroutines only post
// events.
type Session struct {
	mu             sync.Mutex
	state          State
	activeSpeaker  string
	lastTranscript string
	pendingOptions []narrative.Option
	history        []string

	media     *mediaCapture
	channel   *transcriptionChannel
	writer    *typewriter
	narrative *narrativeEngine
	guardian  *guardian

	events    chan events.Event
	closeOnce sync.Once

	runOptions  RunOptions
	baseContext context.Context

	// configuration collected by SessionOptions before wiring
	videoSource         media.VideoSource
	audioSource         media.AudioSource
	transcriptionClient TranscriptionClient
	narrativeClient     NarrativeClient
	classifierClient    ClassifierClient
	guardianPolicy      GuardianPolicy
	initialFacing       media.FacingMode
	revealInterval      time.Duration
	historyLimit        int
}

func New(opts ...SessionOption) *Session {
	s := &Session{
		state:          StateInitializing,
		activeSpeaker:  defaultSpeaker,
		events:         make(chan events.Event, eventQueueDepth),
		baseContext:    context.Background(),
		guardianPolicy: defaultGuardianPolicy(),
		initialFacing:  media.FacingFront,
		revealInterval: defaultRevealInterval,
		historyLimit:   defaultHistoryLimit,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.media = newMediaCapture(s.videoSource, s.audioSource, func(audio []byte) {
		if err := s.channel.SendAudio(audio); err != nil {
			logger.Warn("failed to forward captured audio", "error", err)
		}
	})
	s.channel = newTranscriptionChannel(s.transcriptionClient)
	s.writer = newTypewriter(s.revealInterval)
	s.narrative = newNarrativeEngine(s.narrativeClient)
	s.guardian = newGuardian(s.classifierClient, s.media.CurrentFrame, s.guardianPolicy)

	s.channel.SetEventEmitter(s.Handle)
	s.narrative.SetEventEmitter(s.Handle)

	return s
}

// Run drives the session until the context is cancelled.
//
// Contract: call Run at most once per session instance.
func (s *Session) Run(ctx context.Context, opts ...RunOption) error {
	s.runOptions = RunOptions{}
	for _, opt := range opts {
		opt(&s.runOptions)
	}

	s.baseContext = ctx
	s.wireCallbacks()

	s.setState(StateInitializing)
	if err := s.initialize(ctx); err != nil {
		s.setState(StateError)
		s.invokeDeviceError(err)
	}

	go s.guardian.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case event := <-s.events:
			s.handleEvent(ctx, event)
		}
	}
}

func (s *Session) wireCallbacks() {
	s.writer.SetCallbacks(
		func(visible string) {
			if s.runOptions.onDialogue != nil {
				s.runOptions.onDialogue(visible)
			}
		},
		func(text string) {
			if s.runOptions.onDialogueDone != nil {
				s.runOptions.onDialogueDone(text)
			}
		},
	)
	s.channel.SetStatusCallback(func(status transcription.Status) {
		if s.runOptions.onChannelStatus != nil {
			s.runOptions.onChannelStatus(status)
		}
	})
	s.guardian.SetAlertCallback(func(result vision.Result) {
		// Guardian alerts bypass the session loop, they must never be
		// blocked by narrative state.
		if s.runOptions.onAlert != nil {
			s.runOptions.onAlert(result)
		}
	})
}

// initialize acquires the capture device and opens the transcription
// channel. Device failure is fatal until retried; a channel failure is
// only logged, the socket policy has no auto-reconnect.
func (s *Session) initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "initialize session")
	defer span.End()

	if _, err := s.media.Acquire(ctx, s.initialFacing); err != nil {
		return fmt.Errorf("failed to acquire capture device: %w", err)
	}

	if err := s.channel.Open(ctx, s.media.EncodingInfo()); err != nil {
		logger.Warn("transcription channel unavailable", "error", err)
	}

	s.setState(StateCapturingIdle)
	return nil
}

// Handle posts an event to the run loop. Never blocks the producer; an
// overflowing queue drops the event with a warning.
func (s *Session) Handle(event events.Event) {
	select {
	case s.events <- event:
	default:
		logger.Warn("dropping session event, queue full", "kind", string(event.Kind()))
	}
}

// SelectOption picks a narrative branch by id.
func (s *Session) SelectOption(id string) { s.Handle(events.NewOptionSelected(id)) }

// SwitchCamera flips to the opposite camera facing.
func (s *Session) SwitchCamera() { s.Handle(events.NewCameraSwitchRequested()) }

// DismissAlert clears the guardian warning.
func (s *Session) DismissAlert() { s.Handle(events.NewAlertDismissed()) }

// Retry re-runs device initialization after an error.
func (s *Session) Retry() { s.Handle(events.NewRetryRequested()) }

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.writer.Cancel()
		if err := s.channel.Close(s.baseContext); err != nil {
			logger.Warn("failed to close transcription channel", "error", err)
		}
		s.media.Close()
	})
}

func (s *Session) handleEvent(ctx context.Context, event events.Event) {
	switch typedEvent := event.(type) {
	case events.TranscriptReceived:
		s.handleTranscript(ctx, typedEvent)
	case events.OptionsReceived:
		s.replaceOptions(typedEvent.Options)
	case events.OptionSelected:
		s.handleOptionSelected(ctx, typedEvent)
	case events.BranchResolved:
		s.handleBranchResolved(typedEvent)
	case events.BranchFailed:
		s.handleBranchFailed(typedEvent)
	case events.CameraSwitchRequested:
		s.handleCameraSwitch(ctx)
	case events.AlertDismissed:
		s.guardian.Dismiss()
		if s.runOptions.onAlertDismissed != nil {
			s.runOptions.onAlertDismissed()
		}
	case events.RetryRequested:
		s.handleRetry(ctx)
	}
}

func (s *Session) handleTranscript(ctx context.Context, event events.TranscriptReceived) {
	state := s.State()
	if state == StateInitializing || state == StateError {
		return
	}

	speaker := event.Speaker
	if speaker == "" {
		speaker = defaultSpeaker
	}

	s.mu.Lock()
	s.lastTranscript = event.Text
	s.activeSpeaker = speaker
	s.appendHistoryLocked(speaker, event.Text)
	s.mu.Unlock()

	if state == StateCapturingIdle {
		s.setState(StateListening)
	}

	s.writer.Reveal(event.Text)
	if s.runOptions.onTranscript != nil {
		s.runOptions.onTranscript(event.Text, speaker)
	}
	s.invokeSpeakerChanged(speaker)

	if matchesCue(event.Text) {
		s.triggerBranch(ctx, narrative.Request{
			Prompt:  event.Text,
			History: s.historyContext(),
		})
	}
}

func (s *Session) handleOptionSelected(ctx context.Context, event events.OptionSelected) {
	state := s.State()
	if state != StatePresentingOptions && state != StateListening {
		return
	}

	s.triggerBranch(ctx, narrative.Request{
		Option:  event.ID,
		History: s.historyContext(),
	})
}

// triggerBranch hands a trigger to the narrative engine. Triggers
// arriving while a request is outstanding are coalesced there, so the
// state machine can stay in awaiting_branch.
func (s *Session) triggerBranch(ctx context.Context, request narrative.Request) {
	if !s.narrative.isConfigured() {
		return
	}

	s.narrative.Request(ctx, request)
	s.setState(StateAwaitingBranch)
}

func (s *Session) handleBranchResolved(event events.BranchResolved) {
	reply := event.Reply

	speaker := reply.Speaker
	if speaker == "" {
		speaker = defaultBranchSpeaker
	}

	s.mu.Lock()
	s.activeSpeaker = speaker
	s.appendHistoryLocked(speaker, reply.Text)
	s.mu.Unlock()

	s.writer.Reveal(reply.Text)
	s.invokeSpeakerChanged(speaker)
	s.replaceOptions(reply.Options)

	switch {
	case s.narrative.busy():
		// A coalesced request is still in flight; its outcome decides
		// the next state.
		s.setState(StateAwaitingBranch)
	case len(reply.Options) > 0:
		s.setState(StatePresentingOptions)
	default:
		s.setState(StateListening)
	}
}

// handleBranchFailed resumes listening with dialogue and options
// untouched.
func (s *Session) handleBranchFailed(events.BranchFailed) {
	if s.State() == StateAwaitingBranch && !s.narrative.busy() {
		s.setState(StateListening)
	}
}

func (s *Session) handleCameraSwitch(ctx context.Context) {
	// Device acquisition blocks; keep it off the run loop. Stale
	// results are discarded through the media generation counter.
	go func() {
		handle, err := s.media.SwitchFacing(ctx)
		if err != nil {
			s.invokeDeviceError(err)
			return
		}
		if s.runOptions.onFacingChanged != nil {
			s.runOptions.onFacingChanged(handle.Facing)
		}
	}()
}

func (s *Session) handleRetry(ctx context.Context) {
	if s.State() != StateError {
		return
	}

	s.setState(StateInitializing)
	if err := s.initialize(ctx); err != nil {
		s.setState(StateError)
		s.invokeDeviceError(err)
	}
}

// replaceOptions installs a new option list; nil clears the option UI.
func (s *Session) replaceOptions(options []narrative.Option) {
	if options == nil {
		options = []narrative.Option{}
	}

	s.mu.Lock()
	s.pendingOptions = options
	s.mu.Unlock()

	if s.runOptions.onOptionsChanged != nil {
		s.runOptions.onOptionsChanged(options)
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed && s.runOptions.onStateChanged != nil {
		s.runOptions.onStateChanged(state)
	}
}

// State returns the current state machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) appendHistoryLocked(speaker, text string) {
	s.history = append(s.history, speaker+historySpeakerDivider+text)
	if overflow := len(s.history) - s.historyLimit; overflow > 0 {
		s.history = s.history[overflow:]
	}
}

func (s *Session) historyContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.history, historyLineSeparator)
}

func (s *Session) invokeSpeakerChanged(speaker string) {
	if s.runOptions.onSpeakerChanged != nil {
		s.runOptions.onSpeakerChanged(speaker)
	}
}

func (s *Session) invokeDeviceError(err error) {
	logger.Warn("device error", "error", err)
	if s.runOptions.onDeviceError != nil {
		s.runOptions.onDeviceError(err)
	}
}
