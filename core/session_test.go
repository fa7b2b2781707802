package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/livegal/livegal-core/core/media"
	"github.com/livegal/livegal-core/core/narrative"
	"github.com/livegal/livegal-core/core/transcription"
)

// stubTranscriptionClient records the wiring a session applies on Open
// and lets tests inject server-side events.
type stubTranscriptionClient struct {
	mu      sync.Mutex
	options transcription.Options
	audio   [][]byte
	opened  int
	closed  int
}

func (c *stubTranscriptionClient) Open(_ context.Context, opts ...transcription.Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.options = transcription.Options{}
	for _, opt := range opts {
		opt(&c.options)
	}
	c.opened++
	return nil
}

func (c *stubTranscriptionClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = append(c.audio, audio)
	return nil
}

func (c *stubTranscriptionClient) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *stubTranscriptionClient) pushTranscript(text, speaker string) {
	c.mu.Lock()
	callback := c.options.TranscriptCallback
	c.mu.Unlock()
	if callback != nil {
		callback(text, speaker)
	}
}

func (c *stubTranscriptionClient) pushOptions(options []narrative.Option) {
	c.mu.Lock()
	callback := c.options.OptionsCallback
	c.mu.Unlock()
	if callback != nil {
		callback(options)
	}
}

type sessionFixture struct {
	session    *Session
	video      *stubVideoSource
	channel    *stubTranscriptionClient
	narrative  *stubNarrativeClient
	cancel     context.CancelFunc
	runStopped chan struct{}

	mu          sync.Mutex
	states      []State
	transcripts []string
	speakers    []string
	dialogue    []string
	done        []string
	optionSets  [][]narrative.Option
}

func startSession(t *testing.T, reply *narrative.Reply, err error) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		video:      &stubVideoSource{},
		channel:    &stubTranscriptionClient{},
		narrative:  newStubNarrativeClient(reply, err),
		runStopped: make(chan struct{}),
	}

	f.session = New(
		WithVideoSource(f.video),
		WithTranscriptionClient(f.channel),
		WithNarrativeClient(f.narrative),
		WithRevealInterval(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	go func() {
		f.session.Run(ctx,
			WithStateChangedCallback(func(state State) {
				f.mu.Lock()
				f.states = append(f.states, state)
				f.mu.Unlock()
			}),
			WithTranscriptCallback(func(text, speaker string) {
				f.mu.Lock()
				f.transcripts = append(f.transcripts, text)
				f.mu.Unlock()
			}),
			WithSpeakerChangedCallback(func(speaker string) {
				f.mu.Lock()
				f.speakers = append(f.speakers, speaker)
				f.mu.Unlock()
			}),
			WithDialogueCallback(func(visible string) {
				f.mu.Lock()
				f.dialogue = append(f.dialogue, visible)
				f.mu.Unlock()
			}),
			WithDialogueDoneCallback(func(text string) {
				f.mu.Lock()
				f.done = append(f.done, text)
				f.mu.Unlock()
			}),
			WithOptionsChangedCallback(func(options []narrative.Option) {
				f.mu.Lock()
				f.optionSets = append(f.optionSets, options)
				f.mu.Unlock()
			}),
		)
		close(f.runStopped)
	}()

	f.awaitState(t, StateCapturingIdle)
	t.Cleanup(func() {
		cancel()
		<-f.runStopped
	})
	return f
}

func awaitSessionState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, stuck in %s", want, s.State())
}

func (f *sessionFixture) awaitState(t *testing.T, want State) {
	t.Helper()
	awaitSessionState(t, f.session, want)
}

func (f *sessionFixture) await(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		ok := condition()
		f.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

func TestSessionQuestionCueTriggersBranch(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "回答"}, nil)

	f.channel.pushTranscript("你是谁吗？", "")
	f.awaitState(t, StateAwaitingBranch)

	f.narrative.release <- struct{}{}
	f.awaitState(t, StateListening)

	requests := f.narrative.recorded()
	if len(requests) != 1 {
		t.Fatalf("expected exactly one branch request, got %d", len(requests))
	}
	if requests[0].Prompt != "你是谁吗？" {
		t.Fatalf("expected cue transcript as prompt, got %q", requests[0].Prompt)
	}
}

func TestSessionPlainTranscriptDoesNotTriggerBranch(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "回答"}, nil)

	f.channel.pushTranscript("你好", "")
	f.awaitState(t, StateListening)

	f.await(t, "transcript delivery", func() bool { return len(f.transcripts) == 1 })

	if requests := f.narrative.recorded(); len(requests) != 0 {
		t.Fatalf("expected no branch request for a plain transcript, got %d", len(requests))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transcripts[0] != "你好" {
		t.Fatalf("expected transcript %q, got %q", "你好", f.transcripts[0])
	}
	if f.speakers[0] != "主角" {
		t.Fatalf("expected default speaker 主角, got %q", f.speakers[0])
	}
}

func TestSessionBranchReplyRoundTrip(t *testing.T) {
	reply := &narrative.Reply{
		Text:    "你好",
		Speaker: "同伴",
		Options: []narrative.Option{{ID: "1", Text: "继续"}},
	}
	f := startSession(t, reply, nil)

	f.channel.pushTranscript("为什么", "")
	f.awaitState(t, StateAwaitingBranch)

	f.narrative.release <- struct{}{}
	f.awaitState(t, StatePresentingOptions)

	f.await(t, "revealed reply", func() bool {
		return len(f.done) > 0 && f.done[len(f.done)-1] == "你好"
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakers[len(f.speakers)-1] != "同伴" {
		t.Fatalf("expected reply speaker 同伴, got %q", f.speakers[len(f.speakers)-1])
	}
	options := f.optionSets[len(f.optionSets)-1]
	if len(options) != 1 || options[0].ID != "1" || options[0].Text != "继续" {
		t.Fatalf("unexpected presented options: %+v", options)
	}

	snapshot := f.session.Snapshot()
	if snapshot.State != StatePresentingOptions || snapshot.ActiveSpeaker != "同伴" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestSessionOptionSelectionTriggersBranch(t *testing.T) {
	reply := &narrative.Reply{
		Text:    "分支",
		Speaker: "系统",
		Options: []narrative.Option{{ID: "2", Text: "再来"}},
	}
	f := startSession(t, reply, nil)

	f.channel.pushTranscript("怎么办", "")
	f.awaitState(t, StateAwaitingBranch)
	f.narrative.release <- struct{}{}
	f.awaitState(t, StatePresentingOptions)

	f.session.SelectOption("2")
	f.awaitState(t, StateAwaitingBranch)
	f.narrative.release <- struct{}{}
	f.awaitState(t, StatePresentingOptions)

	requests := f.narrative.recorded()
	if len(requests) != 2 {
		t.Fatalf("expected 2 branch requests, got %d", len(requests))
	}
	if requests[1].Option != "2" {
		t.Fatalf("expected selected option id in request, got %q", requests[1].Option)
	}
	if requests[1].History == "" {
		t.Fatalf("expected dialogue history to be carried into the request")
	}
}

func TestSessionBranchFailureKeepsDialogue(t *testing.T) {
	f := startSession(t, nil, context.DeadlineExceeded)

	f.channel.pushTranscript("为什么会这样？", "旁白")
	f.awaitState(t, StateAwaitingBranch)

	f.narrative.release <- struct{}{}
	f.awaitState(t, StateListening)

	snapshot := f.session.Snapshot()
	if snapshot.LastTranscript != "为什么会这样？" {
		t.Fatalf("expected transcript preserved after failure, got %q", snapshot.LastTranscript)
	}
	if snapshot.ActiveSpeaker != "旁白" {
		t.Fatalf("expected speaker preserved after failure, got %q", snapshot.ActiveSpeaker)
	}
}

func TestSessionChannelOptionsReplacePending(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "beat"}, nil)

	f.channel.pushTranscript("你好", "")
	f.awaitState(t, StateListening)

	f.channel.pushOptions([]narrative.Option{{ID: "a", Text: "前进"}, {ID: "b", Text: "后退"}})
	f.await(t, "pushed options", func() bool { return len(f.optionSets) > 0 })

	snapshot := f.session.Snapshot()
	if len(snapshot.PendingOptions) != 2 {
		t.Fatalf("expected 2 pending options, got %d", len(snapshot.PendingOptions))
	}

	f.channel.pushOptions(nil)
	f.await(t, "cleared options", func() bool {
		return len(f.optionSets) > 1 && len(f.optionSets[len(f.optionSets)-1]) == 0
	})

	if snapshot := f.session.Snapshot(); len(snapshot.PendingOptions) != 0 {
		t.Fatalf("expected options cleared, got %d", len(snapshot.PendingOptions))
	}
}

func TestSessionCameraSwitchFlipsFacing(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "beat"}, nil)

	f.session.SwitchCamera()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if facing, ok := f.session.media.Facing(); ok && facing == media.FacingBack {
			return
		}
		time.Sleep(time.Millisecond)
	}
	facing, _ := f.session.media.Facing()
	t.Fatalf("expected back facing after switch, got %s", facing)
}

// flakyVideoSource fails a configured number of acquisitions before
// delegating to the plain stub.
type flakyVideoSource struct {
	mu       sync.Mutex
	failures int
	inner    stubVideoSource
}

func (s *flakyVideoSource) Open(ctx context.Context, facing media.FacingMode) (media.VideoTrack, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return nil, media.ErrPermissionDenied
	}
	s.mu.Unlock()
	return s.inner.Open(ctx, facing)
}

func TestSessionDeviceFailureEntersErrorAndRetryRecovers(t *testing.T) {
	source := &flakyVideoSource{failures: 1}
	channel := &stubTranscriptionClient{}
	s := New(
		WithVideoSource(source),
		WithTranscriptionClient(channel),
		WithRevealInterval(time.Millisecond),
	)

	var (
		mu         sync.Mutex
		deviceErrs []error
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx,
			WithDeviceErrorCallback(func(err error) {
				mu.Lock()
				deviceErrs = append(deviceErrs, err)
				mu.Unlock()
			}),
		)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	awaitSessionState(t, s, StateError)

	mu.Lock()
	if len(deviceErrs) != 1 {
		mu.Unlock()
		t.Fatalf("expected exactly one device error, got %d", len(deviceErrs))
	}
	if !errors.Is(deviceErrs[0], media.ErrPermissionDenied) {
		mu.Unlock()
		t.Fatalf("expected ErrPermissionDenied, got %v", deviceErrs[0])
	}
	mu.Unlock()

	s.Retry()
	awaitSessionState(t, s, StateCapturingIdle)

	channel.mu.Lock()
	defer channel.mu.Unlock()
	if channel.opened != 1 {
		t.Fatalf("expected the channel opened once after recovery, got %d", channel.opened)
	}
}

func TestSessionStaysAwaitingWhileCoalescedRequestRuns(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "beat"}, nil)

	f.channel.pushTranscript("为什么", "")
	f.awaitState(t, StateAwaitingBranch)

	f.channel.pushTranscript("怎么办", "")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.session.narrative.mu.Lock()
		queued := f.session.narrative.pending != nil
		f.session.narrative.mu.Unlock()
		if queued {
			break
		}
		time.Sleep(time.Millisecond)
	}

	f.narrative.release <- struct{}{}
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(f.narrative.recorded()) == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if state := f.session.State(); state != StateAwaitingBranch {
		t.Fatalf("expected awaiting_branch while the coalesced request runs, got %s", state)
	}

	f.narrative.release <- struct{}{}
	f.awaitState(t, StateListening)

	requests := f.narrative.recorded()
	if len(requests) != 2 {
		t.Fatalf("expected 2 branch requests, got %d", len(requests))
	}
	if requests[1].Prompt != "怎么办" {
		t.Fatalf("expected the coalesced request to carry the newest prompt, got %q", requests[1].Prompt)
	}
}

func TestSessionCloseShutsDownChannel(t *testing.T) {
	f := startSession(t, &narrative.Reply{Text: "beat"}, nil)

	f.cancel()
	select {
	case <-f.runStopped:
	case <-time.After(time.Second):
		t.Fatalf("run loop did not stop after cancellation")
	}

	f.channel.mu.Lock()
	defer f.channel.mu.Unlock()
	if f.channel.closed != 1 {
		t.Fatalf("expected the transcription client to be closed once, got %d", f.channel.closed)
	}
}
