package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/livegal/livegal-core/core/events"
	"github.com/livegal/livegal-core/core/narrative"
)

// narrativeEngine serializes branch generation: at most one request is
// in flight, and a trigger arriving meanwhile replaces the single
// pending slot instead of issuing a parallel call. The newest intent is
// never dropped, only older pending ones.
type narrativeEngine struct {
	client NarrativeClient

	mu       sync.Mutex
	inFlight bool
	pending  *narrative.Request

	emitEvent eventEmitter
}

func newNarrativeEngine(client NarrativeClient) *narrativeEngine {
	return &narrativeEngine{
		client:    client,
		emitEvent: noopEventEmitter,
	}
}

func (n *narrativeEngine) isConfigured() bool {
	return n != nil && n.client != nil
}

func (n *narrativeEngine) SetEventEmitter(emitEvent eventEmitter) {
	if n != nil && emitEvent != nil {
		n.emitEvent = emitEvent
	}
}

// Request triggers branch generation, coalescing with any in-flight
// call. Returns immediately; the outcome arrives as a branch event.
func (n *narrativeEngine) Request(ctx context.Context, request narrative.Request) {
	if !n.isConfigured() {
		return
	}

	n.mu.Lock()
	if n.inFlight {
		n.pending = &request
		n.mu.Unlock()
		return
	}
	n.inFlight = true
	n.mu.Unlock()

	go n.issue(ctx, request)
}

// busy reports whether a request is still outstanding. The issue loop
// clears inFlight before emitting the final outcome event, so a busy
// engine observed while handling a branch event always means another
// outcome is coming.
func (n *narrativeEngine) busy() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inFlight
}

func (n *narrativeEngine) issue(ctx context.Context, request narrative.Request) {
	for {
		requestID := uuid.NewString()
		logger.Debug("issuing branch request",
			"request_id", requestID,
			"option", request.Option,
		)

		reply, err := n.client.Generate(ctx, request)

		n.mu.Lock()
		next := n.pending
		n.pending = nil
		if next == nil {
			n.inFlight = false
		}
		n.mu.Unlock()

		if err != nil {
			logger.Warn("branch generation failed", "request_id", requestID, "error", err)
			n.emitEvent(events.NewBranchFailed(err))
		} else {
			n.emitEvent(events.NewBranchResolved(*reply))
		}

		if next == nil {
			return
		}
		request = *next
	}
}
