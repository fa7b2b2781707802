package session

import "github.com/livegal/livegal-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}
