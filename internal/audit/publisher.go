package audit

import (
	"context"
	"errors"
	"time"
)

// ErrBufferFull is returned when the worker has fallen behind.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher hands events to the Worker without blocking the caller. Events
// are dropped with ErrBufferFull when the buffer is full.
type Publisher struct {
	inbox chan Event
	now   func() time.Time
}

func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Publisher{inbox: make(chan Event, buffer), now: time.Now}
}

func (p *Publisher) Emit(_ context.Context, event Event) error {
	if event.FinishedAt.IsZero() {
		event.FinishedAt = p.now()
	}
	if event.StartedAt.IsZero() {
		event.StartedAt = event.FinishedAt
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Inbox is the receive side consumed by the Worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}
