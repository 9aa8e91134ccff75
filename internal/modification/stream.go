package modification

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrStreamCancelled is the cancellation cause recorded when the consumer
// abandons a stream or calls Cancel.
var ErrStreamCancelled = errors.New("event stream cancelled by consumer")

// Stream is the consumer side of one run. Events may be ranged over once; the
// producer keeps running concurrently while the consumer waits for the next
// event.
type Stream struct {
	id     uuid.UUID
	name   string
	mode   Mode
	out    *conduit
	sess   *session
	cancel context.CancelCauseFunc
	group  errgroup.Group

	consumed atomic.Bool
	waitOnce sync.Once
	err      error
}

func (s *Stream) ID() uuid.UUID { return s.id }
func (s *Stream) Name() string  { return s.name }
func (s *Stream) Mode() Mode    { return s.mode }

// State reports the run's lifecycle position.
func (s *Stream) State() State {
	return s.sess.getState()
}

// Outcome reports how the transaction was resolved. Valid after Wait.
func (s *Stream) Outcome() Outcome {
	_ = s.Wait()
	return s.sess.outcome
}

// Events yields the run's events in emission order and ends after the
// terminal event. Breaking out of the loop cancels the run, discards what is
// left and joins the producer before returning. Ranging a second time yields
// nothing.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		drained := false
		defer func() {
			if !drained {
				s.Cancel()
				s.drain()
			}
			_ = s.Wait()
		}()
		for {
			e, ok := s.out.next()
			if !ok {
				drained = true
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Cancel signals the run to abort. The run still rolls back and emits its
// terminal event.
func (s *Stream) Cancel() {
	s.cancel(ErrStreamCancelled)
}

// Wait joins the producer. It returns the finalization fault, if any.
func (s *Stream) Wait() error {
	s.waitOnce.Do(func() {
		s.err = s.group.Wait()
		s.cancel(nil)
	})
	return s.err
}

// Close abandons a stream: it cancels the run and, unless another goroutine
// is ranging over Events, discards the remaining events. It returns once the
// producer has finished.
func (s *Stream) Close() error {
	s.Cancel()
	if s.consumed.CompareAndSwap(false, true) {
		s.drain()
	}
	return s.Wait()
}

func (s *Stream) drain() {
	for {
		if _, ok := s.out.next(); !ok {
			return
		}
	}
}
