package modification

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"
)

// State is a run's lifecycle position.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome is how a run's transaction was resolved.
type Outcome string

const (
	OutcomeCommitted          Outcome = "committed"
	OutcomeRolledBack         Outcome = "rolled_back"
	OutcomeCancelled          Outcome = "cancelled"
	OutcomeFailed             Outcome = "failed"
	OutcomeFinalizationFailed Outcome = "finalization_failed"
)

// Beginner opens the transaction a run executes in. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// session owns one run: its transaction, its modification and the producing
// side of its conduit. Only the producer goroutine touches it, except for
// state which the consumer may read.
type session struct {
	id      uuid.UUID
	name    string
	mode    Mode
	factory Factory
	db      Beginner
	txOpts  *sql.TxOptions
	out     *conduit
	logger  *slog.Logger
	console *slog.Logger

	state      atomic.Int32
	tx         *sql.Tx
	resolved   bool
	terminated bool
	outcome    Outcome
}

func (s *session) setState(st State) {
	s.state.Store(int32(st))
}

func (s *session) getState() State {
	return State(s.state.Load())
}

// run drives the session from Starting to Closed. The conduit is closed on
// every path, and a terminal event is always pushed before it is. The returned
// error is non-nil only for finalization faults.
func (s *session) run(ctx context.Context) (err error) {
	defer func() {
		s.out.close()
		s.setState(StateClosed)
	}()
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		err = &panicError{value: rec, stack: debug.Stack()}
		s.console.ErrorContext(ctx, "run finalization panicked",
			"error", err,
			"finalization_fault", true,
		)
		if s.tx != nil && !s.resolved {
			_ = s.tx.Rollback()
			s.resolved = true
		}
		if !s.terminated {
			s.terminate(OutcomeFinalizationFailed, Failure{
				Message: "Failed to finalize transaction: " + err.Error(),
				Detail:  describeFault(err),
			})
		}
	}()

	s.setState(StateStarting)
	if s.mode.IsDryRun() {
		s.logger.InfoContext(ctx, "Starting dry run in database transaction (will roll back)...")
	} else {
		s.logger.InfoContext(ctx, "Starting data modification in database transaction...")
	}

	// The transaction outlives cancellation of ctx: only the session decides
	// whether it commits or rolls back.
	tx, beginErr := s.db.BeginTx(context.WithoutCancel(ctx), s.txOpts)
	if beginErr != nil {
		return s.finalize(ctx, fmt.Errorf("begin transaction: %w", beginErr))
	}
	s.tx = tx

	mod, runErr := s.build(tx)
	if runErr == nil {
		s.setState(StateRunning)
		runErr = s.invoke(ctx, mod)
	}

	s.setState(StateFinalizing)
	return s.finalize(ctx, runErr)
}

func (s *session) build(tx *sql.Tx) (mod Modification, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	mod = s.factory(Deps{Tx: tx, Logger: s.logger})
	if mod == nil {
		return nil, fmt.Errorf("modification %q: factory returned nil", s.name)
	}
	return mod, nil
}

func (s *session) invoke(ctx context.Context, mod Modification) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec, stack: debug.Stack()}
		}
	}()
	return mod.Run(ctx, s.mode)
}

// finalize resolves the transaction and then pushes the terminal event.
func (s *session) finalize(ctx context.Context, runErr error) error {
	switch {
	case isCancellation(ctx, runErr):
		s.logger.WarnContext(ctx, "Data modification cancelled by client, rolling back transaction...")
		if err := s.rollback(); err != nil {
			// A driver may drop the connection when a statement is cancelled;
			// the server then discards the transaction on its own.
			s.console.ErrorContext(ctx, "rollback after cancellation failed",
				"error", err,
				"finalization_fault", true,
			)
		}
		s.terminate(OutcomeCancelled, Failure{Message: CancelledMessage})

	case runErr != nil:
		s.logger.ErrorContext(ctx, "Data modification failed, rolling back transaction...", "error", runErr)
		if err := s.rollback(); err != nil {
			return s.finalizationFault(ctx, err)
		}
		s.terminate(OutcomeFailed, Failure{Message: runErr.Error(), Detail: describeFault(runErr)})

	case s.mode.IsDryRun():
		s.logger.InfoContext(ctx, "Dry run complete, rolling back transaction...")
		if err := s.rollback(); err != nil {
			return s.finalizationFault(ctx, err)
		}
		s.terminate(OutcomeRolledBack, Complete{Success: true})

	default:
		err := s.tx.Commit()
		s.resolved = true
		if err != nil {
			return s.finalizationFault(ctx, err)
		}
		s.logger.InfoContext(ctx, "Data modification transaction committed successfully.")
		s.terminate(OutcomeCommitted, Complete{Success: true})
	}
	return nil
}

// rollback is uncancellable. A transaction already resolved by someone else
// is reported as an error: the session can no longer vouch for its outcome.
func (s *session) rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.resolved = true
	return err
}

// finalizationFault reports a commit or rollback failure. The stream still
// ends with a terminal Failure.
func (s *session) finalizationFault(ctx context.Context, err error) error {
	s.console.ErrorContext(ctx, "transaction finalization failed",
		"error", err,
		"finalization_fault", true,
	)
	if s.tx != nil && !s.resolved {
		_ = s.tx.Rollback()
		s.resolved = true
	}
	s.terminate(OutcomeFinalizationFailed, Failure{
		Message: "Failed to finalize transaction: " + err.Error(),
		Detail:  describeFault(err),
	})
	return fmt.Errorf("finalize transaction: %w", err)
}

func (s *session) terminate(outcome Outcome, e Event) {
	s.outcome = outcome
	s.terminated = true
	s.out.push(e)
}
