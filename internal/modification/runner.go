package modification

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"datamod/internal/audit"
	"datamod/internal/platform/metrics"
	dErrors "datamod/pkg/domain-errors"
	"datamod/pkg/requestcontext"
)

const tracerName = "datamod/internal/modification"

// AuditPublisher records run outcomes outside the run's transaction.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Runner validates run requests and starts sessions.
type Runner struct {
	db       Beginner
	registry *Registry
	logger   *slog.Logger
	minLevel slog.Leveler
	txOpts   *sql.TxOptions
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	audit    AuditPublisher
	now      func() time.Time
}

type Option func(*Runner)

// WithLogger sets the operator console the run logs are teed to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithStreamLevel sets the minimum level of log lines that reach the stream.
func WithStreamLevel(level slog.Leveler) Option {
	return func(r *Runner) {
		if level != nil {
			r.minLevel = level
		}
	}
}

// WithTxOptions sets the isolation options of run transactions.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(r *Runner) {
		r.txOpts = opts
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Runner) {
		r.audit = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(db Beginner, registry *Registry, opts ...Option) *Runner {
	r := &Runner{
		db:       db,
		registry: registry,
		logger:   slog.Default(),
		minLevel: slog.LevelInfo,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List describes every registered modification.
func (r *Runner) List() []Info {
	return r.registry.List()
}

// StartDryRun starts a run whose transaction is always rolled back.
func (r *Runner) StartDryRun(ctx context.Context, name string) (*Stream, error) {
	return r.start(ctx, name, ModeDryRun)
}

// StartRun starts a run that commits on success. confirmation must repeat
// name exactly.
func (r *Runner) StartRun(ctx context.Context, name, confirmation string) (*Stream, error) {
	if confirmation == "" || confirmation != name {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Data modification name confirmation does not match")
	}
	return r.start(ctx, name, ModeCommit)
}

func (r *Runner) start(ctx context.Context, name string, mode Mode) (*Stream, error) {
	factory, ok := r.registry.Lookup(name)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("Data modification '%s' not found", name))
	}

	runID := uuid.New()
	runCtx, cancel := context.WithCancelCause(ctx)
	out := newConduit()

	console := r.logger.With(
		"modification", name,
		"mode", mode.String(),
		"run_id", runID.String(),
	)
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		console = console.With("request_id", requestID)
	}

	sinkOpts := []SinkOption{
		WithMinLevel(r.minLevel),
		WithConsole(console.Handler()),
		WithSinkClock(r.now),
	}
	if r.metrics != nil {
		sinkOpts = append(sinkOpts, withEmitHook(func(l Level) {
			r.metrics.IncrementLogLines(string(l))
		}))
	}
	sink := newSink(out, name, sinkOpts...)

	sess := &session{
		id:      runID,
		name:    name,
		mode:    mode,
		factory: factory,
		db:      r.db,
		txOpts:  r.txOpts,
		out:     out,
		logger:  slog.New(sink),
		console: console,
	}
	stream := &Stream{
		id:     runID,
		name:   name,
		mode:   mode,
		out:    out,
		sess:   sess,
		cancel: cancel,
	}

	if r.metrics != nil {
		r.metrics.ObserveRunStarted(name, mode.String())
	}
	stream.group.Go(func() error {
		return r.produce(runCtx, sess)
	})
	return stream, nil
}

// produce runs the session on the background goroutine and records its
// outcome once the conduit is closed.
func (r *Runner) produce(ctx context.Context, sess *session) error {
	started := r.now()
	ctx, span := r.tracer.Start(ctx, "modification.run", trace.WithAttributes(
		attribute.String("modification.name", sess.name),
		attribute.String("modification.mode", sess.mode.String()),
		attribute.String("modification.run_id", sess.id.String()),
	))
	defer span.End()

	err := sess.run(ctx)

	outcome := sess.outcome
	span.SetAttributes(attribute.String("modification.outcome", string(outcome)))
	switch outcome {
	case OutcomeCommitted, OutcomeRolledBack:
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Error, string(outcome))
	}
	if err != nil {
		span.RecordError(err)
	}

	if r.metrics != nil {
		r.metrics.ObserveRunFinished(sess.name, sess.mode.String(), string(outcome), started)
		if outcome == OutcomeFinalizationFailed {
			r.metrics.IncrementFinalizationFaults()
		}
	}
	if r.audit != nil {
		auditCtx := context.WithoutCancel(ctx)
		event := audit.Event{
			RunID:        sess.id,
			Modification: sess.name,
			Mode:         sess.mode.String(),
			Outcome:      string(outcome),
			RequestID:    requestcontext.RequestID(ctx),
			StartedAt:    started,
			FinishedAt:   r.now(),
		}
		if err != nil {
			event.Message = err.Error()
		}
		if emitErr := r.audit.Emit(auditCtx, event); emitErr != nil {
			sess.console.WarnContext(auditCtx, "failed to record run audit event", "error", emitErr)
		}
	}
	return err
}
