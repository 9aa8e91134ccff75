package modification

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// CategoryKey is the attribute key that overrides the category of the log
// lines a logger produces. It is consumed, not rendered into the message.
const CategoryKey = "category"

// Sink is the slog.Handler handed to units of work. Records at or above the
// minimum level become LogLine events on the run's conduit; a record carrying
// an error attribute additionally yields an Error line describing the fault.
// Every record is also offered to the console handler, best-effort.
type Sink struct {
	shared   *sinkShared
	console  slog.Handler
	category string
	attrs    []slog.Attr
	prefix   string
	// fault is an error bound through WithAttrs.
	fault error
}

type sinkShared struct {
	out      *conduit
	minLevel slog.Leveler
	now      func() time.Time
	onEmit   func(Level)
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithMinLevel sets the threshold below which records are dropped from the
// stream. The default is slog.LevelInfo.
func WithMinLevel(level slog.Leveler) SinkOption {
	return func(s *Sink) {
		if level != nil {
			s.shared.minLevel = level
		}
	}
}

// WithConsole tees every record to h for operators.
func WithConsole(h slog.Handler) SinkOption {
	return func(s *Sink) {
		s.console = h
	}
}

// WithSinkClock overrides the timestamp source for records without a time.
func WithSinkClock(now func() time.Time) SinkOption {
	return func(s *Sink) {
		if now != nil {
			s.shared.now = now
		}
	}
}

func withEmitHook(fn func(Level)) SinkOption {
	return func(s *Sink) {
		s.shared.onEmit = fn
	}
}

func newSink(out *conduit, category string, opts ...SinkOption) *Sink {
	s := &Sink{
		shared: &sinkShared{
			out:      out,
			minLevel: slog.LevelInfo,
			now:      time.Now,
		},
		category: category,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= s.shared.minLevel.Level() {
		return true
	}
	return s.console != nil && s.console.Enabled(ctx, level)
}

func (s *Sink) Handle(ctx context.Context, r slog.Record) error {
	if s.console != nil && s.console.Enabled(ctx, r.Level) {
		_ = s.console.Handle(ctx, r.Clone())
	}
	if r.Level < s.shared.minLevel.Level() {
		return nil
	}

	category := s.category
	fault := s.fault
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range s.attrs {
		appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		if s.prefix == "" && a.Key == CategoryKey && a.Value.Kind() == slog.KindString {
			category = a.Value.String()
			return true
		}
		if err, ok := faultOf(a); ok {
			if fault == nil {
				fault = err
			}
			return true
		}
		appendAttr(&b, s.prefix, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = s.shared.now()
	}
	ts = ts.UTC().Truncate(time.Millisecond)
	level := levelFromSlog(r.Level)

	s.emit(LogLine{Timestamp: ts, Level: level, Category: category, Message: b.String()})
	if fault != nil {
		s.emit(LogLine{
			Timestamp: ts,
			Level:     LevelError,
			Category:  category,
			Message:   "Exception: " + describeFault(fault),
		})
	}
	return nil
}

func (s *Sink) emit(line LogLine) {
	if s.shared.out.push(line) && s.shared.onEmit != nil {
		s.shared.onEmit(line.Level)
	}
}

func (s *Sink) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	clone := *s
	clone.attrs = append([]slog.Attr(nil), s.attrs...)
	for _, a := range attrs {
		a.Value = a.Value.Resolve()
		if s.prefix == "" && a.Key == CategoryKey && a.Value.Kind() == slog.KindString {
			clone.category = a.Value.String()
			continue
		}
		if err, ok := faultOf(a); ok {
			if clone.fault == nil {
				clone.fault = err
			}
			continue
		}
		a.Key = s.prefix + a.Key
		clone.attrs = append(clone.attrs, a)
	}
	if s.console != nil {
		clone.console = s.console.WithAttrs(attrs)
	}
	return &clone
}

func (s *Sink) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	clone := *s
	clone.prefix = s.prefix + name + "."
	if s.console != nil {
		clone.console = s.console.WithGroup(name)
	}
	return &clone
}

func faultOf(a slog.Attr) (error, bool) {
	if a.Value.Kind() != slog.KindAny {
		return nil, false
	}
	err, ok := a.Value.Any().(error)
	return err, ok && err != nil
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, groupPrefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(quoteIfNeeded(a.Value.String()))
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}
