package modification

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// panicError carries a value recovered from a unit of work together with the
// goroutine stack at the point of the panic.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	if err, ok := p.value.(error); ok {
		return err
	}
	return nil
}

// isCancellation reports whether a unit of work's outcome counts as a
// cancellation: the run context is done, or the fault is a cancellation.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

// describeFault renders the whole unwrap chain of err, one "type: message"
// link per line, followed by the stack for recovered panics.
func describeFault(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		if b.Len() > 0 {
			b.WriteString("\n ---> ")
		}
		fmt.Fprintf(&b, "%T: %s", e, e.Error())
	}
	var p *panicError
	if errors.As(err, &p) && len(p.stack) > 0 {
		b.WriteString("\n")
		b.Write(p.stack)
	}
	return b.String()
}
