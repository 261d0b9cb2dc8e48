package trace

import "context"

// Tracer receives events. Implementations must be safe for concurrent use:
// compile requests arrive from every goroutine evaluating a call site.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
}

// Enabled reports whether t records anything at all.
func Enabled(t Tracer) bool {
	return t != nil && t.Level() > LevelOff
}

type off struct{}

func (off) Emit(*Event)  {}
func (off) Flush() error { return nil }
func (off) Close() error { return nil }
func (off) Level() Level { return LevelOff }

// Nop discards every event.
var Nop Tracer = off{}

// carrier travels in a context: the tracer plus the innermost open span.
type carrier struct {
	t    Tracer
	span uint64
}

type carrierKey struct{}

func load(ctx context.Context) carrier {
	if ctx != nil {
		if c, ok := ctx.Value(carrierKey{}).(carrier); ok {
			return c
		}
	}
	return carrier{t: Nop}
}

// FromContext returns the tracer installed in ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return load(ctx).t
}

// WithTracer installs t in ctx. Spans opened under the result are roots.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, carrierKey{}, carrier{t: t})
}

// SpanID returns the innermost span opened via Start, 0 at the root.
func SpanID(ctx context.Context) uint64 {
	return load(ctx).span
}

func withSpan(ctx context.Context, t Tracer, id uint64) context.Context {
	return context.WithValue(ctx, carrierKey{}, carrier{t: t, span: id})
}
