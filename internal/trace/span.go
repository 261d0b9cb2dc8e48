package trace

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

var spanIDs atomic.Uint64

// Span is an open interval of work. A Span from a disabled tracer is inert.
// A Span whose scope the level filters out is quiet: it emits nothing but
// its failure.
type Span struct {
	t      Tracer
	quiet  bool
	id     uint64
	parent uint64
	gid    uint64
	scope  Scope
	name   string
	begun  time.Time
	attrs  []Attr
}

// Begin opens a span under parent and emits its begin event.
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !Enabled(t) {
		return &Span{}
	}
	if !t.Level().ShouldEmit(scope) {
		return &Span{t: t, quiet: true, parent: parent, scope: scope, name: name}
	}
	s := &Span{
		t:      t,
		id:     spanIDs.Add(1),
		parent: parent,
		gid:    goid(),
		scope:  scope,
		name:   name,
		begun:  time.Now(),
	}
	s.emit(KindSpanBegin, s.begun, "", nil)
	return s
}

// Start opens a span under the innermost span of ctx. The returned context
// makes it the parent of nested spans.
func Start(ctx context.Context, scope Scope, name string) (*Span, context.Context) {
	c := load(ctx)
	s := Begin(c.t, scope, name, c.span)
	if s.id == 0 || ctx == nil {
		return s, ctx
	}
	return s, withSpan(ctx, c.t, s.id)
}

// Set attaches key=value to the end event.
func (s *Span) Set(key string, value any) *Span {
	if s == nil || s.t == nil || s.quiet {
		return s
	}
	v, ok := value.(string)
	if !ok {
		v = fmt.Sprint(value)
	}
	s.attrs = append(s.attrs, Attr{Key: key, Value: v})
	return s
}

// End closes the span and returns its duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.t == nil || s.quiet {
		return 0
	}
	now := time.Now()
	dur := now.Sub(s.begun)
	s.Set("dur", dur)
	s.emit(KindSpanEnd, now, detail, s.attrs)
	return dur
}

// Fail closes the span with err. Failures are recorded at every level
// above off, even when the span itself was filtered out.
func (s *Span) Fail(err error) time.Duration {
	if s == nil || s.t == nil {
		return 0
	}
	if err == nil {
		return s.End("")
	}
	dur := s.End("failed")
	if s.gid == 0 {
		s.gid = goid()
	}
	s.emit(KindFailure, time.Now(), err.Error(), nil)
	return dur
}

// ID returns the span id, 0 for inert spans.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

func (s *Span) emit(kind Kind, at time.Time, detail string, attrs []Attr) {
	s.t.Emit(&Event{
		Time:   at,
		Kind:   kind,
		Scope:  s.scope,
		Span:   s.id,
		Parent: s.parent,
		GID:    s.gid,
		Name:   s.name,
		Detail: detail,
		Attrs:  attrs,
	})
}

// Point records an instant under the innermost span of ctx.
func Point(ctx context.Context, scope Scope, name, detail string) {
	c := load(ctx)
	if !c.t.Level().ShouldEmit(scope) {
		return
	}
	c.t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindPoint,
		Scope:  scope,
		Parent: c.span,
		GID:    goid(),
		Name:   name,
		Detail: detail,
	})
}

// Fail records err under the innermost span of ctx without opening one.
func Fail(ctx context.Context, scope Scope, name string, err error) {
	c := load(ctx)
	if !Enabled(c.t) || err == nil {
		return
	}
	c.t.Emit(&Event{
		Time:   time.Now(),
		Kind:   KindFailure,
		Scope:  scope,
		Parent: c.span,
		GID:    goid(),
		Name:   name,
		Detail: err.Error(),
	})
}

// goid reads the goroutine id from the first line of the stack header,
// "goroutine 17 [running]:".
func goid() uint64 {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	f := bytes.Fields(buf[:n])
	if len(f) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(f[1]), 10, 64)
	return id
}
