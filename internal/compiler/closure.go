package compiler

import (
	"context"
	"fmt"
	"sync"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/source"
	"staged/internal/value"
)

var noProv source.Provenance

// Checked enforces a domain's declared result kind on every evaluation.
type Checked struct {
	Inner  bind.Closure
	Kind   value.Kind
	Domain string
	Prov   source.Provenance
}

// Eval implements bind.Closure.
func (c Checked) Eval(env *bind.Env) (value.Value, error) {
	v, err := c.Inner.Eval(env)
	if err != nil {
		return value.Value{}, err
	}
	if v.Kind != c.Kind {
		return value.Value{}, &diag.EvalError{
			Code: diag.EvalTypeMismatch,
			Prov: c.Prov,
			Msg:  fmt.Sprintf("%s produced %s, declared %s", c.Domain, v.Kind, c.Kind),
		}
	}
	return v, nil
}

// lazy compiles on its first successful Eval. A failed compilation is not
// remembered, so the next Eval tries again.
type lazy struct {
	ctx  context.Context
	c    Compiler
	g    *expr.Graph
	root expr.NodeID

	mu   sync.Mutex
	b    *bind.Binder // owned by the pending compilation, nil once compiled
	done bind.Closure
}

// Eval implements bind.Closure.
func (l *lazy) Eval(env *bind.Env) (value.Value, error) {
	cl, err := l.closure()
	if err != nil {
		return value.Value{}, err
	}
	return cl.Eval(env)
}

func (l *lazy) closure() (bind.Closure, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return l.done, nil
	}
	cl, err := compile(l.ctx, l.c, l.g, l.root, l.b)
	if err != nil {
		return nil, err
	}
	l.done, l.b = cl, nil
	return cl, nil
}

// Compiled reports whether a lazy closure has compiled. Strict closures are
// always compiled.
func Compiled(c bind.Closure) bool {
	l, ok := c.(*lazy)
	if !ok {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done != nil
}
