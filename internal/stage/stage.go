// Package stage is the entry point of the capture layer: it takes a captured
// graph root, prepares its slot layout, dispatches to the domain compiler and
// hands back a Compiled value that evaluates against fresh Environments.
package stage

import (
	"context"
	"fmt"

	"staged/internal/bind"
	"staged/internal/compiler"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/isocache"
	"staged/internal/observ"
	"staged/internal/synth"
	"staged/internal/trace"
	"staged/internal/value"
)

// Engine compiles staged graphs through a registry.
type Engine struct {
	reg    *compiler.Registry
	caches []*isocache.Cache[synth.Unit]
	closer func(ctx context.Context)
}

// New wraps a registry.
func New(reg *compiler.Registry) *Engine {
	return &Engine{reg: reg}
}

// Registry returns the registry the engine dispatches to.
func (e *Engine) Registry() *compiler.Registry { return e.reg }

// Caches returns the unit caches owned by the engine.
func (e *Engine) Caches() []*isocache.Cache[synth.Unit] { return e.caches }

// Close releases the caches owned by the engine.
func (e *Engine) Close(ctx context.Context) {
	if e.closer != nil {
		e.closer(ctx)
	}
}

// Compile seals g, assigns slots under root and compiles it for domain.
// timer may be nil.
func (e *Engine) Compile(ctx context.Context, domain string, g *expr.Graph, root expr.NodeID, timer *observ.Timer) (*Compiled, error) {
	span, ctx := trace.Start(ctx, trace.ScopeDriver, "compile")
	span.Set("domain", domain)

	c, mode, ok := e.reg.Lookup(domain)
	if !ok {
		err := diag.NewCompileError(domain, diag.CompUnknownDomain, g.Provenance(root), "no compiler registered", nil)
		span.Fail(err)
		return nil, err
	}
	if !g.Contains(root) {
		err := diag.NewCompileError(domain, diag.GraphUnknownNode, g.Provenance(root), fmt.Sprintf("root #%d", root), nil)
		span.Fail(err)
		return nil, err
	}

	g.Seal()
	b := bind.NewBinder(g)
	if err := timer.Measure("prepare", func() error { return b.Prepare(root) }); err != nil {
		err = diag.NewCompileError(domain, diag.GraphUnknownNode, g.Provenance(root), "prepare slots", err)
		span.Fail(err)
		return nil, err
	}

	var cl bind.Closure
	err := timer.Measure("compile", func() error {
		var err error
		cl, err = e.reg.Compile(ctx, domain, g, root, b)
		return err
	})
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	b.Seal()

	span.Set("mode", mode).Set("slots", b.Len()).End("")
	return &Compiled{
		Domain:  domain,
		Closure: cl,
		Result:  c.ResultKind(),
		binder:  b,
	}, nil
}

// Compiled is the product of one compilation.
type Compiled struct {
	Domain  string
	Closure bind.Closure
	Result  value.Kind
	binder  *bind.Binder
}

// Slots returns the deferred leaves in argument order.
func (c *Compiled) Slots() []expr.NodeID { return c.binder.Leaves() }

// Kinds returns the argument kinds in order.
func (c *Compiled) Kinds() []value.Kind { return c.binder.Kinds() }

// Eval runs the closure against a fresh Environment built from args, given
// in slot order.
func (c *Compiled) Eval(args ...value.Value) (value.Value, error) {
	env, err := c.binder.NewEnv(args...)
	if err != nil {
		return value.Value{}, c.argsError(err)
	}
	return c.Closure.Eval(env)
}

// EvalFrom runs the closure with arguments looked up per deferred leaf.
func (c *Compiled) EvalFrom(lookup func(id expr.NodeID) (value.Value, bool)) (value.Value, error) {
	env, err := c.binder.EnvFrom(lookup)
	if err != nil {
		return value.Value{}, c.argsError(err)
	}
	return c.Closure.Eval(env)
}

// Ready reports whether the closure has been compiled; lazy domains compile
// on the first evaluation.
func (c *Compiled) Ready() bool { return compiler.Compiled(c.Closure) }

func (c *Compiled) argsError(err error) error {
	return &diag.EvalError{Code: diag.EvalArgsMismatch, Msg: c.Domain + " arguments", Err: err}
}
