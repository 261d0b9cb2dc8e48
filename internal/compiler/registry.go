// Package compiler dispatches staged graphs to the compiler registered for
// their domain.
package compiler

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/trace"
	"staged/internal/value"
)

// Compiler lowers the graph under root to a Closure. It must only bind leaves
// through b and must return a closure whose results have ResultKind.
type Compiler interface {
	Domain() string
	ResultKind() value.Kind
	Compile(ctx context.Context, g *expr.Graph, root expr.NodeID, b *bind.Binder) (bind.Closure, error)
}

// Mode selects when a domain compiles.
type Mode uint8

const (
	// Lazy domains compile on the first evaluation.
	Lazy Mode = iota
	// Strict domains compile when the closure is requested.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lazy"
}

type entry struct {
	c    Compiler
	mode Mode
}

// Registry maps domain tags to compilers. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds c under its domain tag.
func (r *Registry) Register(c Compiler, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[c.Domain()]; dup {
		return diag.NewCompileError(c.Domain(), diag.CompDuplicateDomain, noProv, "domain already registered", nil)
	}
	r.entries[c.Domain()] = entry{c: c, mode: mode}
	return nil
}

// SetMode changes the mode of a registered domain.
func (r *Registry) SetMode(domain string, mode Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[domain]
	if !ok {
		return unknownDomain(domain)
	}
	e.mode = mode
	r.entries[domain] = e
	return nil
}

// Lookup returns the compiler registered under domain.
func (r *Registry) Lookup(domain string) (Compiler, Mode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[domain]
	return e.c, e.mode, ok
}

// Domains lists the registered tags in sorted order.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for d := range r.entries {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Compile returns the closure for root. Strict domains compile now and report
// compile errors here; lazy domains return a closure that compiles on its
// first Eval.
func (r *Registry) Compile(ctx context.Context, domain string, g *expr.Graph, root expr.NodeID, b *bind.Binder) (bind.Closure, error) {
	c, mode, ok := r.Lookup(domain)
	if !ok {
		return nil, unknownDomain(domain)
	}
	if mode == Lazy {
		return &lazy{ctx: context.WithoutCancel(ctx), c: c, g: g, root: root, b: b}, nil
	}
	return compile(ctx, c, g, root, b)
}

func compile(ctx context.Context, c Compiler, g *expr.Graph, root expr.NodeID, b *bind.Binder) (bind.Closure, error) {
	span, ctx := trace.Start(ctx, trace.ScopePass, "compile")
	span.Set("domain", c.Domain())
	cl, err := c.Compile(ctx, g, root, b)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.End("")
	return Checked{Inner: cl, Kind: c.ResultKind(), Domain: c.Domain(), Prov: g.Provenance(root)}, nil
}

func unknownDomain(domain string) error {
	return diag.NewCompileError(domain, diag.CompUnknownDomain, noProv,
		fmt.Sprintf("no compiler registered for %q", domain), nil)
}
