package seq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/fusion"
	"staged/internal/isocache"
	"staged/internal/source"
	"staged/internal/synth"
	"staged/internal/value"
)

// MaxRangeLen bounds the length of a materialized range.
const MaxRangeLen = 1 << 24

// ErrRangeTooLarge is wrapped by the EvalError of an oversized range.
var ErrRangeTooLarge = errors.New("seq: range too large")

// rangeOf materializes [lo, hi). The difference is taken in uint64 so that
// spans wider than MaxInt64 do not wrap.
func rangeOf(lo, hi int64, prov source.Provenance) (value.Value, error) {
	if hi <= lo {
		return value.Object([]value.Value{}), nil
	}
	n, err := safecast.Conv[int](uint64(hi) - uint64(lo))
	if err != nil || n > MaxRangeLen {
		return value.Value{}, &diag.EvalError{
			Code: diag.EvalRangeTooLarge,
			Prov: prov,
			Msg:  fmt.Sprintf("range(%d, %d) exceeds %d elements", lo, hi, MaxRangeLen),
			Err:  ErrRangeTooLarge,
		}
	}
	out := make([]value.Value, n)
	for i := range out {
		out[i] = value.Long(lo + int64(i))
	}
	return value.Object(out), nil
}

// Options configures a Compiler.
type Options struct {
	// Tag is Domain or ReduceDomain.
	Tag   string
	Cache *isocache.Cache[synth.Unit]
	Synth synth.Service
	// Stepwise compiles one pass per operation instead of fusing chains.
	Stepwise bool
}

// Compiler lowers seq graphs. It is safe for concurrent compilations.
type Compiler struct {
	opts  Options
	fuser *fusion.Fuser
}

// New creates a compiler; a nil Synth selects the embedded interpreter.
func New(opts Options) *Compiler {
	if opts.Tag == "" {
		opts.Tag = Domain
	}
	if opts.Synth == nil {
		opts.Synth = synth.NewInterp()
	}
	return &Compiler{
		opts:  opts,
		fuser: &fusion.Fuser{Domain: opts.Tag, Cache: opts.Cache, Synth: opts.Synth},
	}
}

// Domain implements compiler.Compiler.
func (c *Compiler) Domain() string { return c.opts.Tag }

// ResultKind implements compiler.Compiler.
func (c *Compiler) ResultKind() value.Kind {
	if c.opts.Tag == ReduceDomain {
		return value.KindLong
	}
	return value.KindObject
}

// Cache returns the unit cache, nil when uncached.
func (c *Compiler) Cache() *isocache.Cache[synth.Unit] { return c.opts.Cache }

// Compile implements compiler.Compiler.
func (c *Compiler) Compile(ctx context.Context, g *expr.Graph, root expr.NodeID, b *bind.Binder) (bind.Closure, error) {
	if err := c.checkRoot(g, root); err != nil {
		return nil, err
	}
	l := &lowerer{
		ctx:  ctx,
		c:    c,
		g:    g,
		b:    b,
		uses: expr.Uses(g, root),
		memo: make(map[expr.NodeID]bind.Closure),
	}
	return l.lower(root)
}

func (c *Compiler) checkRoot(g *expr.Graph, root expr.NodeID) error {
	var kind value.Kind
	if op := g.Op(root); op != nil {
		switch _, isSink := sinks[op.Member]; {
		case isSink:
			kind = value.KindLong
		case op.Member == MemberPlus || op.Member == MemberTimes || op.Member == MemberAbove || op.Member == MemberBelow:
			kind = value.KindInvalid
		default:
			kind = value.KindObject
		}
	} else if leaf := g.Leaf(root); leaf != nil {
		kind = leaf.Type
	}
	if kind == c.ResultKind() {
		return nil
	}
	d := diag.NewError(diag.SemaResultMismatch, g.Provenance(root),
		fmt.Sprintf("%s program yields %s, want %s", c.opts.Tag, kind, c.ResultKind()))
	return &diag.SemanticError{Domain: c.opts.Tag, Diags: []diag.Diagnostic{d}}
}

type lowerer struct {
	ctx  context.Context
	c    *Compiler
	g    *expr.Graph
	b    *bind.Binder
	uses []uint32
	memo map[expr.NodeID]bind.Closure
}

func (l *lowerer) lower(id expr.NodeID) (bind.Closure, error) {
	if cl, ok := l.memo[id]; ok {
		return cl, nil
	}
	var (
		cl  bind.Closure
		err error
	)
	switch l.g.Kind(id) {
	case expr.NodeLeaf:
		cl, err = l.b.Bind(id)
		if err != nil {
			err = diag.NewCompileError(l.c.opts.Tag, diag.CompBinderSealed, l.g.Provenance(id), "bind leaf", err)
		}
	case expr.NodeOp:
		cl, err = l.op(id, l.g.Op(id))
	case expr.NodeInvalid:
		err = diag.NewCompileError(l.c.opts.Tag, diag.GraphUnknownNode, l.g.Provenance(id), fmt.Sprintf("#%d", id), nil)
	}
	if err != nil {
		return nil, err
	}
	l.memo[id] = cl
	return cl, nil
}

func (l *lowerer) arity(op *expr.Op, n int) error {
	if len(op.Args) == n {
		return nil
	}
	return diag.NewCompileError(l.c.opts.Tag, diag.GraphBadArity, op.Prov,
		fmt.Sprintf("%s has %d arguments, want %d", op.Member, len(op.Args), n), nil)
}

func (l *lowerer) op(id expr.NodeID, op *expr.Op) (bind.Closure, error) {
	if _, ok := steps[op.Member]; ok {
		if err := l.arity(op, 2); err != nil {
			return nil, err
		}
		return l.fuse(id, fusion.Collect(l.g, id, l.uses, classifier{}), synth.SinkCollect)
	}
	if sink, ok := sinks[op.Member]; ok {
		if err := l.arity(op, 1); err != nil {
			return nil, err
		}
		xs := op.Args[0]
		chain := fusion.Chain{Source: xs}
		if l.uses[xs] <= 1 {
			chain = fusion.Collect(l.g, xs, l.uses, classifier{})
		}
		return l.fuse(id, chain, sink)
	}

	switch op.Member {
	case MemberRange:
		if err := l.arity(op, 2); err != nil {
			return nil, err
		}
		lo, hi, err := l.pair(op.Args[0], op.Args[1])
		if err != nil {
			return nil, err
		}
		return bind.Func(func(env *bind.Env) (value.Value, error) {
			a, err := lo.Eval(env)
			if err != nil {
				return a, err
			}
			z, err := hi.Eval(env)
			if err != nil {
				return z, err
			}
			return rangeOf(a.AsLong(), z.AsLong(), op.Prov)
		}), nil

	case MemberList:
		elems := make([]bind.Closure, len(op.Args))
		for i, a := range op.Args {
			cl, err := l.lower(a)
			if err != nil {
				return nil, err
			}
			elems[i] = cl
		}
		return bind.Func(func(env *bind.Env) (value.Value, error) {
			out := make([]value.Value, len(elems))
			for i, e := range elems {
				v, err := e.Eval(env)
				if err != nil {
					return v, err
				}
				out[i] = v
			}
			return value.Object(out), nil
		}), nil

	case MemberPlus, MemberTimes, MemberAbove, MemberBelow:
		if err := l.arity(op, 1); err != nil {
			return nil, err
		}
		k, err := l.lower(op.Args[0])
		if err != nil {
			return nil, err
		}
		return closedFn(op.Member, k), nil
	}
	return nil, diag.NewCompileError(l.c.opts.Tag, diag.GraphUnknownMember, op.Prov, op.Member.String(), nil)
}

func (l *lowerer) pair(a, b expr.NodeID) (bind.Closure, bind.Closure, error) {
	x, err := l.lower(a)
	if err != nil {
		return nil, nil, err
	}
	y, err := l.lower(b)
	return x, y, err
}

func (l *lowerer) fuse(top expr.NodeID, chain fusion.Chain, sink synth.SinkKind) (bind.Closure, error) {
	input, err := l.lower(chain.Source)
	if err != nil {
		return nil, err
	}
	caps := make([]bind.Closure, len(chain.Funcs))
	for i, fn := range chain.Funcs {
		if caps[i], err = l.lower(fn); err != nil {
			return nil, err
		}
	}
	if l.c.opts.Stepwise {
		return fusion.Stepwise(l.ctx, l.c.opts.Synth, l.c.opts.Tag, chain, sink, input, caps, l.g.Provenance(top))
	}
	return l.c.fuser.Fuse(l.ctx, l.g, top, chain, sink, input, caps)
}

// closedFn builds the function a builder op yields once k is known.
func closedFn(m expr.Member, k bind.Closure) bind.Closure {
	return bind.Func(func(env *bind.Env) (value.Value, error) {
		kv, err := k.Eval(env)
		if err != nil {
			return kv, err
		}
		n := kv.AsLong()
		switch m {
		case MemberPlus:
			return value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() + n), nil })), nil
		case MemberTimes:
			return value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() * n), nil })), nil
		case MemberAbove:
			return value.Object(synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong() > n, nil })), nil
		default:
			return value.Object(synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong() < n, nil })), nil
		}
	})
}

// DefaultPolicy bounds the unit cache of list programs.
var DefaultPolicy = isocache.Policy{IdleTimeout: 10 * time.Minute, MaxEntries: 256}

// ReduceDefaultPolicy bounds the unit cache of reductions.
var ReduceDefaultPolicy = isocache.Policy{IdleTimeout: 2 * time.Minute, MaxEntries: 64}
