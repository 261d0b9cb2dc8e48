package arith

import (
	"context"
	"errors"
	"fmt"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/flow"
	"staged/internal/source"
	"staged/internal/trace"
	"staged/internal/value"
)

// ErrDivideByZero is the cause of division and modulo failures.
var ErrDivideByZero = errors.New("arith: division by zero")

// Compiler lowers arith graphs to closures over a per-evaluation frame of
// variables. It runs definite assignment and a type check first.
type Compiler struct {
	// Reporter receives semantic diagnostics in addition to the returned error.
	Reporter diag.Reporter
}

// New creates the compiler.
func New() *Compiler { return &Compiler{} }

// Domain implements compiler.Compiler.
func (c *Compiler) Domain() string { return Domain }

// ResultKind implements compiler.Compiler.
func (c *Compiler) ResultKind() value.Kind { return value.KindLong }

// Compile implements compiler.Compiler.
func (c *Compiler) Compile(ctx context.Context, g *expr.Graph, root expr.NodeID, b *bind.Binder) (bind.Closure, error) {
	if _, err := flow.Check(ctx, Domain, g, root, roles{}, c.Reporter); err != nil {
		return nil, err
	}

	span, _ := trace.Start(ctx, trace.ScopePass, "lower")
	bag := diag.NewBag(64)
	rep := diag.Tee(bag, c.Reporter)
	l := &lowerer{
		g:    g,
		b:    b,
		rep:  rep,
		memo: make(map[expr.NodeID]lowered),
		vars: make(map[expr.NodeID]int),
	}
	top, err := l.lower(root)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	if top.kind != value.KindLong && top.kind != value.KindInvalid {
		diag.ReportError(rep, diag.SemaResultMismatch, g.Provenance(root),
			fmt.Sprintf("program yields %s, want long", top.kind)).Emit()
	}
	if bag.HasErrors() {
		bag.Sort()
		err := &diag.SemanticError{Domain: Domain, Diags: bag.Items()}
		span.Fail(err)
		return nil, err
	}
	span.Set("vars", fmt.Sprint(len(l.vars))).End("")
	return &Program{run: top.run, vars: len(l.vars)}, nil
}

// Program is a compiled arith graph.
type Program struct {
	run  code
	vars int
}

// Eval implements bind.Closure. Every call gets its own variable frame.
func (p *Program) Eval(env *bind.Env) (value.Value, error) {
	fr := &frame{env: env, vars: make([]int64, p.vars)}
	return p.run(fr)
}

type frame struct {
	env  *bind.Env
	vars []int64
}

type code func(fr *frame) (value.Value, error)

type lowered struct {
	run  code
	kind value.Kind // KindInvalid after a reported type error
}

type lowerer struct {
	g    *expr.Graph
	b    *bind.Binder
	rep  diag.Reporter
	memo map[expr.NodeID]lowered
	vars map[expr.NodeID]int
}

func (l *lowerer) lower(id expr.NodeID) (lowered, error) {
	if lw, ok := l.memo[id]; ok {
		return lw, nil
	}
	var (
		lw  lowered
		err error
	)
	switch l.g.Kind(id) {
	case expr.NodeLeaf:
		lw, err = l.leaf(id)
	case expr.NodeOp:
		lw, err = l.op(id, l.g.Op(id))
	case expr.NodeInvalid:
		err = diag.NewCompileError(Domain, diag.GraphUnknownNode, l.g.Provenance(id), fmt.Sprintf("#%d", id), nil)
	}
	if err != nil {
		return lowered{}, err
	}
	l.memo[id] = lw
	return lw, nil
}

func (l *lowerer) leaf(id expr.NodeID) (lowered, error) {
	leaf := l.g.Leaf(id)
	kind := value.KindLong
	switch {
	case leaf.Type == value.KindBool:
		kind = value.KindBool
	case !leaf.Type.IsIntegral():
		l.typeError(diag.GraphBadLeafType, l.g.Provenance(id),
			fmt.Sprintf("leaf #%d has type %s", id, leaf.Type))
		kind = value.KindInvalid
	}
	cl, err := l.b.Bind(id)
	if err != nil {
		return lowered{}, diag.NewCompileError(Domain, diag.CompBinderSealed, l.g.Provenance(id), "bind leaf", err)
	}
	return lowered{kind: kind, run: func(fr *frame) (value.Value, error) {
		v, err := cl.Eval(fr.env)
		if err != nil || kind != value.KindLong {
			return v, err
		}
		return value.Long(v.AsLong()), nil
	}}, nil
}

func (l *lowerer) typeError(code diag.Code, at source.Provenance, msg string) {
	diag.ReportError(l.rep, code, at, msg).Emit()
}

func (l *lowerer) args(op *expr.Op) ([]lowered, error) {
	out := make([]lowered, 0, len(op.Args))
	for _, a := range op.Args {
		lw, err := l.lower(a)
		if err != nil {
			return nil, err
		}
		out = append(out, lw)
	}
	return out, nil
}

func (l *lowerer) want(lw lowered, kind value.Kind, code diag.Code, op *expr.Op, what string) {
	if lw.kind != kind && lw.kind != value.KindInvalid {
		l.typeError(code, op.Prov, fmt.Sprintf("%s of %s is %s, want %s", what, op.Member, lw.kind, kind))
	}
}

func (l *lowerer) op(id expr.NodeID, op *expr.Op) (lowered, error) {
	info, ok := ops[op.Member]
	if !ok {
		return lowered{}, diag.NewCompileError(Domain, diag.GraphUnknownMember, op.Prov, op.Member.String(), nil)
	}
	if len(op.Args) < info.minArgs || (info.maxArgs >= 0 && len(op.Args) > info.maxArgs) {
		return lowered{}, diag.NewCompileError(Domain, diag.GraphBadArity, op.Prov,
			fmt.Sprintf("%s has %d arguments", op.Member, len(op.Args)), nil)
	}

	switch op.Member {
	case MemberVar:
		return lowered{}, diag.NewCompileError(Domain, diag.CompUnsupportedNode, op.Prov,
			fmt.Sprintf("variable #%d used without read", id), nil)
	case MemberRead:
		slot := l.slot(op.Args[0])
		return lowered{kind: value.KindLong, run: func(fr *frame) (value.Value, error) {
			return value.Long(fr.vars[slot]), nil
		}}, nil
	case MemberAssign:
		slot := l.slot(op.Args[0])
		rhs, err := l.lower(op.Args[1])
		if err != nil {
			return lowered{}, err
		}
		l.want(rhs, value.KindLong, diag.SemaUnexpectedValue, op, "value")
		return lowered{kind: value.KindLong, run: func(fr *frame) (value.Value, error) {
			v, err := rhs.run(fr)
			if err != nil {
				return v, err
			}
			fr.vars[slot] = v.AsLong()
			return v, nil
		}}, nil
	}

	args, err := l.args(op)
	if err != nil {
		return lowered{}, err
	}
	switch op.Member {
	case MemberSeq:
		return seq(args), nil
	case MemberWhile:
		l.want(args[0], value.KindBool, diag.SemaNonBoolCond, op, "condition")
		return while(args[0], args[1]), nil
	case MemberIf:
		l.want(args[0], value.KindBool, diag.SemaNonBoolCond, op, "condition")
		var els *lowered
		if len(args) == 3 {
			els = &args[2]
		}
		return ifElse(args[0], args[1], els), nil
	case MemberNot:
		l.want(args[0], value.KindBool, diag.SemaUnexpectedValue, op, "operand")
		x := args[0].run
		return lowered{kind: value.KindBool, run: func(fr *frame) (value.Value, error) {
			v, err := x(fr)
			return value.Bool(!v.AsBool()), err
		}}, nil
	case MemberAnd, MemberOr:
		l.want(args[0], value.KindBool, diag.SemaUnexpectedValue, op, "left operand")
		l.want(args[1], value.KindBool, diag.SemaUnexpectedValue, op, "right operand")
		return logic(op.Member == MemberAnd, args[0].run, args[1].run), nil
	case MemberNeg:
		l.want(args[0], value.KindLong, diag.SemaUnexpectedValue, op, "operand")
		x := args[0].run
		return lowered{kind: value.KindLong, run: func(fr *frame) (value.Value, error) {
			v, err := x(fr)
			return value.Long(-v.AsLong()), err
		}}, nil
	}

	l.want(args[0], value.KindLong, diag.SemaUnexpectedValue, op, "left operand")
	l.want(args[1], value.KindLong, diag.SemaUnexpectedValue, op, "right operand")
	return binary(op, info.result, args[0].run, args[1].run), nil
}

// slot numbers variables in first-use order.
func (l *lowerer) slot(v expr.NodeID) int {
	if s, ok := l.vars[v]; ok {
		return s
	}
	s := len(l.vars)
	l.vars[v] = s
	return s
}

func seq(stmts []lowered) lowered {
	last := stmts[len(stmts)-1].kind
	runs := make([]code, len(stmts))
	for i, s := range stmts {
		runs[i] = s.run
	}
	return lowered{kind: last, run: func(fr *frame) (value.Value, error) {
		var v value.Value
		for _, r := range runs {
			var err error
			if v, err = r(fr); err != nil {
				return v, err
			}
		}
		return v, nil
	}}
}

func while(cond, body lowered) lowered {
	return lowered{kind: value.KindLong, run: func(fr *frame) (value.Value, error) {
		for {
			c, err := cond.run(fr)
			if err != nil {
				return c, err
			}
			if !c.AsBool() {
				return value.Long(0), nil
			}
			if v, err := body.run(fr); err != nil {
				return v, err
			}
		}
	}}
}

func ifElse(cond, then lowered, els *lowered) lowered {
	return lowered{kind: value.KindLong, run: func(fr *frame) (value.Value, error) {
		c, err := cond.run(fr)
		if err != nil {
			return c, err
		}
		var v value.Value
		switch {
		case c.AsBool():
			v, err = then.run(fr)
		case els != nil:
			v, err = els.run(fr)
		default:
			return value.Long(0), nil
		}
		if err != nil {
			return v, err
		}
		return value.Long(v.AsLong()), nil
	}}
}

func logic(and bool, x, y code) lowered {
	return lowered{kind: value.KindBool, run: func(fr *frame) (value.Value, error) {
		a, err := x(fr)
		if err != nil {
			return a, err
		}
		if a.AsBool() != and {
			return value.Bool(!and), nil
		}
		b, err := y(fr)
		return value.Bool(b.AsBool()), err
	}}
}

func binary(op *expr.Op, result value.Kind, x, y code) lowered {
	prov := op.Prov
	m := op.Member
	return lowered{kind: result, run: func(fr *frame) (value.Value, error) {
		a, err := x(fr)
		if err != nil {
			return a, err
		}
		b, err := y(fr)
		if err != nil {
			return b, err
		}
		p, q := a.AsLong(), b.AsLong()
		switch m {
		case MemberAdd:
			return value.Long(p + q), nil
		case MemberSub:
			return value.Long(p - q), nil
		case MemberMul:
			return value.Long(p * q), nil
		case MemberDiv, MemberMod:
			if q == 0 {
				return value.Value{}, &diag.EvalError{Code: diag.EvalDivideByZero, Prov: prov, Msg: m.String(), Err: ErrDivideByZero}
			}
			if m == MemberDiv {
				return value.Long(p / q), nil
			}
			return value.Long(p % q), nil
		case MemberLt:
			return value.Bool(p < q), nil
		case MemberLe:
			return value.Bool(p <= q), nil
		case MemberEq:
			return value.Bool(p == q), nil
		}
		return value.Value{}, fmt.Errorf("arith: no evaluator for %s", m)
	}}
}
