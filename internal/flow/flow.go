// Package flow implements definite-assignment analysis over statement graphs.
//
// The analysis is a forward pass that keeps a conservative set of variables
// known to be assigned. Domains describe their statement forms through a
// Classifier; everything not classified is an expression whose arguments run
// left to right.
package flow

import (
	"context"
	"fmt"
	"slices"

	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/trace"
)

// StmtKind is the role a node plays for the analysis.
type StmtKind uint8

const (
	// StmtExpr evaluates its arguments in order.
	StmtExpr StmtKind = iota
	// StmtSeq runs its arguments as statements in order.
	StmtSeq
	// StmtVar declares a variable; the node itself is the variable.
	StmtVar
	// StmtAssign assigns argument 1 to the variable in argument 0.
	StmtAssign
	// StmtRead reads the variable in argument 0.
	StmtRead
	// StmtLoop runs argument 0 as condition and argument 1 as body, zero or more times.
	StmtLoop
	// StmtIf runs argument 0 as condition, then argument 1 or the optional argument 2.
	StmtIf
)

func (k StmtKind) String() string {
	switch k {
	case StmtExpr:
		return "expr"
	case StmtSeq:
		return "seq"
	case StmtVar:
		return "var"
	case StmtAssign:
		return "assign"
	case StmtRead:
		return "read"
	case StmtLoop:
		return "loop"
	case StmtIf:
		return "if"
	default:
		return fmt.Sprintf("StmtKind(%d)", k)
	}
}

// Classifier maps operation members to statement roles.
type Classifier interface {
	StmtKind(m expr.Member) StmtKind
}

// VarSet is an immutable set of variable nodes.
type VarSet struct {
	m map[expr.NodeID]struct{}
}

// Has reports whether v is in the set.
func (s VarSet) Has(v expr.NodeID) bool {
	_, ok := s.m[v]
	return ok
}

// Len returns the set size.
func (s VarSet) Len() int { return len(s.m) }

// Sorted returns the members in ascending order.
func (s VarSet) Sorted() []expr.NodeID {
	out := make([]expr.NodeID, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (s VarSet) with(v expr.NodeID) VarSet {
	if s.Has(v) {
		return s
	}
	m := make(map[expr.NodeID]struct{}, len(s.m)+1)
	for k := range s.m {
		m[k] = struct{}{}
	}
	m[v] = struct{}{}
	return VarSet{m: m}
}

func (s VarSet) intersect(o VarSet) VarSet {
	m := make(map[expr.NodeID]struct{})
	for k := range s.m {
		if o.Has(k) {
			m[k] = struct{}{}
		}
	}
	return VarSet{m: m}
}

// Result is the outcome of a successful analysis.
type Result struct {
	// Defined holds the variables assigned on every path through root.
	Defined VarSet
	// Vars holds every variable node met, in ascending order.
	Vars []expr.NodeID
}

type analyzer struct {
	g    *expr.Graph
	cls  Classifier
	rep  diag.Reporter
	vars map[expr.NodeID]struct{}
}

// Check analyzes root. Findings go to rep (may be nil) and, when any of them
// is an error, are also returned as a *diag.SemanticError for domain.
func Check(ctx context.Context, domain string, g *expr.Graph, root expr.NodeID, cls Classifier, rep diag.Reporter) (Result, error) {
	span, _ := trace.Start(ctx, trace.ScopePass, "analyze")

	bag := diag.NewBag(64)
	a := &analyzer{
		g:    g,
		cls:  cls,
		rep:  diag.Unique(diag.Tee(bag, rep)),
		vars: make(map[expr.NodeID]struct{}),
	}
	out := a.stmt(root, VarSet{})

	res := Result{Defined: out}
	for v := range a.vars {
		res.Vars = append(res.Vars, v)
	}
	slices.Sort(res.Vars)

	if bag.HasErrors() {
		bag.Sort()
		err := &diag.SemanticError{Domain: domain, Diags: bag.Items()}
		span.Set("diags", bag.Len()).Fail(err)
		return res, err
	}
	span.Set("vars", fmt.Sprint(len(res.Vars))).End("")
	return res, nil
}

func (a *analyzer) stmt(id expr.NodeID, in VarSet) VarSet {
	op := a.g.Op(id)
	if op == nil {
		return in
	}
	args := op.Args
	switch a.cls.StmtKind(op.Member) {
	case StmtVar:
		a.vars[id] = struct{}{}
		return in

	case StmtAssign:
		if len(args) != 2 {
			a.arity(id, op, 2)
			return in
		}
		out := a.stmt(args[1], in)
		if !a.isVar(args[0]) {
			diag.ReportError(a.rep, diag.SemaAssignNotVar, op.Prov,
				fmt.Sprintf("cannot assign to #%d", args[0])).Emit()
			return out
		}
		return out.with(args[0])

	case StmtRead:
		if len(args) != 1 {
			a.arity(id, op, 1)
			return in
		}
		if !a.isVar(args[0]) {
			diag.ReportError(a.rep, diag.SemaReadNotVar, op.Prov,
				fmt.Sprintf("cannot read #%d", args[0])).Emit()
			return in
		}
		if !in.Has(args[0]) {
			b := diag.ReportError(a.rep, diag.SemaUndefinedVar, op.Prov,
				fmt.Sprintf("variable %s may be read before it is assigned", a.varName(args[0])))
			if decl := a.g.Provenance(args[0]); !decl.IsZero() {
				b.WithNote(decl, "declared here")
			}
			b.Emit()
		}
		return in

	case StmtLoop:
		if len(args) != 2 {
			a.arity(id, op, 2)
			return in
		}
		cond := a.stmt(args[0], in)
		a.stmt(args[1], cond)
		// The body may run zero times; whatever it assigns is not kept.
		return cond

	case StmtIf:
		if len(args) != 2 && len(args) != 3 {
			a.arity(id, op, 3)
			return in
		}
		cond := a.stmt(args[0], in)
		then := a.stmt(args[1], cond)
		els := cond
		if len(args) == 3 {
			els = a.stmt(args[2], cond)
		}
		return then.intersect(els)

	default: // StmtExpr, StmtSeq
		out := in
		for _, arg := range args {
			out = a.stmt(arg, out)
		}
		return out
	}
}

func (a *analyzer) isVar(id expr.NodeID) bool {
	op := a.g.Op(id)
	if op == nil || a.cls.StmtKind(op.Member) != StmtVar {
		return false
	}
	a.vars[id] = struct{}{}
	return true
}

func (a *analyzer) varName(id expr.NodeID) string {
	for _, arg := range a.g.Args(id) {
		if leaf := a.g.Leaf(arg); leaf != nil && leaf.Label != "" {
			return fmt.Sprintf("%q", leaf.Label)
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (a *analyzer) arity(id expr.NodeID, op *expr.Op, want int) {
	diag.ReportError(a.rep, diag.GraphBadArity, op.Prov,
		fmt.Sprintf("%s (#%d) has %d arguments, want %d", op.Member, id, len(op.Args), want)).Emit()
}
