package arith

import (
	"staged/internal/expr"
	"staged/internal/source"
	"staged/internal/value"
)

// Builder captures arith programs into a graph. Every operation records the
// call site of the Builder method as its provenance.
type Builder struct {
	G *expr.Graph
}

// NewBuilder returns a builder over a fresh graph.
func NewBuilder() *Builder {
	return &Builder{G: expr.NewGraph(0)}
}

func (b *Builder) apply(m expr.Member, args ...expr.NodeID) expr.NodeID {
	return b.G.ApplyAt(m, source.Caller(2, m.String()), args...)
}

// Var declares a variable. Each call yields a distinct variable.
func (b *Builder) Var(name string) expr.NodeID {
	label, err := b.G.TryConst(value.Object(name), name)
	if err != nil {
		panic(err)
	}
	return b.apply(MemberVar, label)
}

// Lit is a constant.
func (b *Builder) Lit(n int64) expr.NodeID { return b.G.Const(value.Long(n)) }

// Param is a deferred long supplied at evaluation time.
func (b *Builder) Param(name string) expr.NodeID { return b.G.Deferred(value.KindLong, name) }

func (b *Builder) Assign(v, e expr.NodeID) expr.NodeID { return b.apply(MemberAssign, v, e) }
func (b *Builder) Read(v expr.NodeID) expr.NodeID      { return b.apply(MemberRead, v) }
func (b *Builder) Seq(stmts ...expr.NodeID) expr.NodeID {
	return b.apply(MemberSeq, stmts...)
}
func (b *Builder) While(cond, body expr.NodeID) expr.NodeID { return b.apply(MemberWhile, cond, body) }
func (b *Builder) If(cond, then expr.NodeID) expr.NodeID    { return b.apply(MemberIf, cond, then) }
func (b *Builder) IfElse(cond, then, els expr.NodeID) expr.NodeID {
	return b.apply(MemberIf, cond, then, els)
}
func (b *Builder) Add(x, y expr.NodeID) expr.NodeID { return b.apply(MemberAdd, x, y) }
func (b *Builder) Sub(x, y expr.NodeID) expr.NodeID { return b.apply(MemberSub, x, y) }
func (b *Builder) Mul(x, y expr.NodeID) expr.NodeID { return b.apply(MemberMul, x, y) }
func (b *Builder) Div(x, y expr.NodeID) expr.NodeID { return b.apply(MemberDiv, x, y) }
func (b *Builder) Mod(x, y expr.NodeID) expr.NodeID { return b.apply(MemberMod, x, y) }
func (b *Builder) Neg(x expr.NodeID) expr.NodeID    { return b.apply(MemberNeg, x) }
func (b *Builder) Lt(x, y expr.NodeID) expr.NodeID  { return b.apply(MemberLt, x, y) }
func (b *Builder) Le(x, y expr.NodeID) expr.NodeID  { return b.apply(MemberLe, x, y) }
func (b *Builder) Eq(x, y expr.NodeID) expr.NodeID  { return b.apply(MemberEq, x, y) }
func (b *Builder) Not(x expr.NodeID) expr.NodeID    { return b.apply(MemberNot, x) }
func (b *Builder) And(x, y expr.NodeID) expr.NodeID { return b.apply(MemberAnd, x, y) }
func (b *Builder) Or(x, y expr.NodeID) expr.NodeID  { return b.apply(MemberOr, x, y) }
