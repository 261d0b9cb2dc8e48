package seq

import (
	"fmt"

	"staged/internal/expr"
	"staged/internal/source"
	"staged/internal/value"
)

// Builder captures list programs into a graph, recording call sites.
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

// Input is a deferred list supplied at evaluation time.
func (b *Builder) Input(name string) expr.NodeID { return b.G.Deferred(value.KindObject, name) }

// Longs is a constant list.
func (b *Builder) Longs(xs ...int64) expr.NodeID {
	id, err := b.G.TryConst(value.Object(value.Longs(xs...)), "")
	if err != nil {
		panic(err)
	}
	return id
}

// Long is a constant long.
func (b *Builder) Long(n int64) expr.NodeID { return b.G.Const(value.Long(n)) }

// Param is a deferred long.
func (b *Builder) Param(name string) expr.NodeID { return b.G.Deferred(value.KindLong, name) }

// Fn is a constant builtin function. It panics for unknown names.
func (b *Builder) Fn(name string) expr.NodeID {
	fn, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("seq: unknown builtin %q", name))
	}
	id, err := b.G.TryConst(fn, name)
	if err != nil {
		panic(err)
	}
	return id
}

// FnParam is a function supplied at evaluation time.
func (b *Builder) FnParam(name string) expr.NodeID { return b.G.Deferred(value.KindObject, name) }

func (b *Builder) Range(lo, hi expr.NodeID) expr.NodeID    { return b.apply(MemberRange, lo, hi) }
func (b *Builder) List(xs ...expr.NodeID) expr.NodeID      { return b.apply(MemberList, xs...) }
func (b *Builder) Map(xs, f expr.NodeID) expr.NodeID       { return b.apply(MemberMap, xs, f) }
func (b *Builder) Filter(xs, pred expr.NodeID) expr.NodeID { return b.apply(MemberFilter, xs, pred) }
func (b *Builder) Sum(xs expr.NodeID) expr.NodeID          { return b.apply(MemberSum, xs) }
func (b *Builder) Count(xs expr.NodeID) expr.NodeID        { return b.apply(MemberCount, xs) }
func (b *Builder) Plus(k expr.NodeID) expr.NodeID          { return b.apply(MemberPlus, k) }
func (b *Builder) Times(k expr.NodeID) expr.NodeID         { return b.apply(MemberTimes, k) }
func (b *Builder) Above(k expr.NodeID) expr.NodeID         { return b.apply(MemberAbove, k) }
func (b *Builder) Below(k expr.NodeID) expr.NodeID         { return b.apply(MemberBelow, k) }
