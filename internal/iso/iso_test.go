package iso

import (
	"testing"

	"staged/internal/expr"
	"staged/internal/value"
)

var (
	mapM    = expr.Member{Owner: "seq", Name: "map"}
	filterM = expr.Member{Owner: "seq", Name: "filter"}
	addM    = expr.Member{Owner: "arith", Name: "add"}
	negM    = expr.Member{Owner: "arith", Name: "neg"}
	rangeM  = expr.Member{Owner: "seq", Name: "range"}
)

// chain builds map(filter(map(src, f), p), h) with fresh leaves.
func chain(g *expr.Graph, src expr.NodeID, tag int64) expr.NodeID {
	f := g.Const(value.Object(tag))
	p := g.Deferred(value.KindObject, "p")
	h := g.Const(value.Object(tag + 1))
	return g.Apply(mapM, g.Apply(filterM, g.Apply(mapM, src, f), p), h)
}

func TestIsomorphicGraphsFromDistinctLeaves(t *testing.T) {
	g1 := expr.NewGraph(0)
	r1 := chain(g1, g1.Deferred(value.KindObject, "xs"), 1)
	g2 := expr.NewGraph(0)
	r2 := chain(g2, g2.Deferred(value.KindObject, "ys"), 100)

	k1, k2 := NewKey(g1, r1), NewKey(g2, r2)
	if k1.Hash() != k2.Hash() {
		t.Fatalf("hashes differ: %s vs %s", k1, k2)
	}
	if !Equal(k1, k2) || !Equal(k2, k1) {
		t.Fatal("isomorphic graphs must compare equal")
	}
}

func TestOperatorOrderDiscriminates(t *testing.T) {
	g := expr.NewGraph(0)
	xs := g.Deferred(value.KindObject, "xs")
	f := g.Deferred(value.KindObject, "f")
	mf := g.Apply(filterM, g.Apply(mapM, xs, f), f)
	fm := g.Apply(mapM, g.Apply(filterM, xs, f), f)

	a, b := NewKey(g, mf), NewKey(g, fm)
	if a.Hash() == b.Hash() {
		t.Fatal("operator order must change the fingerprint")
	}
	if Equal(a, b) {
		t.Fatal("operator order must break isomorphism")
	}
}

func TestLeafKindDiscriminates(t *testing.T) {
	g := expr.NewGraph(0)
	a := g.Apply(negM, g.Deferred(value.KindLong, "x"))
	b := g.Apply(negM, g.Deferred(value.KindInt, "x"))
	c := g.Apply(negM, g.Const(value.Long(1)))
	if Equal(NewKey(g, a), NewKey(g, b)) {
		t.Fatal("leaf types must take part in the comparison")
	}
	if Equal(NewKey(g, a), NewKey(g, c)) {
		t.Fatal("leaf binding must take part in the comparison")
	}
}

func TestSharingTopologyMustCorrespond(t *testing.T) {
	g := expr.NewGraph(0)
	x := g.Deferred(value.KindLong, "x")
	y := g.Deferred(value.KindLong, "y")
	shared := g.Apply(negM, x)
	diamond := g.Apply(addM, shared, shared)
	split := g.Apply(addM, g.Apply(negM, x), g.Apply(negM, y))
	splitSameLeaf := g.Apply(addM, g.Apply(negM, x), g.Apply(negM, x))

	kd, ks, kl := NewKey(g, diamond), NewKey(g, split), NewKey(g, splitSameLeaf)
	if kd.Hash() != ks.Hash() {
		t.Fatal("fingerprint is structure-only and must not see sharing")
	}
	if Equal(kd, ks) || Equal(ks, kd) {
		t.Fatal("shared node must not match two distinct nodes")
	}
	if Equal(kd, kl) || Equal(kl, kd) {
		t.Fatal("shared op must not match two distinct ops over a shared leaf")
	}
	if Equal(ks, kl) {
		t.Fatal("distinct leaves must not match one shared leaf")
	}

	g2 := expr.NewGraph(0)
	z := g2.Deferred(value.KindLong, "z")
	s2 := g2.Apply(negM, z)
	d2 := g2.Apply(addM, s2, s2)
	if !Equal(kd, NewKey(g2, d2)) {
		t.Fatal("diamonds with the same topology must match")
	}
}

func TestDeepSharingStaysLinear(t *testing.T) {
	build := func(label string) (*expr.Graph, expr.NodeID) {
		g := expr.NewGraph(0)
		n := g.Deferred(value.KindLong, label)
		for range 200 {
			n = g.Apply(addM, n, n)
		}
		return g, n
	}
	g1, r1 := build("a")
	g2, r2 := build("b")
	if !Equal(NewKey(g1, r1), NewKey(g2, r2)) {
		t.Fatal("deep diamonds must match")
	}
}

func TestChainKeyIgnoresSource(t *testing.T) {
	g1 := expr.NewGraph(0)
	src1 := g1.Apply(rangeM, g1.Const(value.Long(0)), g1.Const(value.Long(5)))
	r1 := chain(g1, src1, 1)
	g2 := expr.NewGraph(0)
	src2 := g2.Deferred(value.KindObject, "xs")
	r2 := chain(g2, src2, 2)

	if Equal(NewKey(g1, r1), NewKey(g2, r2)) {
		t.Fatal("different sources must differ without a frontier")
	}
	k1, k2 := ChainKey(g1, r1, src1), ChainKey(g2, r2, src2)
	if k1.Hash() != k2.Hash() || !Equal(k1, k2) {
		t.Fatal("chains cut at their sources must match")
	}
	// frontier on one side only
	if Equal(ChainKey(g1, r1, src1), NewKey(g2, r2)) {
		t.Fatal("frontier must only match a frontier")
	}
}
