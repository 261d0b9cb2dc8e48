package iso

import "staged/internal/expr"

// Equal reports whether a and b are isomorphic.
//
// The recursion threads a joint translation table (fwd: a→b, rev: b→a). A pair
// already in the table is accepted without re-validation, which keeps deeply
// shared graphs linear. A node paired with two different partners means the
// sharing topologies differ and the keys are not equal.
func Equal(a, b Key) bool {
	if a.hash != b.hash {
		return false
	}
	if a.G == b.G && a.Root == b.Root && a.Frontier == b.Frontier {
		return true
	}
	m := matcher{
		ga:  a.G,
		gb:  b.G,
		fa:  a.Frontier,
		fb:  b.Frontier,
		fwd: make(map[expr.NodeID]expr.NodeID),
		rev: make(map[expr.NodeID]expr.NodeID),
	}
	return m.match(a.Root, b.Root)
}

type matcher struct {
	ga, gb *expr.Graph
	fa, fb expr.NodeID
	fwd    map[expr.NodeID]expr.NodeID
	rev    map[expr.NodeID]expr.NodeID
}

func (m *matcher) match(x, y expr.NodeID) bool {
	if paired, ok := m.fwd[x]; ok {
		return paired == y
	}
	if _, ok := m.rev[y]; ok {
		// y already belongs to another node of a
		return false
	}

	isFx, isFy := x == m.fa && m.fa != expr.NoNodeID, y == m.fb && m.fb != expr.NoNodeID
	if isFx || isFy {
		if isFx != isFy {
			return false
		}
		m.pair(x, y)
		return true
	}

	kx, ky := m.ga.Kind(x), m.gb.Kind(y)
	if kx != ky {
		return false
	}
	switch kx {
	case expr.NodeLeaf:
		lx, ly := m.ga.Leaf(x), m.gb.Leaf(y)
		if lx.Type != ly.Type || lx.Binding != ly.Binding {
			return false
		}
		m.pair(x, y)
		return true
	case expr.NodeOp:
		ox, oy := m.ga.Op(x), m.gb.Op(y)
		if ox.Member != oy.Member || len(ox.Args) != len(oy.Args) {
			return false
		}
		m.pair(x, y)
		for i := range ox.Args {
			if !m.match(ox.Args[i], oy.Args[i]) {
				return false
			}
		}
		return true
	case expr.NodeInvalid:
		return false
	}
	return false
}

func (m *matcher) pair(x, y expr.NodeID) {
	m.fwd[x] = y
	m.rev[y] = x
}
