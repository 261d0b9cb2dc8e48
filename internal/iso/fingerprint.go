// Package iso implements structural equivalence of staged graphs.
//
// Two roots are isomorphic when they have the same node variants and the same
// operator identities at every position, ignoring which leaf instances (and
// which leaf values) they were built from, and when their sharing topologies
// correspond: a node shared by two parents on one side must be matched by a
// single node shared the same way on the other side.
package iso

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"staged/internal/expr"
)

const (
	tagLeaf byte = iota + 1
	tagOp
	tagInput
)

// Key wraps a graph root for use in hash tables. Hash is structure-only and
// Equal is the isomorphism check; neither looks at leaf values or identity.
//
// Frontier, when set, is a node inside the root's subgraph treated as an
// opaque input: it matches only the other key's frontier and is not descended.
type Key struct {
	G        *expr.Graph
	Root     expr.NodeID
	Frontier expr.NodeID
	hash     uint64
}

// NewKey fingerprints the whole subgraph under root.
func NewKey(g *expr.Graph, root expr.NodeID) Key {
	return ChainKey(g, root, expr.NoNodeID)
}

// ChainKey fingerprints the subgraph under root, cut at frontier.
func ChainKey(g *expr.Graph, root, frontier expr.NodeID) Key {
	return Key{G: g, Root: root, Frontier: frontier, hash: Fingerprint(g, root, frontier)}
}

// Hash returns the structural fingerprint.
func (k Key) Hash() uint64 { return k.hash }

func (k Key) String() string {
	return fmt.Sprintf("iso#%016x(root=#%d)", k.hash, k.Root)
}

// Fingerprint computes a bottom-up structural hash. Each distinct node is
// hashed once, so shared subgraphs cost nothing extra.
func Fingerprint(g *expr.Graph, root, frontier expr.NodeID) uint64 {
	memo := make([]uint64, g.Len()+1)
	done := make([]bool, g.Len()+1)
	var buf [8]byte

	var hash func(id expr.NodeID) uint64
	hash = func(id expr.NodeID) uint64 {
		if done[id] {
			return memo[id]
		}
		d := xxhash.New()
		switch {
		case id == frontier:
			_, _ = d.Write([]byte{tagInput})
		case g.Kind(id) == expr.NodeLeaf:
			leaf := g.Leaf(id)
			_, _ = d.Write([]byte{tagLeaf, byte(leaf.Type), byte(leaf.Binding)})
		case g.Kind(id) == expr.NodeOp:
			op := g.Op(id)
			_, _ = d.Write([]byte{tagOp})
			_, _ = d.WriteString(op.Member.Owner)
			_, _ = d.Write([]byte{0})
			_, _ = d.WriteString(op.Member.Name)
			_, _ = d.Write([]byte{0})
			binary.LittleEndian.PutUint64(buf[:], uint64(len(op.Args)))
			_, _ = d.Write(buf[:])
			for _, a := range op.Args {
				binary.LittleEndian.PutUint64(buf[:], hash(a))
				_, _ = d.Write(buf[:])
			}
		}
		memo[id] = d.Sum64()
		done[id] = true
		return memo[id]
	}
	if !g.Contains(root) {
		return 0
	}
	return hash(root)
}
