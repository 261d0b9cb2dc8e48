// Package expr implements the staged expression graph: an append-only arena of
// typed value leaves and operation nodes addressed by stable NodeID handles.
//
// A node may be the argument of several parents. Such sharing is part of the
// graph's meaning: two equal-looking subgraphs reached by different paths are
// the same node only when they have the same NodeID.
package expr

import (
	"errors"
	"fmt"
	"sync/atomic"

	"staged/internal/source"
	"staged/internal/value"
)

// NodeID addresses a node inside one Graph. Identity equality is NodeID equality.
type NodeID uint32

// NoNodeID is the reserved zero handle.
const NoNodeID NodeID = 0

// NodeKind is the closed set of node variants.
type NodeKind uint8

const (
	// NodeInvalid marks a handle that does not address a node.
	NodeInvalid NodeKind = iota
	// NodeLeaf is a typed value leaf.
	NodeLeaf
	// NodeOp is an operation over ordered arguments.
	NodeOp
)

// String returns a human-readable name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case NodeLeaf:
		return "Leaf"
	case NodeOp:
		return "Op"
	default:
		return "Invalid"
	}
}

// Binding tells whether a leaf's value is known at construction time.
type Binding uint8

const (
	// BindConst leaves carry their value and may be inlined.
	BindConst Binding = iota
	// BindDeferred leaves get their value from an Environment slot.
	BindDeferred
)

func (b Binding) String() string {
	if b == BindDeferred {
		return "deferred"
	}
	return "const"
}

// Leaf is the payload of a NodeLeaf.
type Leaf struct {
	Type    value.Kind
	Binding Binding
	Value   value.Value // only for BindConst
	Label   string      // optional name for diagnostics
}

// Member is the operator identity of an operation node.
type Member struct {
	Owner string // domain or declaring type, e.g. "seq"
	Name  string // operation name, e.g. "map"
}

func (m Member) String() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "." + m.Name
}

// Op is the payload of a NodeOp.
type Op struct {
	Member Member
	Args   []NodeID
	Prov   source.Provenance
}

// Node is the arena record; Payload indexes the per-kind arena.
type Node struct {
	Kind    NodeKind
	Payload uint32
}

var (
	// ErrSealed is returned when a sealed graph is extended.
	ErrSealed = errors.New("expr: graph is sealed")
	// ErrUnknownNode is returned for handles that do not belong to the graph.
	ErrUnknownNode = errors.New("expr: unknown node")
)

// Graph owns the nodes of one or more staged roots.
//
// Nodes can only reference nodes allocated before them, so every graph is
// acyclic by construction. Building is single-goroutine; after Seal the graph
// is read-only and may be shared freely.
type Graph struct {
	nodes  *Arena[Node]
	leaves *Arena[Leaf]
	ops    *Arena[Op]
	sealed atomic.Bool
}

// NewGraph creates an empty graph. capHint of 0 selects a small default.
func NewGraph(capHint uint) *Graph {
	if capHint == 0 {
		capHint = 1 << 5
	}
	return &Graph{
		nodes:  NewArena[Node](capHint),
		leaves: NewArena[Leaf](capHint),
		ops:    NewArena[Op](capHint),
	}
}

// Seal makes the graph read-only. Sealing twice is a no-op.
func (g *Graph) Seal() {
	g.sealed.Store(true)
}

// Sealed reports whether Seal was called.
func (g *Graph) Sealed() bool {
	return g.sealed.Load()
}

// TryConst adds a constant leaf holding v.
func (g *Graph) TryConst(v value.Value, label string) (NodeID, error) {
	if g.Sealed() {
		return NoNodeID, ErrSealed
	}
	if v.Kind == value.KindInvalid {
		return NoNodeID, fmt.Errorf("expr: constant leaf %q has invalid kind", label)
	}
	payload := g.leaves.Allocate(Leaf{Type: v.Kind, Binding: BindConst, Value: v, Label: label})
	return NodeID(g.nodes.Allocate(Node{Kind: NodeLeaf, Payload: payload})), nil
}

// TryDeferred adds a deferred leaf of the given type.
func (g *Graph) TryDeferred(kind value.Kind, label string) (NodeID, error) {
	if g.Sealed() {
		return NoNodeID, ErrSealed
	}
	if kind == value.KindInvalid || kind > value.KindObject {
		return NoNodeID, fmt.Errorf("expr: deferred leaf %q has invalid kind %s", label, kind)
	}
	payload := g.leaves.Allocate(Leaf{Type: kind, Binding: BindDeferred, Label: label})
	return NodeID(g.nodes.Allocate(Node{Kind: NodeLeaf, Payload: payload})), nil
}

// TryApply adds an operation node over already existing arguments.
func (g *Graph) TryApply(m Member, prov source.Provenance, args ...NodeID) (NodeID, error) {
	if g.Sealed() {
		return NoNodeID, ErrSealed
	}
	if m.Name == "" {
		return NoNodeID, errors.New("expr: operation without a member name")
	}
	for i, a := range args {
		if !g.Contains(a) {
			return NoNodeID, fmt.Errorf("%w: argument %d of %s is #%d", ErrUnknownNode, i, m, a)
		}
	}
	own := make([]NodeID, len(args))
	copy(own, args)
	payload := g.ops.Allocate(Op{Member: m, Args: own, Prov: prov})
	return NodeID(g.nodes.Allocate(Node{Kind: NodeOp, Payload: payload})), nil
}

// Const is TryConst for builders that treat misuse as a programming error.
func (g *Graph) Const(v value.Value) NodeID {
	return must(g.TryConst(v, ""))
}

// Deferred is TryDeferred that panics on misuse.
func (g *Graph) Deferred(kind value.Kind, label string) NodeID {
	return must(g.TryDeferred(kind, label))
}

// Apply is TryApply without provenance that panics on misuse.
func (g *Graph) Apply(m Member, args ...NodeID) NodeID {
	return must(g.TryApply(m, source.Provenance{}, args...))
}

// ApplyAt is TryApply that panics on misuse.
func (g *Graph) ApplyAt(m Member, prov source.Provenance, args ...NodeID) NodeID {
	return must(g.TryApply(m, prov, args...))
}

func must(id NodeID, err error) NodeID {
	if err != nil {
		panic(err)
	}
	return id
}

// Len returns the number of nodes; valid handles are 1..Len().
func (g *Graph) Len() int {
	return int(g.nodes.Len())
}

// Contains reports whether id addresses a node of g.
func (g *Graph) Contains(id NodeID) bool {
	return g.nodes.Get(uint32(id)) != nil
}

// Kind returns the variant of id, NodeInvalid for foreign handles.
func (g *Graph) Kind(id NodeID) NodeKind {
	n := g.nodes.Get(uint32(id))
	if n == nil {
		return NodeInvalid
	}
	return n.Kind
}

// Leaf returns the leaf payload or nil if id is not a leaf.
func (g *Graph) Leaf(id NodeID) *Leaf {
	n := g.nodes.Get(uint32(id))
	if n == nil || n.Kind != NodeLeaf {
		return nil
	}
	return g.leaves.Get(n.Payload)
}

// Op returns the operation payload or nil if id is not an operation.
func (g *Graph) Op(id NodeID) *Op {
	n := g.nodes.Get(uint32(id))
	if n == nil || n.Kind != NodeOp {
		return nil
	}
	return g.ops.Get(n.Payload)
}

// Args returns the ordered arguments of an operation, nil for leaves.
// READONLY
func (g *Graph) Args(id NodeID) []NodeID {
	if op := g.Op(id); op != nil {
		return op.Args
	}
	return nil
}

// Provenance returns the provenance of an operation node, zero for leaves.
func (g *Graph) Provenance(id NodeID) source.Provenance {
	if op := g.Op(id); op != nil {
		return op.Prov
	}
	return source.Provenance{}
}
