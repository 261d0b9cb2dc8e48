package expr

import (
	"fmt"
	"strings"
)

// Visitor receives one callback per node variant.
type Visitor interface {
	VisitLeaf(id NodeID, leaf *Leaf) error
	VisitOp(id NodeID, op *Op) error
}

// Accept dispatches id to the matching Visitor method.
func (g *Graph) Accept(id NodeID, v Visitor) error {
	switch g.Kind(id) {
	case NodeLeaf:
		return v.VisitLeaf(id, g.Leaf(id))
	case NodeOp:
		return v.VisitOp(id, g.Op(id))
	case NodeInvalid:
		return fmt.Errorf("%w: #%d", ErrUnknownNode, id)
	}
	return fmt.Errorf("expr: unhandled node kind %s", g.Kind(id))
}

// PostOrder calls fn once for every distinct node reachable from root,
// arguments before parents, arguments left to right.
func PostOrder(g *Graph, root NodeID, fn func(id NodeID) error) error {
	if !g.Contains(root) {
		return fmt.Errorf("%w: #%d", ErrUnknownNode, root)
	}
	seen := make([]bool, g.Len()+1)
	var walk func(id NodeID) error
	walk = func(id NodeID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		for _, a := range g.Args(id) {
			if err := walk(a); err != nil {
				return err
			}
		}
		return fn(id)
	}
	return walk(root)
}

// Uses counts, for every node reachable from root, the argument edges that
// point at it from distinct reachable parents. The root itself has 0 uses.
// The result is indexed by NodeID.
func Uses(g *Graph, root NodeID) []uint32 {
	uses := make([]uint32, g.Len()+1)
	_ = PostOrder(g, root, func(id NodeID) error {
		for _, a := range g.Args(id) {
			uses[a]++
		}
		return nil
	})
	return uses
}

// Reachable returns the number of distinct nodes reachable from root.
func Reachable(g *Graph, root NodeID) int {
	n := 0
	_ = PostOrder(g, root, func(NodeID) error {
		n++
		return nil
	})
	return n
}

// Dump renders the subgraph under root as an indented tree. A node already
// printed is rendered as a back reference "^#id".
func Dump(g *Graph, root NodeID) string {
	var sb strings.Builder
	printed := make(map[NodeID]bool)
	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		if printed[id] {
			fmt.Fprintf(&sb, "^#%d\n", id)
			return
		}
		printed[id] = true
		switch g.Kind(id) {
		case NodeLeaf:
			leaf := g.Leaf(id)
			fmt.Fprintf(&sb, "#%d %s %s", id, leaf.Binding, leaf.Type)
			if leaf.Label != "" {
				fmt.Fprintf(&sb, " %q", leaf.Label)
			}
			if leaf.Binding == BindConst {
				fmt.Fprintf(&sb, " = %s", leaf.Value)
			}
			sb.WriteString("\n")
		case NodeOp:
			op := g.Op(id)
			fmt.Fprintf(&sb, "#%d %s/%d\n", id, op.Member, len(op.Args))
			for _, a := range op.Args {
				walk(a, depth+1)
			}
		default:
			fmt.Fprintf(&sb, "#%d <invalid>\n", id)
		}
	}
	walk(root, 0)
	return sb.String()
}
