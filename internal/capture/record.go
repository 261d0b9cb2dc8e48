// Package capture stores staged call chains as msgpack recordings and
// replays them through the stage engine.
//
// A recording holds the graph of one root, the domain tag, and one or more
// argument sets in slot order. Host functions are stored by name and
// resolved on load.
package capture

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"staged/internal/expr"
	"staged/internal/source"
	"staged/internal/value"
)

// schemaVersion is bumped whenever Recording changes shape.
const schemaVersion uint16 = 2

var (
	// ErrSchema is returned for recordings written by another schema version.
	ErrSchema = errors.New("capture: unsupported schema")
	// ErrUnresolved is returned for function names the resolver does not know.
	ErrUnresolved = errors.New("capture: unresolved function")
	// ErrUnnamed is returned when a function value has no name to store.
	ErrUnnamed = errors.New("capture: function has no name")
)

// Recording is the on-disk form of a staged call chain.
type Recording struct {
	Schema uint16
	Domain string
	Root   uint32 // index into Nodes, 1-based
	Nodes  []Node
	Runs   [][]Val // argument sets in slot order
	Expect []*Val  `msgpack:",omitempty"` // expected result per run, nil when unchecked
}

// Node is a leaf or an operation. Args index earlier Nodes, 1-based.
type Node struct {
	Op bool

	Type     string `msgpack:",omitempty"`
	Deferred bool   `msgpack:",omitempty"`
	Label    string `msgpack:",omitempty"`
	Value    *Val   `msgpack:",omitempty"`

	Owner string   `msgpack:",omitempty"`
	Name  string   `msgpack:",omitempty"`
	Args  []uint32 `msgpack:",omitempty"`
	Decl  string   `msgpack:",omitempty"`
	File  string   `msgpack:",omitempty"`
	Line  uint32   `msgpack:",omitempty"`
	Col   uint32   `msgpack:",omitempty"`
}

// Val is a recorded value. Kind is a value kind name for scalars and one of
// "list", "func" or "string" for objects.
type Val struct {
	Kind  string
	Int   int64   `msgpack:",omitempty"`
	Float float64 `msgpack:",omitempty"`
	Str   string  `msgpack:",omitempty"`
	List  []Val   `msgpack:",omitempty"`
}

// Resolver maps host functions to names and back.
type Resolver struct {
	Lookup func(name string) (value.Value, bool)
	Name   func(v value.Value) (string, bool)
}

// Record captures the subgraph under root. Nodes are stored in post-order,
// so every argument precedes its parent and sharing is kept. Labels, file
// names and strings are stored in NFC.
func Record(domain string, g *expr.Graph, root expr.NodeID, r Resolver) (*Recording, error) {
	rec := &Recording{Schema: schemaVersion, Domain: domain}
	index := make(map[expr.NodeID]uint32)
	err := expr.PostOrder(g, root, func(id expr.NodeID) error {
		n, err := recordNode(g, id, index, r)
		if err != nil {
			return err
		}
		rec.Nodes = append(rec.Nodes, n)
		idx, err := safecast.Conv[uint32](len(rec.Nodes))
		if err != nil {
			return err
		}
		index[id] = idx
		return nil
	})
	if err != nil {
		return nil, err
	}
	rec.Root = index[root]
	return rec, nil
}

func recordNode(g *expr.Graph, id expr.NodeID, index map[expr.NodeID]uint32, r Resolver) (Node, error) {
	if leaf := g.Leaf(id); leaf != nil {
		n := Node{Type: leaf.Type.String(), Deferred: leaf.Binding == expr.BindDeferred, Label: norm.NFC.String(leaf.Label)}
		if leaf.Binding == expr.BindConst {
			v, err := EncodeValue(leaf.Value, r)
			if err != nil {
				return Node{}, fmt.Errorf("leaf #%d: %w", id, err)
			}
			n.Value = &v
		}
		return n, nil
	}
	op := g.Op(id)
	n := Node{
		Op:    true,
		Owner: op.Member.Owner,
		Name:  op.Member.Name,
		Args:  make([]uint32, len(op.Args)),
		Decl:  op.Prov.Decl,
		File:  norm.NFC.String(op.Prov.Pos.File),
		Line:  op.Prov.Pos.Line,
		Col:   op.Prov.Pos.Col,
	}
	for i, a := range op.Args {
		n.Args[i] = index[a]
	}
	return n, nil
}

// AddRun appends one argument set and its expected result. A nil expect
// records the run without a check. Expect always has one entry per run.
func (rec *Recording) AddRun(args []value.Value, expect *value.Value, r Resolver) error {
	run := make([]Val, len(args))
	for i, a := range args {
		v, err := EncodeValue(a, r)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		run[i] = v
	}
	var want *Val
	if expect != nil {
		v, err := EncodeValue(*expect, r)
		if err != nil {
			return fmt.Errorf("expected result: %w", err)
		}
		want = &v
	}
	rec.Runs = append(rec.Runs, run)
	rec.Expect = append(rec.Expect, want)
	return nil
}

// Expectation returns the expected result of run i, or nil when the run is
// unchecked.
func (rec *Recording) Expectation(i int) *Val {
	if i < 0 || i >= len(rec.Expect) {
		return nil
	}
	return rec.Expect[i]
}

// Graph rebuilds the recorded graph. The result is unsealed.
func (rec *Recording) Graph(r Resolver) (*expr.Graph, expr.NodeID, error) {
	if rec.Schema != schemaVersion {
		return nil, expr.NoNodeID, fmt.Errorf("%w: %d (want %d)", ErrSchema, rec.Schema, schemaVersion)
	}
	capHint, err := safecast.Conv[uint](len(rec.Nodes))
	if err != nil {
		return nil, expr.NoNodeID, err
	}
	g := expr.NewGraph(capHint)
	ids := make([]expr.NodeID, len(rec.Nodes)+1)
	for i, n := range rec.Nodes {
		id, err := rebuildNode(g, n, ids[:i+1], r)
		if err != nil {
			return nil, expr.NoNodeID, fmt.Errorf("node %d: %w", i+1, err)
		}
		ids[i+1] = id
	}
	if rec.Root == 0 || int(rec.Root) > len(rec.Nodes) {
		return nil, expr.NoNodeID, fmt.Errorf("capture: root %d out of range", rec.Root)
	}
	return g, ids[rec.Root], nil
}

func rebuildNode(g *expr.Graph, n Node, ids []expr.NodeID, r Resolver) (expr.NodeID, error) {
	if !n.Op {
		kind, err := value.ParseKind(n.Type)
		if err != nil {
			return expr.NoNodeID, err
		}
		if n.Deferred {
			return g.TryDeferred(kind, n.Label)
		}
		if n.Value == nil {
			return expr.NoNodeID, errors.New("capture: constant leaf without value")
		}
		v, err := DecodeValue(*n.Value, r)
		if err != nil {
			return expr.NoNodeID, err
		}
		return g.TryConst(v, n.Label)
	}
	args := make([]expr.NodeID, len(n.Args))
	for i, a := range n.Args {
		if a == 0 || int(a) >= len(ids) {
			return expr.NoNodeID, fmt.Errorf("capture: forward reference to node %d", a)
		}
		args[i] = ids[a]
	}
	prov := source.At(n.Decl, n.File, n.Line, n.Col)
	return g.TryApply(expr.Member{Owner: n.Owner, Name: n.Name}, prov, args...)
}

// Args decodes run i.
func (rec *Recording) Args(i int, r Resolver) ([]value.Value, error) {
	out := make([]value.Value, len(rec.Runs[i]))
	for j, v := range rec.Runs[i] {
		dv, err := DecodeValue(v, r)
		if err != nil {
			return nil, fmt.Errorf("run %d argument %d: %w", i, j, err)
		}
		out[j] = dv
	}
	return out, nil
}
