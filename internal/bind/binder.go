package bind

import (
	"errors"
	"fmt"

	"fortio.org/safecast"

	"staged/internal/expr"
	"staged/internal/value"
)

var (
	// ErrSealed is returned when a sealed Binder would need a new slot.
	ErrSealed = errors.New("bind: binder is sealed")
	// ErrNotLeaf is returned when Bind is called on an operation node.
	ErrNotLeaf = errors.New("bind: node is not a leaf")
	// ErrLayout is returned when evaluation arguments do not match the slots.
	ErrLayout = errors.New("bind: arguments do not match slot layout")
)

// Binder assigns a stable slot to every distinct deferred leaf met during one
// compilation. It is single-use and owned by exactly one compilation; Seal
// makes it read-only once the owning closure is produced.
type Binder struct {
	g      *expr.Graph
	slots  map[expr.NodeID]Slot
	leaves []expr.NodeID
	kinds  []value.Kind
	sealed bool
}

// NewBinder creates a Binder for leaves of g.
func NewBinder(g *expr.Graph) *Binder {
	return &Binder{
		g:     g,
		slots: make(map[expr.NodeID]Slot),
	}
}

// Graph returns the graph whose leaves this binder assigns.
func (b *Binder) Graph() *expr.Graph {
	return b.g
}

// Prepare assigns slots to every deferred leaf under root in post-order,
// arguments left to right. Isomorphic graphs therefore get identical slot
// layouts, and the layout is known before any compiler runs.
func (b *Binder) Prepare(root expr.NodeID) error {
	return expr.PostOrder(b.g, root, func(id expr.NodeID) error {
		leaf := b.g.Leaf(id)
		if leaf == nil || leaf.Binding != expr.BindDeferred {
			return nil
		}
		_, err := b.assign(id, leaf.Type)
		return err
	})
}

// Bind returns the closure for a leaf: constant leaves yield Const, deferred
// leaves yield a SlotRead for their (possibly new) slot.
func (b *Binder) Bind(id expr.NodeID) (Closure, error) {
	leaf := b.g.Leaf(id)
	if leaf == nil {
		return nil, fmt.Errorf("%w: #%d", ErrNotLeaf, id)
	}
	if leaf.Binding == expr.BindConst {
		return Const{V: leaf.Value}, nil
	}
	slot, err := b.assign(id, leaf.Type)
	if err != nil {
		return nil, err
	}
	return SlotRead{Slot: slot, Type: leaf.Type}, nil
}

func (b *Binder) assign(id expr.NodeID, kind value.Kind) (Slot, error) {
	if s, ok := b.slots[id]; ok {
		return s, nil
	}
	if b.sealed {
		return 0, fmt.Errorf("%w: deferred leaf #%d has no slot", ErrSealed, id)
	}
	n, err := safecast.Conv[uint32](len(b.leaves))
	if err != nil {
		return 0, fmt.Errorf("bind: slot overflow: %w", err)
	}
	s := Slot(n)
	b.slots[id] = s
	b.leaves = append(b.leaves, id)
	b.kinds = append(b.kinds, kind)
	return s, nil
}

// SlotOf returns the slot assigned to a deferred leaf.
func (b *Binder) SlotOf(id expr.NodeID) (Slot, bool) {
	s, ok := b.slots[id]
	return s, ok
}

// Len returns the number of assigned slots.
func (b *Binder) Len() int {
	return len(b.leaves)
}

// Leaves returns the deferred leaves in slot order.
func (b *Binder) Leaves() []expr.NodeID {
	out := make([]expr.NodeID, len(b.leaves))
	copy(out, b.leaves)
	return out
}

// Kinds returns the slot types in slot order.
func (b *Binder) Kinds() []value.Kind {
	out := make([]value.Kind, len(b.kinds))
	copy(out, b.kinds)
	return out
}

// Seal makes the binder read-only.
func (b *Binder) Seal() {
	b.sealed = true
}

// Sealed reports whether Seal was called.
func (b *Binder) Sealed() bool {
	return b.sealed
}

// NewEnv builds an Environment from args given in slot order.
func (b *Binder) NewEnv(args ...value.Value) (*Env, error) {
	if len(args) != len(b.kinds) {
		return nil, fmt.Errorf("%w: got %d values for %d slots", ErrLayout, len(args), len(b.kinds))
	}
	for i, v := range args {
		if v.Kind != b.kinds[i] {
			return nil, fmt.Errorf("%w: slot %d (leaf #%d) wants %s, got %s",
				ErrLayout, i, b.leaves[i], b.kinds[i], v.Kind)
		}
	}
	return NewEnv(args...), nil
}

// EnvFrom builds an Environment by looking up the value of each deferred leaf.
func (b *Binder) EnvFrom(lookup func(id expr.NodeID) (value.Value, bool)) (*Env, error) {
	args := make([]value.Value, len(b.leaves))
	for i, id := range b.leaves {
		v, ok := lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: no value for leaf #%d", ErrLayout, id)
		}
		args[i] = v
	}
	return b.NewEnv(args...)
}
