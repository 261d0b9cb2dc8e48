// Package fusion collapses linear chains of elementary list operations into a
// single synthesized pass, memoized per isomorphism class.
package fusion

import (
	"strings"

	"staged/internal/expr"
	"staged/internal/synth"
)

// Classifier tells which operations a domain can fuse. A fusable operation
// takes its input as argument 0 and its function as argument 1.
type Classifier interface {
	StepKind(m expr.Member) (synth.StepKind, bool)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(m expr.Member) (synth.StepKind, bool)

// StepKind implements Classifier.
func (f ClassifierFunc) StepKind(m expr.Member) (synth.StepKind, bool) { return f(m) }

// Chain is a linear run of fusable operations above a source node.
type Chain struct {
	Source expr.NodeID   // first node that is not fused
	Ops    []expr.NodeID // fused operations, innermost (applied first) first
	Steps  []synth.Step
	Funcs  []expr.NodeID // function arguments in capture order
}

// Len returns the number of fused operations.
func (c Chain) Len() int { return len(c.Ops) }

func (c Chain) String() string {
	if len(c.Steps) == 0 {
		return "identity"
	}
	parts := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		parts[i] = s.Kind.String()
	}
	return strings.Join(parts, ".")
}

// Collect walks down argument 0 from top while operations are fusable. A node
// with more than one parent (per uses) is never folded into the chain, except
// top itself: its other parents read the chain's result, not its interior.
func Collect(g *expr.Graph, top expr.NodeID, uses []uint32, cls Classifier) Chain {
	var ops []expr.NodeID
	var kinds []synth.StepKind
	cur := top
	for {
		op := g.Op(cur)
		if op == nil || len(op.Args) != 2 {
			break
		}
		kind, ok := cls.StepKind(op.Member)
		if !ok {
			break
		}
		if cur != top && int(cur) < len(uses) && uses[cur] > 1 {
			break
		}
		ops = append(ops, cur)
		kinds = append(kinds, kind)
		cur = op.Args[0]
	}

	ch := Chain{Source: cur}
	for i := len(ops) - 1; i >= 0; i-- {
		ch.Ops = append(ch.Ops, ops[i])
		ch.Steps = append(ch.Steps, synth.Step{Kind: kinds[i], Capture: len(ch.Funcs)})
		ch.Funcs = append(ch.Funcs, g.Args(ops[i])[1])
	}
	return ch
}
