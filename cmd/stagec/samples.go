package main

import (
	"fmt"

	"staged/internal/capture"
	"staged/internal/expr"
	"staged/internal/lang/arith"
	"staged/internal/lang/seq"
	"staged/internal/value"
)

var builtins = capture.Resolver{Lookup: seq.Lookup, Name: seq.NameOf}

type sample struct {
	name   string
	domain string
	build  func() (*expr.Graph, expr.NodeID)
	runs   [][]value.Value
	expect []value.Value
}

func collatz(b *arith.Builder) expr.NodeID {
	n := b.Param("n")
	x, steps := b.Var("x"), b.Var("steps")
	return b.Seq(
		b.Assign(x, n),
		b.Assign(steps, b.Lit(0)),
		b.While(b.Not(b.Le(b.Read(x), b.Lit(1))),
			b.Seq(
				b.IfElse(b.Eq(b.Mod(b.Read(x), b.Lit(2)), b.Lit(0)),
					b.Assign(x, b.Div(b.Read(x), b.Lit(2))),
					b.Assign(x, b.Add(b.Mul(b.Read(x), b.Lit(3)), b.Lit(1)))),
				b.Assign(steps, b.Add(b.Read(steps), b.Lit(1))))),
		b.Read(steps))
}

func samples() []sample {
	list := func(xs ...int64) value.Value { return value.Object(value.Longs(xs...)) }
	return []sample{
		{
			name:   "collatz",
			domain: arith.Domain,
			build: func() (*expr.Graph, expr.NodeID) {
				b := arith.NewBuilder()
				return b.G, collatz(b)
			},
			runs:   [][]value.Value{{value.Long(6)}, {value.Long(27)}},
			expect: []value.Value{value.Long(8), value.Long(111)},
		},
		{
			name:   "even-squares",
			domain: seq.ReduceDomain,
			build: func() (*expr.Graph, expr.NodeID) {
				b := seq.NewBuilder()
				xs := b.Range(b.Long(0), b.Param("n"))
				return b.G, b.Sum(b.Map(b.Filter(xs, b.Fn("even")), b.Fn("square")))
			},
			runs:   [][]value.Value{{value.Long(5)}, {value.Long(7)}},
			expect: []value.Value{value.Long(20), value.Long(56)},
		},
		{
			name:   "shifted",
			domain: seq.Domain,
			build: func() (*expr.Graph, expr.NodeID) {
				b := seq.NewBuilder()
				return b.G, b.Map(b.Filter(b.Map(b.Input("xs"), b.Fn("double")), b.Fn("positive")), b.Plus(b.Param("k")))
			},
			runs:   [][]value.Value{{list(-1, 0, 2, 3), value.Long(10)}},
			expect: []value.Value{list(14, 16)},
		},
	}
}

func (s sample) record() (*capture.Recording, error) {
	g, root := s.build()
	rec, err := capture.Record(s.domain, g, root, builtins)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	for i, args := range s.runs {
		var want *value.Value
		if i < len(s.expect) {
			want = &s.expect[i]
		}
		if err := rec.AddRun(args, want, builtins); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return rec, nil
}
