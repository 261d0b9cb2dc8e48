// Package seq is a list-processing language whose map/filter chains are fused
// into single-pass units shared across isomorphic call sites.
package seq

import (
	"staged/internal/expr"
	"staged/internal/synth"
)

// Domain is the registry tag of list-valued programs; ReduceDomain is the tag
// of programs ending in sum or count.
const (
	Domain       = "seq"
	ReduceDomain = "seq.reduce"
)

func member(name string) expr.Member { return expr.Member{Owner: "seq", Name: name} }

var (
	// sources
	MemberRange = member("range") // range(lo, hi): [lo, hi)
	MemberList  = member("list")  // list(x...)

	// fusable steps: step(input, fn)
	MemberMap    = member("map")
	MemberFilter = member("filter")

	// sinks
	MemberSum   = member("sum")
	MemberCount = member("count")

	// function builders: f(k) yields a function closed over k
	MemberPlus  = member("plus")
	MemberTimes = member("times")
	MemberAbove = member("above")
	MemberBelow = member("below")
)

var steps = map[expr.Member]synth.StepKind{
	MemberMap:    synth.StepMap,
	MemberFilter: synth.StepFilter,
}

var sinks = map[expr.Member]synth.SinkKind{
	MemberSum:   synth.SinkSum,
	MemberCount: synth.SinkCount,
}

type classifier struct{}

func (classifier) StepKind(m expr.Member) (synth.StepKind, bool) {
	k, ok := steps[m]
	return k, ok
}
