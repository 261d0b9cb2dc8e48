// Package synth turns a fused operation plan into an invocable unit.
//
// A Request names the call signature, the body (an ordered list of steps and
// a sink) and the number of host functions the body calls. The functions
// themselves are not part of the request: they are supplied on every Run, so
// one Unit serves every isomorphic call site.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staged/internal/value"
)

var (
	// ErrMalformedBody is returned when a body cannot be lowered.
	ErrMalformedBody = errors.New("synth: malformed body")
	// ErrMissingCapture is returned when a step calls a capture the request does not declare.
	ErrMissingCapture = errors.New("synth: missing capture")
	// ErrBadCapture is returned by Run when a capture is not a callable of the expected shape.
	ErrBadCapture = errors.New("synth: capture has the wrong shape")
)

// StepKind is the closed set of elementary operations.
type StepKind uint8

const (
	// StepMap replaces the rolling value with f(value).
	StepMap StepKind = iota + 1
	// StepFilter drops the element when p(value) is false.
	StepFilter
)

func (k StepKind) String() string {
	switch k {
	case StepMap:
		return "map"
	case StepFilter:
		return "filter"
	default:
		return fmt.Sprintf("StepKind(%d)", k)
	}
}

// SinkKind selects what the unit does with surviving elements.
type SinkKind uint8

const (
	// SinkCollect gathers surviving elements into a list.
	SinkCollect SinkKind = iota + 1
	// SinkSum adds surviving integral elements.
	SinkSum
	// SinkCount counts surviving elements.
	SinkCount
)

func (k SinkKind) String() string {
	switch k {
	case SinkCollect:
		return "collect"
	case SinkSum:
		return "sum"
	case SinkCount:
		return "count"
	default:
		return fmt.Sprintf("SinkKind(%d)", k)
	}
}

// ResultKind is the value kind a sink produces.
func (k SinkKind) ResultKind() value.Kind {
	switch k {
	case SinkCollect:
		return value.KindObject
	case SinkSum, SinkCount:
		return value.KindLong
	default:
		return value.KindInvalid
	}
}

// Step is one operation of a body. Capture indexes the functions passed to Run.
type Step struct {
	Kind    StepKind
	Capture int
}

// Body is the computation a unit performs for every input element.
type Body struct {
	Steps []Step
	Sink  SinkKind
}

func (b Body) String() string {
	parts := make([]string, 0, len(b.Steps)+1)
	for _, s := range b.Steps {
		parts = append(parts, fmt.Sprintf("%s(c%d)", s.Kind, s.Capture))
	}
	parts = append(parts, b.Sink.String())
	return strings.Join(parts, " -> ")
}

// Signature is the call shape of a unit: a list in, a Result out.
type Signature struct {
	Result value.Kind
}

// Request asks the service for one unit.
type Request struct {
	Name        string
	Sig         Signature
	Body        Body
	NumCaptures int
}

// Unit is a synthesized executable. Units are immutable and safe for
// concurrent Run calls.
type Unit interface {
	Name() string
	Signature() Signature
	// Run applies the body to every element of in. caps holds one function
	// per declared capture, as MapFunc or PredFunc values.
	Run(caps []value.Value, in []value.Value) (value.Value, error)
}

// Service synthesizes units.
type Service interface {
	Synthesize(ctx context.Context, req Request) (Unit, error)
}

// MapFunc is the host function shape used by StepMap.
type MapFunc func(value.Value) (value.Value, error)

// PredFunc is the host function shape used by StepFilter.
type PredFunc func(value.Value) (bool, error)
