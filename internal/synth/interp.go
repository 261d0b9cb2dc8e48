package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"staged/internal/diag"
	"staged/internal/trace"
	"staged/internal/value"
)

type opcode uint8

const (
	opApply opcode = iota + 1 // acc = caps[arg](acc)
	opTest                    // drop the element unless caps[arg](acc)
	opEmit                    // hand acc to the sink
)

func (o opcode) String() string {
	switch o {
	case opApply:
		return "apply"
	case opTest:
		return "test"
	case opEmit:
		return "emit"
	default:
		return "?"
	}
}

type instr struct {
	op  opcode
	arg int
}

// Interp is the embedded backend: bodies are lowered to a short instruction
// list that a single loop runs once per input element.
type Interp struct {
	units atomic.Uint64
}

// NewInterp creates the interpreter backend.
func NewInterp() *Interp {
	return &Interp{}
}

// Synthesized returns how many units this backend has produced.
func (s *Interp) Synthesized() uint64 {
	return s.units.Load()
}

// Synthesize implements Service.
func (s *Interp) Synthesize(ctx context.Context, req Request) (Unit, error) {
	span, _ := trace.Start(ctx, trace.ScopePass, "synthesize")
	code, err := lower(req)
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	s.units.Add(1)
	name := req.Name
	if name == "" {
		name = "unit"
	}
	u := &program{name: name, sig: req.Sig, sink: req.Body.Sink, code: code, numCaps: req.NumCaptures}
	span.Set("instrs", fmt.Sprint(len(code))).End(name)
	return u, nil
}

func lower(req Request) ([]instr, error) {
	if req.NumCaptures < 0 {
		return nil, fmt.Errorf("%w: negative capture count %d", ErrMalformedBody, req.NumCaptures)
	}
	want := req.Body.Sink.ResultKind()
	if want == value.KindInvalid {
		return nil, fmt.Errorf("%w: unknown sink %s", ErrMalformedBody, req.Body.Sink)
	}
	if req.Sig.Result != want {
		return nil, fmt.Errorf("%w: sink %s yields %s, signature wants %s",
			ErrMalformedBody, req.Body.Sink, want, req.Sig.Result)
	}
	code := make([]instr, 0, len(req.Body.Steps)+1)
	for i, st := range req.Body.Steps {
		if st.Capture < 0 || st.Capture >= req.NumCaptures {
			return nil, fmt.Errorf("%w: step %d calls c%d of %d", ErrMissingCapture, i, st.Capture, req.NumCaptures)
		}
		switch st.Kind {
		case StepMap:
			code = append(code, instr{op: opApply, arg: st.Capture})
		case StepFilter:
			code = append(code, instr{op: opTest, arg: st.Capture})
		default:
			return nil, fmt.Errorf("%w: step %d has kind %s", ErrMalformedBody, i, st.Kind)
		}
	}
	return append(code, instr{op: opEmit}), nil
}

type program struct {
	name    string
	sig     Signature
	sink    SinkKind
	code    []instr
	numCaps int
}

func (p *program) Name() string         { return p.name }
func (p *program) Signature() Signature { return p.sig }

// String disassembles the program.
func (p *program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s(%d caps) -> %s:", p.name, p.numCaps, p.sig.Result)
	for _, in := range p.code {
		if in.op == opEmit {
			fmt.Fprintf(&sb, " emit %s", p.sink)
			continue
		}
		fmt.Fprintf(&sb, " %s c%d;", in.op, in.arg)
	}
	return sb.String()
}

// callbacks holds the captures of one Run, resolved to their call shape.
type callbacks struct {
	maps  []MapFunc
	preds []PredFunc
}

func (p *program) resolve(caps []value.Value) (callbacks, error) {
	if len(caps) < p.numCaps {
		return callbacks{}, fmt.Errorf("%w: got %d captures, want %d", ErrBadCapture, len(caps), p.numCaps)
	}
	cb := callbacks{maps: make([]MapFunc, p.numCaps), preds: make([]PredFunc, p.numCaps)}
	for _, in := range p.code {
		obj := caps[in.arg].AsObject()
		switch in.op {
		case opApply:
			switch f := obj.(type) {
			case MapFunc:
				cb.maps[in.arg] = f
			case func(value.Value) (value.Value, error):
				cb.maps[in.arg] = f
			default:
				return callbacks{}, fmt.Errorf("%w: c%d is %T, want a map function", ErrBadCapture, in.arg, obj)
			}
		case opTest:
			switch f := obj.(type) {
			case PredFunc:
				cb.preds[in.arg] = f
			case func(value.Value) (bool, error):
				cb.preds[in.arg] = f
			default:
				return callbacks{}, fmt.Errorf("%w: c%d is %T, want a predicate", ErrBadCapture, in.arg, obj)
			}
		case opEmit:
		}
	}
	return cb, nil
}

// Run implements Unit.
func (p *program) Run(caps []value.Value, in []value.Value) (value.Value, error) {
	cb, err := p.resolve(caps)
	if err != nil {
		return value.Value{}, &diag.EvalError{Code: diag.EvalCallbackFailed, Msg: p.name, Err: err}
	}

	var (
		out   []value.Value
		sum   int64
		count int64
	)
	if p.sink == SinkCollect {
		out = make([]value.Value, 0, len(in))
	}

elements:
	for i, x := range in {
		acc := x
		for pc, ins := range p.code {
			switch ins.op {
			case opApply:
				acc, err = cb.maps[ins.arg](acc)
				if err != nil {
					return value.Value{}, callbackError(p.name, pc, i, err)
				}
			case opTest:
				ok, err := cb.preds[ins.arg](acc)
				if err != nil {
					return value.Value{}, callbackError(p.name, pc, i, err)
				}
				if !ok {
					continue elements
				}
			case opEmit:
				switch p.sink {
				case SinkCollect:
					out = append(out, acc)
				case SinkSum:
					if !acc.Kind.IsIntegral() {
						return value.Value{}, &diag.EvalError{
							Code: diag.EvalTypeMismatch,
							Msg:  fmt.Sprintf("%s: sum over %s element %d", p.name, acc.Kind, i),
						}
					}
					sum += acc.AsLong()
				case SinkCount:
					count++
				}
			}
		}
	}

	switch p.sink {
	case SinkSum:
		return value.Long(sum), nil
	case SinkCount:
		return value.Long(count), nil
	default:
		return value.Object(out), nil
	}
}

func callbackError(unit string, pc, elem int, err error) error {
	var ee *diag.EvalError
	if errors.As(err, &ee) {
		return err
	}
	return &diag.EvalError{
		Code: diag.EvalCallbackFailed,
		Msg:  fmt.Sprintf("%s: instr %d on element %d", unit, pc, elem),
		Err:  err,
	}
}
