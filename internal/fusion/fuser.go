package fusion

import (
	"context"
	"errors"
	"fmt"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/iso"
	"staged/internal/isocache"
	"staged/internal/source"
	"staged/internal/synth"
	"staged/internal/trace"
	"staged/internal/value"
)

// Fuser turns collected chains into closures. Cache and Synth are injected by
// the owner; the same Fuser may serve concurrent compilations.
type Fuser struct {
	Domain string
	Cache  *isocache.Cache[synth.Unit]
	Synth  synth.Service
}

// Fuse returns a closure computing sink(chain(input)). top is the node whose
// value the closure produces; it and everything under it down to
// chain.Source form the cache key. caps are the compiled closures of
// chain.Funcs, in order.
//
// A collecting chain without operations returns input unchanged.
func (f *Fuser) Fuse(ctx context.Context, g *expr.Graph, top expr.NodeID, chain Chain, sink synth.SinkKind,
	input bind.Closure, caps []bind.Closure,
) (bind.Closure, error) {
	if len(caps) != len(chain.Funcs) {
		return nil, diag.NewCompileError(f.Domain, diag.CompMissingCapture, g.Provenance(top),
			fmt.Sprintf("chain has %d functions, got %d closures", len(chain.Funcs), len(caps)), nil)
	}
	if len(chain.Steps) == 0 && sink == synth.SinkCollect {
		return input, nil
	}

	span, ctx := trace.Start(ctx, trace.ScopePass, "fuse")
	span.Set("chain", chain.String()).Set("sink", sink.String())

	unit, err := f.unit(ctx, iso.ChainKey(g, top, chain.Source), chain, sink, g.Provenance(top))
	if err != nil {
		span.Fail(err)
		return nil, err
	}
	span.End(unit.Name())
	return &Fused{Unit: unit, Input: input, Caps: caps, Prov: g.Provenance(top)}, nil
}

func (f *Fuser) unit(ctx context.Context, key iso.Key, chain Chain, sink synth.SinkKind, prov source.Provenance) (synth.Unit, error) {
	if f.Cache != nil {
		if u, ok := f.Cache.Get(ctx, key); ok {
			return u, nil
		}
	}
	body := synth.Body{Steps: chain.Steps, Sink: sink}
	u, err := f.Synth.Synthesize(ctx, synth.Request{
		Name:        f.Domain + ":" + body.String(),
		Sig:         synth.Signature{Result: sink.ResultKind()},
		Body:        body,
		NumCaptures: len(chain.Funcs),
	})
	if err != nil {
		return nil, diag.NewCompileError(f.Domain, synthCode(err), prov, "synthesis of "+body.String(), err)
	}
	if f.Cache != nil {
		// An isomorphic unit stored meanwhile wins; ours is simply dropped.
		u, _ = f.Cache.PutIfAbsent(ctx, key, u)
	}
	return u, nil
}

func synthCode(err error) diag.Code {
	switch {
	case errors.Is(err, synth.ErrMissingCapture):
		return diag.CompMissingCapture
	case errors.Is(err, synth.ErrMalformedBody):
		return diag.CompMalformedBody
	default:
		return diag.CompSynthesisFailed
	}
}

// Fused runs a synthesized unit over the list produced by Input, calling the
// functions produced by Caps.
type Fused struct {
	Unit  synth.Unit
	Input bind.Closure
	Caps  []bind.Closure
	Prov  source.Provenance
}

// Eval implements bind.Closure.
func (f *Fused) Eval(env *bind.Env) (value.Value, error) {
	in, err := evalList(f.Input, env, f.Prov)
	if err != nil {
		return value.Value{}, err
	}
	caps, err := evalCaps(f.Caps, env)
	if err != nil {
		return value.Value{}, err
	}
	out, err := f.Unit.Run(caps, in)
	return out, atNode(err, f.Prov)
}

func evalList(c bind.Closure, env *bind.Env, prov source.Provenance) ([]value.Value, error) {
	v, err := c.Eval(env)
	if err != nil {
		return nil, err
	}
	list, ok := v.AsObject().([]value.Value)
	if v.Kind != value.KindObject || (!ok && v.AsObject() != nil) {
		return nil, &diag.EvalError{
			Code: diag.EvalTypeMismatch,
			Prov: prov,
			Msg:  fmt.Sprintf("input is %s, want a list", v.Kind),
		}
	}
	return list, nil
}

func evalCaps(cs []bind.Closure, env *bind.Env) ([]value.Value, error) {
	caps := make([]value.Value, len(cs))
	for i, c := range cs {
		v, err := c.Eval(env)
		if err != nil {
			return nil, err
		}
		caps[i] = v
	}
	return caps, nil
}

// atNode attaches prov to evaluation errors raised without one.
func atNode(err error, prov source.Provenance) error {
	var ee *diag.EvalError
	if err == nil || !errors.As(err, &ee) || !ee.Prov.IsZero() {
		return err
	}
	cp := *ee
	cp.Prov = prov
	return &cp
}
