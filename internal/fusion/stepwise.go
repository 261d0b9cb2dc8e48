package fusion

import (
	"context"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/source"
	"staged/internal/synth"
	"staged/internal/value"
)

// Pass is one unfused operation: it runs a single-step unit over the whole
// list produced by Input.
type Pass struct {
	Unit  synth.Unit
	Input bind.Closure
	Fn    bind.Closure
	Prov  source.Provenance
}

// Eval implements bind.Closure.
func (p *Pass) Eval(env *bind.Env) (value.Value, error) {
	in, err := evalList(p.Input, env, p.Prov)
	if err != nil {
		return value.Value{}, err
	}
	caps, err := evalCaps([]bind.Closure{p.Fn}, env)
	if err != nil {
		return value.Value{}, err
	}
	out, err := p.Unit.Run(caps, in)
	return out, atNode(err, p.Prov)
}

// Stepwise builds the unfused rendition of a chain: one list pass per
// operation and one for the sink. It bypasses the cache and is used to check
// fused results and by domains with fusion turned off.
func Stepwise(ctx context.Context, svc synth.Service, domain string, chain Chain, sink synth.SinkKind,
	input bind.Closure, caps []bind.Closure, prov source.Provenance,
) (bind.Closure, error) {
	if len(caps) != len(chain.Steps) {
		return nil, diag.NewCompileError(domain, diag.CompMissingCapture, prov, "stepwise chain without closures", nil)
	}
	cur := input
	for i, st := range chain.Steps {
		u, err := svc.Synthesize(ctx, synth.Request{
			Name:        domain + ":" + st.Kind.String(),
			Sig:         synth.Signature{Result: value.KindObject},
			Body:        synth.Body{Steps: []synth.Step{{Kind: st.Kind}}, Sink: synth.SinkCollect},
			NumCaptures: 1,
		})
		if err != nil {
			return nil, diag.NewCompileError(domain, synthCode(err), prov, "stepwise "+st.Kind.String(), err)
		}
		cur = &Pass{Unit: u, Input: cur, Fn: caps[i], Prov: prov}
	}
	if sink == synth.SinkCollect {
		return cur, nil
	}
	u, err := svc.Synthesize(ctx, synth.Request{
		Name: domain + ":" + sink.String(),
		Sig:  synth.Signature{Result: sink.ResultKind()},
		Body: synth.Body{Sink: sink},
	})
	if err != nil {
		return nil, diag.NewCompileError(domain, synthCode(err), prov, "stepwise "+sink.String(), err)
	}
	return &Fused{Unit: u, Input: cur, Prov: prov}, nil
}
