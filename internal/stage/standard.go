package stage

import (
	"context"

	"github.com/benbjohnson/clock"

	"staged/internal/compiler"
	"staged/internal/diag"
	"staged/internal/isocache"
	"staged/internal/lang/arith"
	"staged/internal/lang/seq"
	"staged/internal/synth"
)

// Setup configures the standard engine. Zero fields select defaults.
type Setup struct {
	// Policies overrides the cache policy of a domain; domains not listed
	// keep their own default.
	Policies map[string]isocache.Policy
	// Strict lists domains that compile eagerly.
	Strict []string
	// Stepwise disables fusion in the list domains.
	Stepwise bool

	Metrics  *isocache.Metrics
	Clock    clock.Clock
	Synth    synth.Service
	Reporter diag.Reporter
}

// DefaultPolicies returns each caching domain's own default policy.
func DefaultPolicies() map[string]isocache.Policy {
	return map[string]isocache.Policy{
		seq.Domain:       seq.DefaultPolicy,
		seq.ReduceDomain: seq.ReduceDefaultPolicy,
	}
}

// Standard builds an engine with the arith and seq domains registered. Each
// list domain gets its own unit cache.
func Standard(s Setup) (*Engine, error) {
	if s.Synth == nil {
		s.Synth = synth.NewInterp()
	}
	var opts []isocache.Option
	if s.Clock != nil {
		opts = append(opts, isocache.WithClock(s.Clock))
	}
	if s.Metrics != nil {
		opts = append(opts, isocache.WithMetrics(s.Metrics))
	}

	policies := DefaultPolicies()
	for domain, p := range s.Policies {
		policies[domain] = p
	}

	reg := newRegistryFor(s.Strict)
	ac := arith.New()
	ac.Reporter = s.Reporter
	if err := reg.add(ac); err != nil {
		return nil, err
	}

	caches := make([]*isocache.Cache[synth.Unit], 0, 2)
	for _, tag := range []string{seq.Domain, seq.ReduceDomain} {
		var cache *isocache.Cache[synth.Unit]
		if !s.Stepwise {
			cache = isocache.New[synth.Unit](tag, policies[tag], opts...)
			caches = append(caches, cache)
		}
		if err := reg.add(seq.New(seq.Options{Tag: tag, Cache: cache, Synth: s.Synth, Stepwise: s.Stepwise})); err != nil {
			return nil, err
		}
	}

	e := New(reg.Registry)
	e.caches = caches
	e.closer = func(ctx context.Context) {
		for _, c := range caches {
			c.Close(ctx)
		}
	}
	return e, nil
}

// registryFor registers compilers with the mode picked from a strict list.
type registryFor struct {
	*compiler.Registry
	strict map[string]bool
}

// newRegistryFor returns an empty registry that registers the listed
// domains as strict and every other domain as lazy.
func newRegistryFor(strict []string) *registryFor {
	r := &registryFor{Registry: compiler.NewRegistry(), strict: make(map[string]bool)}
	for _, d := range strict {
		r.strict[d] = true
	}
	return r
}

func (r *registryFor) add(c compiler.Compiler) error {
	mode := compiler.Lazy
	if r.strict[c.Domain()] {
		mode = compiler.Strict
	}
	return r.Register(c, mode)
}
