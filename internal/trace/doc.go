// Package trace records what the staging engine does on behalf of a call
// site: which request triggered a compile, which passes ran, and whether
// the isomorphism cache answered.
//
// A tracer travels in the context:
//
//	ctx = trace.WithTracer(ctx, session.Tracer())
//	span, ctx := trace.Start(ctx, trace.ScopePass, "fuse")
//	defer span.End("")
//
// Levels nest: error keeps failures, phase adds driver and pass spans,
// detail adds cache traffic, debug adds per-node events. Sessions stream
// events, keep them in a ring that is written out when the command fails,
// or both.
package trace
