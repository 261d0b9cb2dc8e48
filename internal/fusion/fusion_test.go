package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/isocache"
	"staged/internal/synth"
	"staged/internal/value"
)

var (
	mapM    = expr.Member{Owner: "seq", Name: "map"}
	filterM = expr.Member{Owner: "seq", Name: "filter"}
	pairM   = expr.Member{Owner: "seq", Name: "pair"}

	classify = ClassifierFunc(func(m expr.Member) (synth.StepKind, bool) {
		switch m {
		case mapM:
			return synth.StepMap, true
		case filterM:
			return synth.StepFilter, true
		}
		return 0, false
	})

	inc = synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() + 1), nil })
	dbl = synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() * 2), nil })
	gt3 = synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong() > 3, nil })
)

type built struct {
	g    *expr.Graph
	root expr.NodeID
	b    *bind.Binder
}

// pipeline builds map(filter(map(xs, +1), >3), *2).
func pipeline(t *testing.T) built {
	t.Helper()
	g := expr.NewGraph(0)
	xs := g.Deferred(value.KindObject, "xs")
	root := g.Apply(mapM,
		g.Apply(filterM,
			g.Apply(mapM, xs, g.Const(value.Object(inc))),
			g.Const(value.Object(gt3))),
		g.Const(value.Object(dbl)))
	g.Seal()
	b := bind.NewBinder(g)
	if err := b.Prepare(root); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return built{g: g, root: root, b: b}
}

func (p built) parts(t *testing.T) (Chain, bind.Closure, []bind.Closure) {
	t.Helper()
	ch := Collect(p.g, p.root, expr.Uses(p.g, p.root), classify)
	input, err := p.b.Bind(ch.Source)
	if err != nil {
		t.Fatalf("Bind(source): %v", err)
	}
	caps := make([]bind.Closure, len(ch.Funcs))
	for i, fn := range ch.Funcs {
		if caps[i], err = p.b.Bind(fn); err != nil {
			t.Fatalf("Bind(fn): %v", err)
		}
	}
	return ch, input, caps
}

func run(t *testing.T, c bind.Closure, b *bind.Binder, xs ...int64) []int64 {
	t.Helper()
	env, err := b.NewEnv(value.Object(value.Longs(xs...)))
	if err != nil {
		t.Fatalf("NewEnv: %v", err)
	}
	v, err := c.Eval(env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	vs := v.AsObject().([]value.Value)
	out := make([]int64, len(vs))
	for i, x := range vs {
		out[i] = x.AsLong()
	}
	return out
}

func TestCollect_OrderAndCaptures(t *testing.T) {
	p := pipeline(t)
	ch := Collect(p.g, p.root, expr.Uses(p.g, p.root), classify)
	if ch.String() != "map.filter.map" {
		t.Fatalf("chain = %s", ch)
	}
	if p.g.Kind(ch.Source) != expr.NodeLeaf {
		t.Fatalf("source = #%d, want the xs leaf", ch.Source)
	}
	for i, st := range ch.Steps {
		if st.Capture != i {
			t.Fatalf("step %d captures c%d", i, st.Capture)
		}
	}
	if ch.Ops[len(ch.Ops)-1] != p.root {
		t.Fatal("outermost operation must come last")
	}
}

func TestCollect_StopsAtSharedNode(t *testing.T) {
	g := expr.NewGraph(0)
	xs := g.Deferred(value.KindObject, "xs")
	f := g.Const(value.Object(inc))
	shared := g.Apply(mapM, xs, f)
	left := g.Apply(filterM, shared, g.Const(value.Object(gt3)))
	right := g.Apply(mapM, shared, f)
	root := g.Apply(pairM, left, right)

	uses := expr.Uses(g, root)
	ch := Collect(g, left, uses, classify)
	if ch.Source != shared || ch.Len() != 1 {
		t.Fatalf("chain = %s from #%d, want one step above #%d", ch, ch.Source, shared)
	}
	if whole := Collect(g, shared, uses, classify); whole.Len() != 1 || whole.Source != xs {
		t.Fatalf("shared node itself must still fuse its own chain, got %s", whole)
	}
}

func TestFuse_MatchesStepwise(t *testing.T) {
	ctx := context.Background()
	p := pipeline(t)
	ch, input, caps := p.parts(t)
	svc := synth.NewInterp()
	f := &Fuser{Domain: "seq", Cache: isocache.New[synth.Unit]("seq", isocache.Policy{}), Synth: svc}

	fused, err := f.Fuse(ctx, p.g, p.root, ch, synth.SinkCollect, input, caps)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	stepwise, err := Stepwise(ctx, svc, "seq", ch, synth.SinkCollect, input, caps, p.g.Provenance(p.root))
	if err != nil {
		t.Fatalf("Stepwise: %v", err)
	}

	want := []int64{8, 10}
	if diff := cmp.Diff(want, run(t, fused, p.b, 1, 2, 3, 4)); diff != "" {
		t.Fatalf("fused (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, run(t, stepwise, p.b, 1, 2, 3, 4)); diff != "" {
		t.Fatalf("stepwise (-want +got):\n%s", diff)
	}
}

func TestFuse_SharesUnitAcrossIsomorphicGraphs(t *testing.T) {
	ctx := context.Background()
	svc := synth.NewInterp()
	f := &Fuser{Domain: "seq", Cache: isocache.New[synth.Unit]("seq", isocache.Policy{}), Synth: svc}

	var units []synth.Unit
	for range 3 {
		p := pipeline(t)
		ch, input, caps := p.parts(t)
		c, err := f.Fuse(ctx, p.g, p.root, ch, synth.SinkCollect, input, caps)
		if err != nil {
			t.Fatalf("Fuse: %v", err)
		}
		units = append(units, c.(*Fused).Unit)
		if diff := cmp.Diff([]int64{8, 10}, run(t, c, p.b, 1, 2, 3, 4)); diff != "" {
			t.Fatalf("(-want +got):\n%s", diff)
		}
	}
	if svc.Synthesized() != 1 {
		t.Fatalf("Synthesized() = %d, want 1", svc.Synthesized())
	}
	if units[0] != units[1] || units[1] != units[2] {
		t.Fatal("isomorphic chains must share one unit")
	}
	if st := f.Cache.Stats(); st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("cache stats = %+v", st)
	}
}

func TestFuse_IdentityChain(t *testing.T) {
	g := expr.NewGraph(0)
	xs := g.Deferred(value.KindObject, "xs")
	g.Seal()
	b := bind.NewBinder(g)
	input, err := b.Bind(xs)
	if err != nil {
		t.Fatal(err)
	}
	svc := synth.NewInterp()
	f := &Fuser{Domain: "seq", Synth: svc}
	ch := Collect(g, xs, nil, classify)
	c, err := f.Fuse(context.Background(), g, xs, ch, synth.SinkCollect, input, nil)
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if c != input || svc.Synthesized() != 0 {
		t.Fatal("a chain without operations must return its input closure")
	}
}

type flakySynth struct {
	calls int
	next  synth.Service
}

func (s *flakySynth) Synthesize(ctx context.Context, req synth.Request) (synth.Unit, error) {
	s.calls++
	if s.calls == 1 {
		return nil, errors.New("backend unavailable")
	}
	return s.next.Synthesize(ctx, req)
}

func TestFuse_FailuresAreNotCached(t *testing.T) {
	ctx := context.Background()
	svc := &flakySynth{next: synth.NewInterp()}
	f := &Fuser{Domain: "seq", Cache: isocache.New[synth.Unit]("seq", isocache.Policy{}), Synth: svc}

	p := pipeline(t)
	ch, input, caps := p.parts(t)
	_, err := f.Fuse(ctx, p.g, p.root, ch, synth.SinkCollect, input, caps)
	var ce *diag.CompileError
	if !errors.As(err, &ce) || ce.Code != diag.CompSynthesisFailed || ce.Domain != "seq" {
		t.Fatalf("expected compile error, got %v", err)
	}
	if f.Cache.Len() != 0 {
		t.Fatal("failed synthesis must leave no cache entry")
	}

	if _, err := f.Fuse(ctx, p.g, p.root, ch, synth.SinkCollect, input, caps); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if svc.calls != 2 || f.Cache.Len() != 1 {
		t.Fatalf("calls=%d len=%d", svc.calls, f.Cache.Len())
	}
}

func TestFuse_EvalErrorsCarryProvenance(t *testing.T) {
	p := pipeline(t)
	ch, input, caps := p.parts(t)
	f := &Fuser{Domain: "seq", Synth: synth.NewInterp()}
	c, err := f.Fuse(context.Background(), p.g, p.root, ch, synth.SinkSum, input, caps)
	if err != nil {
		t.Fatal(err)
	}
	env, _ := p.b.NewEnv(value.Object("not a list"))
	_, err = c.Eval(env)
	var ee *diag.EvalError
	if !errors.As(err, &ee) || ee.Code != diag.EvalTypeMismatch {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}
