package stage

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"staged/internal/bind"
	"staged/internal/diag"
	"staged/internal/expr"
	"staged/internal/isocache"
	"staged/internal/lang/arith"
	"staged/internal/lang/seq"
	"staged/internal/observ"
	"staged/internal/trace"
	"staged/internal/value"
)

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

func TestEngine_LazyArith(t *testing.T) {
	e, err := Standard(Setup{})
	if err != nil {
		t.Fatal(err)
	}
	b := arith.NewBuilder()
	timer := observ.NewTimer()
	c, err := e.Compile(context.Background(), arith.Domain, b.G, collatz(b), timer)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if c.Ready() {
		t.Fatal("arith is lazy by default")
	}
	if !b.G.Sealed() {
		t.Fatal("compiled graphs must be sealed")
	}
	if got := c.Kinds(); len(got) != 1 || got[0] != value.KindLong {
		t.Fatalf("Kinds() = %v", got)
	}

	for n, want := range map[int64]int64{1: 0, 6: 8, 27: 111} {
		got, err := c.Eval(value.Long(n))
		if err != nil || got.AsLong() != want {
			t.Fatalf("collatz(%d) = %v, %v, want %d", n, got, err, want)
		}
	}
	if !c.Ready() {
		t.Fatal("evaluation must compile a lazy closure")
	}

	var names []string
	for _, p := range timer.Phases() {
		names = append(names, p.Name)
	}
	if !slices.Equal(names, []string{"prepare", "compile"}) {
		t.Fatalf("phases = %v", names)
	}
}

func TestEngine_StrictReportsSemanticErrorsAtCompile(t *testing.T) {
	build := func() (*arith.Builder, expr.NodeID) {
		b := arith.NewBuilder()
		x := b.Var("x")
		return b, b.Seq(b.While(b.Lt(b.Param("n"), b.Lit(3)), b.Assign(x, b.Lit(1))), b.Read(x))
	}

	strict, _ := Standard(Setup{Strict: []string{arith.Domain}})
	b, root := build()
	_, err := strict.Compile(context.Background(), arith.Domain, b.G, root, nil)
	var se *diag.SemanticError
	if !errors.As(err, &se) {
		t.Fatalf("strict domain must fail at compile, got %v", err)
	}

	lazy, _ := Standard(Setup{})
	b, root = build()
	c, err := lazy.Compile(context.Background(), arith.Domain, b.G, root, nil)
	if err != nil {
		t.Fatalf("lazy domain must defer errors, got %v", err)
	}
	if _, err := c.Eval(value.Long(0)); !errors.As(err, &se) {
		t.Fatalf("expected semantic error at evaluation, got %v", err)
	}
}

func seqPipeline() (*seq.Builder, expr.NodeID) {
	b := seq.NewBuilder()
	return b, b.Map(b.Filter(b.Map(b.Input("xs"), b.Fn("inc")), b.Above(b.Long(3))), b.Fn("double"))
}

func TestEngine_SeqSharesUnitsAcrossCallSites(t *testing.T) {
	m := isocache.NewMetrics()
	e, err := Standard(Setup{Strict: []string{seq.Domain}, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(context.Background())

	in := value.Object(value.Longs(1, 2, 3, 4))
	for range 3 {
		b, root := seqPipeline()
		c, err := e.Compile(context.Background(), seq.Domain, b.G, root, nil)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		got, err := c.Eval(in)
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if got.String() != "[8, 10]" {
			t.Fatalf("got %s", got)
		}
	}
	if v := testutil.ToFloat64(m.Lookups.WithLabelValues(seq.Domain, isocache.LabelHit)); v != 2 {
		t.Fatalf("hits = %v", v)
	}
	if v := testutil.ToFloat64(m.Inserts.WithLabelValues(seq.Domain, isocache.LabelStored)); v != 1 {
		t.Fatalf("stored = %v", v)
	}
}

func TestEngine_ConcurrentCompilesOfOneClass(t *testing.T) {
	e, err := Standard(Setup{Strict: []string{seq.Domain}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	in := value.Object(value.Longs(1, 2, 3, 4))

	var eg errgroup.Group
	for range 8 {
		eg.Go(func() error {
			b, root := seqPipeline()
			c, err := e.Compile(ctx, seq.Domain, b.G, root, nil)
			if err != nil {
				return err
			}
			got, err := c.Eval(in)
			if err != nil {
				return err
			}
			if got.String() != "[8, 10]" {
				return errors.New("wrong result " + got.String())
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	for _, c := range e.Caches() {
		if c.Name() == seq.Domain && c.Len() != 1 {
			t.Fatalf("cache retains %d units, want 1", c.Len())
		}
	}
}

func TestEngine_PerDomainPolicies(t *testing.T) {
	mock := clock.NewMock()
	e, err := Standard(Setup{
		Clock:    mock,
		Policies: map[string]isocache.Policy{seq.Domain: {IdleTimeout: time.Second}},
	})
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]isocache.Policy{}
	for _, c := range e.Caches() {
		got[c.Name()] = c.Policy()
	}
	if got[seq.Domain] != (isocache.Policy{IdleTimeout: time.Second}) {
		t.Fatalf("override not applied: %v", got[seq.Domain])
	}
	if got[seq.ReduceDomain] != seq.ReduceDefaultPolicy {
		t.Fatalf("other domains keep their defaults, got %v", got[seq.ReduceDomain])
	}
}

func TestEngine_ArgumentErrors(t *testing.T) {
	e, _ := Standard(Setup{})
	b := arith.NewBuilder()
	c, err := e.Compile(context.Background(), arith.Domain, b.G, b.Add(b.Param("a"), b.Param("b")), nil)
	if err != nil {
		t.Fatal(err)
	}
	var ee *diag.EvalError
	if _, err := c.Eval(value.Long(1)); !errors.As(err, &ee) || ee.Code != diag.EvalArgsMismatch || !errors.Is(err, bind.ErrLayout) {
		t.Fatalf("expected argument mismatch, got %v", err)
	}
	_, err = c.EvalFrom(func(expr.NodeID) (value.Value, bool) { return value.Value{}, false })
	var ce *diag.CompileError
	if errors.As(err, &ce) || !errors.As(err, &ee) || ee.Code != diag.EvalArgsMismatch {
		t.Fatalf("missing leaf must be an evaluation error, got %v", err)
	}
	slots := c.Slots()
	got, err := c.EvalFrom(func(id expr.NodeID) (value.Value, bool) {
		if id == slots[0] {
			return value.Long(40), true
		}
		return value.Long(2), true
	})
	if err != nil || got.AsLong() != 42 {
		t.Fatalf("EvalFrom = %v, %v", got, err)
	}

	if _, err := e.Compile(context.Background(), "vector", b.G, 1, nil); !errors.As(err, &ce) || ce.Code != diag.CompUnknownDomain {
		t.Fatalf("expected unknown domain, got %v", err)
	}
}

func TestEngine_Traces(t *testing.T) {
	ring := trace.NewRing(256, trace.LevelDebug)
	ctx := trace.WithTracer(context.Background(), ring)
	e, _ := Standard(Setup{Strict: []string{seq.Domain}})

	for range 2 {
		b, root := seqPipeline()
		if _, err := e.Compile(ctx, seq.Domain, b.G, root, nil); err != nil {
			t.Fatal(err)
		}
	}
	seen := map[string]int{}
	for _, ev := range ring.Snapshot() {
		if ev.Kind != trace.KindSpanEnd {
			seen[ev.Name]++
		}
	}
	for _, name := range []string{"compile", "fuse", "synthesize", "cache.miss", "cache.hit"} {
		if seen[name] == 0 {
			t.Fatalf("no %q event in %v", name, seen)
		}
	}
	if seen["synthesize"] != 1 {
		t.Fatalf("synthesize events = %d", seen["synthesize"])
	}
}
