package isocache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"staged/internal/expr"
	"staged/internal/iso"
	"staged/internal/value"
)

var negM = expr.Member{Owner: "t", Name: "neg"}

// shape builds neg^depth(x) in a fresh graph.
func shape(depth int) iso.Key {
	g := expr.NewGraph(0)
	n := g.Deferred(value.KindLong, "x")
	for range depth {
		n = g.Apply(negM, n)
	}
	g.Seal()
	return iso.NewKey(g, n)
}

func TestCache_IsomorphicHit(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics()
	c := New[string]("t", Policy{}, WithMetrics(m))

	if _, ok := c.Get(ctx, shape(2)); ok {
		t.Fatal("empty cache must miss")
	}
	if got, loaded := c.PutIfAbsent(ctx, shape(2), "two"); loaded || got != "two" {
		t.Fatalf("PutIfAbsent = %q, %v", got, loaded)
	}
	got, ok := c.Get(ctx, shape(2))
	if !ok || got != "two" {
		t.Fatalf("isomorphic key must hit, got %q, %v", got, ok)
	}
	if _, ok := c.Get(ctx, shape(3)); ok {
		t.Fatal("non-isomorphic key must miss")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 2 || st.Inserts != 1 || st.Entries != 1 {
		t.Fatalf("Stats() = %+v", st)
	}
	if v := testutil.ToFloat64(m.Lookups.WithLabelValues("t", LabelHit)); v != 1 {
		t.Fatalf("hit counter = %v", v)
	}
	if v := testutil.ToFloat64(m.Lookups.WithLabelValues("t", LabelMiss)); v != 2 {
		t.Fatalf("miss counter = %v", v)
	}
	if v := testutil.ToFloat64(m.Entries.WithLabelValues("t")); v != 1 {
		t.Fatalf("entries gauge = %v", v)
	}
}

func TestCache_PutIfAbsentKeepsFirst(t *testing.T) {
	ctx := context.Background()
	c := New[string]("t", Policy{})
	c.PutIfAbsent(ctx, shape(1), "first")
	got, loaded := c.PutIfAbsent(ctx, shape(1), "second")
	if !loaded || got != "first" {
		t.Fatalf("PutIfAbsent = %q, %v", got, loaded)
	}
	if c.Stats().RaceLost != 1 || c.Len() != 1 {
		t.Fatalf("Stats() = %+v", c.Stats())
	}
}

func TestCache_ConcurrentInsertRetainsOne(t *testing.T) {
	ctx := context.Background()
	c := New[int]("t", Policy{})
	var winners atomic.Int32

	var eg errgroup.Group
	for i := range 16 {
		eg.Go(func() error {
			if _, loaded := c.PutIfAbsent(ctx, shape(4), i); !loaded {
				winners.Add(1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if winners.Load() != 1 || c.Len() != 1 {
		t.Fatalf("winners=%d len=%d", winners.Load(), c.Len())
	}
	if st := c.Stats(); st.Inserts != 1 || st.RaceLost != 15 {
		t.Fatalf("Stats() = %+v", st)
	}
}

func TestCache_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	m := NewMetrics()
	c := New[*int]("t", Policy{IdleTimeout: time.Minute}, WithClock(mock), WithMetrics(m))

	held := new(int)
	*held = 42
	c.PutIfAbsent(ctx, shape(1), held)
	c.PutIfAbsent(ctx, shape(2), new(int))

	mock.Add(30 * time.Second)
	if _, ok := c.Get(ctx, shape(2)); !ok {
		t.Fatal("entry within its idle bound must hit")
	}
	mock.Add(30 * time.Second)

	if _, ok := c.Get(ctx, shape(1)); ok {
		t.Fatal("idle entry must miss")
	}
	if _, ok := c.Get(ctx, shape(2)); !ok {
		t.Fatal("recently used entry must survive")
	}
	if *held != 42 {
		t.Fatal("evicted value must stay usable by its holder")
	}
	if v := testutil.ToFloat64(m.Evictions.WithLabelValues("t", ReasonIdle)); v != 1 {
		t.Fatalf("idle evictions = %v", v)
	}
}

func TestCache_CapacityEvictsLeastRecent(t *testing.T) {
	ctx := context.Background()
	c := New[int]("t", Policy{MaxEntries: 2})
	c.PutIfAbsent(ctx, shape(1), 1)
	c.PutIfAbsent(ctx, shape(2), 2)
	c.Get(ctx, shape(1))
	c.PutIfAbsent(ctx, shape(3), 3)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d", c.Len())
	}
	if _, ok := c.Get(ctx, shape(2)); ok {
		t.Fatal("least recently used entry must be evicted")
	}
	for _, d := range []int{1, 3} {
		if v, ok := c.Get(ctx, shape(d)); !ok || v != d {
			t.Fatalf("shape(%d) = %d, %v", d, v, ok)
		}
	}
}

func TestCache_HashCollisionsStayDistinct(t *testing.T) {
	ctx := context.Background()
	build := func(shared bool) iso.Key {
		g := expr.NewGraph(0)
		x := g.Deferred(value.KindLong, "x")
		add := expr.Member{Owner: "t", Name: "add"}
		var root expr.NodeID
		if shared {
			n := g.Apply(negM, x)
			root = g.Apply(add, n, n)
		} else {
			root = g.Apply(add, g.Apply(negM, x), g.Apply(negM, g.Deferred(value.KindLong, "y")))
		}
		return iso.NewKey(g, root)
	}
	c := New[string]("t", Policy{})
	c.PutIfAbsent(ctx, build(true), "diamond")
	if _, ok := c.Get(ctx, build(false)); ok {
		t.Fatal("same fingerprint with different sharing must miss")
	}
	c.PutIfAbsent(ctx, build(false), "split")
	if v, _ := c.Get(ctx, build(false)); v != "split" {
		t.Fatalf("got %q", v)
	}
	if v, _ := c.Get(ctx, build(true)); v != "diamond" {
		t.Fatalf("got %q", v)
	}
}

func TestCache_Close(t *testing.T) {
	ctx := context.Background()
	c := New[int]("t", Policy{})
	c.PutIfAbsent(ctx, shape(1), 1)
	c.Close(ctx)
	if c.Len() != 0 {
		t.Fatal("Close must purge")
	}
	if _, loaded := c.PutIfAbsent(ctx, shape(1), 1); loaded || c.Len() != 0 {
		t.Fatal("closed cache must not retain entries")
	}
}
