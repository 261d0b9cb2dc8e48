package capture

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"staged/internal/expr"
	"staged/internal/lang/arith"
	"staged/internal/lang/seq"
	"staged/internal/stage"
	"staged/internal/synth"
	"staged/internal/value"
)

var builtins = Resolver{Lookup: seq.Lookup, Name: seq.NameOf}

func evenSquares(b *seq.Builder) expr.NodeID {
	xs := b.Range(b.Long(0), b.Param("n"))
	return b.Sum(b.Map(b.Filter(xs, b.Fn("even")), b.Fn("square")))
}

func newEngine(t *testing.T) *stage.Engine {
	t.Helper()
	e, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestRecording_ReplaysThroughEngine(t *testing.T) {
	b := seq.NewBuilder()
	root := evenSquares(b)
	rec, err := Record(seq.ReduceDomain, b.G, root, builtins)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	for n, want := range map[int64]int64{5: 20, 7: 56} {
		w := value.Long(want)
		if err := rec.AddRun([]value.Value{value.Long(n)}, &w, builtins); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(rec, loaded); diff != "" {
		t.Fatalf("recording changed on the wire (-want +got):\n%s", diff)
	}

	out, err := Replay(context.Background(), newEngine(t), loaded, builtins, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d outcomes", len(out))
	}
}

func TestReplay_DetectsMismatch(t *testing.T) {
	b := seq.NewBuilder()
	rec, err := Record(seq.ReduceDomain, b.G, evenSquares(b), builtins)
	if err != nil {
		t.Fatal(err)
	}
	wrong := value.Long(21)
	if err := rec.AddRun([]value.Value{value.Long(5)}, &wrong, builtins); err != nil {
		t.Fatal(err)
	}
	if _, err := Replay(context.Background(), newEngine(t), rec, builtins, nil); !errors.Is(err, ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestReplay_UncheckedRunsKeepAlignment(t *testing.T) {
	b := seq.NewBuilder()
	rec, err := Record(seq.ReduceDomain, b.G, evenSquares(b), builtins)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.AddRun([]value.Value{value.Long(5)}, nil, builtins); err != nil {
		t.Fatal(err)
	}
	w := value.Long(56)
	if err := rec.AddRun([]value.Value{value.Long(7)}, &w, builtins); err != nil {
		t.Fatal(err)
	}
	if len(rec.Expect) != len(rec.Runs) || rec.Expectation(0) != nil || rec.Expectation(1) == nil {
		t.Fatalf("Expect = %+v, want one entry per run", rec.Expect)
	}

	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}
	loaded, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Replay(context.Background(), newEngine(t), loaded, builtins, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	got := []int64{out[0].Result.AsLong(), out[1].Result.AsLong()}
	if diff := cmp.Diff([]int64{20, 56}, got); diff != "" {
		t.Fatalf("results (-want +got):\n%s", diff)
	}
}

func TestRecording_KeepsSharing(t *testing.T) {
	b := seq.NewBuilder()
	xs := b.Map(b.Input("xs"), b.Fn("double"))
	root := b.List(b.Sum(xs), b.Count(xs))
	rec, err := Record(seq.Domain, b.G, root, builtins)
	if err != nil {
		t.Fatal(err)
	}
	g, newRoot, err := rec.Graph(builtins)
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if got, want := expr.Reachable(g, newRoot), expr.Reachable(b.G, root); got != want {
		t.Fatalf("Reachable() = %d, want %d", got, want)
	}
	uses := expr.Uses(g, newRoot)
	shared := g.Args(g.Args(newRoot)[0])[0]
	if uses[shared] != 2 {
		t.Fatalf("shared map has %d uses, want 2", uses[shared])
	}
	if g.Sealed() {
		t.Fatal("rebuilt graph must be open")
	}
}

func TestRecording_ArithWithProvenance(t *testing.T) {
	b := arith.NewBuilder()
	x := b.Var("x")
	root := b.Seq(b.Assign(x, b.Mul(b.Param("n"), b.Lit(3))), b.Read(x))
	rec, err := Record(arith.Domain, b.G, root, Resolver{})
	if err != nil {
		t.Fatal(err)
	}
	w := value.Long(12)
	if err := rec.AddRun([]value.Value{value.Long(4)}, &w, Resolver{}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "rec", "arith.mp")
	if err := WriteFile(path, rec); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	g, newRoot, err := loaded.Graph(Resolver{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := g.Provenance(newRoot), b.G.Provenance(root); got != want {
		t.Fatalf("Provenance() = %v, want %v", got, want)
	}
	if _, err := Replay(context.Background(), newEngine(t), loaded, Resolver{}, nil); err != nil {
		t.Fatalf("Replay: %v", err)
	}
}

func TestRecord_Errors(t *testing.T) {
	b := seq.NewBuilder()
	anon := value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return v, nil }))
	root := b.Map(b.Input("xs"), b.G.Const(anon))
	if _, err := Record(seq.Domain, b.G, root, builtins); !errors.Is(err, ErrUnnamed) {
		t.Fatalf("expected ErrUnnamed, got %v", err)
	}

	b = seq.NewBuilder()
	rec, err := Record(seq.Domain, b.G, b.Map(b.Input("xs"), b.Fn("inc")), builtins)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := rec.Graph(Resolver{Lookup: func(string) (value.Value, bool) { return value.Value{}, false }}); !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	rec.Schema++
	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(&buf); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestValue_Scalars(t *testing.T) {
	for _, v := range []value.Value{
		value.Bool(true), value.Byte(-4), value.Char('z'), value.Short(-300),
		value.Int(1 << 20), value.Long(-1 << 40), value.Float(1.5), value.Double(-2.25),
	} {
		rv, err := EncodeValue(v, Resolver{})
		if err != nil {
			t.Fatalf("EncodeValue(%s): %v", v, err)
		}
		got, err := DecodeValue(rv, Resolver{})
		if err != nil || !got.Equal(v) {
			t.Fatalf("DecodeValue(%+v) = %v, %v, want %v", rv, got, err, v)
		}
	}
	if _, err := DecodeValue(Val{Kind: "byte", Int: 300}, Resolver{}); err == nil {
		t.Fatal("expected range error for byte")
	}
}

func TestRecord_NormalizesNames(t *testing.T) {
	decomposed := "cafe\u0301"
	b := arith.NewBuilder()
	x := b.Var(decomposed)
	root := b.Seq(b.Assign(x, b.Param(decomposed+"-n")), b.Read(x))
	rec, err := Record(arith.Domain, b.G, root, Resolver{})
	if err != nil {
		t.Fatal(err)
	}
	var labels, strs []string
	for _, n := range rec.Nodes {
		if n.Label != "" {
			labels = append(labels, n.Label)
		}
		if n.Value != nil && n.Value.Kind == "string" {
			strs = append(strs, n.Value.Str)
		}
	}
	if len(labels) == 0 || labels[len(labels)-1] != "caf\u00e9-n" {
		t.Fatalf("labels = %q", labels)
	}
	if len(strs) != 1 || strs[0] != "caf\u00e9" {
		t.Fatalf("string values = %q", strs)
	}
}
