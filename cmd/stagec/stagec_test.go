package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"staged/internal/capture"
	"staged/internal/config"
	"staged/internal/lang/arith"
	"staged/internal/stage"
	"staged/internal/ui"
	"staged/internal/value"
)

func writeSamples(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for _, s := range samples() {
		rec, err := s.record()
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, s.name+".mp")
		if err := writeRecording(path, rec); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestReplayAll_Samples(t *testing.T) {
	paths := writeSamples(t)
	engine, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(context.Background())

	reports, err := replayAll(context.Background(), engine, paths, 2, 3, ui.NopSink{})
	if err != nil {
		t.Fatalf("replayAll: %v", err)
	}
	if len(reports) != len(paths) {
		t.Fatalf("got %d reports", len(reports))
	}
	for i, r := range reports {
		if r.path != paths[i] || r.err != nil || len(r.outcomes) == 0 {
			t.Fatalf("report %d = %+v", i, r)
		}
	}

	var seqStats []string
	for _, c := range engine.Caches() {
		if s := c.Stats(); s.Inserts > 1 {
			seqStats = append(seqStats, c.Name())
		}
	}
	if len(seqStats) != 0 {
		t.Fatalf("repeated replays must reuse units, caches with several inserts: %v", seqStats)
	}
}

func TestReplayAll_MissingFile(t *testing.T) {
	engine, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(context.Background())

	missing := filepath.Join(t.TempDir(), "nope.mp")
	reports, err := replayAll(context.Background(), engine, []string{missing}, 1, 1, ui.NopSink{})
	if err == nil {
		t.Fatal("expected error for missing recording")
	}
	var buf bytes.Buffer
	if err := printReplay(&buf, reports[0], "pretty", false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "fail") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestBenchRun_AllSitesAgree(t *testing.T) {
	engine, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(context.Background())

	input := value.Object(value.Longs(0, 1, 2, 3, 4))
	results, err := benchRun(context.Background(), engine, input, 4, 3)
	if err != nil {
		t.Fatalf("benchRun: %v", err)
	}
	want := []string{"20", "2", "[2, 4, 6, 8, 10]"}
	for i, r := range results {
		if r.String() != want[i] {
			t.Fatalf("%s = %s, want %s", benchShapes[i].name, r, want[i])
		}
	}
}

func TestPrintCacheTable(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	engine, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close(context.Background())

	var buf bytes.Buffer
	printCacheTable(&buf, engine)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1+len(engine.Caches()) {
		t.Fatalf("table:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[0], "cache") || !strings.Contains(lines[0], "race-lost") {
		t.Fatalf("header = %q", lines[0])
	}
}

func TestSamples_RecordAllRuns(t *testing.T) {
	for _, s := range samples() {
		rec, err := s.record()
		if err != nil {
			t.Fatal(err)
		}
		checked := 0
		for i := range rec.Runs {
			if rec.Expectation(i) != nil {
				checked++
			}
		}
		if len(rec.Runs) != len(s.runs) || checked != len(s.expect) {
			t.Fatalf("%s: runs=%d checked=%d", s.name, len(rec.Runs), checked)
		}
		if _, err := capture.Replay(context.Background(), mustEngine(t), rec, builtins, nil); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}
}

func mustEngine(t *testing.T) *stage.Engine {
	t.Helper()
	e, err := stage.Standard(stage.Setup{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestPrintReplay_RendersDiagnostics(t *testing.T) {
	b := arith.NewBuilder()
	y := b.Var("y")
	root := b.Seq(b.If(b.Lt(b.Param("n"), b.Lit(0)), b.Assign(y, b.Lit(1))), b.Read(y))
	rec, err := capture.Record(arith.Domain, b.G, root, builtins)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.AddRun([]value.Value{value.Long(3)}, nil, builtins); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "undefined.mp")
	if err := writeRecording(path, rec); err != nil {
		t.Fatal(err)
	}

	reports, err := replayAll(context.Background(), mustEngine(t), []string{path}, 1, 1, ui.NopSink{})
	if err == nil {
		t.Fatal("expected replay failure")
	}
	for _, format := range []string{"pretty", "json"} {
		var buf bytes.Buffer
		if err := printReplay(&buf, reports[0], format, false); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "STG2001") || !strings.Contains(buf.String(), "stagec_test.go") {
			t.Fatalf("%s output:\n%s", format, buf.String())
		}
	}
}

func TestReadToggle(t *testing.T) {
	for in, want := range map[string]toggleMode{"": toggleAuto, "AUTO": toggleAuto, " on ": toggleOn, "off": toggleOff} {
		got, err := readToggle("ui", in)
		if err != nil || got != want {
			t.Fatalf("readToggle(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readToggle("ui", "sometimes"); err == nil || !strings.Contains(err.Error(), "--ui") {
		t.Fatalf("expected --ui error, got %v", err)
	}
	if !enabled(toggleOn) || enabled(toggleOff) {
		t.Fatal("explicit modes must not consult the terminal")
	}
}

func TestReplayAll_EmitsProgress(t *testing.T) {
	paths := writeSamples(t)
	events := make(chan ui.Event, 64)
	if _, err := replayAll(context.Background(), mustEngine(t), paths[:1], 1, 1, ui.ChannelSink{Ch: events}); err != nil {
		t.Fatal(err)
	}
	close(events)
	var seen []ui.Stage
	var last ui.Status
	for ev := range events {
		if ev.Status == ui.StatusWorking {
			seen = append(seen, ev.Stage)
		}
		last = ev.Status
	}
	want := []ui.Stage{ui.StageLoad, ui.StageCompile, ui.StageEval}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] || seen[2] != want[2] {
		t.Fatalf("stages = %v", seen)
	}
	if last != ui.StatusDone {
		t.Fatalf("last status = %v", last)
	}
}

func TestDescribeDomains(t *testing.T) {
	domains, err := describeDomains(context.Background(), config.Default())
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]domainInfo{}
	var names []string
	for _, d := range domains {
		byName[d.Name] = d
		names = append(names, d.Name)
	}
	if strings.Join(names, ",") != "arith,seq,seq.reduce" {
		t.Fatalf("domains = %v", names)
	}
	if byName["arith"].Cache != "" || !strings.Contains(byName["seq"].Cache, "max=256") {
		t.Fatalf("cache policies = %+v", domains)
	}

	var buf bytes.Buffer
	printVersion(&buf, versionPayload{Tool: "stagec", Version: "1.0.0", GitCommit: "abc", BuildDate: "unknown", Domains: domains})
	if !strings.Contains(buf.String(), "domain: seq.reduce") {
		t.Fatalf("version output:\n%s", buf.String())
	}
}
