package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"staged/internal/isocache"
	"staged/internal/lang/seq"
	"staged/internal/trace"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesOnlyDefinedKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[trace]
level = "detail"
mode = "ring"
format = "ndjson"
ring_size = 128

[compile]
strict = ["arith"]
stepwise = true

[cache.seq]
idle = "30s"

[cache."seq.reduce"]
max_entries = 8
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	policies := cfg.Policies()
	if got, want := policies[seq.Domain], (isocache.Policy{IdleTimeout: 30 * time.Second, MaxEntries: seq.DefaultPolicy.MaxEntries}); got != want {
		t.Fatalf("seq policy = %v, want %v", got, want)
	}
	if got, want := policies[seq.ReduceDomain], (isocache.Policy{IdleTimeout: seq.ReduceDefaultPolicy.IdleTimeout, MaxEntries: 8}); got != want {
		t.Fatalf("seq.reduce policy = %v, want %v", got, want)
	}

	setup := cfg.Setup()
	if !setup.Stepwise || len(setup.Strict) != 1 || setup.Strict[0] != "arith" {
		t.Fatalf("Setup() = %+v", setup)
	}

	tc, err := cfg.TraceConfig()
	if err != nil {
		t.Fatal(err)
	}
	if tc.Level != trace.LevelDetail || tc.Mode != trace.ModeRing || tc.Format != trace.FormatNDJSON || tc.RingSize != 128 {
		t.Fatalf("TraceConfig() = %+v", tc)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "unknown domain", body: "[cache.arith]\nmax_entries = 1\n", want: ErrUnknownDomain},
		{name: "bad duration", body: "[cache.seq]\nidle = \"soon\"\n"},
		{name: "negative size", body: "[cache.seq]\nmax_entries = -1\n"},
		{name: "unknown key", body: "[compile]\nfast = true\n"},
		{name: "bad level", body: "[trace]\nlevel = \"loud\"\n"},
		{name: "bad format", body: "[trace]\nformat = \"xml\"\n"},
		{name: "syntax", body: "[trace\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDiscover_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "[compile]\nstepwise = true\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !cfg.Compile.Stepwise || cfg.Path != filepath.Join(root, FileName) {
		t.Fatalf("Discover() = %+v", cfg)
	}
}

func TestDefault_UsesDomainPolicies(t *testing.T) {
	cfg := Default()
	if got := cfg.Policies()[seq.Domain]; got != seq.DefaultPolicy {
		t.Fatalf("default seq policy = %v", got)
	}
	tc, err := cfg.TraceConfig()
	if err != nil || tc.Level != trace.LevelOff {
		t.Fatalf("TraceConfig() = %+v, %v", tc, err)
	}
}
