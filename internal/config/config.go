// Package config loads stagec.toml, the optional settings file of the stagec
// command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"staged/internal/isocache"
	"staged/internal/stage"
	"staged/internal/trace"
)

// FileName is the settings file stagec looks for.
const FileName = "stagec.toml"

// ErrUnknownDomain is returned for cache sections naming no caching domain.
var ErrUnknownDomain = errors.New("unknown cache domain")

// Trace mirrors the [trace] section.
type Trace struct {
	Level    string `toml:"level"`
	Mode     string `toml:"mode"`
	Output   string `toml:"output"`
	Format   string `toml:"format"`
	RingSize int    `toml:"ring_size"`
}

// Compile mirrors the [compile] section.
type Compile struct {
	Strict   []string `toml:"strict"`
	Stepwise bool     `toml:"stepwise"`
}

// Cache mirrors one [cache.<domain>] section.
type Cache struct {
	Idle       string `toml:"idle"`
	MaxEntries int    `toml:"max_entries"`
}

// File is a decoded stagec.toml.
type File struct {
	Path    string           `toml:"-"`
	Trace   Trace            `toml:"trace"`
	Compile Compile          `toml:"compile"`
	Cache   map[string]Cache `toml:"cache"`

	policies map[string]isocache.Policy
}

// Default returns the settings used when no file is found.
func Default() *File {
	return &File{
		Trace:    Trace{Level: trace.LevelOff.String(), Mode: trace.ModeStream.String(), Output: "-"},
		policies: stage.DefaultPolicies(),
	}
}

// Find walks up from startDir to locate stagec.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path. Keys left out keep their defaults.
func Load(path string) (*File, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	for domain, c := range cfg.Cache {
		p, ok := cfg.policies[domain]
		if !ok {
			return nil, fmt.Errorf("%s: [cache.%q]: %w", path, domain, ErrUnknownDomain)
		}
		if meta.IsDefined("cache", domain, "idle") {
			d, err := time.ParseDuration(strings.TrimSpace(c.Idle))
			if err != nil {
				return nil, fmt.Errorf("%s: [cache.%q].idle: %w", path, domain, err)
			}
			if d < 0 {
				return nil, fmt.Errorf("%s: [cache.%q].idle must not be negative", path, domain)
			}
			p.IdleTimeout = d
		}
		if meta.IsDefined("cache", domain, "max_entries") {
			if c.MaxEntries < 0 {
				return nil, fmt.Errorf("%s: [cache.%q].max_entries must not be negative", path, domain)
			}
			p.MaxEntries = c.MaxEntries
		}
		cfg.policies[domain] = p
	}

	if _, err := cfg.TraceConfig(); err != nil {
		return nil, fmt.Errorf("%s: [trace]: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest stagec.toml above startDir, or the defaults.
func Discover(startDir string) (*File, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Policies returns the effective cache policy per caching domain.
func (f *File) Policies() map[string]isocache.Policy {
	out := make(map[string]isocache.Policy, len(f.policies))
	for k, v := range f.policies {
		out[k] = v
	}
	return out
}

// Setup converts the file to engine settings.
func (f *File) Setup() stage.Setup {
	return stage.Setup{
		Policies: f.Policies(),
		Strict:   slices.Clone(f.Compile.Strict),
		Stepwise: f.Compile.Stepwise,
	}
}

// TraceConfig converts the [trace] section.
func (f *File) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(f.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(f.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(f.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: f.Trace.Output,
		RingSize:   f.Trace.RingSize,
	}, nil
}
