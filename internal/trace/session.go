package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
)

// Config describes a tracing session.
type Config struct {
	Level      Level
	Mode       Mode
	Format     Format        // FormatAuto picks from OutputPath
	Output     io.Writer     // overrides OutputPath
	OutputPath string        // "-" or "" for stderr
	RingSize   int           // 0 means DefaultRingSize
	Heartbeat  time.Duration // 0 disables heartbeats
	Clock      clock.Clock   // nil means the wall clock
}

// Session owns the tracer installed for one command invocation.
type Session struct {
	cfg    Config
	tracer Tracer
	ring   *Ring
	out    io.Writer
	hb     *Heartbeat
	closed bool
}

// Open builds the tracer described by cfg. With LevelOff the session
// traces nothing and Close is a no-op.
func Open(cfg Config) (*Session, error) {
	s := &Session{cfg: cfg, tracer: Nop}
	if cfg.Level == LevelOff {
		return s, nil
	}
	if cfg.Format == FormatAuto {
		cfg.Format = formatFor(cfg.OutputPath)
		s.cfg.Format = cfg.Format
	}

	switch cfg.Mode {
	case ModeStream, 0:
		out, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		s.out = out
		s.tracer = NewStream(out, cfg.Level, cfg.Format)
	case ModeRing:
		s.ring = NewRing(cfg.RingSize, cfg.Level)
		s.tracer = s.ring
	case ModeBoth:
		out, err := openOutput(cfg)
		if err != nil {
			return nil, err
		}
		s.out = out
		s.ring = NewRing(cfg.RingSize, cfg.Level)
		s.tracer = &fanout{level: cfg.Level, to: []Tracer{NewStream(out, cfg.Level, cfg.Format), s.ring}}
	default:
		return nil, fmt.Errorf("unknown trace mode %d", cfg.Mode)
	}

	if cfg.Heartbeat > 0 {
		clk := cfg.Clock
		if clk == nil {
			clk = clock.New()
		}
		s.hb = startHeartbeat(clk, s.tracer, cfg.Heartbeat)
	}
	return s, nil
}

// Tracer returns the session tracer; Nop when tracing is off.
func (s *Session) Tracer() Tracer { return s.tracer }

// Ring returns the session ring, nil in stream mode.
func (s *Session) Ring() *Ring { return s.ring }

// Close stops the heartbeat and flushes the tracer. When failed is set the
// ring is written out: to the trace output in ring mode, to stderr in both
// mode since the output already holds the full stream.
func (s *Session) Close(failed bool) error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.hb.Stop()

	var dumpErr error
	if failed && s.ring != nil {
		dumpErr = s.dump()
	}
	return errors.Join(dumpErr, s.tracer.Flush(), s.tracer.Close())
}

func (s *Session) dump() error {
	if s.cfg.Mode == ModeBoth {
		return s.ring.Dump(os.Stderr, FormatText)
	}
	out, err := openOutput(s.cfg)
	if err != nil {
		return err
	}
	err = s.ring.Dump(out, s.cfg.Format)
	if c, ok := out.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return struct{ io.Writer }{os.Stderr}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, nil
}
