package trace

import (
	"fmt"
	"strings"
)

// Level controls how much is recorded.
type Level uint8

const (
	LevelOff Level = iota
	// LevelError records failures only.
	LevelError
	// LevelPhase adds engine requests and compiler passes.
	LevelPhase
	// LevelDetail adds cache traffic.
	LevelDetail
	// LevelDebug records everything.
	LevelDebug
)

var levelNames = [...]string{"off", "error", "phase", "detail", "debug"}

func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLevel parses a level name; the empty string means off.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(s)
	if s == "" {
		return LevelOff, nil
	}
	for i, name := range levelNames {
		if name == s {
			return Level(i), nil
		}
	}
	return LevelOff, fmt.Errorf("invalid trace level: %q (expected: %s)", s, strings.Join(levelNames[:], "|"))
}

// ShouldEmit reports whether ordinary events of scope pass at l.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopePass
	case LevelDetail:
		return scope <= ScopeCache
	case LevelDebug:
		return true
	}
	return false
}

// admits is ShouldEmit extended to failures and heartbeats.
func (l Level) admits(ev *Event) bool {
	switch ev.Kind {
	case KindFailure:
		return l > LevelOff
	case KindHeartbeat:
		return l >= LevelPhase
	}
	return l.ShouldEmit(ev.Scope)
}

// Mode selects where events go.
type Mode uint8

const (
	// ModeStream writes each event as it happens.
	ModeStream Mode = iota + 1
	// ModeRing keeps the newest events and writes them out only when the
	// command fails.
	ModeRing
	// ModeBoth streams and keeps a ring.
	ModeBoth
)

var modeNames = [...]string{"", "stream", "ring", "both"}

func (m Mode) String() string {
	if int(m) < len(modeNames) && m != 0 {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode parses a mode name; the empty string means stream.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(s)
	if s == "" {
		return ModeStream, nil
	}
	for i, name := range modeNames[1:] {
		if name == s {
			return Mode(i + 1), nil
		}
	}
	return ModeStream, fmt.Errorf("invalid trace mode: %q (expected: stream|ring|both)", s)
}
