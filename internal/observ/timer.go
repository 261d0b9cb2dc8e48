// Package observ accumulates phase timings across the compiles and
// evaluations of one replay.
package observ

import (
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// Phase aggregates every measurement taken under one name.
type Phase struct {
	Name     string
	Count    int
	Failures int
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
}

// Mean is the average duration of one measurement.
func (p Phase) Mean() time.Duration {
	if p.Count == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Count)
}

func (p *Phase) add(d time.Duration, failed bool) {
	if p.Count == 0 || d < p.Min {
		p.Min = d
	}
	p.Max = max(p.Max, d)
	p.Count++
	p.Total += d
	if failed {
		p.Failures++
	}
}

// Timer groups measurements by phase name, in first-seen order. Replaying
// a recording several times folds every pass into the same phases. A nil
// *Timer records nothing, so callers never branch on --timings.
type Timer struct {
	clk    clock.Clock
	phases []Phase
	index  map[string]int
}

// NewTimer returns a Timer on the wall clock.
func NewTimer() *Timer { return NewTimerWithClock(clock.New()) }

// NewTimerWithClock returns a Timer reading clk.
func NewTimerWithClock(clk clock.Clock) *Timer {
	return &Timer{clk: clk, index: make(map[string]int, 4)}
}

// Measure runs fn and charges its duration to phase name.
func (t *Timer) Measure(name string, fn func() error) error {
	if t == nil {
		return fn()
	}
	start := t.clk.Now()
	err := fn()
	t.Record(name, t.clk.Now().Sub(start), err != nil)
	return err
}

// Record charges d to phase name.
func (t *Timer) Record(name string, d time.Duration, failed bool) {
	if t == nil {
		return
	}
	i, ok := t.index[name]
	if !ok {
		i = len(t.phases)
		t.index[name] = i
		t.phases = append(t.phases, Phase{Name: name})
	}
	t.phases[i].add(d, failed)
}

// Phases returns the aggregated phases.
func (t *Timer) Phases() []Phase {
	if t == nil {
		return nil
	}
	return t.phases
}

// Total sums every measurement.
func (t *Timer) Total() time.Duration {
	var sum time.Duration
	for _, p := range t.Phases() {
		sum += p.Total
	}
	return sum
}

// Summary renders a table, one line per phase.
func (t *Timer) Summary() string {
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range t.Phases() {
		fmt.Fprintf(&sb, "  %-10s %4dx %9.3f ms  mean %8.3f ms", p.Name, p.Count, ms(p.Total), ms(p.Mean()))
		if p.Failures > 0 {
			fmt.Fprintf(&sb, "  %d failed", p.Failures)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-10s       %9.3f ms\n", "total", ms(t.Total()))
	return sb.String()
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
