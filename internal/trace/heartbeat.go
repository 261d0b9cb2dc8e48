package trace

import (
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Heartbeat emits a liveness event every interval. Compiles run inline on
// the caller, so heartbeats with no span end between them point at a stuck
// compile or a runaway evaluation.
type Heartbeat struct {
	ticker *clock.Ticker
	stop   chan struct{}
	once   sync.Once
	done   chan struct{}
}

// StartHeartbeat starts a heartbeat on the wall clock. It returns nil when
// t is disabled or interval is not positive.
func StartHeartbeat(t Tracer, interval time.Duration) *Heartbeat {
	return startHeartbeat(clock.New(), t, interval)
}

func startHeartbeat(clk clock.Clock, t Tracer, interval time.Duration) *Heartbeat {
	if !Enabled(t) || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		ticker: clk.Ticker(interval),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	started := clk.Now()
	go func() {
		defer close(h.done)
		defer h.ticker.Stop()
		for beat := uint64(1); ; beat++ {
			select {
			case now := <-h.ticker.C:
				t.Emit(&Event{
					Time:   now,
					Kind:   KindHeartbeat,
					Scope:  ScopeDriver,
					Name:   "heartbeat",
					Detail: "up " + now.Sub(started).Truncate(time.Millisecond).String(),
					Attrs:  []Attr{{Key: "beat", Value: strconv.FormatUint(beat, 10)}},
				})
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

// Stop halts the heartbeat and waits for its goroutine. Safe on nil.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
