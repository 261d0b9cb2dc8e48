package trace

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var seq atomic.Uint64

// Stream encodes each admitted event straight to a writer.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	buf    []byte
	level  Level
	format Format
	err    error
}

// NewStream returns a Stream writing to w. FormatAuto means text.
func NewStream(w io.Writer, level Level, format Format) *Stream {
	if format == FormatAuto {
		format = FormatText
	}
	return &Stream{w: w, level: level, format: format}
}

func (s *Stream) Emit(ev *Event) {
	if !s.level.admits(ev) {
		return
	}
	ev.Seq = seq.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = ev.Append(s.buf[:0], s.format)
	// a broken trace output never fails the compile; the first error
	// surfaces from Flush
	if _, err := s.w.Write(s.buf); err != nil && s.err == nil {
		s.err = err
	}
}

func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	return s.err
}

func (s *Stream) Close() error {
	err := s.Flush()
	if c, ok := s.w.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

func (s *Stream) Level() Level { return s.level }

// Ring keeps the newest admitted events in a fixed buffer.
type Ring struct {
	mu     sync.RWMutex
	events []Event
	next   int
	n      int
	level  Level
}

// DefaultRingSize is used when a ring is requested without a size.
const DefaultRingSize = 4096

// NewRing returns a ring holding up to size events.
func NewRing(size int, level Level) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{events: make([]Event, size), level: level}
}

func (r *Ring) Emit(ev *Event) {
	if !r.level.admits(ev) {
		return
	}
	stored := *ev
	stored.Seq = seq.Add(1)

	r.mu.Lock()
	r.events[r.next] = stored
	r.next = (r.next + 1) % len(r.events)
	if r.n < len(r.events) {
		r.n++
	}
	r.mu.Unlock()
}

// Snapshot copies the held events, oldest first.
func (r *Ring) Snapshot() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, 0, r.n)
	start := (r.next - r.n + len(r.events)) % len(r.events)
	for i := range r.n {
		out = append(out, r.events[(start+i)%len(r.events)])
	}
	return out
}

// Dump writes the held events to w.
func (r *Ring) Dump(w io.Writer, format Format) error {
	if format == FormatAuto {
		format = FormatText
	}
	var buf []byte
	for _, ev := range r.Snapshot() {
		buf = ev.Append(buf, format)
	}
	_, err := w.Write(buf)
	return err
}

func (r *Ring) Flush() error { return nil }
func (r *Ring) Close() error { return nil }
func (r *Ring) Level() Level { return r.level }

// fanout copies every event to each child since sinks stamp Seq in place.
type fanout struct {
	level Level
	to    []Tracer
}

func (f *fanout) Emit(ev *Event) {
	for _, t := range f.to {
		cp := *ev
		t.Emit(&cp)
	}
}

func (f *fanout) Flush() error {
	var errs []error
	for _, t := range f.to {
		errs = append(errs, t.Flush())
	}
	return errors.Join(errs...)
}

func (f *fanout) Close() error {
	var errs []error
	for _, t := range f.to {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

func (f *fanout) Level() Level { return f.level }
