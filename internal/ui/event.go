package ui

// Stage is the replay step a recording is in.
type Stage uint8

const (
	StageLoad Stage = iota + 1
	StageCompile
	StageEval
)

// Status of a recording within its stage.
type Status uint8

const (
	StatusQueued Status = iota + 1
	StatusWorking
	StatusDone
	StatusError
)

// Event reports progress of one recording. Pass counts replay repetitions
// from 1 when Passes is set.
type Event struct {
	File   string
	Stage  Stage
	Status Status
	Pass   int
	Passes int
	Err    string
}

// Sink receives progress events. Implementations must be goroutine-safe.
type Sink interface {
	Emit(Event)
}

// ChannelSink forwards events to a channel.
type ChannelSink struct{ Ch chan<- Event }

// Emit implements Sink.
func (s ChannelSink) Emit(ev Event) {
	if s.Ch != nil {
		s.Ch <- ev
	}
}

// NopSink drops events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}
