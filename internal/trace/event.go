package trace

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind classifies an event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
	// KindFailure marks a span that ended with an error. Failures pass every
	// level except LevelOff.
	KindFailure
)

var kindNames = [...]string{"", "begin", "end", "point", "heartbeat", "failure"}

func (k Kind) String() string {
	if int(k) < len(kindNames) && k != 0 {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Coarser scopes have lower values.
type Scope uint8

const (
	// ScopeDriver covers engine requests: one compile or evaluate call.
	ScopeDriver Scope = iota + 1
	// ScopePass covers compiler passes: analyze, lower, fuse, synthesize.
	ScopePass
	// ScopeCache covers isomorphism cache traffic.
	ScopeCache
	// ScopeNode covers per-node work inside a pass.
	ScopeNode
)

var scopeNames = [...]string{"", "driver", "pass", "cache", "node"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && s != 0 {
		return scopeNames[s]
	}
	return "unknown"
}

// Attr is one key/value pair attached to a span end.
type Attr struct {
	Key   string `json:"k" msgpack:"k"`
	Value string `json:"v" msgpack:"v"`
}

// Event is a single trace record.
type Event struct {
	Time   time.Time `json:"time" msgpack:"time"`
	Seq    uint64    `json:"seq" msgpack:"seq"`
	Kind   Kind      `json:"-" msgpack:"kind"`
	Scope  Scope     `json:"-" msgpack:"scope"`
	Span   uint64    `json:"span,omitempty" msgpack:"span,omitempty"`
	Parent uint64    `json:"parent,omitempty" msgpack:"parent,omitempty"`
	GID    uint64    `json:"gid,omitempty" msgpack:"gid,omitempty"`
	Name   string    `json:"name" msgpack:"name"`
	Detail string    `json:"detail,omitempty" msgpack:"detail,omitempty"`
	Attrs  []Attr    `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// Attr returns the value stored under key.
func (ev *Event) Attr(key string) (string, bool) {
	for _, a := range ev.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Format selects an event encoding.
type Format uint8

const (
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
	FormatMsgpack
)

// ParseFormat parses a --trace-format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson|msgpack)", s)
}

// formatFor picks a format from the output file extension.
func formatFor(path string) Format {
	switch {
	case strings.HasSuffix(path, ".ndjson"), strings.HasSuffix(path, ".jsonl"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".mp"), strings.HasSuffix(path, ".msgpack"):
		return FormatMsgpack
	}
	return FormatText
}

var epoch = time.Now()

// Append encodes ev in format f onto buf.
func (ev *Event) Append(buf []byte, f Format) []byte {
	switch f {
	case FormatNDJSON:
		return ev.appendJSON(buf)
	case FormatMsgpack:
		data, err := msgpack.Marshal(ev)
		if err != nil {
			return buf
		}
		return append(buf, data...)
	}
	return ev.appendText(buf)
}

func (ev *Event) appendJSON(buf []byte) []byte {
	type wire struct {
		*Event
		Kind  string `json:"kind"`
		Scope string `json:"scope"`
	}
	data, err := json.Marshal(wire{Event: ev, Kind: ev.Kind.String(), Scope: ev.Scope.String()})
	if err != nil {
		data = fmt.Appendf(nil, `{"name":%q,"error":%q}`, ev.Name, err.Error())
	}
	return append(append(buf, data...), '\n')
}

var marks = [...]string{"? ", "> ", "< ", ". ", "~ ", "! "}

// appendText renders one line per event:
//
//	[   12.345ms]   > pass:fuse (detail) chain=map.filter
func (ev *Event) appendText(buf []byte) []byte {
	ms := float64(ev.Time.Sub(epoch)) / float64(time.Millisecond)
	buf = append(buf, '[')
	buf = append(buf, fmt.Sprintf("%9.3f", ms)...)
	buf = append(buf, "ms] "...)
	if ev.Parent != 0 {
		buf = append(buf, "  "...)
	}
	mark := marks[0]
	if int(ev.Kind) < len(marks) {
		mark = marks[ev.Kind]
	}
	buf = append(buf, mark...)
	buf = append(buf, ev.Scope.String()...)
	buf = append(buf, ':')
	buf = append(buf, ev.Name...)
	if ev.Detail != "" {
		buf = append(buf, " ("...)
		buf = append(buf, ev.Detail...)
		buf = append(buf, ')')
	}
	for _, a := range ev.Attrs {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		if strings.ContainsAny(a.Value, " \t") {
			buf = strconv.AppendQuote(buf, a.Value)
		} else {
			buf = append(buf, a.Value...)
		}
	}
	return append(buf, '\n')
}
