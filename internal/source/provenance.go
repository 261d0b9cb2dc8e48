package source

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"fortio.org/safecast"
)

// Pos is a human-readable location of a captured call site.
type Pos struct {
	File string
	Line uint32 // 1-based, 0 when unknown
	Col  uint32 // 1-based, 0 when unknown
}

// IsZero reports whether the position carries no location.
func (p Pos) IsZero() bool {
	return p.File == "" && p.Line == 0 && p.Col == 0
}

func (p Pos) String() string {
	if p.IsZero() {
		return "<unknown>"
	}
	switch {
	case p.Line == 0:
		return p.File
	case p.Col == 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
}

// Provenance is static metadata attached to a staged operation.
// It only feeds diagnostics and never takes part in structural comparison.
type Provenance struct {
	Decl string // declaring context, e.g. "pkg.(*List).Map"
	Pos  Pos
}

// At builds a Provenance for a declaring context and a file position.
func At(decl, file string, line, col uint32) Provenance {
	return Provenance{Decl: decl, Pos: Pos{File: file, Line: line, Col: col}}
}

// IsZero reports whether nothing is known about the origin.
func (p Provenance) IsZero() bool {
	return p.Decl == "" && p.Pos.IsZero()
}

func (p Provenance) String() string {
	if p.IsZero() {
		return "<no-provenance>"
	}
	var sb strings.Builder
	sb.WriteString(p.Pos.String())
	if p.Decl != "" {
		sb.WriteString(" (in ")
		sb.WriteString(p.Decl)
		sb.WriteString(")")
	}
	return sb.String()
}

// Caller returns the provenance of the function skip frames above the
// caller of Caller, attributed to decl.
func Caller(skip int, decl string) Provenance {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Provenance{Decl: decl}
	}
	l, err := safecast.Conv[uint32](line)
	if err != nil {
		l = 0
	}
	return At(decl, filepath.Base(file), l, 0)
}
