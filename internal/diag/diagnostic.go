package diag

import (
	"slices"

	"staged/internal/source"
)

// Note points at a staged call related to the primary one.
type Note struct {
	Prov source.Provenance
	Msg  string
}

// Diagnostic is one finding about a staged graph. Primary is the provenance
// of the call that created the offending node.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Provenance
	Notes    []Note
}

func New(sev Severity, code Code, primary source.Provenance, msg string) Diagnostic {
	return Diagnostic{Severity: sev, Code: code, Primary: primary, Message: msg}
}

func NewError(code Code, primary source.Provenance, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

// WithNote returns d with a note appended.
func (d Diagnostic) WithNote(p source.Provenance, msg string) Diagnostic {
	d.Notes = append(slices.Clip(d.Notes), Note{Prov: p, Msg: msg})
	return d
}

// identity is what makes two diagnostics duplicates; notes do not count.
type identity struct {
	code Code
	sev  Severity
	prov source.Provenance
	msg  string
}

func (d Diagnostic) identity() identity {
	return identity{code: d.Code, sev: d.Severity, prov: d.Primary, msg: d.Message}
}
