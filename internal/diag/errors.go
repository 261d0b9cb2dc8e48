package diag

import (
	"fmt"
	"strings"

	"staged/internal/source"
)

// CompileError reports that a domain compiler or the synthesis backend could
// not produce a closure. It is fatal for the request and never cached.
type CompileError struct {
	Domain string
	Code   Code
	Prov   source.Provenance
	Msg    string
	Err    error
}

// NewCompileError wraps cause (may be nil) with domain and provenance context.
func NewCompileError(domain string, code Code, prov source.Provenance, msg string, cause error) *CompileError {
	return &CompileError{Domain: domain, Code: code, Prov: prov, Msg: msg, Err: cause}
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "compile %s: %s", e.Domain, e.Code.ID())
	if !e.Prov.IsZero() {
		fmt.Fprintf(&sb, " at %s", e.Prov)
	}
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

// SemanticError reports a failed static check. Diags holds every finding of
// the analysis; the first one is the primary failure.
type SemanticError struct {
	Domain string
	Diags  []Diagnostic
}

// Error implements the error interface.
func (e *SemanticError) Error() string {
	if len(e.Diags) == 0 {
		return fmt.Sprintf("semantic %s: analysis failed", e.Domain)
	}
	d := e.Diags[0]
	msg := fmt.Sprintf("semantic %s: %s: %s: %s", e.Domain, d.Primary, d.Code.ID(), d.Message)
	if extra := len(e.Diags) - 1; extra > 0 {
		msg += fmt.Sprintf(" (and %d more)", extra)
	}
	return msg
}

// Primary returns the first diagnostic.
func (e *SemanticError) Primary() Diagnostic {
	if len(e.Diags) == 0 {
		return Diagnostic{}
	}
	return e.Diags[0]
}

// EvalError is raised by a compiled closure while running.
type EvalError struct {
	Code Code
	Prov source.Provenance
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "eval %s", e.Code.ID())
	if !e.Prov.IsZero() {
		fmt.Fprintf(&sb, " at %s", e.Prov)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *EvalError) Unwrap() error { return e.Err }
