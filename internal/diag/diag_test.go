package diag

import (
	"errors"
	"io"
	"strings"
	"testing"

	"staged/internal/source"
)

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(8)
	r := Reporter(b)
	late := source.At("f", "b.go", 9, 1)
	early := source.At("f", "a.go", 2, 5)
	r.Report(NewError(SemaUndefinedVar, late, "x"))
	r.Report(NewError(SemaUndefinedVar, early, "y"))
	r.Report(NewError(SemaUndefinedVar, early, "y"))

	b.Dedup()
	b.Sort()
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if b.Items()[0].Primary != early {
		t.Fatalf("first item = %v, want %v", b.Items()[0].Primary, early)
	}
	if !b.HasErrors() {
		t.Fatal("expected errors")
	}
}

func TestBagLimit(t *testing.T) {
	b := NewBag(1)
	if !b.Add(NewError(SemaUndefinedVar, source.Provenance{}, "a")) {
		t.Fatal("first add must succeed")
	}
	if b.Add(NewError(SemaUndefinedVar, source.Provenance{}, "b")) {
		t.Fatal("second add must hit the limit")
	}
	if b.Dropped() != 1 {
		t.Fatalf("Dropped() = %d", b.Dropped())
	}
}

func TestUniqueTee(t *testing.T) {
	b, mirror := NewBag(8), NewBag(8)
	r := Unique(Tee(b, nil, mirror))
	p := source.At("f", "a.go", 1, 1)
	for range 3 {
		ReportError(r, SemaUndefinedVar, p, "x").WithNote(p, "declared here").Emit()
	}
	if b.Len() != 1 || mirror.Len() != 1 {
		t.Fatalf("Len() = %d and %d, want 1", b.Len(), mirror.Len())
	}
	if len(b.Items()[0].Notes) != 1 {
		t.Fatalf("notes = %v", b.Items()[0].Notes)
	}
}

func TestErrorsFormatAndUnwrap(t *testing.T) {
	ce := NewCompileError("seq", CompSynthesisFailed, source.At("q", "q.go", 4, 2), "fused chain", io.ErrUnexpectedEOF)
	if !errors.Is(ce, io.ErrUnexpectedEOF) {
		t.Fatal("CompileError must unwrap its cause")
	}
	if got := ce.Error(); !strings.Contains(got, "STG3001") || !strings.Contains(got, "q.go:4:2") {
		t.Fatalf("CompileError.Error() = %q", got)
	}

	se := &SemanticError{Domain: "arith", Diags: []Diagnostic{
		NewError(SemaUndefinedVar, source.At("f", "a.go", 3, 1), "variable x may be undefined"),
		NewError(SemaUndefinedVar, source.At("f", "a.go", 4, 1), "variable y may be undefined"),
	}}
	if got := se.Error(); !strings.Contains(got, "a.go:3:1") || !strings.Contains(got, "and 1 more") {
		t.Fatalf("SemanticError.Error() = %q", got)
	}
	var target *SemanticError
	if !errors.As(error(se), &target) || target.Primary().Code != SemaUndefinedVar {
		t.Fatal("errors.As must find SemanticError")
	}
}

func TestCodeID(t *testing.T) {
	if got := SemaUndefinedVar.ID(); got != "STG2001" {
		t.Fatalf("ID() = %q", got)
	}
	if got := Code(9999).ID(); got != "E0000" {
		t.Fatalf("ID() = %q", got)
	}
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{SevInfo, SevWarning, SevError} {
		b, err := s.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Severity
		if err := back.UnmarshalText(b); err != nil || back != s {
			t.Fatalf("%s came back as %s, %v", s, back, err)
		}
	}
	if !SevError.Fatal() || SevWarning.Fatal() {
		t.Fatal("only errors are fatal")
	}
	if _, err := Severity(9).MarshalText(); err == nil {
		t.Fatal("unknown severity must not encode")
	}
}
