package diagfmt

import (
	"errors"
	"path/filepath"

	"staged/internal/diag"
	"staged/internal/source"
)

func formatPath(p string, mode PathMode) string {
	if mode == PathModeBasename && p != "" {
		return filepath.Base(p)
	}
	return p
}

func formatPos(prov source.Provenance, mode PathMode) string {
	pos := prov.Pos
	pos.File = formatPath(pos.File, mode)
	return pos.String()
}

// FromError extracts the diagnostics carried by a compile, semantic or
// evaluation error. ok is false for any other error.
func FromError(err error) (ds []diag.Diagnostic, ok bool) {
	var (
		sem  *diag.SemanticError
		comp *diag.CompileError
		ev   *diag.EvalError
	)
	switch {
	case errors.As(err, &sem):
		return append([]diag.Diagnostic(nil), sem.Diags...), true
	case errors.As(err, &comp):
		msg := comp.Msg
		if comp.Err != nil {
			if msg != "" {
				msg += ": "
			}
			msg += comp.Err.Error()
		}
		return []diag.Diagnostic{diag.NewError(comp.Code, comp.Prov, msg)}, true
	case errors.As(err, &ev):
		msg := ev.Msg
		if ev.Err != nil {
			msg += ": " + ev.Err.Error()
		}
		return []diag.Diagnostic{diag.NewError(ev.Code, ev.Prov, msg)}, true
	}
	return nil, false
}

// Collect fills a sorted bag from err; nil when err carries no diagnostics.
func Collect(err error, limit int) *diag.Bag {
	ds, ok := FromError(err)
	if !ok {
		return nil
	}
	bag := diag.NewBag(limit)
	for _, d := range ds {
		bag.Add(d)
	}
	bag.Dedup()
	bag.Sort()
	return bag
}
