package diag

import "staged/internal/source"

// Reporter receives diagnostics from an analysis.
type Reporter interface {
	Report(d Diagnostic)
}

// Pending is a diagnostic under construction; nothing reaches the reporter
// until Emit.
type Pending struct {
	to   Reporter
	d    Diagnostic
	sent bool
}

// ReportError starts an error diagnostic for r.
func ReportError(r Reporter, code Code, primary source.Provenance, msg string) *Pending {
	return &Pending{to: r, d: NewError(code, primary, msg)}
}

// WithNote points at a related staged call.
func (p *Pending) WithNote(prov source.Provenance, msg string) *Pending {
	p.d = p.d.WithNote(prov, msg)
	return p
}

// Emit reports the diagnostic. Repeated calls are ignored.
func (p *Pending) Emit() {
	if p.sent || p.to == nil {
		return
	}
	p.sent = true
	p.to.Report(p.d)
}

// Tee reports to every non-nil reporter in order.
func Tee(rs ...Reporter) Reporter {
	out := make(tee, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

type tee []Reporter

func (t tee) Report(d Diagnostic) {
	for _, r := range t {
		r.Report(d)
	}
}

// Unique forwards the first of each identical diagnostic to next. A loop
// body is analyzed more than once; its findings are reported once.
func Unique(next Reporter) Reporter {
	return &unique{next: next, seen: make(map[identity]struct{})}
}

type unique struct {
	next Reporter
	seen map[identity]struct{}
}

func (u *unique) Report(d Diagnostic) {
	id := d.identity()
	if _, dup := u.seen[id]; dup {
		return
	}
	u.seen[id] = struct{}{}
	u.next.Report(d)
}
