package diag

import (
	"cmp"
	"slices"

	"fortio.org/safecast"
)

// Bag collects diagnostics up to a limit and counts the ones it had to
// drop. *Bag is a Reporter.
type Bag struct {
	items   []Diagnostic
	limit   uint16
	dropped int
}

// NewBag returns a bag holding at most limit diagnostics, clamped to 65535.
func NewBag(limit int) *Bag {
	capped, err := safecast.Conv[uint16](limit)
	if err != nil {
		capped = ^uint16(0)
	}
	return &Bag{items: make([]Diagnostic, 0, min(capped, 16)), limit: capped}
}

// Add stores d and reports whether it fit.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.limit) {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// Report implements Reporter.
func (b *Bag) Report(d Diagnostic) { b.Add(d) }

// Dropped counts diagnostics refused by the limit.
func (b *Bag) Dropped() int { return b.dropped }

// HasErrors reports whether any held diagnostic is fatal.
func (b *Bag) HasErrors() bool {
	return slices.ContainsFunc(b.items, func(d Diagnostic) bool { return d.Severity.Fatal() })
}

func (b *Bag) Len() int { return len(b.items) }

// Items returns the held diagnostics; callers must not modify them.
func (b *Bag) Items() []Diagnostic { return b.items }

// Sort orders by position, then most severe first, then code.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		px, py := x.Primary.Pos, y.Primary.Pos
		return cmp.Or(
			cmp.Compare(px.File, py.File),
			cmp.Compare(px.Line, py.Line),
			cmp.Compare(px.Col, py.Col),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
		)
	})
}

// Dedup keeps the first of each identical diagnostic.
func (b *Bag) Dedup() {
	seen := make(map[identity]struct{}, len(b.items))
	b.items = slices.DeleteFunc(b.items, func(d Diagnostic) bool {
		id := d.identity()
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}
		return false
	})
}
