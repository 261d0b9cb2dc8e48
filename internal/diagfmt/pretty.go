package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"staged/internal/diag"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем declaration context и Notes с аналогичным форматом.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}
	sevColor := map[diag.Severity]*color.Color{
		diag.SevError:   color.New(color.FgRed, color.Bold),
		diag.SevWarning: color.New(color.FgYellow, color.Bold),
		diag.SevInfo:    color.New(color.FgCyan),
	}
	dim := color.New(color.Faint)

	for _, d := range bag.Items() {
		sev := d.Severity.String()
		if c, ok := sevColor[d.Severity]; ok {
			sev = paint(c, sev)
		}
		fmt.Fprintf(w, "%s: %s %s: %s\n", formatPos(d.Primary, opts.PathMode), sev, d.Code.ID(), d.Message)
		if d.Primary.Decl != "" {
			fmt.Fprintf(w, "  %s %s\n", paint(dim, "in"), d.Primary.Decl)
		}
		if opts.ShowTitle {
			fmt.Fprintf(w, "  %s %s\n", paint(dim, "="), d.Code.Title())
		}
		if opts.ShowNotes {
			for _, n := range d.Notes {
				fmt.Fprintf(w, "  %s %s: %s\n", paint(dim, "note:"), formatPos(n.Prov, opts.PathMode), n.Msg)
			}
		}
	}
}
