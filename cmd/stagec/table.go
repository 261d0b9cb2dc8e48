package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"staged/internal/stage"
)

// printCacheTable renders one row per unit cache of engine.
func printCacheTable(out io.Writer, engine *stage.Engine) {
	header := []string{"cache", "policy", "entries", "hits", "misses", "stored", "race-lost", "evicted"}
	rows := [][]string{header}
	for _, c := range engine.Caches() {
		s := c.Stats()
		rows = append(rows, []string{
			c.Name(),
			c.Policy().String(),
			fmt.Sprint(s.Entries),
			fmt.Sprint(s.Hits),
			fmt.Sprint(s.Misses),
			fmt.Sprint(s.Inserts),
			fmt.Sprint(s.RaceLost),
			fmt.Sprint(s.Evictions),
		})
	}
	if len(rows) == 1 {
		return
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	bold := color.New(color.Bold)
	for r, row := range rows {
		var sb strings.Builder
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			// числа выравниваются вправо
			if i >= 2 {
				sb.WriteString(runewidth.FillLeft(cell, widths[i]))
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		line := strings.TrimRight(sb.String(), " ")
		if r == 0 {
			line = bold.Sprint(line)
		}
		fmt.Fprintln(out, line)
	}
}
