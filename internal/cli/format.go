/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package cli

import (
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/costela/milpa"
	"github.com/mattn/go-isatty"
)

// Gruvbox-inspired color palette.
var (
	colorGreen  = lipgloss.Color("#8ec07c")
	colorYellow = lipgloss.Color("#fabd2f")
	colorRed    = lipgloss.Color("#fb4934")
	colorDim    = lipgloss.Color("#928374")
	colorHeader = lipgloss.Color("#fe8019")
)

type styles struct {
	header lipgloss.Style
	dim    lipgloss.Style
	good   lipgloss.Style
	warn   lipgloss.Style
	bad    lipgloss.Style
}

// newStyles returns colored styles when w is a terminal and plain ones
// otherwise.
func newStyles(w io.Writer) styles {
	plain := lipgloss.NewStyle()
	s := styles{header: plain, dim: plain, good: plain, warn: plain, bad: plain}
	if !isTerminal(w) {
		return s
	}
	return styles{
		header: lipgloss.NewStyle().Foreground(colorHeader).Bold(true),
		dim:    lipgloss.NewStyle().Foreground(colorDim),
		good:   lipgloss.NewStyle().Foreground(colorGreen),
		warn:   lipgloss.NewStyle().Foreground(colorYellow),
		bad:    lipgloss.NewStyle().Foreground(colorRed),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s styles) status(st milpa.Status) string {
	switch st {
	case milpa.Optimal:
		return s.good.Render(st.String())
	case milpa.Infeasible, milpa.Unbounded:
		return s.bad.Render(st.String())
	default:
		return s.warn.Render(st.String())
	}
}

// table renders an aligned table with a header separator line. Columns are
// padded to the widest visible cell.
func (s styles) table(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	const colGap = 2

	cols := len(headers)
	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(int, string) string) {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(style(i, cell))
			if i < cols-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+colGap))
			}
		}
		b.WriteString("\n")
	}

	writeRow(headers, func(_ int, c string) string { return s.header.Render(c) })
	seps := make([]string, cols)
	for i, w := range widths {
		seps[i] = strings.Repeat("─", w)
	}
	writeRow(seps, func(_ int, c string) string { return s.dim.Render(c) })
	for _, row := range rows {
		writeRow(row, func(_ int, c string) string { return c })
	}

	return b.String()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'g', 10, 64)
}
