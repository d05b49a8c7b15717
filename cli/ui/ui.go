// Package ui provides terminal output components for the burrow CLI:
// banners, dividers, tables, and lists rendered with lipgloss.
package ui

import (
	"strings"

	"github.com/burrowkit/burrow/cli/styles"
	"github.com/charmbracelet/lipgloss"
)

// Banner renders the boxed CLI banner.
func Banner() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Render("burrow")
	subtitle := styles.Muted.Render("event-sourced aggregate engine")
	return styles.Box.Render(title + "\n" + subtitle)
}

// SimpleBanner renders a one-line banner for compact contexts.
func SimpleBanner() string {
	name := lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Render("burrow")
	return name + " " + styles.Muted.Render(styles.IconDot+" event-sourced aggregate engine")
}

// Divider renders a horizontal rule of the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().Foreground(styles.Border).Render(strings.Repeat("─", width))
}

// ListItems renders a bulleted list.
func ListItems(items []string) string {
	var out strings.Builder
	bullet := lipgloss.NewStyle().Foreground(styles.Primary).Render(styles.IconDot)
	for _, item := range items {
		out.WriteString("  " + bullet + " " + styles.Normal.Render(item) + "\n")
	}
	return out.String()
}

// StatusBadge renders a colored badge for a status string.
func StatusBadge(status string) string {
	var color lipgloss.Color
	switch strings.ToLower(status) {
	case "ok", "healthy", "running", "done":
		color = styles.Success
	case "warning", "behind", "degraded":
		color = styles.Warning
	case "error", "failed", "down":
		color = styles.Error
	default:
		color = styles.TextMuted
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(strings.ToUpper(status))
}

// Table renders tabular data with box-drawing borders. Column widths grow
// to fit the widest cell.
type Table struct {
	headers []string
	body    [][]string
	widths  []int
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	return &Table{headers: headers, widths: colWidths}
}

// AddRow appends a row; extra values beyond the header count are dropped.
func (t *Table) AddRow(values ...string) {
	cells := make([]string, len(t.headers))
	for i := range cells {
		if i >= len(values) {
			break
		}
		cells[i] = values[i]
		if w := len(values[i]); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.body = append(t.body, cells)
}

// Render returns the table as a bordered string.
func (t *Table) Render() string {
	if len(t.headers) == 0 {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Primary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(styles.Text).Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(styles.Border)

	var out strings.Builder
	rule := func(left, mid, right string) {
		parts := make([]string, len(t.widths))
		for i, w := range t.widths {
			parts[i] = strings.Repeat("─", w+2)
		}
		out.WriteString(borderStyle.Render(left+strings.Join(parts, mid)+right) + "\n")
	}
	line := func(style lipgloss.Style, cells []string) {
		out.WriteString(borderStyle.Render("│"))
		for i, c := range cells {
			out.WriteString(style.Width(t.widths[i] + 2).Render(c))
			out.WriteString(borderStyle.Render("│"))
		}
		out.WriteString("\n")
	}

	rule("┌", "┬", "┐")
	line(headerStyle, t.headers)
	rule("├", "┼", "┤")
	for _, cells := range t.body {
		line(cellStyle, cells)
	}
	rule("└", "┴", "┘")
	return out.String()
}
