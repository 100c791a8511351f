// Package ui renders the post-run plan summary for terminals.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"wireplan/internal/aggregate"
	"wireplan/internal/diag"
	"wireplan/internal/lifetime"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	moduleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// Summary describes one finished run.
type Summary struct {
	Origin   string
	Merged   *aggregate.Merged
	Bag      *diag.Bag
	CacheHit bool
	Width    int
}

// Render writes the service table and the closing status line.
func Render(w io.Writer, s Summary) {
	width := s.Width
	if width <= 0 {
		width = 80
	}

	title := fmt.Sprintf("wireplan: %s", s.Origin)
	if s.CacheHit {
		title += dimStyle.Render(" (cached)")
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	if s.Merged != nil && len(s.Merged.Services) > 0 {
		fmt.Fprintln(w)
		renderServices(w, s.Merged, width)
	}
	if s.Merged != nil && len(s.Merged.Plugins) > 0 {
		fmt.Fprintln(w)
		renderPlugins(w, s.Merged)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, statusLine(s.Bag))
}

func renderServices(w io.Writer, m *aggregate.Merged, width int) {
	lifetimeWidth := 10
	moduleWidth := 0
	for i := range m.Services {
		moduleWidth = max(moduleWidth, runewidth.StringWidth(m.Services[i].Module))
	}
	nameWidth := max(width-lifetimeWidth-moduleWidth-6, 20)

	fmt.Fprintf(w, "  %s %s %s\n",
		headerStyle.Render(pad("service", nameWidth)),
		headerStyle.Render(pad("lifetime", lifetimeWidth)),
		headerStyle.Render("module"))
	for i := range m.Services {
		svc := &m.Services[i]
		fmt.Fprintf(w, "  %s %s %s\n",
			pad(truncate(svc.Name, nameWidth), nameWidth),
			lifetimeStyle(svc.Lifetime).Render(pad(svc.Lifetime.String(), lifetimeWidth)),
			moduleStyle.Render(svc.Module))
	}
}

func renderPlugins(w io.Writer, m *aggregate.Merged) {
	fmt.Fprintln(w, headerStyle.Render("  plugins"))
	for i := range m.Plugins {
		p := &m.Plugins[i]
		order := "-"
		if p.HasOrder {
			order = fmt.Sprintf("%d", p.Order)
		}
		fmt.Fprintf(w, "  %s %s\n", pad(order, 4), p.Name)
	}
}

func statusLine(bag *diag.Bag) string {
	if bag == nil {
		return okStyle.Render("ok")
	}
	errors := bag.CountBySeverity(diag.SevError)
	warnings := bag.CountBySeverity(diag.SevWarning)
	switch {
	case errors > 0:
		return errStyle.Render(fmt.Sprintf("failed: %d error(s), %d warning(s)", errors, warnings))
	case warnings > 0:
		return warnStyle.Render(fmt.Sprintf("ok with %d warning(s)", warnings))
	}
	return okStyle.Render("ok")
}

func lifetimeStyle(t lifetime.Tag) lipgloss.Style {
	switch t {
	case lifetime.Transient:
		return warnStyle
	case lifetime.Scoped:
		return moduleStyle
	}
	return dimStyle
}

// pad right-pads to the display width, runewidth-aware.
func pad(s string, width int) string {
	gap := width - runewidth.StringWidth(s)
	if gap <= 0 {
		return s
	}
	return s + strings.Repeat(" ", gap)
}

func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
