package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"interp_lib/interpreter"
)

// heat runs from informative (small σ) to redundant (σ near its bound).
var heat = []lipgloss.Color{
	lipgloss.Color("#E74C3C"),
	lipgloss.Color("#F39C12"),
	lipgloss.Color("#F4D03F"),
	lipgloss.Color("#7F8C8D"),
	lipgloss.Color("#2C4A54"),
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7F8C8D"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#16858E")).
			Padding(0, 1)
)

func heatColor(sigma, scale float64) lipgloss.Color {
	if scale <= 0 {
		return heat[len(heat)-1]
	}
	i := int(sigma / scale * float64(len(heat)))
	if i < 0 {
		i = 0
	}
	if i >= len(heat) {
		i = len(heat) - 1
	}
	return heat[i]
}

func label(a interpreter.Attribution) string {
	if a.Word != "" {
		return a.Word
	}
	return fmt.Sprintf("#%d", a.Position)
}

// renderExplanation shows the input with every position colored by σ,
// followed by the top positions ranked.
func renderExplanation(title string, e interpreter.Explanation, top int) string {
	var words []string
	for _, a := range e.Attributions() {
		style := lipgloss.NewStyle().
			Background(heatColor(a.Sigma, e.Scale)).
			Foreground(lipgloss.Color("#0F1923")).
			Padding(0, 1)
		words = append(words, style.Render(label(a)))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, words...))
	b.WriteString("\n\n")

	ranked := e.Ranked()
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}
	for i, a := range ranked {
		fmt.Fprintf(&b, "%2d. %-16s %s\n", i+1, label(a), mutedStyle.Render(fmt.Sprintf("σ=%.4f", a.Sigma)))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
