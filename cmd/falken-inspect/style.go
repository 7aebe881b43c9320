package main

import "github.com/charmbracelet/lipgloss"

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleHeading = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	styleAttribute = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	styleWire = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func styleLine(l line) string {
	switch l.kind {
	case kindHeading:
		return styleHeading.Render(l.text)
	case kindAttribute:
		return styleAttribute.Render(l.text)
	case kindWarning:
		return styleWarning.Render(l.text)
	case kindWire:
		return styleWire.Render(l.text)
	}
	return l.text
}
