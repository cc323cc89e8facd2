// Package ui renders the session summary shown in info mode.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mcci-catena/catenaprov/internal/device"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1)
)

// RenderSummary formats the bootstrap summary for the info display: the
// identity fields first, then the remaining version fields in device order.
func RenderSummary(s *device.Summary) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Device session"))
	lines = append(lines, row("Catena Type", s.Board))
	lines = append(lines, row("Platform Version", s.PlatformVersion))
	lines = append(lines, row("SysEUI", s.SysEUI))

	for _, f := range s.Fields {
		if f.Key == "Board" || f.Key == "Platform-Version" {
			continue
		}
		lines = append(lines, row(f.Key, f.Value))
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

func row(key, value string) string {
	if value == "" {
		value = "?"
	}
	return keyStyle.Render(key) + " " + valueStyle.Render(value)
}
