package ui

import (
	"github.com/charmbracelet/lipgloss"

	"numapin/internal/topology"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#06B6D4")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	memoryColor    = lipgloss.Color("#e0af68")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 2)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	successBoxStyle = boxStyle.
			BorderForeground(successColor)

	errorBoxStyle = boxStyle.
			BorderForeground(errorColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	cursorStyle = selectedStyle

	dimStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// Primary threads and full CPU sets of a node.
	coreStyle = lipgloss.NewStyle().
			Foreground(successColor)
	vcpuStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	clusterStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	nodeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bb9af7"))

	memoryNodeStyle = lipgloss.NewStyle().
			Foreground(memoryColor)

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// kindStyle marks memory nodes, the anchors of clusters.
func kindStyle(node *topology.Node) lipgloss.Style {
	if node.Memory {
		return memoryNodeStyle
	}
	return dimStyle
}
