package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorGray  = lipgloss.Color("#808080")
	ColorRed   = lipgloss.Color("#DA291C")
	ColorGold  = lipgloss.Color("#FFC72C")
	ColorGreen = lipgloss.Color("#44FF44")

	titleStyle = lipgloss.NewStyle().
			Foreground(ColorGold).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Background(ColorRed).
			Bold(true)

	normalStyle = lipgloss.NewStyle().Foreground(ColorWhite)

	dimStyle = lipgloss.NewStyle().Foreground(ColorGray)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorRed).
			Padding(1, 2)
)

// dotStyle colors the status glyph the way the watch tints its dot.
func dotStyle(dot string) lipgloss.Style {
	switch dot {
	case "working":
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case "broken":
		return lipgloss.NewStyle().Foreground(ColorRed)
	default:
		return dimStyle
	}
}

// framed centers content inside the emulator's watch-face frame.
func framed(width, height int, content string) string {
	box := frameStyle.Render(content)
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
