package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const dotsInterval = 500 * time.Millisecond

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle
	return s
}

// waitingText renders "Waiting" followed by up to three dots.
func waitingText(frame int) string {
	return "Waiting" + strings.Repeat(".", frame%4)
}

// dotsTick schedules the next waiting-animation frame for session id.
func dotsTick(id int) tea.Cmd {
	return tea.Tick(dotsInterval, func(time.Time) tea.Msg {
		return dotsTickMsg{id: id}
	})
}
