package tui

import tea "github.com/charmbracelet/bubbletea"

// Page represents a top-level screen of the emulator (menu, session).
type Page interface {
	ID() string
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
	Params interface{}
}

// paramPage is implemented by pages that take navigation parameters before
// their Init runs.
type paramPage interface {
	SetParams(params interface{})
}
