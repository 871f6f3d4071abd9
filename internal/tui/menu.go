package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

const (
	menuPageID    = "menu"
	sessionPageID = "session"
)

type menuItem struct {
	label string
	kind  model.MessageKind
}

var menuItems = []menuItem{
	{label: "Nearby", kind: model.KindLoadByLocation},
	{label: "Saved", kind: model.KindLoadBySaved},
}

// MenuPage picks the flow to run.
type MenuPage struct {
	state    *PeerState
	keys     KeyMap
	selected int
}

// NewMenuPage creates the menu page.
func NewMenuPage(state *PeerState, keys KeyMap) *MenuPage {
	return &MenuPage{state: state, keys: keys}
}

func (m *MenuPage) ID() string    { return menuPageID }
func (m *MenuPage) Init() tea.Cmd { return nil }

func (m *MenuPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, nil
	}
	switch {
	case key.Matches(km, m.keys.Quit), key.Matches(km, m.keys.ForceQuit), key.Matches(km, m.keys.Back):
		return tea.Quit, nil
	case key.Matches(km, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(km, m.keys.Down):
		if m.selected < len(menuItems)-1 {
			m.selected++
		}
	case key.Matches(km, m.keys.Select):
		return nil, &PageNav{PageID: sessionPageID, Params: menuItems[m.selected].kind}
	}
	return nil, nil
}

func (m *MenuPage) View(width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mcbroken"))
	b.WriteString("\n\n")
	for i, item := range menuItems {
		line := "  " + item.label + "  "
		if i == m.selected {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(normalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.state.Connected {
		b.WriteString(dimStyle.Render("bridge connected"))
	} else {
		b.WriteString(errorStyle.Render("bridge disconnected"))
	}
	b.WriteString("\n")
	b.WriteString(helpLine(m.keys.Select, m.keys.Quit))
	return framed(width, height, b.String())
}
