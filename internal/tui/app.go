package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

// App is the top-level Bubble Tea model that routes between pages. It owns
// the bridge connection: every delivery is acknowledged here, then handed to
// the active page.
type App struct {
	pages      map[string]Page
	activePage string
	width      int
	height     int

	conn  PeerConn
	state *PeerState
}

// PeerState is shared by the pages and tracks link readiness.
type PeerState struct {
	Ready     bool
	Connected bool
}

// NewApp creates a new App with the given pages. The first page is the default.
func NewApp(conn PeerConn, state *PeerState, pages ...Page) *App {
	pageMap := make(map[string]Page, len(pages))
	var firstID string
	for i, p := range pages {
		pageMap[p.ID()] = p
		if i == 0 {
			firstID = p.ID()
		}
	}
	state.Connected = true
	return &App{
		pages:      pageMap,
		activePage: firstID,
		conn:       conn,
		state:      state,
	}
}

// New builds the emulator with its menu and session pages.
func New(conn PeerConn, keys KeyMap) *App {
	state := &PeerState{}
	return NewApp(conn, state,
		NewMenuPage(state, keys),
		NewSessionPage(conn, state, keys),
	)
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForDelivery(a.conn)}
	if p, ok := a.pages[a.activePage]; ok {
		cmds = append(cmds, p.Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var extra []tea.Cmd

	switch msg := msg.(type) {
	// Pass WindowSizeMsg to all pages so they can track dimensions.
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case DeliveryMsg:
		if msg.Delivery.Kind == model.KindReady {
			a.state.Ready = true
		}
		extra = append(extra, ackCmd(a.conn, msg.Delivery.Seq), waitForDelivery(a.conn))
	case PeerClosedMsg:
		a.state.Ready = false
		a.state.Connected = false
	}

	p, ok := a.pages[a.activePage]
	if !ok {
		return a, tea.Batch(extra...)
	}

	cmd, nav := p.Update(msg)
	extra = append(extra, cmd)

	if nav != nil {
		if next, exists := a.pages[nav.PageID]; exists {
			if pp, ok := next.(paramPage); ok {
				pp.SetParams(nav.Params)
			}
			a.activePage = nav.PageID
			extra = append(extra, next.Init())
		}
	}

	return a, tea.Batch(extra...)
}

func (a *App) View() string {
	if p, ok := a.pages[a.activePage]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}

// ActivePage returns the id of the page being shown.
func (a *App) ActivePage() string { return a.activePage }
