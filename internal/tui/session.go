package tui

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

const (
	// SessionTimeout is how long the loading screen waits for the bridge.
	SessionTimeout = 40 * time.Second

	minSessionID   = 67
	sessionIDRange = 16967
)

const (
	msgTimedOut      = "Timed out."
	msgNotConnected  = "Phone not connected."
	msgSendFailed    = "Failed to send request."
	msgMachineOK     = "Machine Working"
	msgMachineBroken = "Machine Broken"
	msgMachineAmbig  = "Status could not be determined"
)

type screen int

const (
	screenLoading screen = iota
	screenResults
	screenDetails
)

// SessionPage runs one request against the bridge and shows its results.
type SessionPage struct {
	conn    PeerConn
	state   *PeerState
	keys    KeyMap
	rng     *rand.Rand
	timeout time.Duration

	kind    model.MessageKind
	id      int
	screen  screen
	loading bool
	errText string
	status  string
	frame   int
	spinner spinner.Model

	records  [model.MaxResults]*model.DataRecord
	count    int
	selected int
}

// NewSessionPage creates the session page.
func NewSessionPage(conn PeerConn, state *PeerState, keys KeyMap) *SessionPage {
	return &SessionPage{
		conn:    conn,
		state:   state,
		keys:    keys,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		timeout: SessionTimeout,
		kind:    model.KindLoadByLocation,
		spinner: newSpinner(),
	}
}

func (p *SessionPage) ID() string { return sessionPageID }

// SetParams selects the request kind for the next Init.
func (p *SessionPage) SetParams(params interface{}) {
	if kind, ok := params.(model.MessageKind); ok {
		p.kind = kind
	}
}

func (p *SessionPage) Init() tea.Cmd {
	return p.start()
}

// SessionID returns the id of the current request.
func (p *SessionPage) SessionID() int { return p.id }

// start issues a fresh request with a new random session id.
func (p *SessionPage) start() tea.Cmd {
	p.screen = screenLoading
	p.records = [model.MaxResults]*model.DataRecord{}
	p.count = 0
	p.selected = 0
	p.frame = 0
	p.errText = ""

	if !p.state.Ready {
		p.loading = false
		p.errText = msgNotConnected
		return nil
	}

	p.id = minSessionID + p.rng.Intn(sessionIDRange)
	p.loading = true
	p.status = waitingText(0)

	id := p.id
	return tea.Batch(
		commandCmd(p.conn, p.kind, id),
		p.spinner.Tick,
		dotsTick(id),
		tea.Tick(p.timeout, func(time.Time) tea.Msg { return timeoutMsg{id: id} }),
	)
}

// leave closes the loading screen; the bridge is told with a bare id.
func (p *SessionPage) leave() (tea.Cmd, *PageNav) {
	var cmd tea.Cmd
	if p.loading {
		cmd = commandCmd(p.conn, "", 0)
	}
	p.loading = false
	p.id = 0
	return cmd, &PageNav{PageID: menuPageID}
}

func (p *SessionPage) fail(text string) {
	p.loading = false
	p.errText = text
}

func (p *SessionPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg)

	case spinner.TickMsg:
		if !p.loading {
			return nil, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil

	case dotsTickMsg:
		if !p.loading || msg.id != p.id || p.received() > 0 {
			return nil, nil
		}
		p.frame++
		p.status = waitingText(p.frame)
		return dotsTick(p.id), nil

	case timeoutMsg:
		if p.loading && msg.id == p.id {
			p.fail(msgTimedOut)
		}

	case sendFailedMsg:
		if p.loading && msg.id == p.id {
			p.state.Ready = false
			p.fail(msgSendFailed)
		}

	case PeerClosedMsg:
		if p.loading {
			p.fail(msgNotConnected)
		}

	case DeliveryMsg:
		p.handleDelivery(msg)
	}
	return nil, nil
}

func (p *SessionPage) handleDelivery(msg DeliveryMsg) {
	d := msg.Delivery
	switch d.Kind {
	case model.KindData:
		rec := d.Data
		if rec == nil || !p.loading || rec.SessionID != p.id {
			return
		}
		p.count = min(rec.Count, model.MaxResults)
		if rec.Index < 0 || rec.Index >= model.MaxResults {
			return
		}
		r := *rec
		p.records[rec.Index] = &r
		p.status = fmt.Sprintf("Received %d of %d", rec.Index+1, p.count)
		if rec.Index == p.count-1 && p.fullyPopulated() {
			p.loading = false
			p.screen = screenResults
		}

	case model.KindError:
		em := d.Error
		if em == nil || !p.loading || em.SessionID != p.id {
			return
		}
		text := em.Detail
		if text == "" {
			text = string(em.Error)
		}
		p.fail(text)
	}
}

func (p *SessionPage) handleKey(km tea.KeyMsg) (tea.Cmd, *PageNav) {
	if key.Matches(km, p.keys.Quit) || key.Matches(km, p.keys.ForceQuit) {
		return tea.Quit, nil
	}

	switch p.screen {
	case screenLoading:
		switch {
		case key.Matches(km, p.keys.Back):
			return p.leave()
		case key.Matches(km, p.keys.Refresh):
			if !p.loading {
				return p.start(), nil
			}
		}

	case screenResults:
		switch {
		case key.Matches(km, p.keys.Back):
			return p.leave()
		case key.Matches(km, p.keys.Up):
			if p.selected > 0 {
				p.selected--
			}
		case key.Matches(km, p.keys.Down):
			if p.selected < p.count-1 {
				p.selected++
			}
		case key.Matches(km, p.keys.Select):
			p.screen = screenDetails
		case key.Matches(km, p.keys.Refresh):
			return p.start(), nil
		}

	case screenDetails:
		switch {
		case key.Matches(km, p.keys.Back):
			p.screen = screenResults
		case key.Matches(km, p.keys.Refresh):
			return p.start(), nil
		}
	}
	return nil, nil
}

func (p *SessionPage) received() int {
	n := 0
	for _, r := range p.records {
		if r != nil {
			n++
		}
	}
	return n
}

func (p *SessionPage) fullyPopulated() bool {
	for i := 0; i < p.count; i++ {
		if p.records[i] == nil {
			return false
		}
	}
	return true
}

// machineStatus is the detail line for a dot value.
func machineStatus(dot string) string {
	switch dot {
	case "working":
		return msgMachineOK
	case "broken":
		return msgMachineBroken
	default:
		return msgMachineAmbig
	}
}
