package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tinytelemetry/mcbroken/internal/model"
	"github.com/tinytelemetry/mcbroken/internal/peerlink"
)

// PeerConn is the subset of *peerlink.Client the emulator drives.
type PeerConn interface {
	Deliveries() <-chan peerlink.Delivery
	Command(kind model.MessageKind, id int) error
	Ack(seq uint64) error
}

// DeliveryMsg carries one frame from the bridge.
type DeliveryMsg struct {
	Delivery peerlink.Delivery
}

// PeerClosedMsg reports that the bridge connection ended.
type PeerClosedMsg struct{}

// sendFailedMsg reports that a command never reached the bridge.
type sendFailedMsg struct {
	id  int
	err error
}

// timeoutMsg fires when session id has waited too long.
type timeoutMsg struct {
	id int
}

// dotsTickMsg advances the "Waiting..." animation for session id.
type dotsTickMsg struct {
	id int
}

func waitForDelivery(conn PeerConn) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-conn.Deliveries()
		if !ok {
			return PeerClosedMsg{}
		}
		return DeliveryMsg{Delivery: d}
	}
}

func ackCmd(conn PeerConn, seq uint64) tea.Cmd {
	return func() tea.Msg {
		_ = conn.Ack(seq)
		return nil
	}
}

func commandCmd(conn PeerConn, kind model.MessageKind, id int) tea.Cmd {
	return func() tea.Msg {
		if err := conn.Command(kind, id); err != nil {
			return sendFailedMsg{id: id, err: err}
		}
		return nil
	}
}
