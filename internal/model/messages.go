package model

// MessageKind tags every frame exchanged with the peer.
type MessageKind string

// Outbound kinds.
const (
	KindReady MessageKind = "ready"
	KindData  MessageKind = "data"
	KindError MessageKind = "error"
)

// Inbound kinds.
const (
	KindLoadByLocation MessageKind = "load_mcdata_by_loc"
	KindLoadBySaved    MessageKind = "load_mcdata_by_saved"
	KindShutUp         MessageKind = "shut_up"
	KindAck            MessageKind = "ack"
	KindNack           MessageKind = "nack"
)

// Message is any outbound payload delivered to the peer.
type Message interface {
	MessageKind() MessageKind
}

// ReadyMessage announces the bridge to a freshly connected peer.
type ReadyMessage struct {
	Kind MessageKind `json:"message_kind"`
}

// NewReadyMessage returns the readiness announcement.
func NewReadyMessage() ReadyMessage { return ReadyMessage{Kind: KindReady} }

func (m ReadyMessage) MessageKind() MessageKind { return KindReady }

// DataRecord is the flattened, peer-safe view of one selected candidate.
// Internal-only fields (status flags, state, country) never leave the bridge.
type DataRecord struct {
	Kind        MessageKind `json:"message_kind"`
	Index       int         `json:"index"`
	Count       int         `json:"count"`
	SessionID   int         `json:"session_id"`
	Street      string      `json:"street"`
	City        string      `json:"city"`
	LastChecked string      `json:"last_checked"`
	Dot         string      `json:"dot"`
}

func (r DataRecord) MessageKind() MessageKind { return KindData }

// ErrorMessage terminates a session on the peer.
type ErrorMessage struct {
	Kind      MessageKind `json:"message_kind"`
	Error     Code        `json:"error"`
	Detail    string      `json:"detail"`
	SessionID int         `json:"session_id"`
}

// NewErrorMessage builds the error frame for code in session id.
func NewErrorMessage(code Code, sessionID int) ErrorMessage {
	return ErrorMessage{
		Kind:      KindError,
		Error:     code,
		Detail:    code.Display(),
		SessionID: sessionID,
	}
}

func (m ErrorMessage) MessageKind() MessageKind { return KindError }

// Command is one inbound, session-scoped request from the peer.
type Command struct {
	Kind MessageKind `json:"message_kind"`
	ID   int         `json:"id"`
}
