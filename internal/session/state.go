package session

// State is the lifecycle position of the current session.
type State int

const (
	Idle State = iota
	Loading
	Completed
	Cancelled
	Errored
)

var stateNames = [...]string{"idle", "loading", "completed", "cancelled", "errored"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind is the flow a session runs.
type Kind string

const (
	KindNone       Kind = ""
	KindBySaved    Kind = "by_saved"
	KindByLocation Kind = "by_location"
)

// Snapshot is a point-in-time view of the dispatcher.
type Snapshot struct {
	SessionID int    `json:"session_id"`
	Epoch     uint64 `json:"epoch"`
	Kind      Kind   `json:"kind,omitempty"`
	State     State  `json:"state"`
	Delivered int    `json:"delivered"`
}
