package model

// Token identifies one session attempt. Epoch increases on every command so a
// reused peer id still yields a distinct token.
type Token struct {
	ID    int    `json:"id"`
	Epoch uint64 `json:"epoch"`
}

// Guard reports whether a token still names the current session.
type Guard interface {
	IsCurrent(Token) bool
}
