package delivery

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

// ErrSuperseded reports that the session changed before delivery finished.
// It is never surfaced to the peer.
var ErrSuperseded = errors.New("delivery: session superseded")

// Channel sends a session's records to the peer one at a time, each gated on
// the previous acknowledgement.
type Channel struct {
	sender model.Sender
	guard  model.Guard
}

// New creates a Channel writing to sender and checking staleness with guard.
func New(sender model.Sender, guard model.Guard) *Channel {
	return &Channel{sender: sender, guard: guard}
}

// Deliver sends records in order. Before and after each send the token is
// checked; a stale token abandons the rest of the queue and returns
// ErrSuperseded. A transport failure is logged, drops the rest of the queue
// and is returned.
func (c *Channel) Deliver(ctx context.Context, records []model.DataRecord, token model.Token) (int, error) {
	for i, rec := range records {
		if !c.guard.IsCurrent(token) {
			return i, ErrSuperseded
		}
		if err := c.sender.Send(ctx, rec); err != nil {
			// Superseding cancels the session context mid-send.
			if !c.guard.IsCurrent(token) {
				return i, ErrSuperseded
			}
			log.Printf("delivery: session %d: record %d of %d failed: %v", token.ID, i+1, len(records), err)
			return i, fmt.Errorf("delivery: send record %d: %w", i, err)
		}
	}
	return len(records), nil
}

// Fail sends the single error message that ends a session, unless the token
// is stale.
func (c *Channel) Fail(ctx context.Context, code model.Code, token model.Token) error {
	if !c.guard.IsCurrent(token) {
		return ErrSuperseded
	}
	if err := c.sender.Send(ctx, model.NewErrorMessage(code, token.ID)); err != nil {
		if !c.guard.IsCurrent(token) {
			return ErrSuperseded
		}
		log.Printf("delivery: session %d: error %s not delivered: %v", token.ID, code, err)
		return fmt.Errorf("delivery: send error: %w", err)
	}
	return nil
}
