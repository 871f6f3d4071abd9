package model

import (
	"context"
	"time"
)

// CandidateSource provides the current upstream dataset.
type CandidateSource interface {
	Get(ctx context.Context) ([]Candidate, error)
}

// LocateOptions mirrors the knobs of a device geolocation request.
type LocateOptions struct {
	Timeout      time.Duration
	HighAccuracy bool
	MaximumAge   time.Duration // oldest acceptable cached fix
}

// Locator is the external GPS capability.
type Locator interface {
	Locate(ctx context.Context, opts LocateOptions) (Coordinate, error)
}

// SlotSource supplies the saved labels configured by the user.
type SlotSource interface {
	Slots() SavedSlots
}

// Sender delivers one message to the peer and returns once it is acknowledged.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
