package locate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

// ErrNoFix is returned when no acceptable fix arrives in time.
var ErrNoFix = model.Fail(model.CodeNoGPSFix, nil)

// Store is a Locator fed from outside: the phone pushes fixes through the
// HTTP API, or a fixed position is pinned from configuration.
type Store struct {
	clock clockwork.Clock

	mu      sync.Mutex
	fix     model.Coordinate
	at      time.Time
	have    bool
	pinned  bool
	updated chan struct{}
}

// New creates an empty Store.
func New(clk clockwork.Clock) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Store{clock: clk, updated: make(chan struct{})}
}

// Set records a fresh fix and wakes pending Locate calls.
func (s *Store) Set(c model.Coordinate) error {
	if !c.Valid() {
		return fmt.Errorf("locate: coordinate %v out of range", c)
	}
	s.mu.Lock()
	s.fix, s.at, s.have = c, s.clock.Now(), true
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Pin fixes the position permanently; it never goes stale.
func (s *Store) Pin(c model.Coordinate) error {
	if err := s.Set(c); err != nil {
		return err
	}
	s.mu.Lock()
	s.pinned = true
	s.mu.Unlock()
	log.Printf("locate: position pinned at %.5f,%.5f", c.Lat, c.Lon)
	return nil
}

// Last returns the most recent fix and when it was recorded.
func (s *Store) Last() (model.Coordinate, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fix, s.at, s.have
}

// Locate returns a fix no older than opts.MaximumAge, waiting up to
// opts.Timeout for one to be pushed. HighAccuracy is accepted for interface
// parity; a pushed fix has whatever accuracy the phone reported.
func (s *Store) Locate(ctx context.Context, opts model.LocateOptions) (model.Coordinate, error) {
	s.mu.Lock()
	if c, ok := s.freshLocked(opts.MaximumAge); ok {
		s.mu.Unlock()
		return c, nil
	}
	wait := s.updated
	s.mu.Unlock()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = model.DefaultGPSTimeout
	}
	expired := s.clock.After(timeout)

	select {
	case <-wait:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.fix, nil
	case <-expired:
		return model.Coordinate{}, ErrNoFix
	case <-ctx.Done():
		return model.Coordinate{}, fmt.Errorf("locate: %w", ctx.Err())
	}
}

func (s *Store) freshLocked(maxAge time.Duration) (model.Coordinate, bool) {
	if !s.have {
		return model.Coordinate{}, false
	}
	if s.pinned || s.clock.Now().Sub(s.at) <= maxAge {
		return s.fix, true
	}
	return model.Coordinate{}, false
}
