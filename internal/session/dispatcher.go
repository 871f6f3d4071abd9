package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/tinytelemetry/mcbroken/internal/delivery"
	"github.com/tinytelemetry/mcbroken/internal/format"
	"github.com/tinytelemetry/mcbroken/internal/match"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

var errStale = errors.New("session: superseded")

// Config wires the dispatcher's collaborators.
type Config struct {
	Source  model.CandidateSource
	Locator model.Locator
	Slots   model.SlotSource
	Sender  model.Sender

	// LocateOptions is passed to the locator for proximity sessions. Zero
	// fields take the defaults (12s timeout, 30s maximum age, low accuracy).
	LocateOptions model.LocateOptions
}

// Dispatcher owns the current session. Each command supersedes the previous
// session by bumping the epoch; in-flight work checks its token at every
// resume point and discards itself when stale.
type Dispatcher struct {
	source     model.CandidateSource
	locator    model.Locator
	slots      model.SlotSource
	channel    *delivery.Channel
	locateOpts model.LocateOptions

	mu        sync.Mutex
	epoch     uint64
	current   model.Token
	kind      Kind
	state     State
	delivered int
	cancel    context.CancelFunc
	closed    bool

	wg sync.WaitGroup
}

// New creates a Dispatcher in the Idle state.
func New(cfg Config) *Dispatcher {
	opts := cfg.LocateOptions
	if opts.Timeout <= 0 {
		opts.Timeout = model.DefaultGPSTimeout
	}
	if opts.MaximumAge <= 0 {
		opts.MaximumAge = model.DefaultGPSMaximumAge
	}
	d := &Dispatcher{
		source:     cfg.Source,
		locator:    cfg.Locator,
		slots:      cfg.Slots,
		locateOpts: opts,
	}
	d.channel = delivery.New(cfg.Sender, d)
	return d
}

// Run feeds commands to Handle until ctx is done or commands is closed.
func (d *Dispatcher) Run(ctx context.Context, commands <-chan model.Command) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			d.Handle(cmd)
		}
	}
}

// Handle applies one inbound command. Anything that is not a load request
// cancels, including a bare id with no kind.
func (d *Dispatcher) Handle(cmd model.Command) {
	switch cmd.Kind {
	case model.KindLoadBySaved:
		d.LoadBySaved(cmd.ID)
	case model.KindLoadByLocation:
		d.LoadByLocation(cmd.ID)
	default:
		d.Cancel(cmd.ID)
	}
}

// LoadBySaved starts a saved-label session with peer id id.
func (d *Dispatcher) LoadBySaved(id int) model.Token {
	return d.start(id, KindBySaved)
}

// LoadByLocation starts a proximity session with peer id id.
func (d *Dispatcher) LoadByLocation(id int) model.Token {
	return d.start(id, KindByLocation)
}

// Cancel supersedes any in-flight session and returns to Idle.
func (d *Dispatcher) Cancel(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.supersedeLocked()
	d.current = model.Token{ID: id, Epoch: d.epoch}
	d.kind = KindNone
	d.state = Idle
	d.delivered = 0
	log.Printf("session: %d cancelled by peer", id)
}

// IsCurrent reports whether tok names the current session.
func (d *Dispatcher) IsCurrent(tok model.Token) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && d.current == tok
}

// Snapshot returns the current session's id, kind and state.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		SessionID: d.current.ID,
		Epoch:     d.epoch,
		Kind:      d.kind,
		State:     d.state,
		Delivered: d.delivered,
	}
}

// Close supersedes the current session and waits for pipelines to return.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.supersedeLocked()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) start(id int, kind Kind) model.Token {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return model.Token{}
	}
	d.supersedeLocked()
	tok := model.Token{ID: id, Epoch: d.epoch}
	ctx, cancel := context.WithCancel(context.Background())
	d.current = tok
	d.kind = kind
	d.state = Loading
	d.delivered = 0
	d.cancel = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	log.Printf("session: %d started (%s)", id, kind)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.run(ctx, tok, kind)
	}()
	return tok
}

// supersedeLocked invalidates every outstanding token.
func (d *Dispatcher) supersedeLocked() {
	d.epoch++
	if d.state == Loading {
		d.state = Cancelled
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *Dispatcher) run(ctx context.Context, tok model.Token, kind Kind) {
	records, err := d.collect(ctx, tok, kind)
	if errors.Is(err, errStale) || !d.IsCurrent(tok) {
		return
	}
	if err != nil {
		code := model.CodeOf(err)
		log.Printf("session: %d failed: %v", tok.ID, err)
		if !d.finish(tok, Errored) {
			return
		}
		_ = d.channel.Fail(ctx, code, tok)
		return
	}

	n, err := d.channel.Deliver(ctx, records, tok)
	d.setDelivered(tok, n)
	switch {
	case errors.Is(err, delivery.ErrSuperseded):
	case err != nil:
		d.finish(tok, Errored)
	default:
		if d.finish(tok, Completed) {
			log.Printf("session: %d delivered %d records", tok.ID, n)
		}
	}
}

// collect produces the formatted records for a session, checking the token
// after every suspension point.
func (d *Dispatcher) collect(ctx context.Context, tok model.Token, kind Kind) ([]model.DataRecord, error) {
	var ordered []model.Candidate

	switch kind {
	case KindBySaved:
		slots := d.slots.Slots()
		if slots.Empty() {
			return nil, match.ErrNoSavedLocations
		}
		candidates, err := d.source.Get(ctx)
		if !d.IsCurrent(tok) {
			return nil, errStale
		}
		if err != nil {
			return nil, err
		}
		ordered, err = match.MatchSaved(slots, candidates)
		if err != nil {
			return nil, err
		}

	case KindByLocation:
		origin, err := d.locator.Locate(ctx, d.locateOpts)
		if !d.IsCurrent(tok) {
			return nil, errStale
		}
		if err != nil {
			return nil, model.Fail(model.CodeNoGPSFix, err)
		}
		candidates, err := d.source.Get(ctx)
		if !d.IsCurrent(tok) {
			return nil, errStale
		}
		if err != nil {
			return nil, err
		}
		ordered = match.MatchNearby(origin, candidates)
	}

	return format.Format(ordered, tok.ID)
}

// finish moves a still-current Loading session to a terminal state.
func (d *Dispatcher) finish(tok model.Token, state State) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.current != tok || d.state != Loading {
		return false
	}
	d.state = state
	return true
}

func (d *Dispatcher) setDelivered(tok model.Token, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == tok {
		d.delivered = n
	}
}
