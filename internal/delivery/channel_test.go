package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tinytelemetry/mcbroken/internal/model"
)

type stubSender struct {
	mu     sync.Mutex
	sent   []model.Message
	failAt int // 1-based send number that fails; 0 never fails
	onSend func(n int)
}

func (s *stubSender) Send(_ context.Context, msg model.Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	n := len(s.sent)
	s.mu.Unlock()
	if s.onSend != nil {
		s.onSend(n)
	}
	if s.failAt != 0 && n == s.failAt {
		return errors.New("peer went away")
	}
	return nil
}

type stubGuard struct {
	mu      sync.Mutex
	current model.Token
}

func (g *stubGuard) IsCurrent(t model.Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current == t
}

func (g *stubGuard) set(t model.Token) {
	g.mu.Lock()
	g.current = t
	g.mu.Unlock()
}

func records(n int, session int) []model.DataRecord {
	out := make([]model.DataRecord, n)
	for i := range out {
		out[i] = model.DataRecord{Kind: model.KindData, Index: i, Count: n, SessionID: session}
	}
	return out
}

func TestDeliverInOrder(t *testing.T) {
	t.Parallel()
	tok := model.Token{ID: 42, Epoch: 1}
	sender := &stubSender{}
	ch := New(sender, &stubGuard{current: tok})

	n, err := ch.Deliver(context.Background(), records(3, 42), tok)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if n != 3 || len(sender.sent) != 3 {
		t.Fatalf("sent = %d/%d, want 3", n, len(sender.sent))
	}
	for i, msg := range sender.sent {
		if rec := msg.(model.DataRecord); rec.Index != i {
			t.Errorf("send %d carried index %d", i, rec.Index)
		}
	}
}

func TestDeliverAbandonsWhenSuperseded(t *testing.T) {
	t.Parallel()
	tok := model.Token{ID: 7, Epoch: 3}
	guard := &stubGuard{current: tok}
	sender := &stubSender{onSend: func(n int) {
		if n == 2 {
			guard.set(model.Token{ID: 8, Epoch: 4})
		}
	}}
	ch := New(sender, guard)

	n, err := ch.Deliver(context.Background(), records(5, 7), tok)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if n != 2 || len(sender.sent) != 2 {
		t.Fatalf("sent = %d/%d, want 2", n, len(sender.sent))
	}
}

func TestDeliverStopsOnSendFailure(t *testing.T) {
	t.Parallel()
	tok := model.Token{ID: 1, Epoch: 1}
	sender := &stubSender{failAt: 2}
	ch := New(sender, &stubGuard{current: tok})

	n, err := ch.Deliver(context.Background(), records(4, 1), tok)
	if err == nil || errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want a send failure", err)
	}
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("attempts = %d, want 2 (no resend)", len(sender.sent))
	}
}

// cancelSender blocks until its context is cancelled, like a send whose
// session is superseded while waiting for the ack.
type cancelSender struct{ started chan struct{} }

func (s *cancelSender) Send(ctx context.Context, _ model.Message) error {
	close(s.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestDeliverSupersededMidSend(t *testing.T) {
	t.Parallel()
	tok := model.Token{ID: 5, Epoch: 1}
	guard := &stubGuard{current: tok}
	sender := &cancelSender{started: make(chan struct{})}
	ch := New(sender, guard)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sender.started
		guard.set(model.Token{ID: 6, Epoch: 2})
		cancel()
	}()

	n, err := ch.Deliver(ctx, records(3, 5), tok)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, reported as a send failure", err)
	}
	if n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}

func TestFail(t *testing.T) {
	t.Parallel()
	tok := model.Token{ID: 99, Epoch: 2}
	guard := &stubGuard{current: tok}
	sender := &stubSender{}
	ch := New(sender, guard)

	if err := ch.Fail(context.Background(), model.CodeNoSavedLocations, tok); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	msg := sender.sent[0].(model.ErrorMessage)
	if msg.Error != model.CodeNoSavedLocations || msg.SessionID != 99 || msg.Detail != "No locations saved!" {
		t.Fatalf("message = %+v", msg)
	}

	guard.set(model.Token{ID: 100, Epoch: 3})
	if err := ch.Fail(context.Background(), model.CodeTimedOut, tok); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("stale Fail err = %v, want ErrSuperseded", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("stale Fail sent a message")
	}
}
