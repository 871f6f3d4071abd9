package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tinytelemetry/mcbroken/internal/model"
)

var opts = model.LocateOptions{
	Timeout:    12 * time.Second,
	MaximumAge: 30 * time.Second,
}

// waitForTimer blocks until Locate has armed its timeout on clk.
func waitForTimer(t *testing.T, clk *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("locate timer never armed: %v", err)
	}
}

func TestLocateReturnsRecentFix(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	s := New(clk)
	want := model.Coordinate{Lat: 40.7, Lon: -74}
	if err := s.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(30 * time.Second)

	got, err := s.Locate(context.Background(), opts)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLocateWaitsForPush(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	s := New(clk)
	if err := s.Set(model.Coordinate{Lat: 1, Lon: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clk.Advance(31 * time.Second)

	type result struct {
		c   model.Coordinate
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := s.Locate(context.Background(), opts)
		done <- result{c, err}
	}()
	waitForTimer(t, clk)

	want := model.Coordinate{Lat: 2, Lon: 2}
	if err := s.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	r := <-done
	if r.err != nil || r.c != want {
		t.Fatalf("Locate = %+v, %v; want %+v", r.c, r.err, want)
	}
}

func TestLocateTimesOut(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	s := New(clk)

	done := make(chan error, 1)
	go func() {
		_, err := s.Locate(context.Background(), opts)
		done <- err
	}()
	waitForTimer(t, clk)
	clk.Advance(12 * time.Second)

	err := <-done
	if !errors.Is(err, ErrNoFix) || model.CodeOf(err) != model.CodeNoGPSFix {
		t.Fatalf("err = %v, want ErrNoFix", err)
	}
}

func TestLocateContextCancel(t *testing.T) {
	t.Parallel()
	s := New(clockwork.NewFakeClockAt(time.Unix(0, 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Locate(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPinnedNeverStale(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClockAt(time.Unix(0, 0))
	s := New(clk)
	want := model.Coordinate{Lat: 51.5, Lon: -0.12}
	if err := s.Pin(want); err != nil {
		t.Fatalf("Pin: %v", err)
	}
	clk.Advance(24 * time.Hour)
	got, err := s.Locate(context.Background(), opts)
	if err != nil || got != want {
		t.Fatalf("Locate = %+v, %v", got, err)
	}
}

func TestSetRejectsOutOfRange(t *testing.T) {
	t.Parallel()
	s := New(nil)
	for _, c := range []model.Coordinate{{Lat: 91}, {Lat: -91}, {Lon: 181}, {Lon: -180.5}} {
		if err := s.Set(c); err == nil {
			t.Errorf("Set(%+v) accepted", c)
		}
	}
	if _, _, ok := s.Last(); ok {
		t.Fatal("rejected fix was stored")
	}
}
