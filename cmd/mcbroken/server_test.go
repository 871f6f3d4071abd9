package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/mcbroken/internal/model"
	"github.com/tinytelemetry/mcbroken/internal/peerlink"
)

const markers = `{"type": "FeatureCollection", "features": [
  {"geometry": {"coordinates": [-73.9857, 40.7484]},
   "properties": {"street": "350 5th Ave", "city": "New York", "state": "NY", "country": "USA",
                  "is_broken": false, "is_active": true, "dot": "working", "last_checked": "Checked 3 minutes ago"}},
  {"geometry": {"coordinates": [-73.9772, 40.7527]},
   "properties": {"street": "123 Main St", "city": "New York", "state": "NY", "country": "USA",
                  "is_broken": true, "is_active": true, "dot": "broken", "last_checked": "Checked 12 minutes ago"}},
  {"geometry": {"coordinates": [-0.1278, 51.5074]},
   "properties": {"street": "77 Abbey Road", "city": "London", "state": null, "country": "UK",
                  "is_broken": false, "is_active": false, "dot": "inactive", "last_checked": "Checked 1 hour ago"}}
]}`

type testBridge struct {
	b        *bridge
	peer     *peerlink.Client
	apiURL   string
	upstream *atomic.Int64
}

func startTestBridge(t *testing.T, slots []string) *testBridge {
	t.Helper()
	var hits atomic.Int64
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(markers))
	}))
	t.Cleanup(up.Close)

	cfg := appConfig{
		APIAddr:          "127.0.0.1:0",
		UpstreamURL:      up.URL,
		UpstreamTimeout:  2 * time.Second,
		CacheMaxAge:      time.Minute,
		UserAgent:        "mcbroken-test",
		SettingsPath:     filepath.Join(t.TempDir(), "slots.yml"),
		SavedSlots:       slots,
		GPSTimeout:       500 * time.Millisecond,
		GPSMaximumAge:    30 * time.Second,
		AckTimeout:       2 * time.Second,
		PeerWriteTimeout: time.Second,
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	b, err := newBridge(cfg)
	if err != nil {
		t.Fatalf("newBridge: %v", err)
	}
	if err := b.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.stop()
	})

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()
	peer, err := peerlink.Dial(dialCtx, "ws://"+b.api.Addr()+model.DefaultPeerPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })

	tb := &testBridge{b: b, peer: peer, apiURL: "http://" + b.api.Addr(), upstream: &hits}
	if d := tb.next(t); d.Kind != model.KindReady {
		t.Fatalf("first frame = %q, want ready", d.Kind)
	}
	return tb
}

// next reads one frame and acknowledges it.
func (tb *testBridge) next(t *testing.T) peerlink.Delivery {
	t.Helper()
	select {
	case d, ok := <-tb.peer.Deliveries():
		if !ok {
			t.Fatalf("peer closed: %v", tb.peer.Err())
		}
		if err := tb.peer.Ack(d.Seq); err != nil {
			t.Fatalf("Ack: %v", err)
		}
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the bridge")
	}
	return peerlink.Delivery{}
}

func (tb *testBridge) put(t *testing.T, path, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, tb.apiURL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestSavedSessionEndToEnd(t *testing.T) {
	tb := startTestBridge(t, []string{"main", "", "elm street", "abbey"})

	if err := tb.peer.Command(model.KindLoadBySaved, 812); err != nil {
		t.Fatalf("Command: %v", err)
	}

	want := []string{"123 Main St", "Location not found", "77 Abbey Road"}
	for i, street := range want {
		d := tb.next(t)
		if d.Kind != model.KindData || d.Data == nil {
			t.Fatalf("frame %d = %+v, want data", i, d)
		}
		if d.Data.Street != street || d.Data.Index != i || d.Data.Count != len(want) || d.Data.SessionID != 812 {
			t.Fatalf("record %d = %+v", i, d.Data)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for tb.b.dispatcher.Snapshot().State.String() != "completed" {
		if time.Now().After(deadline) {
			t.Fatalf("session state = %v", tb.b.dispatcher.Snapshot().State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second request inside the freshness window reuses the cache.
	if err := tb.peer.Command(model.KindLoadBySaved, 813); err != nil {
		t.Fatalf("Command: %v", err)
	}
	for range want {
		tb.next(t)
	}
	if got := tb.upstream.Load(); got != 1 {
		t.Fatalf("upstream hits = %d, want 1", got)
	}
}

func TestNearbySessionEndToEnd(t *testing.T) {
	tb := startTestBridge(t, nil)

	if code := tb.put(t, "/api/location", `{"lat": 40.7500, "lon": -73.9800}`); code != http.StatusOK {
		t.Fatalf("PUT location = %d", code)
	}
	if err := tb.peer.Command(model.KindLoadByLocation, 99); err != nil {
		t.Fatalf("Command: %v", err)
	}

	first, second := tb.next(t), tb.next(t)
	if first.Data == nil || second.Data == nil {
		t.Fatalf("frames = %+v %+v", first, second)
	}
	if first.Data.Street != "123 Main St" || second.Data.Street != "350 5th Ave" {
		t.Fatalf("order = %q, %q", first.Data.Street, second.Data.Street)
	}
	if first.Data.Count != 2 {
		t.Fatalf("count = %d, want 2 (London is out of range)", first.Data.Count)
	}
}

func TestErrorsEndToEnd(t *testing.T) {
	tb := startTestBridge(t, nil)

	if err := tb.peer.Command(model.KindLoadBySaved, 5); err != nil {
		t.Fatalf("Command: %v", err)
	}
	d := tb.next(t)
	if d.Error == nil || d.Error.Error != model.CodeNoSavedLocations || d.Error.SessionID != 5 {
		t.Fatalf("frame = %+v, want no_saved_locations", d)
	}

	// No fix is pushed, so the locator times out.
	if err := tb.peer.Command(model.KindLoadByLocation, 6); err != nil {
		t.Fatalf("Command: %v", err)
	}
	d = tb.next(t)
	if d.Error == nil || d.Error.Error != model.CodeNoGPSFix || d.Error.Detail != "Could not get location." {
		t.Fatalf("frame = %+v, want no_gps_fix", d)
	}
}

func TestSettingsUpdateEndToEnd(t *testing.T) {
	tb := startTestBridge(t, nil)

	if code := tb.put(t, "/api/settings", `{"slots": ["5th ave"]}`); code != http.StatusOK {
		t.Fatalf("PUT settings = %d", code)
	}
	if code := tb.put(t, "/api/settings", `{"slots": ["`+strings.Repeat("a", 91)+`"]}`); code != http.StatusBadRequest {
		t.Fatalf("PUT long slot = %d, want 400", code)
	}

	if err := tb.peer.Command(model.KindLoadBySaved, 7); err != nil {
		t.Fatalf("Command: %v", err)
	}
	d := tb.next(t)
	if d.Data == nil || d.Data.Street != "350 5th Ave" || d.Data.Count != 1 {
		t.Fatalf("frame = %+v", d)
	}
}

func TestRunReturnsWhenCancelled(t *testing.T) {
	cfg := appConfig{
		UpstreamURL:  "http://127.0.0.1:1",
		SettingsPath: filepath.Join(t.TempDir(), "slots.yml"),
	}
	b, err := newBridge(cfg)
	if err != nil {
		t.Fatalf("newBridge: %v", err)
	}
	defer b.dispatcher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
