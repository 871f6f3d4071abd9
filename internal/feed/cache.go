package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/tinytelemetry/mcbroken/internal/model"
	"golang.org/x/sync/singleflight"
)

const (
	fetchKey = "markers"

	// maxPayloadSize bounds the upstream body (64 MB).
	maxPayloadSize = 64 * 1024 * 1024
)

// Classified failures returned by Get. Compare with errors.Is.
var (
	ErrTimedOut         = model.Fail(model.CodeTimedOut, nil)
	ErrConnectionFailed = model.Fail(model.CodeConnectionFailed, nil)
	ErrMalformedPayload = model.Fail(model.CodeMalformedPayload, nil)
)

// Config holds tunable parameters for the cache.
type Config struct {
	URL       string
	Timeout   time.Duration
	MaxAge    time.Duration
	UserAgent string
	Client    *http.Client
	Clock     clockwork.Clock
}

type entry struct {
	candidates []model.Candidate
	capturedAt time.Time
}

// Cache memoizes the upstream dataset for a freshness window and guarantees
// at most one outstanding upstream fetch.
//
// Callers share the returned slice and must not modify it.
type Cache struct {
	url       string
	userAgent string
	timeout   time.Duration
	maxAge    time.Duration
	client    *http.Client
	clock     clockwork.Clock

	group   singleflight.Group
	fetches atomic.Int64

	mu    sync.Mutex
	entry *entry
}

// New creates a Cache. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Cache {
	if cfg.URL == "" {
		cfg.URL = model.DefaultUpstreamURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = model.DefaultUpstreamTimeout
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = model.DefaultCacheMaxAge
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Cache{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		maxAge:    cfg.MaxAge,
		client:    cfg.Client,
		clock:     cfg.Clock,
	}
}

// Get returns the cached candidates when they are younger than the freshness
// window, otherwise joins or starts the single upstream fetch.
//
// A done ctx only stops the caller from waiting. The fetch keeps running and
// its result still lands in the cache.
func (c *Cache) Get(ctx context.Context) ([]model.Candidate, error) {
	if candidates, ok := c.fresh(); ok {
		return candidates, nil
	}

	ch := c.group.DoChan(fetchKey, func() (interface{}, error) {
		// A fetch that finished between fresh() and DoChan already filled the entry.
		if candidates, ok := c.fresh(); ok {
			return candidates, nil
		}
		return c.refresh()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]model.Candidate), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached entry so the next Get refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// Age reports how old the cached entry is. ok is false when nothing is cached.
func (c *Cache) Age() (age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return 0, false
	}
	return c.clock.Now().Sub(c.entry.capturedAt), true
}

// Fetches returns how many upstream requests have been issued.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

// fresh returns the entry if it is inside the freshness window. An expired
// entry is dropped so it can never be served again.
func (c *Cache) fresh() ([]model.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.entry.capturedAt) >= c.maxAge {
		c.entry = nil
		return nil, false
	}
	return c.entry.candidates, true
}

func (c *Cache) refresh() ([]model.Candidate, error) {
	start := time.Now()
	candidates, err := c.fetch()
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			c.Invalidate()
		}
		log.Printf("feed: fetch %s failed after %s: %v", c.url, time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}

	c.mu.Lock()
	c.entry = &entry{candidates: candidates, capturedAt: c.clock.Now()}
	c.mu.Unlock()

	log.Printf("feed: fetched %d candidates in %s", len(candidates), time.Since(start).Round(time.Millisecond))
	return candidates, nil
}

// fetch performs one timed GET. It runs detached from any session context so
// a superseded session never aborts a fetch other callers may be sharing.
func (c *Cache) fetch() ([]model.Candidate, error) {
	c.fetches.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, model.Fail(model.CodeConnectionFailed, fmt.Errorf("feed: build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, model.Fail(model.CodeConnectionFailed, fmt.Errorf("feed: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, classifyTransport(err)
	}

	candidates, err := decodeMarkers(body)
	if err != nil {
		return nil, model.Fail(model.CodeMalformedPayload, err)
	}
	return candidates, nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Fail(model.CodeTimedOut, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.Fail(model.CodeTimedOut, err)
	}
	return model.Fail(model.CodeConnectionFailed, err)
}
