package rate

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RateLimitError is returned when a call is blocked by the local budget.
// Blocked calls are not queued or retried.
type RateLimitError struct {
	Provider string
	Window   Window
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s request budget exhausted (%s window, next slot at %s)",
		e.Provider, e.Window, e.RetryAt.UTC().Format(time.RFC3339))
}

type Decision struct {
	Allowed bool
	Window  Window
	RetryAt time.Time
}

type bucket struct {
	capacity int
	tokens   float64
	last     time.Time
}

// Guard enforces a provider declaration with one token bucket per window.
type Guard struct {
	decl Declaration
	now  func() time.Time

	mu      sync.Mutex
	buckets map[Window]*bucket
}

// NewGuard builds a guard with full buckets.
func NewGuard(decl Declaration) *Guard {
	g := &Guard{
		decl:    decl,
		now:     time.Now,
		buckets: make(map[Window]*bucket),
	}
	start := g.now()
	for window, limit := range decl.Limits() {
		g.buckets[window] = &bucket{capacity: limit, tokens: float64(limit), last: start}
	}
	return g
}

// WrapHTTP wraps an http.Client with budget enforcement. A declaration
// without limits leaves the client unguarded.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	if !decl.HasLimits() {
		return base
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{
		base:  transport,
		guard: NewGuard(decl),
	}
	return &client
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	decision := rt.guard.ShouldCall()
	if !decision.Allowed {
		blockedCounter.WithLabelValues(rt.guard.decl.ProviderName()).Inc()
		return nil, RateLimitError{
			Provider: rt.guard.decl.ProviderName(),
			Window:   decision.Window,
			RetryAt:  decision.RetryAt,
		}
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	lastStatusGauge.WithLabelValues(rt.guard.decl.ProviderName()).Set(float64(resp.StatusCode))
	return resp, nil
}

// ShouldCall takes one token from every window, or reports the first
// window that is empty.
func (g *Guard) ShouldCall() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for window, b := range g.buckets {
		refill(b, window.Duration(), now)
		if b.capacity <= 0 || b.tokens < 1 {
			return Decision{Allowed: false, Window: window, RetryAt: nextToken(b, window.Duration(), now)}
		}
	}
	for window, b := range g.buckets {
		b.tokens--
		remainingGauge.WithLabelValues(g.decl.ProviderName(), window.String()).Set(b.tokens)
	}
	return Decision{Allowed: true}
}

func refill(b *bucket, window time.Duration, now time.Time) {
	if b.capacity <= 0 {
		return
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		rate := float64(b.capacity) / window.Seconds()
		b.tokens = min(float64(b.capacity), b.tokens+elapsed*rate)
	}
	b.last = now
}

func nextToken(b *bucket, window time.Duration, now time.Time) time.Time {
	if b.capacity <= 0 {
		return now.Add(window)
	}
	missing := 1 - b.tokens
	perToken := window / time.Duration(b.capacity)
	return now.Add(time.Duration(missing * float64(perToken)))
}
