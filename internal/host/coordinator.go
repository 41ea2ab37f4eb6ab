package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/logging"
)

// DefaultFetchTimeout bounds one fetch.
const DefaultFetchTimeout = 5 * time.Second

// FetchFunc loads one payload.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// IntervalFunc picks the delay until the next refresh from the latest
// payload. ok is false before the first successful fetch.
type IntervalFunc[T any] func(data T, ok bool) time.Duration

// Coordinator periodically fetches one payload and keeps the last good copy.
// A single goroutine (Run) owns the schedule; Refresh calls are serialised.
type Coordinator[T any] struct {
	name     string
	logger   *zap.Logger
	fetch    FetchFunc[T]
	interval IntervalFunc[T]
	timeout  time.Duration
	wake     chan struct{}

	refreshMu sync.Mutex

	mu             sync.RWMutex
	data           T
	hasData        bool
	success        bool
	lastErr        error
	lastSuccess    time.Time
	updateInterval time.Duration

	listenersMu  sync.Mutex
	listeners    map[int]func()
	nextListener int
}

func NewCoordinator[T any](name string, logger *zap.Logger, fetch FetchFunc[T], interval IntervalFunc[T]) *Coordinator[T] {
	var zero T
	return &Coordinator[T]{
		name:           name,
		logger:         logging.OrNop(logger).With(zap.String("coordinator", name)),
		fetch:          fetch,
		interval:       interval,
		timeout:        DefaultFetchTimeout,
		wake:           make(chan struct{}, 1),
		updateInterval: interval(zero, false),
		listeners:      make(map[int]func()),
	}
}

// SetTimeout overrides the per-fetch timeout. Call before Run.
func (c *Coordinator[T]) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

func (c *Coordinator[T]) Name() string {
	return c.name
}

// Refresh fetches now. On failure the previous payload is kept, the
// coordinator is marked failed and an *UpdateFailedError is returned.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	data, err := c.fetch(fetchCtx)
	cancel()

	c.mu.Lock()
	if err != nil {
		var failed *UpdateFailedError
		if !errors.As(err, &failed) {
			failed = &UpdateFailedError{Message: err.Error(), Err: err}
		}
		firstFailure := c.success || c.lastErr == nil
		c.success = false
		c.lastErr = failed
		c.mu.Unlock()

		if firstFailure {
			c.logger.Warn("Update failed", zap.Error(failed))
		} else {
			c.logger.Debug("Update still failing", zap.Error(failed))
		}
		c.notify()
		return failed
	}

	c.data = data
	c.hasData = true
	if !c.success && c.lastErr != nil {
		c.logger.Info("Update recovered")
	}
	c.success = true
	c.lastErr = nil
	c.lastSuccess = time.Now()
	c.updateInterval = c.interval(data, true)
	c.mu.Unlock()

	c.notify()
	return nil
}

// Run refreshes on the current interval until ctx is cancelled.
func (c *Coordinator[T]) Run(ctx context.Context) error {
	timer := time.NewTimer(c.UpdateInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
			timer.Reset(c.UpdateInterval())
		case <-timer.C:
			_ = c.Refresh(ctx)
			timer.Reset(c.UpdateInterval())
		}
	}
}

// Reschedule recomputes the interval from the current payload and restarts
// the pending wait with it.
func (c *Coordinator[T]) Reschedule() {
	c.mu.Lock()
	c.updateInterval = c.interval(c.data, c.hasData)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Data returns the last successfully fetched payload.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.hasData
}

func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.success
}

func (c *Coordinator[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Coordinator[T]) LastSuccessTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

func (c *Coordinator[T]) UpdateInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updateInterval
}

// AddListener registers fn to run after every refresh attempt.
func (c *Coordinator[T]) AddListener(fn func()) (remove func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Coordinator[T]) notify() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
