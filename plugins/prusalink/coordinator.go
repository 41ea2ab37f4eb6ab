package prusalink

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/printmon/internal/host"
)

const (
	fastInterval       = 5 * time.Second
	normalInterval     = 30 * time.Second
	expectChangeWindow = 30 * time.Second
)

// updateCoordinator adds the expect-change window on top of the generic
// coordinator.
type updateCoordinator[T any] struct {
	*host.Coordinator[T]

	now         func() time.Time
	mu          sync.Mutex
	expectUntil time.Time
}

func newUpdateCoordinator[T any](name string, logger *zap.Logger, fetch func(context.Context) (T, error), busy func(T) bool) *updateCoordinator[T] {
	c := &updateCoordinator[T]{now: time.Now}
	wrapped := func(ctx context.Context) (T, error) {
		data, err := fetch(ctx)
		if err != nil {
			var zero T
			if errors.Is(err, ErrInvalidAuth) {
				return zero, &host.UpdateFailedError{Message: "Invalid authentication", Err: err}
			}
			return zero, err
		}
		return data, nil
	}
	interval := func(data T, ok bool) time.Duration {
		if ok && busy != nil && busy(data) {
			return fastInterval
		}
		if c.expectingChange() {
			return fastInterval
		}
		return normalInterval
	}
	c.Coordinator = host.NewCoordinator[T](name, logger, wrapped, interval)
	return c
}

// ExpectChange polls fast for the next 30 seconds, starting now.
func (c *updateCoordinator[T]) ExpectChange() {
	c.mu.Lock()
	c.expectUntil = c.now().Add(expectChangeWindow)
	c.mu.Unlock()
	c.Reschedule()
}

func (c *updateCoordinator[T]) expectingChange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.expectUntil)
}

func newPrinterCoordinator(client *Client, logger *zap.Logger) *updateCoordinator[PrinterInfo] {
	return newUpdateCoordinator("printer", logger, client.Printer, func(info PrinterInfo) bool {
		return info.State.Flags.Pausing || info.State.Flags.Cancelling
	})
}

func newJobCoordinator(client *Client, logger *zap.Logger) *updateCoordinator[JobInfo] {
	return newUpdateCoordinator("job", logger, client.Job, nil)
}
