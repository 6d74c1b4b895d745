package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"relmap/internal/logging"
)

type cleanupFunc struct {
	name string
	fn   func(context.Context) error
}

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack []cleanupFunc

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	*s = append(*s, cleanupFunc{name: name, fn: fn})
}

// run calls every cleanup even when earlier ones fail and returns the
// failures joined.
func (s cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if logger != nil {
			logger.Debug("releasing " + c.name)
		}
		if err := c.fn(ctx); err != nil {
			if logger != nil {
				logger.Warn("cleanup failed",
					slog.String("component", c.name),
					slog.String("error", err.Error()),
				)
			}
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown releases everything Init and Start acquired. Repeated calls
// return the first call's result.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.cleanup = nil
		a.started = false
		a.stateMu.Unlock()

		a.shutdownErr = cleanup.run(ctx, a.logger)
	})
	return a.shutdownErr
}
