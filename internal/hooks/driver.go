package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyFired is returned when an event fires twice for the same build.
var ErrAlreadyFired = errors.New("hooks: event already fired for this build")

// Driver fires events on behalf of the host. Handlers of one event run one
// after another in registration order; an async handler holds the queue
// until it signals completion.
type Driver struct {
	hooks  *Hooks
	logger *zap.Logger
}

// NewDriver returns a driver for h.
// If logger is nil, a no-op logger is used.
func NewDriver(h *Hooks, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{hooks: h, logger: logger}
}

// Fire runs every handler tapped into e for build b. It returns early only
// when ctx ends while an async handler has not signalled completion.
func (d *Driver) Fire(ctx context.Context, e Event, b *Build) error {
	if b.markFired(e) {
		return fmt.Errorf("%s: %w", e, ErrAlreadyFired)
	}

	for _, t := range d.hooks.handlers(e) {
		d.logger.Debug("firing hook", zap.String("event", string(e)), zap.String("plugin", t.name))
		if t.fn != nil {
			t.fn(b)
			continue
		}
		if err := d.await(ctx, t.async, b); err != nil {
			return fmt.Errorf("%s: waiting for %s: %w", e, t.name, err)
		}
	}
	return nil
}

// Run fires events in order for b.
func (d *Driver) Run(ctx context.Context, b *Build, events ...Event) error {
	for _, e := range events {
		if err := d.Fire(ctx, e, b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) await(ctx context.Context, fn AsyncHandler, b *Build) error {
	ch := make(chan struct{})
	var once sync.Once
	fn(b, func() {
		once.Do(func() { close(ch) })
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
