package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner periodically prunes operation history and flags stalled work.
// Stale operations are only warned about, never auto-failed: a RAID resync
// can legitimately run for many hours and failing it blind would mask that.
type Cleaner struct {
	logger  zerolog.Logger
	manager *Manager

	Interval           time.Duration
	StaleAfter         time.Duration
	CompletedRetention time.Duration
	FailedRetention    time.Duration
	Backoff            time.Duration
}

func NewCleaner(logger zerolog.Logger, manager *Manager) *Cleaner {
	return &Cleaner{
		logger:             logger.With().Str("component", "op-cleaner").Logger(),
		manager:            manager,
		Interval:           time.Hour,
		StaleAfter:         12 * time.Hour,
		CompletedRetention: 7 * 24 * time.Hour,
		FailedRetention:    30 * 24 * time.Hour,
		Backoff:            5 * time.Minute,
	}
}

// Run loops until ctx is done. A cycle that panics is logged and retried
// after the backoff instead of killing the task.
func (c *Cleaner) Run(ctx context.Context) {
	c.logger.Info().Dur("interval", c.Interval).Msg("starting operation cleaner")
	for {
		wait := c.Interval
		if err := c.cycle(); err != nil {
			c.logger.Error().Err(err).Msg("cleanup cycle failed, backing off")
			wait = c.Backoff
		}
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("operation cleaner stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (c *Cleaner) cycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panic: %v", r)
		}
	}()
	for _, op := range c.manager.stale(c.StaleAfter) {
		c.logger.Warn().
			Str("op", op.ID).
			Str("pool", op.PoolID).
			Str("kind", string(op.Kind)).
			Time("last_update", op.UpdatedAt).
			Msg("operation has not progressed past stale threshold")
	}
	completed := c.manager.PruneOlderThan(c.CompletedRetention, StatusCompleted)
	// Failed and cancelled history is kept longer to aid diagnosis.
	failed := c.manager.PruneOlderThan(c.FailedRetention, StatusFailed, StatusCancelled)
	if completed+failed > 0 {
		c.logger.Debug().Int("completed", completed).Int("failed", failed).Msg("cleanup cycle pruned history")
	}
	return nil
}
