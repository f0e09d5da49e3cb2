package state

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner removes abandoned conversation states on a schedule.
// Stores with native expiry (Redis) do not need it; the others rely on it for TTL.
type Cleaner struct {
	storage  Storage
	lister   Enumerator
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner. storage must also implement Enumerator for the cleaner to do anything.
func NewCleaner(storage Storage, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	lister, _ := storage.(Enumerator)

	return &Cleaner{
		storage:  storage,
		lister:   lister,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.lister == nil || c.ttl <= 0 || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup clears every state not updated within the TTL and returns how many were removed.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	if ctx.Err() != nil || c.lister == nil {
		return 0
	}

	states, err := c.lister.GetAllStates(ctx)
	if err != nil {
		c.log.Error("state cleaner failed to list states", slog.Any("error", err))
		return 0
	}

	cutoff := c.now().Add(-c.ttl)
	removed := 0
	for key, st := range states {
		if st == nil || !st.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := c.storage.ClearState(ctx, key); err != nil {
			c.log.Error("state cleaner failed to clear state", slog.String("conversation", key), slog.Any("error", err))
			continue
		}

		removed++
		c.log.Info("abandoned conversation cleared", slog.String("conversation", key), slog.String("step", st.Step.String()))
	}

	return removed
}
