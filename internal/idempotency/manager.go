package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrRequestInProgress = errors.New("request with this key is already in progress")

const defaultLockTTL = time.Minute

// Operation is the work guarded by an idempotency key.
type Operation func(ctx context.Context) error

type Result struct {
	// Duplicate is true when the key had already completed and fn was not run.
	Duplicate bool
}

type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	log     *slog.Logger
	lockTTL time.Duration
}

// NewManager builds a Manager over store. lockTTL bounds how long a crashed
// worker can hold a key; zero selects one minute.
func NewManager(store Store, lockTTL time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}

	return &manager{
		store:   store,
		log:     log,
		lockTTL: lockTTL,
	}
}

func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency lock: %w", err)
	}

	if !locked {
		record, err := m.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load idempotency record: %w", err)
		}
		if record != nil && record.Status == StatusCompleted {
			return &Result{Duplicate: true}, nil
		}
		return nil, ErrRequestInProgress
	}

	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load idempotency record: %w", err)
	}
	if record != nil && record.Status == StatusCompleted {
		return &Result{Duplicate: true}, nil
	}

	if err := fn(ctx); err != nil {
		return nil, err
	}

	if err := m.store.Set(ctx, key, &Record{Status: StatusCompleted, CompletedAt: time.Now().UTC()}, ttl); err != nil {
		m.log.Warn("failed to store idempotency record", slog.String("key", key), slog.Any("error", err))
	}

	return &Result{}, nil
}
