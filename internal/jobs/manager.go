package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/ledger-bot/internal/ledger"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Close() error {
	return m.client.Close()
}

// Outbox queues ledger submissions that failed inline for background retry.
type Outbox struct {
	manager  Manager
	maxRetry int
	log      *slog.Logger
}

// NewOutbox wraps manager. maxRetry bounds redelivery attempts per record.
func NewOutbox(manager Manager, maxRetry int, log *slog.Logger) *Outbox {
	if log == nil {
		log = slog.Default()
	}

	return &Outbox{manager: manager, maxRetry: maxRetry, log: log}
}

// EnqueueSubmission schedules record for delivery by the worker.
func (o *Outbox) EnqueueSubmission(ctx context.Context, record ledger.Record) error {
	task, err := NewLedgerSubmitTask(record, asynq.MaxRetry(o.maxRetry))
	if err != nil {
		return err
	}

	info, err := o.manager.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue ledger submission: %w", err)
	}

	o.log.InfoContext(ctx, "ledger submission queued",
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
		slog.String("activity", record.Activity),
	)

	return nil
}

// Close releases the queue client.
func (o *Outbox) Close() error {
	return o.manager.Close()
}
