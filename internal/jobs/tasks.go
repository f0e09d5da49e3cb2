package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/ledger-bot/internal/ledger"
)

const TaskTypeLedgerSubmit = "ledger:submit"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// Queues is the weighted queue set the worker serves.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

// LedgerSubmitPayload carries one ledger row awaiting delivery.
type LedgerSubmitPayload struct {
	Record ledger.Record `json:"record"`
}

func NewLedgerSubmitTask(record ledger.Record, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(LedgerSubmitPayload{Record: record})
	if err != nil {
		return nil, fmt.Errorf("encode ledger submit payload: %w", err)
	}

	opts = append([]asynq.Option{asynq.Queue(QueueCritical)}, opts...)
	return asynq.NewTask(TaskTypeLedgerSubmit, payload, opts...), nil
}

// DecodeLedgerSubmit reads the payload of a ledger submit task.
func DecodeLedgerSubmit(t *asynq.Task) (LedgerSubmitPayload, error) {
	var payload LedgerSubmitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode ledger submit payload: %w", err)
	}
	return payload, nil
}
