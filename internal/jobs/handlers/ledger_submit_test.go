package handlers

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ledger-bot/internal/jobs"
	"github.com/Proton-105/ledger-bot/internal/ledger"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Submit(ctx context.Context, record ledger.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockBackend) Total(ctx context.Context, periodKey string) (float64, error) {
	args := m.Called(ctx, periodKey)
	return args.Get(0).(float64), args.Error(1)
}

func TestLedgerSubmitHandler_ProcessTask(t *testing.T) {
	record := ledger.Record{Activity: "Zakat", Status: "Kewajiban", Date: "2024-06-15", Amount: 100000}
	task, err := jobs.NewLedgerSubmitTask(record)
	require.NoError(t, err)

	t.Run("delivered", func(t *testing.T) {
		backend := &mockBackend{}
		backend.On("Submit", mock.Anything, record).Return(nil).Once()

		assert.NoError(t, NewLedgerSubmitHandler(backend, nil).ProcessTask(context.Background(), task))
		backend.AssertExpectations(t)
	})

	t.Run("backend failure is retried", func(t *testing.T) {
		backend := &mockBackend{}
		backend.On("Submit", mock.Anything, record).Return(ledger.ErrBackendStatus).Once()

		err := NewLedgerSubmitHandler(backend, nil).ProcessTask(context.Background(), task)
		assert.ErrorIs(t, err, ledger.ErrBackendStatus)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payload skips retry", func(t *testing.T) {
		backend := &mockBackend{}

		err := NewLedgerSubmitHandler(backend, nil).ProcessTask(context.Background(), asynq.NewTask(jobs.TaskTypeLedgerSubmit, []byte("nope")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		backend.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}
