package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
	"github.com/Proton-105/ledger-bot/internal/conversation"
	"github.com/Proton-105/ledger-bot/internal/idempotency"
	"github.com/Proton-105/ledger-bot/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newContext(t *testing.T, ev conversation.Event) telebot.Context {
	t.Helper()

	tb, err := telebot.NewBot(telebot.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)

	c := tb.NewContext(telebot.Update{ID: ev.UpdateID})
	handlers.SetEvent(c, ev)
	return c
}

func newManager(t *testing.T) idempotency.Manager {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return idempotency.NewManager(idempotency.NewRedisStore(client, "", discardLogger()), time.Minute, discardLogger())
}

func TestIdempotency_SkipsRedelivery(t *testing.T) {
	calls := 0
	handler := Idempotency(newManager(t), time.Hour, discardLogger())(func(c telebot.Context) error {
		calls++
		handlers.SetLabel(c, "activity_described")
		return nil
	})

	ev := conversation.Event{Kind: conversation.EventText, UpdateID: 100, ChatID: 1, MessageID: 5, Text: "Parkir"}

	first := newContext(t, ev)
	require.NoError(t, handler(first))
	assert.Equal(t, "activity_described", handlers.Label(first))

	second := newContext(t, ev)
	require.NoError(t, handler(second))
	assert.Equal(t, "duplicate", handlers.Label(second))

	assert.Equal(t, 1, calls)
}

func TestIdempotency_PropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	handler := Idempotency(newManager(t), time.Hour, discardLogger())(func(c telebot.Context) error {
		calls++
		return boom
	})

	ev := conversation.Event{Kind: conversation.EventText, UpdateID: 101, ChatID: 1, Text: "x"}
	assert.ErrorIs(t, handler(newContext(t, ev)), boom)
	assert.ErrorIs(t, handler(newContext(t, ev)), boom)
	assert.Equal(t, 2, calls)
}

func TestIdempotency_NilManagerPassesThrough(t *testing.T) {
	calls := 0
	handler := Idempotency(nil, 0, nil)(func(telebot.Context) error {
		calls++
		return nil
	})

	ev := conversation.Event{Kind: conversation.EventText, UpdateID: 1}
	require.NoError(t, handler(newContext(t, ev)))
	require.NoError(t, handler(newContext(t, ev)))
	assert.Equal(t, 2, calls)
}

func TestUpdateKey(t *testing.T) {
	testCases := []struct {
		name string
		ev   conversation.Event
		want string
	}{
		{name: "update id", ev: conversation.Event{UpdateID: 7, CallbackID: "cb"}, want: idempotency.GenerateKey("update", 7)},
		{name: "callback id", ev: conversation.Event{CallbackID: "cb"}, want: idempotency.GenerateKey("cb", "cb")},
		{name: "message id", ev: conversation.Event{ChatID: 3, MessageID: 9}, want: idempotency.GenerateKey("msg", int64(3), 9)},
		{name: "nothing", ev: conversation.Event{}, want: ""},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UpdateKey(tc.ev))
		})
	}
}

func TestMetrics_PassesErrorThrough(t *testing.T) {
	boom := errors.New("boom")
	handler := Metrics(func(telebot.Context) error { return boom })

	assert.ErrorIs(t, handler(newContext(t, conversation.Event{UpdateID: 1})), boom)
	assert.Nil(t, Metrics(nil))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := logger.Middleware(New(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	})))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil).WithContext(context.Background())
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"path":"/webhook"`)
}
