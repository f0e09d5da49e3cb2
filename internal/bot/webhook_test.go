package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/ledger-bot/internal/conversation"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/i18n"
	"github.com/Proton-105/ledger-bot/internal/ledger"
	"github.com/Proton-105/ledger-bot/internal/state"
	"github.com/Proton-105/ledger-bot/pkg/config"
)

type stubLedger struct {
	total float64
	err   error
}

func (s stubLedger) Submit(context.Context, ledger.Record) error { return s.err }

func (s stubLedger) Total(context.Context, string) (float64, error) { return s.total, s.err }

func newTestBot(t *testing.T, cfg config.BotConfig, backend ledger.Backend) (*Bot, *fakeTelegram, state.Storage) {
	t.Helper()

	fake, srv := newFakeTelegram(t)
	cfg.Token = "123:abc"
	cfg.APIURL = srv.URL
	if cfg.Mode == "" {
		cfg.Mode = ModeWebhook
	}

	catalogs, err := i18n.Load("id")
	require.NoError(t, err)
	tr := catalogs.Translator("id")

	storage := state.NewMemoryStorage()
	engine := conversation.NewEngine(backend, conversation.NewRenderer(tr))

	b, err := New(cfg, Deps{
		Storage:    storage,
		Engine:     engine,
		Translator: tr,
		ErrHandler: apperrors.NewHandler(discardLogger(), false),
	}, discardLogger())
	require.NoError(t, err)

	return b, fake, storage
}

func postUpdate(t *testing.T, h http.Handler, body, secret string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(secretTokenHeader, secret)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_StartCommand(t *testing.T) {
	b, fake, _ := newTestBot(t, config.BotConfig{}, stubLedger{})

	rec := postUpdate(t, b.WebhookHandler(), `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/start"}}`, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	calls := fake.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].Params["chat_id"])
	assert.Contains(t, calls[0].Params["reply_markup"], "/input")
}

func TestWebhook_ActivityThenStatusChoices(t *testing.T) {
	b, fake, storage := newTestBot(t, config.BotConfig{}, stubLedger{})
	h := b.WebhookHandler()

	postUpdate(t, h, `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/input"}}`, "")
	postUpdate(t, h, `{"update_id":2,"message":{"message_id":2,"date":0,"chat":{"id":42,"type":"private"},"text":"Makan siang"}}`, "")

	st, err := storage.GetState(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, state.StepAwaitingStatus, st.Step)
	assert.Equal(t, "Makan siang", st.Activity)

	calls := fake.Calls("sendMessage")
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Params["reply_markup"], "status:Kewajiban")

	postUpdate(t, h, `{"update_id":3,"callback_query":{"id":"cb-9","from":{"id":42,"is_bot":false,"first_name":"A"},"data":"status:Duniawi"}}`, "")

	st, err = storage.GetState(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, state.StepAwaitingAmount, st.Step)
	assert.Equal(t, state.StatusWorldly, st.Status)

	answers := fake.Calls("answerCallbackQuery")
	require.Len(t, answers, 1)
	assert.Equal(t, "cb-9", answers[0].Params["callback_query_id"])
}

func TestWebhook_LedgerFailureIsReportedToUser(t *testing.T) {
	b, fake, _ := newTestBot(t, config.BotConfig{}, stubLedger{err: ledger.ErrBackendStatus})

	rec := postUpdate(t, b.WebhookHandler(), `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/lihatbulanini"}}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	calls := fake.Calls("sendMessage")
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].Params["text"])
}

func TestWebhook_RejectedRequestsStillAnswerOK(t *testing.T) {
	b, fake, _ := newTestBot(t, config.BotConfig{WebhookSecret: "s3cret"}, stubLedger{})
	h := b.WebhookHandler()

	start := `{"update_id":1,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/start"}}`

	testCases := []struct {
		name   string
		body   string
		secret string
	}{
		{name: "missing secret", body: start},
		{name: "wrong secret", body: start, secret: "nope"},
		{name: "malformed body", body: "{", secret: "s3cret"},
		{name: "unsupported update", body: `{"update_id":5,"edited_message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"x"}}`, secret: "s3cret"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := postUpdate(t, h, tc.body, tc.secret)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	assert.Empty(t, fake.Calls("sendMessage"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	postUpdate(t, h, start, "s3cret")
	assert.Len(t, fake.Calls("sendMessage"), 1)
}

func TestBot_SetupRegistersWebhook(t *testing.T) {
	b, fake, _ := newTestBot(t, config.BotConfig{WebhookURL: "https://example.com/webhook", WebhookSecret: "s3cret"}, stubLedger{})

	require.NoError(t, b.Setup())

	hooks := fake.Calls("setWebhook")
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://example.com/webhook", hooks[0].Params["url"])
	assert.Equal(t, "s3cret", hooks[0].Params["secret_token"])

	commands := fake.Calls("setMyCommands")
	require.Len(t, commands, 1)
	assert.Contains(t, commandNames(t, commands[0].Params["commands"]), "lihatbulanini")
}

func commandNames(t *testing.T, raw any) []string {
	t.Helper()

	entries, ok := raw.([]any)
	require.True(t, ok, "commands has type %T", raw)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		cmd, ok := entry.(map[string]any)
		require.True(t, ok, "command entry has type %T", entry)
		name, _ := cmd["command"].(string)
		names = append(names, name)
	}
	return names
}

func TestBot_SetupLongPollRemovesWebhook(t *testing.T) {
	b, fake, _ := newTestBot(t, config.BotConfig{Mode: ModeLongPoll}, stubLedger{})

	require.NoError(t, b.Setup())

	assert.Len(t, fake.Calls("deleteWebhook"), 1)
	assert.Empty(t, fake.Calls("setWebhook"))
}
