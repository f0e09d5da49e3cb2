package bot

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
)

const (
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes    = 1 << 20
)

// WebhookHandler accepts Telegram updates over HTTP. It always answers 200 OK so
// Telegram never redelivers an update because of a handler failure.
type WebhookHandler struct {
	bot    *telebot.Bot
	route  handlers.Handler
	secret string
	log    *slog.Logger
}

// NewWebhookHandler serves updates for tb through route. A non-empty secret must match
// the secret token header of every request.
func NewWebhookHandler(tb *telebot.Bot, route handlers.Handler, secret string, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}

	return &WebhookHandler{bot: tb, route: route, secret: secret, log: log}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer writeOK(w)

	if r.Method != http.MethodPost {
		h.log.Warn("webhook called with unexpected method", slog.String("method", r.Method))
		return
	}

	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(secretTokenHeader)), []byte(h.secret)) != 1 {
		h.log.Warn("webhook secret token mismatch")
		return
	}

	var update telebot.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		h.log.Warn("failed to decode update", slog.Any("error", err))
		return
	}

	c := h.bot.NewContext(update)
	handlers.WithRequestContext(c, r.Context())

	if err := h.route(c); err != nil {
		h.log.Error("update handling failed", slog.Int("update_id", update.ID), slog.Any("error", err))
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}
