package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/conversation"
)

// Handler processes one update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const (
	contextKeyRequest = "ledger.request_ctx"
	contextKeyEvent   = "ledger.event"
	contextKeyLabel   = "ledger.label"
)

// WithRequestContext attaches the inbound request context to c.
func WithRequestContext(c telebot.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKeyRequest, ctx)
}

// RequestContext returns the context attached to c, or context.Background.
func RequestContext(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(contextKeyRequest).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// SetEvent stores the normalized event for downstream middlewares.
func SetEvent(c telebot.Context, ev conversation.Event) {
	if c != nil {
		c.Set(contextKeyEvent, ev)
	}
}

// EventFrom returns the normalized event stored on c.
func EventFrom(c telebot.Context) (conversation.Event, bool) {
	if c == nil {
		return conversation.Event{}, false
	}
	ev, ok := c.Get(contextKeyEvent).(conversation.Event)
	return ev, ok
}

// SetLabel records which conversation branch handled the update.
func SetLabel(c telebot.Context, label string) {
	if c != nil {
		c.Set(contextKeyLabel, label)
	}
}

// Label returns the branch label recorded on c, or "unknown".
func Label(c telebot.Context) string {
	if c != nil {
		if label, ok := c.Get(contextKeyLabel).(string); ok && label != "" {
			return label
		}
	}
	return "unknown"
}
