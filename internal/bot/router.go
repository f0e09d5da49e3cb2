package bot

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/ledger-bot/internal/bot/handlers"
	"github.com/Proton-105/ledger-bot/internal/conversation"
)

// Router normalizes telebot updates into conversation events and runs them
// through the middleware chain into the dispatcher.
type Router struct {
	mu          sync.RWMutex
	dispatcher  *Dispatcher
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewRouter builds a Router with an empty middleware chain.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route handles one update. Updates that are neither text messages nor callbacks are dropped.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	ev := EventFromContext(c)
	if ev.Kind == conversation.EventNone {
		return nil
	}
	handlers.SetEvent(c, ev)

	return r.executeHandler(r.dispatch, c)
}

func (r *Router) dispatch(c telebot.Context) error {
	ev, _ := handlers.EventFrom(c)

	label, err := r.dispatcher.Dispatch(handlers.RequestContext(c), ev)
	handlers.SetLabel(c, label)
	return err
}

// EventFromContext extracts the event the conversation engine understands.
// Callbacks are keyed by the sender, messages by the chat.
func EventFromContext(c telebot.Context) conversation.Event {
	ev := conversation.Event{Kind: conversation.EventNone}
	if c == nil {
		return ev
	}

	u := c.Update()
	ev.UpdateID = u.ID

	if cb := u.Callback; cb != nil {
		if cb.Sender == nil {
			return ev
		}

		ev.Kind = conversation.EventCallback
		ev.ConversationKey = strconv.FormatInt(cb.Sender.ID, 10)
		ev.ChatID = cb.Sender.ID
		ev.CallbackID = cb.ID
		ev.Data = cb.Data
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
		}
		return ev
	}

	// Edited messages and channel posts are not part of the conversation.
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return ev
	}

	ev.Kind = conversation.EventText
	ev.ConversationKey = strconv.FormatInt(msg.Chat.ID, 10)
	ev.ChatID = msg.Chat.ID
	ev.MessageID = msg.ID
	ev.Text = strings.TrimSpace(msg.Text)
	return ev
}

func (r *Router) executeHandler(h handlers.Handler, c telebot.Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
