package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Proton-105/ledger-bot/internal/conversation"
	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/state"
)

// Engine decides the outcome of an event for the stored conversation record.
type Engine interface {
	Handle(ctx context.Context, current *state.ConversationState, ev conversation.Event) (conversation.Outcome, error)
}

// Dispatcher runs one event through load, decide, persist and deliver.
type Dispatcher struct {
	storage  state.Storage
	engine   Engine
	notifier Notifier
	log      *slog.Logger
}

// NewDispatcher wires the conversation pipeline.
func NewDispatcher(storage state.Storage, engine Engine, notifier Notifier, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		storage:  storage,
		engine:   engine,
		notifier: notifier,
		log:      log,
	}
}

// Dispatch handles ev and returns the label of the branch that handled it.
// The record is saved or deleted before any reply is sent. Delivery failures are logged, not returned.
// A failed save sends nothing; a failed delete still sends the replies before returning the error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev conversation.Event) (string, error) {
	if ev.Kind == conversation.EventNone || ev.ConversationKey == "" {
		return "ignored", nil
	}

	current, err := d.storage.GetState(ctx, ev.ConversationKey)
	if err != nil {
		if !errors.Is(err, state.ErrStateNotFound) {
			return "load_failed", apperrors.NewStorageError(fmt.Errorf("load state: %w", err))
		}
		current = nil
	}

	out, err := d.engine.Handle(ctx, current, ev)
	if err != nil {
		return "failed", err
	}

	if err := d.persist(ctx, ev.ConversationKey, out); err != nil {
		if out.Action != conversation.ActionDelete {
			return out.Label, err
		}

		// The ledger already holds the entry.
		d.log.Error("failed to clear completed conversation",
			slog.String("conversation", ev.ConversationKey),
			slog.String("label", out.Label),
			slog.Any("error", err),
		)
		d.deliver(ctx, ev, out.Effects)
		return out.Label, err
	}

	d.deliver(ctx, ev, out.Effects)
	return out.Label, nil
}

func (d *Dispatcher) persist(ctx context.Context, key string, out conversation.Outcome) error {
	switch out.Action {
	case conversation.ActionSave:
		if err := d.storage.SetState(ctx, key, out.State); err != nil {
			return apperrors.NewStorageError(fmt.Errorf("save state: %w", err))
		}
	case conversation.ActionDelete:
		if err := d.storage.ClearState(ctx, key); err != nil {
			return apperrors.NewStorageError(fmt.Errorf("clear state: %w", err))
		}
	}

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev conversation.Event, effects []conversation.Effect) {
	for i, effect := range effects {
		var err error
		switch effect.Kind {
		case conversation.EffectAck:
			if ev.CallbackID == "" {
				continue
			}
			err = d.notifier.AnswerCallback(ctx, ev.CallbackID, effect.Text)
		case conversation.EffectChoices:
			err = d.notifier.SendChoices(ctx, ev.ChatID, effect.Text, effect.Choices)
		default:
			err = d.notifier.SendText(ctx, ev.ChatID, effect.Text, TextOptions{
				Markdown: effect.Markdown,
				Keyboard: effect.Keyboard,
			})
		}

		if err != nil {
			d.log.Error("failed to deliver reply",
				slog.String("conversation", ev.ConversationKey),
				slog.Int("effect", i),
				slog.Any("error", err),
			)
		}
	}
}
