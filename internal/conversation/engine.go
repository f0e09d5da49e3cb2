package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
	"github.com/Proton-105/ledger-bot/internal/ledger"
	"github.com/Proton-105/ledger-bot/internal/state"
)

const dateLayout = "2006-01-02"

// Enqueuer hands a failed submission to background retry.
type Enqueuer interface {
	EnqueueSubmission(ctx context.Context, record ledger.Record) error
}

// Engine classifies events and drives the step machine. It holds no per-conversation data.
type Engine struct {
	backend  ledger.Backend
	renderer *Renderer
	outbox   Enqueuer
	mode     state.Mode
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithMode selects how strictly the status choice is gated.
func WithMode(mode state.Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithLocation sets the timezone for entry dates and the monthly period.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOutbox queues failed submissions instead of dropping them.
func WithOutbox(outbox Enqueuer) Option {
	return func(e *Engine) {
		e.outbox = outbox
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine builds an Engine that stores entries in backend and replies through renderer.
func NewEngine(backend ledger.Backend, renderer *Renderer, opts ...Option) *Engine {
	e := &Engine{
		backend:  backend,
		renderer: renderer,
		mode:     state.ModePermissive,
		loc:      time.UTC,
		now:      time.Now,
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Handle computes the outcome of ev for a conversation whose stored record is current.
// A nil current is the same as a record at StepUnset. current is never mutated.
func (e *Engine) Handle(ctx context.Context, current *state.ConversationState, ev Event) (Outcome, error) {
	switch ev.Kind {
	case EventCallback:
		return e.handleCallback(ctx, current, ev)
	case EventText:
		return e.handleText(ctx, current, ev)
	default:
		return Outcome{Label: "ignored"}, nil
	}
}

func (e *Engine) handleCallback(ctx context.Context, current *state.ConversationState, ev Event) (Outcome, error) {
	label, ok := parseStatusCallback(ev.Data)
	if !ok {
		return Outcome{Label: "callback_ignored", Effects: []Effect{ack("")}}, nil
	}

	status, ok := state.ParseStatus(label)
	if !ok {
		e.log.Info("unknown status label ignored", slog.String("conversation", ev.ConversationKey), slog.String("label", label))
		return Outcome{Label: "status_unknown", Effects: []Effect{ack("")}}, nil
	}

	machine := state.NewMachine(current.Clone(), e.mode)
	if !machine.CanFire(ctx, state.TriggerChooseStatus) {
		return Outcome{Label: "status_out_of_turn", Effects: []Effect{ack("")}}, nil
	}

	if err := machine.ChooseStatus(ctx, status, e.today()); err != nil {
		return Outcome{}, transitionError(err)
	}

	params := map[string]string{"Status": string(status)}
	return Outcome{
		Action: ActionSave,
		State:  machine.State(),
		Label:  "status",
		Effects: []Effect{
			ack(e.renderer.tr.Format("status.ack", params)),
			textEffect(e.renderer.tr.Format("status.echo", params)),
			textEffect(e.renderer.T("prompt.amount")),
		},
	}, nil
}

func (e *Engine) handleText(ctx context.Context, current *state.ConversationState, ev Event) (Outcome, error) {
	if cmd, ok := ParseCommand(ev.Text); ok {
		switch cmd {
		case CommandInput:
			return e.restart(ctx, current)
		case CommandStart, CommandHelp:
			return e.greet(cmd), nil
		case CommandTotal:
			return e.monthlyTotal(ctx)
		case CommandCancel:
			return e.cancel(current), nil
		}
	}

	step := state.StepUnset
	if current != nil {
		step = current.Step
	}

	switch step {
	case state.StepAwaitingActivity:
		return e.describeActivity(ctx, current, ev.Text)
	case state.StepAwaitingAmount:
		return e.commitAmount(ctx, current, ev)
	default:
		return Outcome{Label: "ignored"}, nil
	}
}

func (e *Engine) restart(ctx context.Context, current *state.ConversationState) (Outcome, error) {
	machine := state.NewMachine(current.Clone(), e.mode)
	if err := machine.Restart(ctx); err != nil {
		return Outcome{}, transitionError(err)
	}

	return Outcome{
		Action:  ActionSave,
		State:   machine.State(),
		Label:   "input",
		Effects: []Effect{textEffect(e.renderer.T("prompt.activity"))},
	}, nil
}

func (e *Engine) greet(cmd Command) Outcome {
	key := "start"
	if cmd == CommandHelp {
		key = "help"
	}

	return Outcome{
		Label: string(cmd),
		Effects: []Effect{{
			Kind:     EffectMessage,
			Text:     e.renderer.T(key),
			Keyboard: e.renderer.Keyboard(),
		}},
	}
}

func (e *Engine) monthlyTotal(ctx context.Context) (Outcome, error) {
	now := e.now().In(e.loc)

	total, err := e.backend.Total(ctx, ledger.PeriodKey(now))
	if err != nil {
		return Outcome{}, apperrors.NewExternalAPIError("ledger", err)
	}

	return Outcome{
		Label: "total",
		Effects: []Effect{{
			Kind:     EffectMessage,
			Text:     e.renderer.MonthlyTotal(now, total),
			Markdown: true,
		}},
	}, nil
}

func (e *Engine) cancel(current *state.ConversationState) Outcome {
	if current == nil || current.Step == state.StepUnset {
		return Outcome{Label: "cancel", Effects: []Effect{textEffect(e.renderer.T("cancel.idle"))}}
	}

	return Outcome{
		Action:  ActionDelete,
		Label:   "cancel",
		Effects: []Effect{textEffect(e.renderer.T("cancel.done"))},
	}
}

func (e *Engine) describeActivity(ctx context.Context, current *state.ConversationState, text string) (Outcome, error) {
	machine := state.NewMachine(current.Clone(), e.mode)
	if err := machine.DescribeActivity(ctx, text); err != nil {
		return Outcome{}, transitionError(err)
	}

	return Outcome{
		Action: ActionSave,
		State:  machine.State(),
		Label:  "activity",
		Effects: []Effect{{
			Kind:    EffectChoices,
			Text:    e.renderer.T("prompt.status"),
			Choices: e.renderer.StatusChoices(),
		}},
	}, nil
}

func (e *Engine) commitAmount(ctx context.Context, current *state.ConversationState, ev Event) (Outcome, error) {
	amount, ok := ParseAmount(ev.Text)
	if !ok {
		return Outcome{
			Label:   "amount_invalid",
			Effects: []Effect{textEffect(e.renderer.T("amount.invalid"))},
		}, nil
	}

	machine := state.NewMachine(current.Clone(), e.mode)
	if err := machine.CommitAmount(ctx, amount); err != nil {
		return Outcome{}, transitionError(err)
	}

	entry := machine.State()
	record := ledger.Record{
		Activity: entry.Activity,
		Status:   string(entry.Status),
		Date:     entry.Date,
		Amount:   amount,
	}

	log := e.log.With(slog.String("conversation", ev.ConversationKey), slog.String("date", record.Date))

	err := e.backend.Submit(ctx, record)
	if err == nil {
		log.Info("expense recorded", slog.String("status", record.Status))
		return Outcome{
			Action:  ActionDelete,
			Label:   "commit",
			Effects: []Effect{textEffect(e.renderer.Summary(entry))},
		}, nil
	}

	log.Warn("expense submission failed", slog.Any("error", err))

	reply := e.renderer.T("submit.failed")
	if e.outbox != nil {
		if qerr := e.outbox.EnqueueSubmission(ctx, record); qerr != nil {
			log.Error("expense submission could not be queued", slog.Any("error", qerr))
		} else {
			reply = e.renderer.T("submit.queued")
		}
	}

	return Outcome{
		Action:  ActionDelete,
		Label:   "commit_failed",
		Effects: []Effect{textEffect(reply)},
	}, nil
}

func (e *Engine) today() string {
	return e.now().In(e.loc).Format(dateLayout)
}

func transitionError(err error) error {
	if errors.Is(err, state.ErrInvalidTransition) {
		return apperrors.NewStateError(err.Error())
	}
	return fmt.Errorf("advance conversation: %w", err)
}
