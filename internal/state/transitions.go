package state

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"
)

// Trigger is an input that may advance the step graph.
type Trigger string

const (
	TriggerRestart      Trigger = "restart"
	TriggerDescribe     Trigger = "describe_activity"
	TriggerChooseStatus Trigger = "choose_status"
	TriggerCommitAmount Trigger = "commit_amount"
)

// Mode selects how strictly the status choice is gated.
type Mode string

const (
	// ModePermissive accepts a status choice from any step, including no record.
	ModePermissive Mode = "permissive"
	// ModeStrict accepts a status choice only while awaiting it.
	ModeStrict Mode = "strict"
)

// ParseMode maps a config value to a Mode, defaulting to permissive.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModePermissive:
		return ModePermissive, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown transition mode %q", value)
	}
}

// configure declares the step graph on sm. Entry actions mutate st, which backs the machine.
func configure(sm *stateless.StateMachine, st *ConversationState, mode Mode) {
	for _, step := range Steps {
		cfg := sm.Configure(step)

		if step == StepAwaitingActivity {
			cfg.PermitReentry(TriggerRestart)
		} else {
			cfg.Permit(TriggerRestart, StepAwaitingActivity)
		}

		if mode == ModeStrict && step != StepAwaitingStatus {
			continue
		}
		if step == StepAwaitingAmount {
			cfg.PermitReentry(TriggerChooseStatus)
		} else {
			cfg.Permit(TriggerChooseStatus, StepAwaitingAmount)
		}
	}

	sm.Configure(StepAwaitingActivity).
		Permit(TriggerDescribe, StepAwaitingStatus).
		OnEntryFrom(TriggerRestart, func(_ context.Context, _ ...any) error {
			st.Activity = ""
			st.Status = ""
			st.Date = ""
			st.Amount = nil
			return nil
		})

	sm.Configure(StepAwaitingStatus).
		OnEntryFrom(TriggerDescribe, func(_ context.Context, args ...any) error {
			activity, err := argAt[string](args, 0)
			if err != nil {
				return err
			}
			st.Activity = activity
			return nil
		})

	sm.Configure(StepAwaitingAmount).
		Permit(TriggerCommitAmount, StepUnset).
		OnEntryFrom(TriggerChooseStatus, func(_ context.Context, args ...any) error {
			status, err := argAt[Status](args, 0)
			if err != nil {
				return err
			}
			date, err := argAt[string](args, 1)
			if err != nil {
				return err
			}
			st.Status = status
			st.Date = date
			return nil
		})

	sm.Configure(StepUnset).
		OnEntryFrom(TriggerCommitAmount, func(_ context.Context, args ...any) error {
			amount, err := argAt[int64](args, 0)
			if err != nil {
				return err
			}
			st.Amount = &amount
			return nil
		})

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		from, _ := t.Source.(Step)
		to, _ := t.Destination.(Step)
		transitionRecorder(from.String(), to.String())
	})
}

func argAt[T any](args []any, i int) (T, error) {
	var zero T
	if i >= len(args) {
		return zero, fmt.Errorf("missing trigger argument %d", i)
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("trigger argument %d has type %T, want %T", i, args[i], zero)
	}
	return v, nil
}
