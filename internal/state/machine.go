package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
)

// ErrInvalidTransition indicates that a trigger is not permitted from the current step.
var ErrInvalidTransition = errors.New("invalid state transition")

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe step transitions.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}

// Machine drives the step graph over a single ConversationState.
// It is built per event and never shared between conversations.
type Machine struct {
	sm    *stateless.StateMachine
	state *ConversationState
}

// NewMachine binds a step machine to st, which it mutates in place.
// A step outside the graph is treated as StepUnset so restarts and status choices still apply.
func NewMachine(st *ConversationState, mode Mode) *Machine {
	if st == nil {
		st = &ConversationState{}
	}
	if !st.Step.Known() {
		st.Step = StepUnset
	}

	get := func(context.Context) (stateless.State, error) { return st.Step, nil }
	set := func(_ context.Context, s stateless.State) error {
		step, ok := s.(Step)
		if !ok {
			return fmt.Errorf("unexpected state type %T", s)
		}
		st.Step = step
		return nil
	}

	sm := stateless.NewStateMachineWithExternalStorage(get, set, stateless.FiringImmediate)
	configure(sm, st, mode)

	return &Machine{sm: sm, state: st}
}

// State returns the record the machine mutates.
func (m *Machine) State() *ConversationState {
	return m.state
}

// CanFire reports whether trigger is permitted from the current step.
func (m *Machine) CanFire(ctx context.Context, trigger Trigger) bool {
	ok, err := m.sm.CanFireCtx(ctx, trigger)
	return err == nil && ok
}

// Restart overwrites the record with a fresh entry awaiting the activity.
func (m *Machine) Restart(ctx context.Context) error {
	return m.fire(ctx, TriggerRestart)
}

// DescribeActivity records the activity and moves on to the status choice.
func (m *Machine) DescribeActivity(ctx context.Context, activity string) error {
	return m.fire(ctx, TriggerDescribe, activity)
}

// ChooseStatus records the status and the entry date and moves on to the amount.
func (m *Machine) ChooseStatus(ctx context.Context, status Status, date string) error {
	return m.fire(ctx, TriggerChooseStatus, status, date)
}

// CommitAmount records the amount and completes the entry.
func (m *Machine) CommitAmount(ctx context.Context, amount int64) error {
	return m.fire(ctx, TriggerCommitAmount, amount)
}

func (m *Machine) fire(ctx context.Context, trigger Trigger, args ...any) error {
	if !m.CanFire(ctx, trigger) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.state.Step)
	}

	if err := m.sm.FireCtx(ctx, trigger, args...); err != nil {
		return fmt.Errorf("fire %s: %w", trigger, err)
	}

	return nil
}

// Graph renders the step graph for mode in DOT format.
func Graph(mode Mode) string {
	return NewMachine(&ConversationState{}, mode).sm.ToGraph()
}
