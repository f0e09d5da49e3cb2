package state

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_Restart(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		current *ConversationState
	}{
		{name: "no record", current: nil},
		{name: "awaiting activity", current: &ConversationState{Step: StepAwaitingActivity}},
		{name: "awaiting status", current: &ConversationState{Step: StepAwaitingStatus, Activity: "Parkir"}},
		{
			name: "awaiting amount",
			current: &ConversationState{
				Step: StepAwaitingAmount, Activity: "Parkir", Status: StatusWorldly, Date: "2024-06-15",
			},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			st := tc.current.Clone()
			m := NewMachine(st, ModePermissive)

			require.NoError(t, m.Restart(ctx))
			assert.Equal(t, &ConversationState{Step: StepAwaitingActivity}, m.State())
		})
	}
}

func TestMachine_UnknownStepActsAsUnset(t *testing.T) {
	ctx := context.Background()

	for _, step := range []Step{3, 5, -1} {
		m := NewMachine(&ConversationState{Step: step, Activity: "old"}, ModePermissive)
		assert.Equal(t, StepUnset, m.State().Step, "from %d", int(step))
		assert.True(t, m.CanFire(ctx, TriggerRestart), "from %d", int(step))
		assert.True(t, m.CanFire(ctx, TriggerChooseStatus), "from %d", int(step))

		require.NoError(t, m.Restart(ctx))
		assert.Equal(t, &ConversationState{Step: StepAwaitingActivity}, m.State())
	}
}

func TestMachine_DescribeActivity(t *testing.T) {
	ctx := context.Background()

	m := NewMachine(&ConversationState{Step: StepAwaitingActivity}, ModePermissive)
	require.NoError(t, m.DescribeActivity(ctx, "Makan siang"))

	assert.Equal(t, StepAwaitingStatus, m.State().Step)
	assert.Equal(t, "Makan siang", m.State().Activity)

	for _, step := range []Step{StepUnset, StepAwaitingStatus, StepAwaitingAmount} {
		m := NewMachine(&ConversationState{Step: step}, ModePermissive)
		err := m.DescribeActivity(ctx, "x")
		assert.ErrorIs(t, err, ErrInvalidTransition, "from %s", step)
		assert.Equal(t, step, m.State().Step)
	}
}

func TestMachine_ChooseStatus(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		mode    Mode
		from    Step
		allowed bool
	}{
		{name: "permissive from unset", mode: ModePermissive, from: StepUnset, allowed: true},
		{name: "permissive from awaiting activity", mode: ModePermissive, from: StepAwaitingActivity, allowed: true},
		{name: "permissive from awaiting status", mode: ModePermissive, from: StepAwaitingStatus, allowed: true},
		{name: "permissive from awaiting amount", mode: ModePermissive, from: StepAwaitingAmount, allowed: true},
		{name: "strict from unset", mode: ModeStrict, from: StepUnset, allowed: false},
		{name: "strict from awaiting activity", mode: ModeStrict, from: StepAwaitingActivity, allowed: false},
		{name: "strict from awaiting status", mode: ModeStrict, from: StepAwaitingStatus, allowed: true},
		{name: "strict from awaiting amount", mode: ModeStrict, from: StepAwaitingAmount, allowed: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			st := &ConversationState{Step: tc.from, Activity: "Zakat"}
			m := NewMachine(st, tc.mode)

			assert.Equal(t, tc.allowed, m.CanFire(ctx, TriggerChooseStatus))

			err := m.ChooseStatus(ctx, StatusObligatory, "2024-06-15")
			if !tc.allowed {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tc.from, st.Step)
				assert.Empty(t, st.Status)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StepAwaitingAmount, st.Step)
			assert.Equal(t, StatusObligatory, st.Status)
			assert.Equal(t, "2024-06-15", st.Date)
			assert.Equal(t, "Zakat", st.Activity)
		})
	}
}

func TestMachine_ChooseStatusTwiceOverwrites(t *testing.T) {
	ctx := context.Background()
	st := &ConversationState{Step: StepAwaitingStatus}
	m := NewMachine(st, ModePermissive)

	require.NoError(t, m.ChooseStatus(ctx, StatusObligatory, "2024-06-15"))
	require.NoError(t, m.ChooseStatus(ctx, StatusCharity, "2024-06-16"))

	assert.Equal(t, StepAwaitingAmount, st.Step)
	assert.Equal(t, StatusCharity, st.Status)
	assert.Equal(t, "2024-06-16", st.Date)
}

func TestMachine_CommitAmount(t *testing.T) {
	ctx := context.Background()
	st := &ConversationState{Step: StepAwaitingAmount, Activity: "Bensin", Status: StatusWorldly, Date: "2024-06-15"}
	m := NewMachine(st, ModePermissive)

	require.NoError(t, m.CommitAmount(ctx, 25000))

	assert.Equal(t, StepUnset, st.Step)
	require.NotNil(t, st.Amount)
	assert.Equal(t, int64(25000), *st.Amount)
	assert.Equal(t, "Bensin", st.Activity)

	for _, step := range []Step{StepUnset, StepAwaitingActivity, StepAwaitingStatus} {
		m := NewMachine(&ConversationState{Step: step}, ModePermissive)
		assert.ErrorIs(t, m.CommitAmount(ctx, 1), ErrInvalidTransition, "from %s", step)
	}
}

func TestMachine_RecordsTransitions(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	RegisterTransitionRecorder(func(from, to string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, from+"->"+to)
	})
	t.Cleanup(func() { RegisterTransitionRecorder(nil) })

	ctx := context.Background()
	st := &ConversationState{}
	m := NewMachine(st, ModePermissive)

	require.NoError(t, m.Restart(ctx))
	require.NoError(t, m.DescribeActivity(ctx, "Sedekah Jumat"))
	require.NoError(t, m.ChooseStatus(ctx, StatusCharity, "2024-06-14"))
	require.NoError(t, m.CommitAmount(ctx, 20000))

	assert.Equal(t, []string{
		"unset->awaiting_activity",
		"awaiting_activity->awaiting_status",
		"awaiting_status->awaiting_amount",
		"awaiting_amount->unset",
	}, seen)
}

func TestGraph(t *testing.T) {
	permissive := Graph(ModePermissive)
	strict := Graph(ModeStrict)

	for _, step := range Steps {
		assert.Contains(t, permissive, step.String())
	}
	assert.Contains(t, permissive, string(TriggerChooseStatus))
	assert.Greater(t, strings.Count(permissive, string(TriggerChooseStatus)), strings.Count(strict, string(TriggerChooseStatus)))
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePermissive, mode)

	mode, err = ParseMode("strict")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, mode)

	_, err = ParseMode("lenient")
	assert.Error(t, err)
}
