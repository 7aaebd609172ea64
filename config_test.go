package statetab

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timerMachine(t *testing.T, nbStates, nbEvents int, opts ...Option[tState, tEvent, string]) *Machine[tState, tEvent, string] {
	t.Helper()
	h := NewLoopHandler[tState, tEvent, string](0)
	opts = append(opts, WithHandler[tState, tEvent, string](h))
	return newMachine(t, nbStates, nbEvents, opts...)
}

func TestAssignTransition(t *testing.T) {
	m := newMachine(t, 3, 2)
	require.NoError(t, m.AssignTransition(0, 1, 2))

	to, ok := m.TransitionTarget(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 2, to)

	// indices are range-checked
	assert.True(t, IsConfigError(m.AssignTransition(3, 1, 2)))
	assert.True(t, IsConfigError(m.AssignTransition(0, 2, 2)))
	assert.True(t, IsConfigError(m.AssignTransition(0, 1, 3)))
	assert.True(t, IsConfigError(m.AssignTransition(-1, 0, 0)))
}

func TestAssignTransition_RejectedOnPassState(t *testing.T) {
	m := newMachine(t, 3, 1)
	require.NoError(t, m.AssignPassTransition(0, 1))
	err := m.AssignTransition(0, 0, 2)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "pass-state")
}

func TestAssignTransitionAlways(t *testing.T) {
	m := newMachine(t, 4, 2)
	require.NoError(t, m.AssignPassTransition(3, 0))
	require.NoError(t, m.AssignTransitionAlways(1, 2))

	for s := 0; s < 3; s++ {
		to, ok := m.TransitionTarget(1, s)
		assert.True(t, ok, "state %d", s)
		assert.Equal(t, 2, to)
	}
	// the pass-state is skipped
	_, ok := m.TransitionTarget(1, 3)
	assert.False(t, ok)
}

func TestAssignPassTransition(t *testing.T) {
	m := newMachine(t, 3, 1)
	require.NoError(t, m.AssignPassTransition(1, 2))

	to, ok := m.PassTarget(1)
	assert.True(t, ok)
	assert.Equal(t, 2, to)

	// a pass-state to itself is rejected outright
	err := m.AssignPassTransition(2, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot lead to itself")
}

func TestAssignPassTransition_ClearsTimeoutWithWarning(t *testing.T) {
	var buf bytes.Buffer
	m := timerMachine(t, 3, 1, bufLogger(&buf))
	require.NoError(t, m.AssignTimeoutUnit(1, 100, UnitMS, 2))
	require.NoError(t, m.AssignPassTransition(1, 2))

	_, _, _, ok := m.TimeoutTarget(1)
	assert.False(t, ok, "timeout must be cleared")
	assert.Contains(t, buf.String(), "clears existing timeout")
}

func TestAssignPassTransition_ClearsInnerWithWarning(t *testing.T) {
	var buf bytes.Buffer
	m := newMachine(t, 3, 1, bufLogger(&buf))
	require.NoError(t, m.AssignInnerTransition(1, 0, 2))
	require.NoError(t, m.AssignPassTransition(1, 2))

	assert.Empty(t, m.InnerTargets(1))
	assert.Contains(t, buf.String(), "clears inner transitions")
}

func TestAssignInnerTransition(t *testing.T) {
	m := newMachine(t, 3, 2)
	require.NoError(t, m.AssignInnerTransition(0, 1, 2))

	assert.Equal(t, [][2]int{{1, 2}}, m.InnerTargets(0))
	// the external table entry is updated alongside
	to, ok := m.TransitionTarget(1, 0)
	assert.True(t, ok)
	assert.Equal(t, 2, to)

	// one inner transition per event and state
	err := m.AssignInnerTransition(0, 1, 1)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	// pass-states carry no inner transitions
	require.NoError(t, m.AssignPassTransition(1, 0))
	assert.True(t, IsConfigError(m.AssignInnerTransition(1, 0, 2)))
}

func TestAssignInnerTransitionAlways(t *testing.T) {
	m := newMachine(t, 4, 2)
	require.NoError(t, m.AssignPassTransition(1, 0))
	require.NoError(t, m.AssignInnerTransitionAlways(0, 3))

	assert.Equal(t, [][2]int{{0, 3}}, m.InnerTargets(0))
	assert.Empty(t, m.InnerTargets(1), "pass-state skipped")
	assert.Equal(t, [][2]int{{0, 3}}, m.InnerTargets(2))
	assert.Empty(t, m.InnerTargets(3), "destination skipped")

	// repeating the broadcast adds nothing
	require.NoError(t, m.AssignInnerTransitionAlways(0, 3))
	assert.Len(t, m.InnerTargets(0), 1)
}

func TestDisableInnerTransition(t *testing.T) {
	m := newMachine(t, 3, 2)
	require.NoError(t, m.AssignInnerTransition(0, 1, 2))
	require.NoError(t, m.DisableInnerTransition(1, 0))

	assert.Empty(t, m.InnerTargets(0))
	_, ok := m.TransitionTarget(1, 0)
	assert.False(t, ok, "allow-mask entry cleared")

	err := m.DisableInnerTransition(1, 0)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestAllowEvent(t *testing.T) {
	m := newMachine(t, 2, 2)
	require.NoError(t, m.AssignTransition(0, 0, 1))
	require.NoError(t, m.AllowEvent(0, 0, false))
	_, ok := m.TransitionTarget(0, 0)
	assert.False(t, ok)

	require.NoError(t, m.AllowEvent(0, 0, true))
	_, ok = m.TransitionTarget(0, 0)
	assert.True(t, ok)

	// forbidden on inner-transition entries
	require.NoError(t, m.AssignInnerTransition(1, 1, 0))
	err := m.AllowEvent(1, 1, false)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestAllowAllEvents(t *testing.T) {
	m := newMachine(t, 3, 2)
	require.NoError(t, m.AllowAllEvents())
	for e := 0; e < 2; e++ {
		for s := 0; s < 3; s++ {
			_, ok := m.TransitionTarget(e, s)
			assert.True(t, ok)
		}
	}
}

func TestAssignTimeout_RequiresTimerSupport(t *testing.T) {
	m := newMachine(t, 2, 0)
	err := m.AssignTimeout(0, 5, 1)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "timer support")

	assert.True(t, IsConfigError(m.AssignGlobalTimeout(5, 1)))
	assert.True(t, IsConfigError(m.SetDefaultTimerUnit(UnitMS)))
}

func TestAssignTimeout(t *testing.T) {
	m := timerMachine(t, 3, 0)
	require.NoError(t, m.SetDefaultTimerUnitString("ms"))
	require.NoError(t, m.AssignTimeout(0, 200, 1))

	next, dur, unit, ok := m.TimeoutTarget(0)
	assert.True(t, ok)
	assert.Equal(t, 1, next)
	assert.Equal(t, uint64(200), dur)
	assert.Equal(t, "ms", unit)

	// a pass-state cannot also carry a timeout
	require.NoError(t, m.AssignPassTransition(2, 0))
	assert.True(t, IsConfigError(m.AssignTimeout(2, 10, 1)))
}

func TestAssignTimeoutString_InvalidUnit(t *testing.T) {
	m := timerMachine(t, 2, 0)
	err := m.AssignTimeoutString(0, 5, "hours", 1)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestAssignGlobalTimeout(t *testing.T) {
	m := timerMachine(t, 4, 0)
	require.NoError(t, m.AssignGlobalTimeoutUnit(500, UnitMS, 3))

	for s := 0; s < 3; s++ {
		next, dur, _, ok := m.TimeoutTarget(s)
		assert.True(t, ok, "state %d", s)
		assert.Equal(t, 3, next)
		assert.Equal(t, uint64(500), dur)
	}
	_, _, _, ok := m.TimeoutTarget(3)
	assert.False(t, ok, "final state gets no timeout")
}

func TestAssignGlobalTimeout_ConflictNamesState(t *testing.T) {
	m := timerMachine(t, 4, 0)
	require.NoError(t, m.AssignTimeoutUnit(1, 100, UnitMS, 3))

	err := m.AssignGlobalTimeoutUnit(500, UnitMS, 3)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "St-1")

	// nothing was assigned by the failed call
	_, _, _, ok := m.TimeoutTarget(0)
	assert.False(t, ok)
}

func TestClearTimeout(t *testing.T) {
	var buf bytes.Buffer
	m := timerMachine(t, 3, 0, bufLogger(&buf))
	require.NoError(t, m.AssignTimeoutUnit(1, 100, UnitMS, 2))

	require.NoError(t, m.ClearTimeout(1))
	_, _, _, ok := m.TimeoutTarget(1)
	assert.False(t, ok)
	assert.Zero(t, strings.Count(buf.String(), "no timeout to clear"))

	// clearing again warns exactly once
	require.NoError(t, m.ClearTimeout(1))
	assert.Equal(t, 1, strings.Count(buf.String(), "no timeout to clear"))
}

func TestClearTimeouts(t *testing.T) {
	m := timerMachine(t, 3, 0)
	require.NoError(t, m.AssignGlobalTimeoutUnit(100, UnitMS, 2))
	require.NoError(t, m.ClearTimeouts())
	for s := 0; s < 3; s++ {
		_, _, _, ok := m.TimeoutTarget(s)
		assert.False(t, ok)
	}
}

func TestCallbacks(t *testing.T) {
	m := newMachine(t, 3, 1)
	var got []string
	cb := func(arg string) { got = append(got, arg) }
	require.NoError(t, m.AssignCallback(0, cb, "zero"))
	require.NoError(t, m.AssignTransition(0, 0, 1))
	require.NoError(t, m.AssignCallback(1, cb, "one"))

	require.NoError(t, m.Start())
	require.NoError(t, m.ProcessEvent(0))
	assert.Equal(t, []string{"zero", "one"}, got)
}

func TestAssignCallbackArg(t *testing.T) {
	m := newMachine(t, 2, 1)
	var got string
	require.NoError(t, m.AssignCallback(0, func(arg string) { got = arg }, "before"))
	require.NoError(t, m.AssignCallbackArg(0, "after"))
	require.NoError(t, m.Start())
	assert.Equal(t, "after", got)
}

func TestAssignGlobalCallback(t *testing.T) {
	m := newMachine(t, 3, 2)
	var calls int
	require.NoError(t, m.AssignGlobalCallback(func(string) { calls++ }))
	require.NoError(t, m.AssignTransition(0, 0, 1))
	require.NoError(t, m.AssignTransition(1, 1, 2))

	require.NoError(t, m.Start())
	require.NoError(t, m.ProcessEvent(0))
	require.NoError(t, m.ProcessEvent(1))
	assert.Equal(t, 3, calls)
}

func TestAssignCallbackArgStrings(t *testing.T) {
	m := newMachine(t, 2, 1)
	require.NoError(t, m.AssignStateStrings(map[tState]string{0: "idle", 1: "busy"}))
	var got string
	require.NoError(t, m.AssignCallback(0, func(arg string) { got = arg }, ""))
	require.NoError(t, m.AssignCallbackArgStrings())
	require.NoError(t, m.Start())
	assert.Equal(t, "idle", got)
}

func TestAssignCallbackArgStrings_NonStringWarns(t *testing.T) {
	var buf bytes.Buffer
	m, err := New[tState, tEvent, int](2, 0, WithLogger[tState, tEvent, int](log.New(&buf)))
	require.NoError(t, err)
	require.NoError(t, m.AssignCallbackArgStrings())
	assert.Contains(t, buf.String(), "not string")
}

func TestAssignStrings(t *testing.T) {
	m := newMachine(t, 2, 1)
	require.NoError(t, m.AssignStateString(0, "idle"))
	require.NoError(t, m.AssignEventString(0, "kick"))
	assert.Equal(t, "idle", m.StateString(0))
	assert.Equal(t, "kick", m.EventString(0))

	assert.True(t, IsConfigError(m.AssignStateString(2, "x")))
	assert.True(t, IsConfigError(m.AssignEventString(1, "x")))
}

func TestAssignMatrices(t *testing.T) {
	m := newMachine(t, 3, 2)
	require.NoError(t, m.AssignTransitionMatrix([][]tState{
		{1, 2, 0},
		{2, 2, 2},
	}))
	require.NoError(t, m.AssignEventMatrix([][]bool{
		{true, false, true},
		{false, true, false},
	}))

	to, ok := m.TransitionTarget(0, 0)
	assert.True(t, ok)
	assert.Equal(t, 1, to)
	_, ok = m.TransitionTarget(0, 1)
	assert.False(t, ok)

	// dimension and range violations
	assert.True(t, IsConfigError(m.AssignTransitionMatrix([][]tState{{0, 0, 0}})))
	assert.True(t, IsConfigError(m.AssignTransitionMatrix([][]tState{{0, 0}, {0, 0}})))
	assert.True(t, IsConfigError(m.AssignTransitionMatrix([][]tState{{0, 0, 3}, {0, 0, 0}})))
	assert.True(t, IsConfigError(m.AssignEventMatrix([][]bool{{true}})))
}

func TestSetDefaultTimerUnit(t *testing.T) {
	m := timerMachine(t, 2, 0)
	require.NoError(t, m.SetDefaultTimerUnit(UnitMin))
	require.NoError(t, m.AssignTimeout(0, 2, 1))
	_, dur, unit, ok := m.TimeoutTarget(0)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), dur)
	assert.Equal(t, "min", unit)

	assert.True(t, IsConfigError(m.SetDefaultTimerUnit(DurationUnit(9))))
	assert.True(t, IsConfigError(m.SetDefaultTimerUnitString("fortnight")))
}
