package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougalf/lolat/internal/timeutil"
)

var epoch = time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC)

func TestFakeBoard_ModeRequired(t *testing.T) {
	b := NewFakeBoard(timeutil.NewMockClock(epoch))
	assert.True(t, errors.Is(b.Setup(7, Out), ErrModeNotSet))
	assert.Error(t, b.SetMode(ModeUnknown))
}

func TestFakeBoard_Directions(t *testing.T) {
	b := NewFakeBoard(timeutil.NewMockClock(epoch))
	require.NoError(t, b.SetMode(ModeBoard))
	require.NoError(t, b.Setup(7, Out))
	require.NoError(t, b.Setup(11, In))

	_, err := b.Input(7)
	assert.True(t, errors.Is(err, ErrWrongDirection))
	assert.True(t, errors.Is(b.Output(11, High), ErrWrongDirection))
	assert.True(t, errors.Is(b.Setup(1, In), ErrInvalidPin))
	assert.Equal(t, []Pin{4, 17}, b.ConfiguredPins())
}

func TestFakeBoard_InputAdvancesMockClock(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	b := NewFakeBoard(clock)
	b.ReadTick = 5 * time.Microsecond
	require.NoError(t, b.SetMode(ModeBCM))
	require.NoError(t, b.Setup(17, In))

	for i := 0; i < 4; i++ {
		_, err := b.Input(17)
		require.NoError(t, err)
	}
	assert.Equal(t, 20*time.Microsecond, clock.Since(epoch))
}

func TestFakeBoard_SchedulePulse(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	b := NewFakeBoard(clock)
	require.NoError(t, b.SetMode(ModeBCM))
	require.NoError(t, b.Setup(17, In))
	require.NoError(t, b.SchedulePulse(17, epoch.Add(10*time.Microsecond), 5*time.Microsecond))

	var highs []int
	for i := 1; i <= 20; i++ {
		l, err := b.Input(17)
		require.NoError(t, err)
		if l == High {
			highs = append(highs, i)
		}
	}
	assert.Equal(t, []int{10, 11, 12, 13, 14}, highs)
}

func TestFakeBoard_Callbacks(t *testing.T) {
	b := NewFakeBoard(timeutil.NewMockClock(epoch))
	require.NoError(t, b.SetMode(ModeBoard))
	require.NoError(t, b.Setup(7, Out))
	require.NoError(t, b.Setup(11, In))

	var events []string
	require.NoError(t, b.AddEdgeCallback(7, Falling, func() { events = append(events, "trigger fell") }))
	require.NoError(t, b.AddEdgeCallback(11, Rising, func() { events = append(events, "echo rose") }))
	assert.Equal(t, 2, b.Callbacks())

	require.NoError(t, b.Output(7, High))
	require.NoError(t, b.Output(7, Low))
	require.NoError(t, b.Output(7, Low)) // no transition
	require.NoError(t, b.SimulateInput(11, High))
	require.NoError(t, b.SimulateInput(11, High))

	assert.Equal(t, []string{"trigger fell", "echo rose"}, events)

	// re-running setup on a pin discards its callbacks
	require.NoError(t, b.Setup(7, Out))
	assert.Equal(t, 1, b.Callbacks())
}

func TestFakeBoard_CallbackMayUseBoard(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	b := NewFakeBoard(clock)
	require.NoError(t, b.SetMode(ModeBCM))
	require.NoError(t, b.Setup(4, Out))
	require.NoError(t, b.Setup(17, In))
	require.NoError(t, b.AddEdgeCallback(4, Falling, func() {
		_ = b.SchedulePulse(17, clock.Now(), time.Millisecond)
	}))

	require.NoError(t, b.Output(4, High))
	require.NoError(t, b.Output(4, Low))
	l, err := b.Input(17)
	require.NoError(t, err)
	assert.Equal(t, High, l)
}

func TestFakeBoard_WireEcho(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	b := NewFakeBoard(clock)
	b.WireEcho(4, 17, 100*time.Microsecond, func() time.Duration { return 3 * time.Microsecond })

	require.NoError(t, b.SetMode(ModeBoard))
	require.NoError(t, b.Setup(7, Out))
	require.NoError(t, b.Setup(11, In))
	require.NoError(t, b.Output(7, High))
	require.NoError(t, b.Output(7, Low))

	var highs int
	for i := 0; i < 200; i++ {
		l, err := b.Input(11)
		require.NoError(t, err)
		if l == High {
			highs++
		}
	}
	assert.Equal(t, 3, highs)
}

func TestFakeBoard_Cleanup(t *testing.T) {
	b := NewFakeBoard(timeutil.NewMockClock(epoch))
	require.NoError(t, b.SetMode(ModeBoard))
	require.NoError(t, b.Setup(7, Out))
	require.NoError(t, b.AddEdgeCallback(7, Rising, func() {}))

	require.NoError(t, b.Cleanup())
	assert.Equal(t, ModeUnknown, b.Mode())
	assert.Empty(t, b.ConfiguredPins())
	assert.Zero(t, b.Callbacks())
	assert.Equal(t, 1, b.Cleanups())
}
