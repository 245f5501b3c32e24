package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/philoprobe/internal/event"
)

func parseAll(t *testing.T, lines ...string) []event.Event {
	t.Helper()
	events := make([]event.Event, 0, len(lines))
	for _, line := range lines {
		e, ok := event.Parse(line)
		require.True(t, ok, "line %q must parse", line)
		events = append(events, e)
	}
	return events
}

func TestApply_FullCycle(t *testing.T) {
	tr := New()
	for _, e := range parseAll(t,
		"0 1 has taken a fork",
		"0 1 has taken a fork",
		"0 1 is eating",
		"200 1 is sleeping",
		"400 1 is thinking",
	) {
		tr.Apply(e)
	}

	st := tr.Snapshot()[1]
	assert.Equal(t, event.KindThinking, st.Kind)
	assert.Equal(t, 0, st.ResourcesHeld)
	assert.Equal(t, 1, st.MealsEaten)
	assert.Equal(t, uint64(400), st.LastChangeMS)
	assert.Equal(t, uint64(0), st.LastMealMS)
	assert.True(t, st.Alive)
}

func TestApply_ResourcesCapAtTwo(t *testing.T) {
	states := Replay(parseAll(t,
		"0 1 has taken a fork",
		"1 1 has taken a fork",
		"2 1 has taken a fork",
	))
	assert.Equal(t, MaxResources, states[1].ResourcesHeld)
}

func TestApply_DeathIsTerminal(t *testing.T) {
	states := Replay(parseAll(t,
		"0 2 has taken a fork",
		"310 2 died",
		"320 2 is eating",
	))

	st := states[2]
	assert.False(t, st.Alive)
	assert.Equal(t, 1, st.EventsAfterDeath)
	// The late meal is still counted; the violation is reported, not hidden.
	assert.Equal(t, 1, st.MealsEaten)
}

func TestApply_CustomOnlyMovesChangeTime(t *testing.T) {
	states := Replay(parseAll(t,
		"0 3 is eating",
		"50 3 is doing something odd",
	))
	assert.Equal(t, event.KindEating, states[3].Kind)
	assert.Equal(t, uint64(50), states[3].LastChangeMS)
}

func TestApply_LazyCreationAndNoDedup(t *testing.T) {
	tr := New()
	e := parseAll(t, "0 9 is eating")[0]
	tr.Apply(e)
	tr.Apply(e)

	require.Equal(t, 1, tr.Len())
	assert.Equal(t, 2, tr.Snapshot()[9].MealsEaten)
}

func TestSnapshot_IsCopy(t *testing.T) {
	tr := New()
	tr.Apply(parseAll(t, "0 1 is eating")[0])

	snap := tr.Snapshot()
	st := snap[1]
	st.MealsEaten = 100
	snap[1] = st

	assert.Equal(t, 1, tr.Snapshot()[1].MealsEaten)
}

func TestSortedIDs(t *testing.T) {
	states := Replay(parseAll(t, "0 3 is eating", "0 1 is eating", "0 2 is eating"))
	assert.Equal(t, []int{1, 2, 3}, SortedIDs(states))
}
