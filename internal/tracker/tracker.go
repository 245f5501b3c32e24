// Package tracker reconstructs per-actor state from an ordered event stream.
package tracker

import (
	"sort"

	"github.com/roach88/philoprobe/internal/event"
)

// MaxResources is the number of forks an actor needs to eat.
const MaxResources = 2

// ActorState is the reconstructed state of one actor.
type ActorState struct {
	ID            int        `json:"id"`
	Kind          event.Kind `json:"kind"`
	ResourcesHeld int        `json:"resources_held"`
	MealsEaten    int        `json:"meals_eaten"`
	LastChangeMS  uint64     `json:"last_change_ms"`
	LastMealMS    uint64     `json:"last_meal_ms"`
	Alive         bool       `json:"alive"`

	// EventsAfterDeath counts events seen for this actor after it died.
	// A correct simulator never produces any.
	EventsAfterDeath int `json:"events_after_death"`
}

// Tracker applies events to a map of actor states.
//
// Tracker is not safe for concurrent use; the collector serialises access.
type Tracker struct {
	actors map[int]*ActorState
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{actors: make(map[int]*ActorState)}
}

// Apply updates the state of the actor named by e.
//
// Unknown actor ids get a fresh entry. No deduplication is performed: a
// duplicated line is counted twice.
func (t *Tracker) Apply(e event.Event) {
	st, ok := t.actors[e.ActorID]
	if !ok {
		st = &ActorState{ID: e.ActorID, Kind: event.KindThinking, Alive: true}
		t.actors[e.ActorID] = st
	}

	if !st.Alive {
		st.EventsAfterDeath++
	}
	st.LastChangeMS = e.TimestampMS

	switch e.Kind {
	case event.KindTookResource:
		st.Kind = e.Kind
		if st.ResourcesHeld < MaxResources {
			st.ResourcesHeld++
		}
	case event.KindEating:
		st.Kind = e.Kind
		st.MealsEaten++
		st.LastMealMS = e.TimestampMS
	case event.KindSleeping:
		st.Kind = e.Kind
		st.ResourcesHeld = 0
	case event.KindThinking:
		st.Kind = e.Kind
	case event.KindDied:
		st.Kind = e.Kind
		st.Alive = false
	case event.KindCustom:
		// Only the change time moves.
	}
}

// Len returns the number of actors seen so far.
func (t *Tracker) Len() int {
	return len(t.actors)
}

// Snapshot returns a copy of every actor state, keyed by actor id.
func (t *Tracker) Snapshot() map[int]ActorState {
	out := make(map[int]ActorState, len(t.actors))
	for id, st := range t.actors {
		out[id] = *st
	}
	return out
}

// Replay builds actor states from scratch by applying events in order.
func Replay(events []event.Event) map[int]ActorState {
	t := New()
	for _, e := range events {
		t.Apply(e)
	}
	return t.Snapshot()
}

// SortedIDs returns the keys of states in ascending order.
func SortedIDs(states map[int]ActorState) []int {
	ids := make([]int, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
