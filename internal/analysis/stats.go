package analysis

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/tracker"
)

// ActorStats summarises one actor over a run.
type ActorStats struct {
	ID       int     `json:"id"`
	Meals    int     `json:"meals"`
	SharePct float64 `json:"share_pct"`
	// AvgIntervalMS is the mean gap between consecutive meals; nil when the
	// actor ate fewer than two times.
	AvgIntervalMS *float64 `json:"avg_interval_ms,omitempty"`
	LastState     string   `json:"last_state"`
	Alive         bool     `json:"alive"`
}

// Stats is the per-run statistics report.
type Stats struct {
	MaxTimestampMS uint64       `json:"max_timestamp_ms"`
	TotalMeals     int          `json:"total_meals"`
	AverageMeals   float64      `json:"average_meals"`
	Actors         []ActorStats `json:"actors"`
}

// ComputeStats derives meal statistics from run.Events, ordered by actor id.
func ComputeStats(run *supervisor.RunResult) Stats {
	st := Stats{Actors: []ActorStats{}}

	mealTimes := make(map[int][]uint64)
	for _, e := range run.Events {
		if e.TimestampMS > st.MaxTimestampMS {
			st.MaxTimestampMS = e.TimestampMS
		}
		if e.Kind == event.KindEating {
			mealTimes[e.ActorID] = append(mealTimes[e.ActorID], e.TimestampMS)
			st.TotalMeals++
		}
	}

	actors := run.Actors
	if len(actors) == 0 && len(run.Events) > 0 {
		actors = tracker.Replay(run.Events)
	}
	if len(actors) > 0 {
		st.AverageMeals = float64(st.TotalMeals) / float64(len(actors))
	}

	for _, id := range tracker.SortedIDs(actors) {
		state := actors[id]
		times := mealTimes[id]
		as := ActorStats{
			ID:        id,
			Meals:     len(times),
			LastState: state.Kind.String(),
			Alive:     state.Alive,
		}
		if st.TotalMeals > 0 {
			as.SharePct = float64(as.Meals) / float64(st.TotalMeals) * 100
		}
		if len(times) > 1 {
			var sum uint64
			for i := 1; i < len(times); i++ {
				sum += absDiff(times[i], times[i-1])
			}
			avg := float64(sum) / float64(len(times)-1)
			as.AvgIntervalMS = &avg
		}
		st.Actors = append(st.Actors, as)
	}
	return st
}

// Verdicts of Diagnose.
const (
	VerdictOK         = "ok"
	VerdictDeadlock   = "deadlock"
	VerdictStarvation = "starvation"
)

// Diagnosis is the overall liveness judgement of a run.
type Diagnosis struct {
	Verdict string `json:"verdict"`
	Message string `json:"message"`
}

// Diagnose combines the deadlock and fairness checks for n actors. When n
// is not positive the number of observed actors is used.
func Diagnose(run *supervisor.RunResult, n int, th Thresholds) Diagnosis {
	if n <= 0 {
		n = len(run.Actors)
	}
	if n == 0 {
		return Diagnosis{Verdict: VerdictDeadlock, Message: "no actor produced any event"}
	}

	if dl := Deadlock(run, n); !dl.Passed {
		return Diagnosis{Verdict: VerdictDeadlock, Message: dl.Diagnostic}
	}
	if fr := Fairness(run, n, th); !fr.Passed {
		return Diagnosis{Verdict: VerdictStarvation, Message: fr.Diagnostic}
	}
	return Diagnosis{Verdict: VerdictOK, Message: "all actors ate with a fair meal distribution"}
}

// FormatStatsText writes the statistics table and diagnosis.
func FormatStatsText(w io.Writer, st Stats, d Diagnosis) {
	fmt.Fprintln(w, "Actor Statistics")
	fmt.Fprintln(w, strings.Repeat("=", 64))
	fmt.Fprintf(w, "Simulation time:  %d ms\n", st.MaxTimestampMS)
	fmt.Fprintf(w, "Total meals:      %d\n", st.TotalMeals)
	fmt.Fprintf(w, "Meals per actor:  %.2f\n", st.AverageMeals)
	fmt.Fprintln(w, "")

	fmt.Fprintf(w, "%-6s %-8s %-10s %-16s %s\n", "ID", "Meals", "Share %", "Avg interval", "Last state")
	fmt.Fprintln(w, strings.Repeat("-", 64))
	for _, a := range st.Actors {
		interval := "n/a"
		if a.AvgIntervalMS != nil {
			interval = fmt.Sprintf("%.2f ms", *a.AvgIntervalMS)
		}
		fmt.Fprintf(w, "%-6d %-8d %-10.2f %-16s %s\n", a.ID, a.Meals, a.SharePct, interval, a.LastState)
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Diagnosis: %s\n", d.Verdict)
	fmt.Fprintf(w, "  %s\n", d.Message)
}
