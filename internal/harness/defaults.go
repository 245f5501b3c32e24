package harness

import "github.com/roach88/philoprobe/internal/analysis"

// DefaultSuite returns the stock conformance suite for a dining philosophers
// simulator taking "<n> <die> <eat> <sleep> [meals]".
func DefaultSuite() *Suite {
	return &Suite{
		Name:       "philosophers",
		Thresholds: analysis.DefaultThresholds(),
		Scenarios: []Scenario{
			{
				Name:        "format",
				Description: "every line follows the event grammar",
				Args:        []string{"5", "800", "200", "200"},
				TimeoutMS:   3000,
				Checks: []CheckSpec{
					{Type: analysis.CheckFormat},
					{Type: analysis.CheckMonotonic},
					{Type: analysis.CheckActorRange},
				},
			},
			{
				Name:        "death",
				Description: "a philosopher dies on time when eating takes too long",
				Args:        []string{"4", "310", "200", "100"},
				Checks: []CheckSpec{
					{Type: analysis.CheckDeathDetected},
					{Type: analysis.CheckDeathTiming, ExpectedMS: 310, ToleranceMS: analysis.DefaultDeathToleranceMS},
					{Type: analysis.CheckNoEventsAfterDeath},
				},
			},
			{
				Name:        "single_actor",
				Description: "a lone philosopher takes its only fork and dies",
				Args:        []string{"1", "800", "200", "200"},
				Checks: []CheckSpec{
					{Type: analysis.CheckResourceBeforeDeath, Count: 1},
					{Type: analysis.CheckDeathDetected},
					{Type: analysis.CheckDeathTiming, ExpectedMS: 800, ToleranceMS: analysis.SingleActorDeathToleranceMS},
				},
			},
			{
				Name:        "meal_quota",
				Description: "the simulation stops once everyone ate enough",
				Args:        []string{"5", "800", "200", "200", "7"},
				Checks: []CheckSpec{
					{Type: analysis.CheckQuotaCompletion},
				},
			},
			{
				Name:        "invalid_arguments",
				Description: "malformed invocations are rejected with an error",
				TimeoutMS:   1000,
				Variants: []Variant{
					{Name: "too_few", Args: []string{}},
					{Name: "negative", Args: []string{"5", "-800", "200", "200"}},
					{Name: "non_numeric", Args: []string{"5", "abc", "200", "200"}},
					{Name: "zero", Args: []string{"5", "0", "200", "200"}},
					{Name: "too_many", Args: []string{"5", "800", "200", "200", "7", "extra"}},
				},
				Checks: []CheckSpec{
					{Type: analysis.CheckArgumentRejection},
				},
			},
			{
				Name:        "fairness",
				Description: "everyone eats and meals are spread evenly",
				Args:        []string{"5", "800", "200", "200"},
				TimeoutMS:   5000,
				Checks: []CheckSpec{
					{Type: analysis.CheckDeadlock},
					{Type: analysis.CheckFairness},
				},
			},
			{
				Name:        "stress",
				Description: "one hundred philosophers run without crashing",
				Args:        []string{"100", "800", "200", "200"},
				TimeoutMS:   5000,
				Checks: []CheckSpec{
					{Type: analysis.CheckSurvival},
				},
			},
		},
	}
}
