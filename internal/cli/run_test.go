package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/philoprobe/internal/harness"
	"github.com/roach88/philoprobe/internal/testutil"
)

type runResponse struct {
	Status string         `json:"status"`
	Data   harness.Report `json:"data"`
}

func TestRun_PassingSuite(t *testing.T) {
	target := testutil.FakeSimulator(t)
	suite := writeSuite(t, "suite.yaml", cliSuiteYAML)

	stdout, _, err := execute(t, "run", target, "--suite", suite)
	require.NoError(t, err)
	assert.Contains(t, stdout, "death")
	assert.Contains(t, stdout, "meal_quota")
	assert.Contains(t, stdout, "Scenarios: 2 total, 2 passed, 0 failed")
}

func TestRun_JSONReport(t *testing.T) {
	target := testutil.FakeSimulator(t)
	suite := writeSuite(t, "suite.yaml", cliSuiteYAML)

	stdout, _, err := execute(t, "--format", "json", "run", target, "--suite", suite, "--filter", "death")
	require.NoError(t, err)

	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli", resp.Data.Suite)
	require.Len(t, resp.Data.Scenarios, 1)
	sc := resp.Data.Scenarios[0]
	assert.Equal(t, "death", sc.Name)
	assert.True(t, sc.Passed)
	require.Len(t, sc.Runs, 1)
	assert.Equal(t, []string{"4", "310", "200", "100"}, sc.Runs[0].Args)
}

func TestRun_FailingScenario(t *testing.T) {
	target := testutil.EchoTarget(t, []string{"0 1 is thinking", "garbage"}, nil, 0)
	suite := writeSuite(t, "suite.yaml", `name: strict
scenarios:
  - name: format
    args: ["5", "800", "200", "200"]
    checks:
      - type: format
`)

	stdout, _, err := execute(t, "run", target, "--suite", suite)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 scenarios failed")
	assert.Contains(t, stdout, "garbage")
}

func TestRun_TargetFromEnvironment(t *testing.T) {
	target := testutil.FakeSimulator(t)
	suite := writeSuite(t, "suite.yaml", cliSuiteYAML)
	t.Setenv(EnvTarget, target)

	_, _, err := execute(t, "run", "--suite", suite, "--filter", "meal_*")
	require.NoError(t, err)
}

func TestRun_MissingTarget(t *testing.T) {
	t.Setenv(EnvTarget, "")

	stdout, _, err := execute(t, "run", filepath.Join(t.TempDir(), "philo"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E002]")

	_, _, err = execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_FilterMatchesNothing(t *testing.T) {
	target := testutil.FakeSimulator(t)

	_, _, err := execute(t, "run", target, "--filter", "nope*")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_RecordsIntoDatabase(t *testing.T) {
	target := testutil.FakeSimulator(t)
	suite := writeSuite(t, "suite.yaml", cliSuiteYAML)
	db := filepath.Join(t.TempDir(), "runs.db")

	_, _, err := execute(t, "run", target, "--suite", suite, "--db", db)
	require.NoError(t, err)

	stdout, _, err := execute(t, "replay", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "death")
	assert.Contains(t, stdout, "meal_quota")
	assert.Contains(t, stdout, "exit 0")
}

func TestRun_WritesTranscripts(t *testing.T) {
	target := testutil.FakeSimulator(t)
	suite := writeSuite(t, "suite.yaml", cliSuiteYAML)
	dir := filepath.Join(t.TempDir(), "transcripts")

	_, _, err := execute(t, "run", target, "--suite", suite, "--filter", "death", "--transcripts", dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
