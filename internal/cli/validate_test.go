package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cliSuiteYAML = `name: cli
scenarios:
  - name: death
    args: ["4", "310", "200", "100"]
    checks:
      - type: death_detected
      - type: death_timing
  - name: meal_quota
    args: ["5", "800", "200", "200", "3"]
    checks:
      - type: format
      - type: quota_completion
`

func writeSuite(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_ValidSuite(t *testing.T) {
	path := writeSuite(t, "suite.yaml", cliSuiteYAML)

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `suite "cli" is valid (2 scenarios)`)
}

func TestValidate_VerboseListsScenarios(t *testing.T) {
	path := writeSuite(t, "suite.yaml", cliSuiteYAML)

	stdout, _, err := execute(t, "-v", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "death")
	assert.Contains(t, stdout, "meal_quota")
	assert.Contains(t, stdout, "checks=2")
}

func TestValidate_JSON(t *testing.T) {
	path := writeSuite(t, "suite.yaml", cliSuiteYAML)

	stdout, _, err := execute(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   validateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli", resp.Data.Suite)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "death", resp.Data.Scenarios[0].Name)
	assert.Equal(t, 1, resp.Data.Scenarios[0].Runs)
}

func TestValidate_InvalidSuite(t *testing.T) {
	path := writeSuite(t, "bad.yaml", `name: bad
scenarios:
  - name: format
    args: ["5", "800", "200", "200"]
    checks:
      - type: telepathy
`)

	stdout, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E003]")
	assert.Contains(t, stdout, "telepathy")
}

func TestValidate_UnknownField(t *testing.T) {
	path := writeSuite(t, "typo.yaml", `name: typo
scenarios:
  - name: format
    argz: ["5"]
    checks:
      - type: format
`)

	_, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidate_CUESuite(t *testing.T) {
	path := writeSuite(t, "suite.cue", `name: "cue"
scenarios: [{
	name: "format"
	args: ["5", "800", "200", "200"]
	timeout_ms: 1000
	checks: [{type: "format"}]
}]
`)

	stdout, _, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `suite "cue" is valid (1 scenarios)`)
}

func TestValidate_MissingFile(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "validate", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
