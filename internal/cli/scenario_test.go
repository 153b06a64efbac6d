package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: cli_smoke
description: "create then read"
flow:
  - invoke: create
    args: [p1, Ana, Lopez, "1990-01-01", "https://docs.example/p1", S-1, MX, abc]
  - invoke: read
    args: [p1]
    expect:
      code: OK
      payload:
        firstName: Ana
`

const failingScenario = `name: cli_broken
description: "expects a record that was never created"
flow:
  - invoke: read
    args: [p1]
    expect:
      code: OK
`

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScenario_Pass(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "smoke.yaml", passingScenario)

	out, err := executeCommand(t, "scenario", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cli_smoke")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestScenario_FailureExitCode(t *testing.T) {
	dir := t.TempDir()
	pass := writeScenario(t, dir, "smoke.yaml", passingScenario)
	fail := writeScenario(t, dir, "broken.yaml", failingScenario)

	out, err := executeCommand(t, "scenario", pass, fail)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ cli_smoke")
	assert.Contains(t, out, "✗ cli_broken")
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestScenario_JSONReport(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "smoke.yaml", passingScenario)

	out, err := executeCommand(t, "--format", "json", "scenario", path)
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   ScenarioReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, 2, resp.Data.Scenarios[0].Steps)
}

func TestScenario_LoadErrorIsCommandError(t *testing.T) {
	_, err := executeCommand(t, "scenario", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenario_UpdateRequiresGolden(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "smoke.yaml", passingScenario)

	_, err := executeCommand(t, "scenario", "--update", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenario_GoldenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "smoke.yaml", passingScenario)
	goldenDir := filepath.Join(dir, "golden")

	_, err := executeCommand(t, "scenario", "--golden", goldenDir, "--update", path)
	require.NoError(t, err)
	require.FileExists(t, goldenFilePath(goldenDir, "cli_smoke"))

	_, err = executeCommand(t, "scenario", "--golden", goldenDir, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenFilePath(goldenDir, "cli_smoke"), []byte(`{}`), 0o644))
	out, err := executeCommand(t, "scenario", "--golden", goldenDir, path)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenario_MissingGoldenFails(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "smoke.yaml", passingScenario)

	out, err := executeCommand(t, "scenario", "--golden", filepath.Join(dir, "golden"), path)
	require.Error(t, err)
	assert.Contains(t, out, "failed to read golden file")
}

func TestScenario_HarnessGoldenFiles(t *testing.T) {
	scenarios, err := filepath.Glob("../harness/testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	args := append([]string{"scenario", "--golden", "../harness/testdata/golden"}, scenarios...)
	_, err = executeCommand(t, args...)
	require.NoError(t, err)
}
