package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: sort_match
description: filter moves ahead of the sort and into the scan
collection: c
documents:
  - { _id: 1, a: 1, b: 3 }
  - { _id: 2, a: 2, b: 2 }
  - { _id: 3, a: 3, b: 1 }
pipeline:
  - $sort: { b: 1 }
  - $match: { a: { $ne: 2 } }
expect:
  results:
    - { _id: 3, a: 3, b: 1 }
    - { _id: 1, a: 1, b: 3 }
  stages: 1
`

const failingScenario = `name: wrong_stages
description: expects more stages than remain
collection: c
documents:
  - { _id: 1, a: 1 }
pipeline:
  - $sort: { a: 1 }
  - $match: { a: 1 }
expect:
  stages: 5
`

func writeScenarios(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestTestCommand_Pass(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"sort_match.yaml": passingScenario})

	stdout, _, err := runCommand(t, NewTestCommand, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ sort_match\n")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"sort_match.yaml":   passingScenario,
		"wrong_stages.yaml": failingScenario,
	})

	stdout, _, err := runCommand(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ wrong_stages\n")
	assert.Contains(t, stdout, "  stages: expected 5 after the source, got 1\n")
	assert.Contains(t, stdout, "1 passed, 1 failed, 2 total")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"sort_match.yaml":   passingScenario,
		"wrong_stages.yaml": failingScenario,
	})

	stdout, _, err := runCommand(t, NewTestCommand, "json", dir)
	require.Error(t, err)

	resp, data := decodeResponse(t, stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
	assert.Equal(t, float64(2), data["total"])

	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "sort_match", scenarios[0].(map[string]any)["name"])
	assert.Equal(t, true, scenarios[0].(map[string]any)["pass"])
	assert.Equal(t, "wrong_stages", scenarios[1].(map[string]any)["name"])
	assert.Equal(t, false, scenarios[1].(map[string]any)["pass"])
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"sort_match.yaml":   passingScenario,
		"wrong_stages.yaml": failingScenario,
	})

	stdout, _, err := runCommand(t, NewTestCommand, "text", "--filter", "sort_*", dir)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "wrong_stages")
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"sort_match.yaml": passingScenario})
	golden := filepath.Join(dir, "golden", "sort_match.golden")

	stdout, _, err := runCommand(t, NewTestCommand, "text", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ sort_match (golden updated)")
	require.FileExists(t, golden)

	_, _, err = runCommand(t, NewTestCommand, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"name":"sort_match"}`), 0o644))
	stdout, _, err = runCommand(t, NewTestCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "plan does not match golden file (run with --update to regenerate)")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	stdout, _, err := runCommand(t, NewTestCommand, "text", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", stdout)
}

func TestTestCommand_MissingDir(t *testing.T) {
	stdout, _, err := runCommand(t, NewTestCommand, "json", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse(t, stdout)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTestCommand_BrokenScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"broken.yaml": "name: broken\n"})

	stdout, _, err := runCommand(t, NewTestCommand, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp, _ := decodeResponse(t, stdout)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenario, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "description is required")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"a_one.yaml": "",
		"a_two.yml":  "",
		"b.yaml":     "",
		"notes.txt":  "",
	})

	all, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	filtered, err := findScenarioFiles(dir, "a_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_one.yaml"), filepath.Join(dir, "a_two.yml")}, filtered)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
