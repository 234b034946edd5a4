package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClean(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/vault.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 program(s) valid")
}

func TestValidateBrokenFixture(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	// Unknown context plus both unused contexts.
	assert.Contains(t, out, "E210")
	assert.Contains(t, out, "E212")
	assert.Contains(t, out, `references undeclared context "Missing"`)
}

func TestValidateBrokenFixtureJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.NotEmpty(t, resp.Data.Errors)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E210", resp.Error.Code)
}

func TestValidateCleanJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/safe_vault.cue")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateMissingPath(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/no_such_fixture.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
