package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "bad path")
	assert.Equal(t, "bad path", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	underlying := errors.New("disk on fire")
	wrapped := WrapExitError(ExitCommandError, "failed to open database", underlying)
	assert.Equal(t, "failed to open database: disk on fire", wrapped.Error())
	assert.ErrorIs(t, wrapped, underlying)

	// Wrapped deeper, the code still surfaces.
	deep := fmt.Errorf("command failed: %w", wrapped)
	assert.Equal(t, ExitCommandError, GetExitCode(deep))
}

func TestGetExitCodeDefault(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain error")))
}

func TestFormatterSuccessJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(map[string]int{"total": 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatterErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "fixture path not found", nil))
	assert.Equal(t, "Error [E005]: fixture path not found\n", buf.String())
}

func TestFormatterErrorVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: true}

	require.NoError(t, f.Error(ErrCodeDatabase, "failed to open database", "locked"))
	assert.Contains(t, buf.String(), "Details: locked")
}

func TestVerboseLogRouting(t *testing.T) {
	var out, errOut bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &out, ErrWriter: &errOut, Verbose: true}

	f.VerboseLog("loaded %d file(s)", 2)
	// Diagnostics stay off the JSON stream.
	assert.Empty(t, out.String())
	assert.Equal(t, "loaded 2 file(s)\n", errOut.String())

	quiet := &OutputFormatter{Format: "text", Writer: &out}
	quiet.VerboseLog("never shown")
	assert.Empty(t, out.String())
}
