package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grkhmz23/solaudit-agent/internal/store"
)

// seedHistory records one scan of the vulnerable fixture and returns
// the database path and scan ID.
func seedHistory(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "scans.db")

	_, _, err := execute(t, "scan", "testdata/vault.cue", "--db", dbPath, "--fail-on", "never")
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	scans, err := st.ListScans(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	return dbPath, scans[0].ID
}

func TestHistoryList(t *testing.T) {
	dbPath, scanID := seedHistory(t)

	out, _, err := execute(t, "history", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, scanID)
	assert.Contains(t, out, "vault")
	assert.Contains(t, out, "findings=5 defects=0")
}

func TestHistoryListEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "scans.db")

	out, _, err := execute(t, "history", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no scans recorded")
}

func TestHistoryShow(t *testing.T) {
	dbPath, scanID := seedHistory(t)

	out, _, err := execute(t, "history", "--db", dbPath, scanID)
	require.NoError(t, err)
	assert.Contains(t, out, "scan "+scanID)
	assert.Contains(t, out, "findings: 5, defects: 0")
	assert.Contains(t, out, "[critical] R5 reinit_vault vault.authority")
}

func TestHistoryShowJSON(t *testing.T) {
	dbPath, scanID := seedHistory(t)

	out, _, err := execute(t, "--format", "json", "history", "--db", dbPath, scanID)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ScanDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, scanID, resp.Data.Scan.ID)
	assert.Len(t, resp.Data.Findings, 5)
}

func TestHistoryShowNotFound(t *testing.T) {
	dbPath, _ := seedHistory(t)

	out, _, err := execute(t, "history", "--db", dbPath, "not-a-scan-id")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestHistoryRequiresDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}
