package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/vault_vulnerable.yaml")
	require.NoError(t, err)

	assert.Equal(t, "vault_vulnerable", s.Name)
	assert.Equal(t, "vault", s.Program)
	assert.True(t, s.Exact)
	assert.Len(t, s.Expect, 5)
	// Fixture path resolves relative to the scenario file.
	assert.Equal(t, filepath.Join("testdata", "fixtures", "vault.cue"), s.Fixture)
	assert.FileExists(t, s.Fixture)
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/no_such_scenario.yaml")
	assert.Error(t, err)
}

func TestLoadScenarioUnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: has an unknown key
fixture: whatever.cue
expectations: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioValidation(t *testing.T) {
	fixtureDir := t.TempDir()
	fixture := filepath.Join(fixtureDir, "p.cue")
	require.NoError(t, os.WriteFile(fixture, []byte(`program: p: {}`), 0o644))

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing name",
			"description: d\nfixture: " + fixture + "\n",
			"name is required",
		},
		{
			"missing description",
			"name: s\nfixture: " + fixture + "\n",
			"description is required",
		},
		{
			"missing fixture",
			"name: s\ndescription: d\n",
			"fixture is required",
		},
		{
			"fixture not found",
			"name: s\ndescription: d\nfixture: " + filepath.Join(fixtureDir, "ghost.cue") + "\n",
			"fixture file not found",
		},
		{
			"expect missing rule",
			"name: s\ndescription: d\nfixture: " + fixture + "\nexpect:\n  - instruction: run\n",
			"expect[0]: rule is required",
		},
		{
			"expect missing instruction",
			"name: s\ndescription: d\nfixture: " + fixture + "\nexpect:\n  - rule: R1\n",
			"expect[0]: instruction is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
