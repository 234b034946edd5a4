package cli

import (
	"bytes"
	"testing"
)

// execute runs the CLI with the given args and returns captured stdout,
// stderr, and the command error. A fresh command tree is built per call
// so flag state never leaks between tests.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
