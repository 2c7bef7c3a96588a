package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLedgerCLI(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "submission_replies_u_goose.txt")

	out, err := run(t, "--file", file, "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	out, err = run(t, "--file", file, "add", "abc123", "def456", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ledger now holds 2 entries\n", out)

	out, err = run(t, "--file", file, "list")
	require.NoError(t, err)
	assert.Equal(t, "abc123\ndef456\n", out)

	out, err = run(t, "--file", file, "check", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123: replied\n", out)

	out, err = run(t, "--file", file, "check", "zzz999")
	require.NoError(t, err)
	assert.Equal(t, "zzz999: not replied\n", out)
}

func TestLedgerCLI_RejectsBlankID(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "ledger.txt")

	_, err := run(t, "--file", file, "add", "  ")
	assert.Error(t, err)
}

func TestLedgerCLI_CheckNeedsID(t *testing.T) {
	t.Parallel()
	_, err := run(t, "--file", filepath.Join(t.TempDir(), "l.txt"), "check")
	assert.Error(t, err)
}
