package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCiteCmd(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newCiteCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestCiteCmd_RejectsNonNumericRecord(t *testing.T) {
	err := runCiteCmd(t, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid record number "abc"`)
}

func TestCiteCmd_RejectsUnknownStyle(t *testing.T) {
	err := runCiteCmd(t, "1", "--style", "mla")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown citation style")
}

func TestCiteCmd_RejectsUnknownSortOrder(t *testing.T) {
	err := runCiteCmd(t, "1", "--bibliography", "--sort", "title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sort order")
}

func TestCiteCmd_RequiresArguments(t *testing.T) {
	err := runCiteCmd(t)
	require.Error(t, err)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	cmd := newSearchCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}
