package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_HasAllSubcommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"init", "index", "serve", "search", "cite", "status", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, "subcommand %s", name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCmd_HelpByDefault(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
	out := buf.String()
	assert.Contains(t, out, "endnote-mcp")
	assert.Contains(t, out, "serve")
	assert.Contains(t, out, "index")
}

func TestRootCmd_VersionFlag(t *testing.T) {
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "endnote-mcp version ")
}
