package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestInitCmd_WritesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	out, err := runRoot(t, "init",
		"--config", cfgPath,
		"--xml", filepath.Join(dir, "library.xml"),
		"--pdf-dir", filepath.Join(dir, "pdfs"),
		"--data-dir", filepath.Join(dir, "data"))
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+cfgPath)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "endnote_xml:")
	assert.Contains(t, string(data), "library.xml")
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	xml := filepath.Join(dir, "library.xml")

	_, err := runRoot(t, "init", "--config", cfgPath, "--xml", xml)
	require.NoError(t, err)

	_, err = runRoot(t, "init", "--config", cfgPath, "--xml", xml)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runRoot(t, "init", "--config", cfgPath, "--xml", xml, "--force")
	assert.NoError(t, err)
}

func TestInitCmd_RequiresXML(t *testing.T) {
	dir := t.TempDir()

	_, err := runRoot(t, "init", "--config", filepath.Join(dir, "config.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
