package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExportWatcher_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "library.xml")
	writeFile(t, export, "<xml/>")

	w, err := NewExportWatcher(export, 50*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, export, "<xml>changed</xml>")

	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change signal after write")
	}
}

func TestExportWatcher_CoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "library.xml")
	writeFile(t, export, "v0")

	w, err := NewExportWatcher(export, 100*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		writeFile(t, export, "burst")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change signal after burst")
	}

	// The burst lands as a single signal; the channel is quiet after.
	select {
	case <-w.Changes():
		t.Fatal("burst was not coalesced")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestExportWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "library.xml")
	writeFile(t, export, "<xml/>")

	w, err := NewExportWatcher(export, 50*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "other.txt"), "noise")

	select {
	case <-w.Changes():
		t.Fatal("unrelated file triggered a signal")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestExportWatcher_SignalsOnReplace(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "library.xml")
	writeFile(t, export, "<xml/>")

	w, err := NewExportWatcher(export, 50*time.Millisecond, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Write-then-rename, the way most exporters save.
	tmp := filepath.Join(dir, "library.xml.tmp")
	writeFile(t, tmp, "<xml>v2</xml>")
	require.NoError(t, os.Rename(tmp, export))

	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change signal after replace")
	}
}

func TestExportWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "library.xml")
	writeFile(t, export, "<xml/>")

	w, err := NewExportWatcher(export, 50*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
	assert.NotPanics(t, func() { w.Stop() })
}
