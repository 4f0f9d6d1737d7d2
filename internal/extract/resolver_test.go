package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
}

func TestResolve_DirectHit(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "smith2020.pdf"))

	r := NewResolver(dir)
	path, err := r.Resolve("smith2020.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "smith2020.pdf"), path)
}

func TestResolve_InSubdirectory(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "0123456789", "davis2021.pdf"))

	r := NewResolver(dir)
	path, err := r.Resolve("davis2021.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "0123456789", "davis2021.pdf"), path)
}

func TestResolve_URLEncodedName(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "sub", "my%20paper.pdf"))

	r := NewResolver(dir)
	path, err := r.Resolve("my paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "my%20paper.pdf"), path)
}

func TestResolve_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "sub", "report.PDF"))

	r := NewResolver(dir)
	path, err := r.Resolve("report.PDF")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "report.PDF"), path)
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Resolve("missing.pdf")
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeAttachmentNotFound, enerr.GetCode(err))
}

func TestResolve_EmptyFilename(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Resolve("")
	require.Error(t, err)
}

func TestResolve_InvalidateRescan(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir)

	_, err := r.Resolve("late.pdf")
	require.Error(t, err)

	touch(t, filepath.Join(dir, "sub", "late.pdf"))
	_, err = r.Resolve("late.pdf")
	require.Error(t, err, "cache answers until invalidated")

	r.Invalidate()
	path, err := r.Resolve("late.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "late.pdf"), path)
}

func TestExtract_MissingFile(t *testing.T) {
	e := NewPDFExtractor()
	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"), 0)
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeExtractionFailed, enerr.GetCode(err))
	assert.True(t, enerr.IsRetryable(err))
}

func TestExtract_GarbageFileIsRetryable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	e := NewPDFExtractor()
	_, err := e.Extract(context.Background(), path, 0)
	require.Error(t, err)
	assert.True(t, enerr.IsRetryable(err))
}

func TestExtract_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	e := NewPDFExtractor()
	_, err := e.Extract(ctx, filepath.Join(t.TempDir(), "any.pdf"), 0)
	require.Error(t, err)
	assert.Equal(t, enerr.ErrCodeExtractionFailed, enerr.GetCode(err))
}
