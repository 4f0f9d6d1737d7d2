package extract

import (
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

// Resolver maps attachment filenames from the export to files on disk.
// EndNote stores attachments in hashed subdirectories and sometimes
// URL-encodes filenames, so a direct join often misses. The resolver
// scans the attachment directory once and answers from a cache.
type Resolver struct {
	dir string

	mu    sync.Mutex
	cache map[string]string
	built bool
}

// NewResolver creates a resolver over the attachment directory.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve returns the filesystem path for an attachment filename.
func (r *Resolver) Resolve(filename string) (string, error) {
	if filename == "" || r.dir == "" {
		return "", enerr.Newf(enerr.ErrCodeAttachmentNotFound,
			"no attachment path for %q", filename)
	}

	// Direct hit is the common case.
	direct := filepath.Join(r.dir, filename)
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.built {
		r.buildCache()
	}

	if path, ok := r.cache[filename]; ok {
		return path, nil
	}
	if decoded, err := url.PathUnescape(filename); err == nil && decoded != filename {
		if path, ok := r.cache[decoded]; ok {
			return path, nil
		}
	}
	return "", enerr.Newf(enerr.ErrCodeAttachmentNotFound,
		"attachment %q not found under %s", filename, r.dir)
}

// Invalidate drops the cache so the next lookup rescans the directory.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.built = false
	r.cache = nil
}

// buildCache indexes every PDF under dir by filename, and additionally
// by URL-decoded filename when that differs. Caller holds the lock.
func (r *Resolver) buildCache() {
	r.cache = make(map[string]string)
	_ = filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		name := d.Name()
		r.cache[name] = path
		if decoded, err := url.PathUnescape(name); err == nil && decoded != name {
			r.cache[decoded] = path
		}
		return nil
	})
	r.built = true
}
