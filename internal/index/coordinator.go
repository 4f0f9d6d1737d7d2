package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	"github.com/gokmengokhan/endnote-mcp/internal/embed"
	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/extract"
	"github.com/gokmengokhan/endnote-mcp/internal/importer"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
)

// Mode selects how much work an indexing run does.
type Mode string

const (
	// ModeFull discards derived state and rebuilds everything.
	ModeFull Mode = "full"
	// ModeIncremental processes only inserted/updated/removed records.
	ModeIncremental Mode = "incremental"
	// ModeMetadataOnly skips PDF extraction; metadata and embeddings
	// are still maintained.
	ModeMetadataOnly Mode = "metadata_only"
)

// Result summarizes one indexing run.
type Result struct {
	Inserted         int           `json:"inserted"`
	Updated          int           `json:"updated"`
	Unchanged        int           `json:"unchanged"`
	Removed          int           `json:"removed"`
	Extracted        int           `json:"extracted"`
	ExtractionFailed int           `json:"extraction_failed"`
	Embedded         int           `json:"embedded"`
	Duration         time.Duration `json:"duration"`
}

// Coordinator drives indexing runs. One coordinator per data directory;
// commits are serialized by an in-process mutex plus a cross-process
// file lock.
type Coordinator struct {
	cfg       *config.Config
	records   *store.SQLiteStore
	lexical   store.LexicalIndex
	vectors   *store.VectorStore
	extractor extract.Extractor
	resolver  *extract.Resolver
	embedder  embed.Embedder // nil disables semantic indexing
	logger    *slog.Logger

	mu   sync.Mutex
	lock *CommitLock
}

// NewCoordinator wires an indexing coordinator.
func NewCoordinator(
	cfg *config.Config,
	records *store.SQLiteStore,
	lexical store.LexicalIndex,
	vectors *store.VectorStore,
	extractor extract.Extractor,
	resolver *extract.Resolver,
	embedder embed.Embedder,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		records:   records,
		lexical:   lexical,
		vectors:   vectors,
		extractor: extractor,
		resolver:  resolver,
		embedder:  embedder,
		logger:    logger,
		lock:      NewCommitLock(cfg.Storage.DataDir),
	}
}

// Run executes one indexing run against the configured export.
// Import failure aborts before any commit. Per-attachment extraction
// failures are non-fatal: the record commits without pages, marked
// pending for retry on the next run.
func (c *Coordinator) Run(ctx context.Context, mode Mode) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.lock.Lock(); err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer func() { _ = c.lock.Unlock() }()

	start := time.Now()

	batch, err := c.importBatch(ctx)
	if err != nil {
		return nil, err
	}

	if mode == ModeFull {
		if err := c.clearDerivedState(ctx); err != nil {
			return nil, err
		}
	}

	existing, err := c.records.ListContentHashes(ctx)
	if err != nil {
		return nil, err
	}
	changes := Detect(batch, existing)

	retry, err := c.retrySet(ctx, changes, mode)
	if err != nil {
		return nil, err
	}

	dirty := append(append([]*library.Reference{}, changes.ToInsert...), changes.ToUpdate...)

	result := &Result{
		Inserted:  len(changes.ToInsert),
		Updated:   len(changes.ToUpdate),
		Unchanged: len(changes.Unchanged),
		Removed:   len(changes.Removed),
	}
	c.logger.Info("index_run_started",
		slog.String("mode", string(mode)),
		slog.Int("to_insert", result.Inserted),
		slog.Int("to_update", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", result.Removed),
		slog.Int("extraction_retries", len(retry)))

	var pages map[int][]library.Page
	var failed map[int]error
	if mode != ModeMetadataOnly {
		pages, failed = c.extractAll(ctx, append(dirty, retry...))
		result.Extracted = len(pages)
		result.ExtractionFailed = len(failed)
	}

	for _, ref := range dirty {
		if err := c.commitRecord(ctx, ref, pages[ref.RecNumber], failed[ref.RecNumber], mode); err != nil {
			return nil, err
		}
	}

	// Unchanged records whose earlier extraction failed and now
	// succeeded: store their pages without re-finalizing the hash.
	for _, ref := range retry {
		p, ok := pages[ref.RecNumber]
		if !ok {
			continue
		}
		if err := c.commitPages(ctx, ref.RecNumber, p); err != nil {
			return nil, err
		}
	}

	if c.embedder != nil {
		result.Embedded = c.embedDirty(ctx, dirty)
	}

	if err := c.pruneRemoved(ctx, changes.Removed); err != nil {
		return nil, err
	}

	if err := c.vectors.Save(); err != nil {
		c.logger.Warn("vector_index_save_failed", slog.String("error", err.Error()))
	}

	result.Duration = time.Since(start)
	c.logger.Info("index_run_finished",
		slog.Int("extracted", result.Extracted),
		slog.Int("extraction_failed", result.ExtractionFailed),
		slog.Int("embedded", result.Embedded),
		slog.Duration("duration", result.Duration))
	return result, nil
}

func (c *Coordinator) importBatch(ctx context.Context) ([]*library.Reference, error) {
	f, err := os.Open(c.cfg.Library.XMLPath)
	if err != nil {
		return nil, enerr.ImportFailed(
			fmt.Sprintf("cannot open export %s", c.cfg.Library.XMLPath), err).
			WithSuggestion("check library.endnote_xml in the configuration")
	}
	defer f.Close()
	return importer.Parse(ctx, f)
}

// clearDerivedState drops every stored record ahead of a full rebuild.
func (c *Coordinator) clearDerivedState(ctx context.Context) error {
	hashes, err := c.records.ListContentHashes(ctx)
	if err != nil {
		return err
	}
	for rec := range hashes {
		if err := c.lexical.Delete(ctx, rec); err != nil {
			return err
		}
		c.vectors.Delete(rec)
		if err := c.records.DeleteReference(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// retrySet returns unchanged records whose attachment extraction is
// still pending from an earlier run.
func (c *Coordinator) retrySet(ctx context.Context, changes *Changes, mode Mode) ([]*library.Reference, error) {
	if mode == ModeMetadataOnly {
		return nil, nil
	}
	pending, err := c.records.ListExtractionPending(ctx)
	if err != nil {
		return nil, err
	}
	pendingSet := make(map[int]bool, len(pending))
	for _, rec := range pending {
		pendingSet[rec] = true
	}

	var retry []*library.Reference
	for _, ref := range changes.Unchanged {
		if pendingSet[ref.RecNumber] && ref.HasAttachment() {
			retry = append(retry, ref)
		}
	}
	return retry, nil
}

// extractAll runs attachment extraction in parallel with bounded
// workers. Failures are collected, never propagated.
func (c *Coordinator) extractAll(ctx context.Context, refs []*library.Reference) (map[int][]library.Page, map[int]error) {
	pages := make(map[int][]library.Page)
	failed := make(map[int]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, c.cfg.Extraction.Workers))

	for _, ref := range refs {
		if !ref.HasAttachment() {
			continue
		}
		g.Go(func() error {
			p, err := c.extractOne(gctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[ref.RecNumber] = err
			} else {
				pages[ref.RecNumber] = p
			}
			return nil
		})
	}
	_ = g.Wait()
	return pages, failed
}

func (c *Coordinator) extractOne(ctx context.Context, ref *library.Reference) ([]library.Page, error) {
	path, err := c.resolver.Resolve(ref.PDFPath)
	if err != nil {
		return nil, err
	}

	if c.cfg.Extraction.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Extraction.Timeout)
		defer cancel()
	}
	p, err := c.extractor.Extract(ctx, path, c.cfg.Extraction.MaxPages)
	if err != nil {
		c.logger.Warn("extraction_failed",
			slog.Int("rec_number", ref.RecNumber),
			slog.String("attachment", ref.PDFPath),
			slog.String("error", err.Error()))
		return nil, err
	}
	for i := range p {
		p[i].RecNumber = ref.RecNumber
	}
	return p, nil
}

// commitRecord is the per-record commit unit. Content fields and
// postings land first; the content hash is finalized last, so a crash
// anywhere in between reclassifies the record as to-update next run.
func (c *Coordinator) commitRecord(ctx context.Context, ref *library.Reference, pages []library.Page, extractErr error, mode Mode) error {
	if err := c.records.UpsertReference(ctx, ref); err != nil {
		return err
	}
	if err := c.lexical.IndexReference(ctx, ref); err != nil {
		return err
	}

	switch {
	case pages != nil:
		if err := c.commitPages(ctx, ref.RecNumber, pages); err != nil {
			return err
		}
	case extractErr != nil:
		if err := c.records.SetExtractionPending(ctx, ref.RecNumber, true); err != nil {
			return err
		}
	case mode == ModeMetadataOnly && ref.HasAttachment():
		// Extraction skipped entirely; leave any existing pages alone.
	}

	// Content changed, so any stored embedding is stale. Removed here,
	// regenerated in the embedding phase.
	if err := c.records.DeleteEmbedding(ctx, ref.RecNumber); err != nil {
		return err
	}
	c.vectors.Delete(ref.RecNumber)

	return c.records.FinalizeReference(ctx, ref.RecNumber, ref.ComputeContentHash())
}

func (c *Coordinator) commitPages(ctx context.Context, recNumber int, pages []library.Page) error {
	if err := c.records.ReplacePages(ctx, recNumber, pages); err != nil {
		return err
	}
	if err := c.lexical.IndexPages(ctx, recNumber, pages); err != nil {
		return err
	}
	return c.records.SetExtractionPending(ctx, recNumber, false)
}

// embedDirty generates embeddings for changed records. Failures are
// logged and skipped; the next run retries because the affected records
// have no stored embedding.
func (c *Coordinator) embedDirty(ctx context.Context, refs []*library.Reference) int {
	var texts []string
	var targets []*library.Reference
	for _, ref := range refs {
		if text := ref.EmbeddingText(); text != "" {
			texts = append(texts, text)
			targets = append(targets, ref)
		}
	}
	if len(texts) == 0 {
		return 0
	}

	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		c.logger.Warn("embedding_failed",
			slog.Int("records", len(texts)),
			slog.String("error", err.Error()))
		return 0
	}

	embedded := 0
	for i, ref := range targets {
		emb := &library.Embedding{
			RecNumber:      ref.RecNumber,
			Vector:         vecs[i],
			ModelName:      c.embedder.ModelName(),
			SourceTextHash: ref.ComputeContentHash(),
		}
		if err := c.records.SaveEmbedding(ctx, emb); err != nil {
			c.logger.Warn("embedding_store_failed",
				slog.Int("rec_number", ref.RecNumber),
				slog.String("error", err.Error()))
			continue
		}
		if err := c.vectors.Add(ref.RecNumber, vecs[i]); err != nil {
			c.logger.Warn("vector_add_failed",
				slog.Int("rec_number", ref.RecNumber),
				slog.String("error", err.Error()))
			continue
		}
		embedded++
	}
	return embedded
}

// pruneRemoved drops index entries for records no longer in the export.
// The reference rows themselves survive when keep_removed_references is
// set; postings and vectors never do.
func (c *Coordinator) pruneRemoved(ctx context.Context, removed []int) error {
	for _, rec := range removed {
		if err := c.lexical.Delete(ctx, rec); err != nil {
			return err
		}
		c.vectors.Delete(rec)
		if err := c.records.DeleteEmbedding(ctx, rec); err != nil {
			return err
		}
		if !c.cfg.Storage.KeepRemovedReferences {
			if err := c.records.DeleteReference(ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadVectors populates the vector index at startup: the gob snapshot
// when present, reconciled against the embeddings table so stale or
// missing vectors are fixed up.
func LoadVectors(ctx context.Context, records *store.SQLiteStore, vectors *store.VectorStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := vectors.Load(); err != nil {
		logger.Warn("vector_index_load_failed, rebuilding",
			slog.String("error", err.Error()))
	}

	hashes, err := records.ListContentHashes(ctx)
	if err != nil {
		return err
	}
	embs, err := records.AllEmbeddings(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[int]bool, len(embs))
	for _, emb := range embs {
		if hashes[emb.RecNumber] != emb.SourceTextHash {
			continue // stale, excluded from retrieval
		}
		fresh[emb.RecNumber] = true
		if !vectors.Contains(emb.RecNumber) {
			if err := vectors.Add(emb.RecNumber, emb.Vector); err != nil {
				return err
			}
		}
	}

	// Snapshot entries with no fresh embedding behind them are dropped.
	for rec := range hashes {
		if vectors.Contains(rec) && !fresh[rec] {
			vectors.Delete(rec)
		}
	}
	return nil
}
