package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gokmengokhan/endnote-mcp/internal/config"
	"github.com/gokmengokhan/endnote-mcp/internal/embed"
	"github.com/gokmengokhan/endnote-mcp/internal/index"
	"github.com/gokmengokhan/endnote-mcp/internal/search"
	"github.com/gokmengokhan/endnote-mcp/internal/store"
)

// components holds the opened stores every command builds on.
type components struct {
	cfg      *config.Config
	records  *store.SQLiteStore
	lexical  store.LexicalIndex
	vectors  *store.VectorStore
	embedder embed.Embedder // nil when embeddings are disabled
}

// openComponents resolves the config and opens the record store, lexical
// index, vector index, and embedder. The returned cleanup closes them in
// reverse order and is safe to defer immediately.
func openComponents(ctx context.Context) (*components, func(), error) {
	path, err := config.Resolve(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	records, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, err
	}

	lexical, err := store.NewLexicalIndex(cfg, records)
	if err != nil {
		_ = records.Close()
		return nil, nil, err
	}

	vectors := store.NewVectorStore(cfg.VectorIndexPath())
	if err := index.LoadVectors(ctx, records, vectors, slog.Default()); err != nil {
		_ = lexical.Close()
		_ = records.Close()
		return nil, nil, err
	}

	var embedder embed.Embedder
	if cfg.EmbeddingsEnabled() {
		embedder, err = embed.NewFromConfig(cfg)
		if err != nil {
			_ = lexical.Close()
			_ = records.Close()
			return nil, nil, err
		}
	}

	c := &components{
		cfg:      cfg,
		records:  records,
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
	}
	cleanup := func() {
		if c.embedder != nil {
			_ = c.embedder.Close()
		}
		_ = c.lexical.Close()
		_ = c.records.Close()
	}
	return c, cleanup, nil
}

// newEngine wires the retrieval engine over opened components.
func (c *components) newEngine() *search.Engine {
	return search.NewEngine(c.cfg, c.records, c.lexical, c.vectors, c.embedder, slog.Default())
}
