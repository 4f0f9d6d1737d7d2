package store

import (
	"github.com/gokmengokhan/endnote-mcp/internal/config"
)

// NewLexicalIndex creates the configured lexical backend.
// The FTS5 backend shares the record store's database; bleve keeps its
// own index directory next to it.
func NewLexicalIndex(cfg *config.Config, records *SQLiteStore) (LexicalIndex, error) {
	switch cfg.Search.LexicalBackend {
	case config.LexicalBackendBleve:
		path := ""
		if cfg.Storage.DataDir != "" {
			path = cfg.LexicalIndexBasePath() + ".bleve"
		}
		return NewBleveLexicalIndex(path)
	default:
		return NewSQLiteLexicalIndex(records.DB())
	}
}
