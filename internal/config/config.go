// Package config loads and validates the endnote-mcp configuration.
// The configuration is an explicit value passed to the index coordinator
// and retrieval engine at construction, never ambient state, so tests can
// run against isolated temporary stores.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

// EnvConfigPath is the environment variable overriding the config location.
const EnvConfigPath = "ENDNOTE_MCP_CONFIG"

// Lexical index backends.
const (
	LexicalBackendSQLite = "sqlite"
	LexicalBackendBleve  = "bleve"
)

// Embedding providers.
const (
	EmbeddingProviderOllama = "ollama"
	EmbeddingProviderStatic = "static"
	EmbeddingProviderNone   = "none"
)

// Config is the complete endnote-mcp configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Library    LibraryConfig    `yaml:"library"`
	Storage    StorageConfig    `yaml:"storage"`
	Search     SearchConfig     `yaml:"search"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Server     ServerConfig     `yaml:"server"`
}

// LibraryConfig points at the external source-of-truth export.
type LibraryConfig struct {
	// XMLPath is the EndNote XML export file.
	XMLPath string `yaml:"endnote_xml"`
	// PDFDir is the directory holding PDF attachments.
	PDFDir string `yaml:"pdf_dir"`
}

// StorageConfig configures the derived index storage.
type StorageConfig struct {
	// DataDir holds the SQLite database, lexical index, and vector index.
	DataDir string `yaml:"data_dir"`
	// KeepRemovedReferences retains Reference rows for records that
	// disappear from the export. Index entries are pruned either way.
	KeepRemovedReferences bool `yaml:"keep_removed_references"`
}

// SearchConfig configures hybrid search parameters.
type SearchConfig struct {
	// LexicalWeight and SemanticWeight control RRF fusion (default 0.5/0.5).
	LexicalWeight  float64 `yaml:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	// RRFConstant is the RRF smoothing parameter k (default 60).
	RRFConstant int `yaml:"rrf_constant"`
	// LexicalBackend selects "sqlite" (FTS5, default) or "bleve".
	LexicalBackend string `yaml:"lexical_backend"`
	// MaxResults caps the result list for any single query.
	MaxResults int `yaml:"max_results"`
}

// ExtractionConfig configures PDF text extraction.
type ExtractionConfig struct {
	// MaxPages is the per-document page budget (0 = unlimited).
	MaxPages int `yaml:"max_pages"`
	// Timeout is the per-document extraction budget.
	Timeout time.Duration `yaml:"timeout"`
	// Workers is the number of parallel extraction workers.
	Workers int `yaml:"workers"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama", "static", or "none" (disables semantic search).
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	OllamaHost string `yaml:"ollama_host"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level"`
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			RRFConstant:    60,
			LexicalBackend: LexicalBackendSQLite,
			MaxResults:     50,
		},
		Extraction: ExtractionConfig{
			MaxPages: 30,
			Timeout:  30 * time.Second,
			Workers:  4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   EmbeddingProviderNone,
			Model:      "nomic-embed-text",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// ConfigDir returns the platform-appropriate config directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "endnote-mcp")
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "endnote-mcp")
		}
		return filepath.Join(home, "endnote-mcp")
	default:
		return filepath.Join(home, ".config", "endnote-mcp")
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func defaultDataDir() string {
	return filepath.Join(ConfigDir(), "data")
}

// Resolve finds the config file path.
// Order: explicit argument, ENDNOTE_MCP_CONFIG, then the platform default.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	def := DefaultPath()
	if _, err := os.Stat(def); err == nil {
		return def, nil
	}
	return "", enerr.New(enerr.ErrCodeConfigMissing,
		"no configuration found", nil).
		WithSuggestion("create " + DefaultPath() + " with endnote_xml and pdf_dir set")
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, enerr.New(enerr.ErrCodeConfigMissing,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, enerr.Wrap(enerr.ErrCodeConfigInvalid, err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, enerr.New(enerr.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse %s: %v", path, err), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Library.XMLPath == "" {
		return enerr.New(enerr.ErrCodeConfigInvalid, "library.endnote_xml is required", nil)
	}
	if c.Storage.DataDir == "" {
		return enerr.New(enerr.ErrCodeConfigInvalid, "storage.data_dir is required", nil)
	}
	if c.Search.LexicalWeight < 0 || c.Search.SemanticWeight < 0 {
		return enerr.New(enerr.ErrCodeConfigInvalid, "search weights must be non-negative", nil)
	}
	if c.Search.LexicalWeight+c.Search.SemanticWeight == 0 {
		return enerr.New(enerr.ErrCodeConfigInvalid, "search weights must not both be zero", nil)
	}
	switch c.Search.LexicalBackend {
	case "", LexicalBackendSQLite, LexicalBackendBleve:
	default:
		return enerr.Newf(enerr.ErrCodeConfigInvalid,
			"unknown lexical backend %q (valid: sqlite, bleve)", c.Search.LexicalBackend)
	}
	switch c.Embeddings.Provider {
	case "", EmbeddingProviderNone, EmbeddingProviderOllama, EmbeddingProviderStatic:
	default:
		return enerr.Newf(enerr.ErrCodeConfigInvalid,
			"unknown embeddings provider %q (valid: none, ollama, static)", c.Embeddings.Provider)
	}
	return nil
}

// EmbeddingsEnabled reports whether semantic indexing is configured.
func (c *Config) EmbeddingsEnabled() bool {
	return c.Embeddings.Provider != "" && c.Embeddings.Provider != EmbeddingProviderNone
}

// DatabasePath returns the SQLite record store path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "library.db")
}

// LexicalIndexBasePath returns the lexical index base path; the backend
// factory appends its own extension.
func (c *Config) LexicalIndexBasePath() string {
	return filepath.Join(c.Storage.DataDir, "lexical")
}

// VectorIndexPath returns the persisted vector index path.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.Storage.DataDir, "vectors.gob")
}
