package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// SQLiteStore is the record store: references, extracted PDF pages, and
// embedding vectors in one SQLite database. WAL mode, single writer.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the record database at path.
// An empty path opens an in-memory database for testing.
func Open(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}

	// Single writer to prevent lock contention; readers go through WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN params, so pragmas go through Exec.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS "references" (
		rec_number         INTEGER PRIMARY KEY,
		ref_type           TEXT NOT NULL DEFAULT '',
		title              TEXT NOT NULL DEFAULT '',
		authors            TEXT NOT NULL DEFAULT '[]',  -- JSON array
		year               TEXT NOT NULL DEFAULT '',
		journal            TEXT NOT NULL DEFAULT '',
		volume             TEXT NOT NULL DEFAULT '',
		issue              TEXT NOT NULL DEFAULT '',
		pages              TEXT NOT NULL DEFAULT '',
		abstract           TEXT NOT NULL DEFAULT '',
		keywords           TEXT NOT NULL DEFAULT '[]',  -- JSON array
		doi                TEXT NOT NULL DEFAULT '',
		url                TEXT NOT NULL DEFAULT '',
		publisher          TEXT NOT NULL DEFAULT '',
		place_published    TEXT NOT NULL DEFAULT '',
		edition            TEXT NOT NULL DEFAULT '',
		isbn               TEXT NOT NULL DEFAULT '',
		label              TEXT NOT NULL DEFAULT '',
		notes              TEXT NOT NULL DEFAULT '',
		pdf_path           TEXT NOT NULL DEFAULT '',
		content_hash       TEXT NOT NULL DEFAULT '',
		extraction_pending INTEGER NOT NULL DEFAULT 0,
		last_indexed_at    TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pdf_pages (
		rec_number  INTEGER NOT NULL REFERENCES "references"(rec_number) ON DELETE CASCADE,
		page_number INTEGER NOT NULL,
		text        TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (rec_number, page_number)
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		rec_number       INTEGER PRIMARY KEY REFERENCES "references"(rec_number) ON DELETE CASCADE,
		vector           BLOB NOT NULL,
		model_name       TEXT NOT NULL,
		source_text_hash TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_references_year ON "references"(year);
	CREATE INDEX IF NOT EXISTS idx_references_pending ON "references"(extraction_pending)
		WHERE extraction_pending = 1;

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// DB exposes the underlying handle so the FTS5 lexical index can share
// the database and participate in the same transactions.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertReference writes all content fields of ref and clears its
// content_hash. The hash is set separately by FinalizeReference once the
// whole commit unit (pages, postings, embedding invalidation) succeeded;
// a crash in between leaves the record classified as needing an update.
func (s *SQLiteStore) UpsertReference(ctx context.Context, ref *library.Reference) error {
	authors, err := json.Marshal(ref.Authors)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	keywords, err := json.Marshal(ref.Keywords)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO "references" (
			rec_number, ref_type, title, authors, year, journal,
			volume, issue, pages, abstract, keywords, doi, url,
			publisher, place_published, edition, isbn, label, notes,
			pdf_path, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')
		ON CONFLICT(rec_number) DO UPDATE SET
			ref_type = excluded.ref_type,
			title = excluded.title,
			authors = excluded.authors,
			year = excluded.year,
			journal = excluded.journal,
			volume = excluded.volume,
			issue = excluded.issue,
			pages = excluded.pages,
			abstract = excluded.abstract,
			keywords = excluded.keywords,
			doi = excluded.doi,
			url = excluded.url,
			publisher = excluded.publisher,
			place_published = excluded.place_published,
			edition = excluded.edition,
			isbn = excluded.isbn,
			label = excluded.label,
			notes = excluded.notes,
			pdf_path = excluded.pdf_path,
			content_hash = ''
	`,
		ref.RecNumber, ref.RefType, ref.Title, string(authors), ref.Year,
		ref.Journal, ref.Volume, ref.Issue, ref.Pages, ref.Abstract,
		string(keywords), ref.DOI, ref.URL, ref.Publisher,
		ref.PlacePublished, ref.Edition, ref.ISBN, ref.Label, ref.Notes,
		ref.PDFPath)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// FinalizeReference records the content hash and index timestamp. This
// is the last write of a record's commit unit.
func (s *SQLiteStore) FinalizeReference(ctx context.Context, recNumber int, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE "references" SET content_hash = ?, last_indexed_at = ? WHERE rec_number = ?`,
		contentHash, time.Now().UTC().Format(time.RFC3339), recNumber)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return enerr.RecordNotFound(recNumber)
	}
	return nil
}

const refColumns = `rec_number, ref_type, title, authors, year, journal,
	volume, issue, pages, abstract, keywords, doi, url, publisher,
	place_published, edition, isbn, label, notes, pdf_path,
	content_hash, extraction_pending, last_indexed_at`

func scanReference(scan func(...any) error) (*library.Reference, error) {
	var (
		ref                  library.Reference
		authors, keywords    string
		pending              int
		lastIndexed          string
	)
	err := scan(&ref.RecNumber, &ref.RefType, &ref.Title, &authors,
		&ref.Year, &ref.Journal, &ref.Volume, &ref.Issue, &ref.Pages,
		&ref.Abstract, &keywords, &ref.DOI, &ref.URL, &ref.Publisher,
		&ref.PlacePublished, &ref.Edition, &ref.ISBN, &ref.Label,
		&ref.Notes, &ref.PDFPath, &ref.ContentHash, &pending, &lastIndexed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &ref.Authors); err != nil {
		return nil, fmt.Errorf("corrupt authors column for #%d: %w", ref.RecNumber, err)
	}
	if err := json.Unmarshal([]byte(keywords), &ref.Keywords); err != nil {
		return nil, fmt.Errorf("corrupt keywords column for #%d: %w", ref.RecNumber, err)
	}
	ref.ExtractionPending = pending != 0
	if lastIndexed != "" {
		if t, err := time.Parse(time.RFC3339, lastIndexed); err == nil {
			ref.LastIndexedAt = t
		}
	}
	return &ref, nil
}

// GetReference returns one reference by record number.
func (s *SQLiteStore) GetReference(ctx context.Context, recNumber int) (*library.Reference, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+refColumns+` FROM "references" WHERE rec_number = ?`, recNumber)
	ref, err := scanReference(row.Scan)
	if err == sql.ErrNoRows {
		return nil, enerr.RecordNotFound(recNumber)
	}
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return ref, nil
}

// AllReferences returns every stored reference ordered by record number.
func (s *SQLiteStore) AllReferences(ctx context.Context) ([]*library.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+refColumns+` FROM "references" ORDER BY rec_number`)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer rows.Close()

	var refs []*library.Reference
	for rows.Next() {
		ref, err := scanReference(rows.Scan)
		if err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListContentHashes returns rec_number -> content_hash for every stored
// reference. Records with an unfinalized (empty) hash are included so
// the change detector classifies them as needing an update.
func (s *SQLiteStore) ListContentHashes(ctx context.Context) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rec_number, content_hash FROM "references"`)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer rows.Close()

	hashes := make(map[int]string)
	for rows.Next() {
		var rec int
		var hash string
		if err := rows.Scan(&rec, &hash); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		hashes[rec] = hash
	}
	return hashes, rows.Err()
}

// DeleteReference removes a reference; pages and embeddings cascade.
func (s *SQLiteStore) DeleteReference(ctx context.Context, recNumber int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM "references" WHERE rec_number = ?`, recNumber)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// SetExtractionPending marks a record's attachment for retry on the next
// incremental run.
func (s *SQLiteStore) SetExtractionPending(ctx context.Context, recNumber int, pending bool) error {
	v := 0
	if pending {
		v = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE "references" SET extraction_pending = ? WHERE rec_number = ?`, v, recNumber)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// ListExtractionPending returns record numbers whose attachment
// extraction previously failed.
func (s *SQLiteStore) ListExtractionPending(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rec_number FROM "references" WHERE extraction_pending = 1 ORDER BY rec_number`)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer rows.Close()

	var recs []int
	for rows.Next() {
		var rec int
		if err := rows.Scan(&rec); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ReplacePages swaps in the full extracted page set for one reference.
func (s *SQLiteStore) ReplacePages(ctx context.Context, recNumber int, pages []library.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pdf_pages WHERE rec_number = ?`, recNumber); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pdf_pages (rec_number, page_number, text) VALUES (?, ?, ?)`)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if _, err := stmt.ExecContext(ctx, recNumber, p.PageNumber, p.Text); err != nil {
			return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// GetPages returns all extracted pages for a reference in page order.
func (s *SQLiteStore) GetPages(ctx context.Context, recNumber int) ([]library.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_number, text FROM pdf_pages WHERE rec_number = ? ORDER BY page_number`,
		recNumber)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer rows.Close()

	var pages []library.Page
	for rows.Next() {
		p := library.Page{RecNumber: recNumber}
		if err := rows.Scan(&p.PageNumber, &p.Text); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// PageCount returns the highest extracted page number for a reference,
// which equals the extracted document length.
func (s *SQLiteStore) PageCount(ctx context.Context, recNumber int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(page_number), 0) FROM pdf_pages WHERE rec_number = ?`,
		recNumber).Scan(&count)
	if err != nil {
		return 0, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return count, nil
}

// SaveEmbedding stores (or replaces) the embedding for one reference.
func (s *SQLiteStore) SaveEmbedding(ctx context.Context, emb *library.Embedding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO embeddings (rec_number, vector, model_name, source_text_hash)
		VALUES (?, ?, ?, ?)`,
		emb.RecNumber, encodeVector(emb.Vector), emb.ModelName, emb.SourceTextHash)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// GetEmbedding returns the stored embedding, or nil when none exists.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, recNumber int) (*library.Embedding, error) {
	var (
		blob        []byte
		model, hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, model_name, source_text_hash FROM embeddings WHERE rec_number = ?`,
		recNumber).Scan(&blob, &model, &hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return &library.Embedding{
		RecNumber:      recNumber,
		Vector:         decodeVector(blob),
		ModelName:      model,
		SourceTextHash: hash,
	}, nil
}

// DeleteEmbedding drops the embedding for one reference, if any.
func (s *SQLiteStore) DeleteEmbedding(ctx context.Context, recNumber int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE rec_number = ?`, recNumber)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding, used to rebuild the
// vector index at startup.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) ([]*library.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rec_number, vector, model_name, source_text_hash FROM embeddings ORDER BY rec_number`)
	if err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer rows.Close()

	var embs []*library.Embedding
	for rows.Next() {
		var (
			rec         int
			blob        []byte
			model, hash string
		)
		if err := rows.Scan(&rec, &blob, &model, &hash); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		embs = append(embs, &library.Embedding{
			RecNumber:      rec,
			Vector:         decodeVector(blob),
			ModelName:      model,
			SourceTextHash: hash,
		})
	}
	return embs, rows.Err()
}

// Stats returns index statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM "references"`, &st.References},
		{`SELECT COUNT(*) FROM "references" WHERE pdf_path != ''`, &st.WithAttachments},
		{`SELECT COUNT(DISTINCT rec_number) FROM pdf_pages`, &st.RefsWithPages},
		{`SELECT COUNT(*) FROM pdf_pages`, &st.PagesExtracted},
		{`SELECT COUNT(*) FROM embeddings`, &st.Embedded},
		{`SELECT COUNT(*) FROM "references" WHERE extraction_pending = 1`, &st.ExtractionPending},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
	}
	return st, nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks little-endian bytes into a float32 slice.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
