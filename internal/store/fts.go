package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// SQLiteLexicalIndex implements LexicalIndex over FTS5 virtual tables in
// the record database, so postings commit atomically with the records.
//
// BM25 column weights on reference metadata: title 10, authors 5,
// abstract 3, keywords 8, journal 2.
type SQLiteLexicalIndex struct {
	db *sql.DB
}

var _ LexicalIndex = (*SQLiteLexicalIndex)(nil)

// NewSQLiteLexicalIndex creates the FTS5 tables on an open record
// database and returns the index.
func NewSQLiteLexicalIndex(db *sql.DB) (*SQLiteLexicalIndex, error) {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS ref_fts USING fts5(
		rec_number UNINDEXED,
		title,
		authors,
		abstract,
		keywords,
		journal,
		tokenize='porter unicode61'
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS page_fts USING fts5(
		rec_number UNINDEXED,
		page_number UNINDEXED,
		body,
		tokenize='porter unicode61'
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return &SQLiteLexicalIndex{db: db}, nil
}

// IndexReference replaces the metadata postings for ref.
// FTS5 has no REPLACE, so delete then insert.
func (s *SQLiteLexicalIndex) IndexReference(ctx context.Context, ref *library.Reference) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ref_fts WHERE rec_number = ?`, ref.RecNumber); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ref_fts (rec_number, title, authors, abstract, keywords, journal)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ref.RecNumber, ref.Title, strings.Join(ref.Authors, "; "),
		ref.Abstract, strings.Join(ref.Keywords, "; "), ref.Journal); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// IndexPages replaces all page postings for one reference.
func (s *SQLiteLexicalIndex) IndexPages(ctx context.Context, recNumber int, pages []library.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM page_fts WHERE rec_number = ?`, recNumber); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO page_fts (rec_number, page_number, body) VALUES (?, ?, ?)`)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer stmt.Close()

	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, recNumber, p.PageNumber, p.Text); err != nil {
			return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// Delete removes all postings for one reference.
func (s *SQLiteLexicalIndex) Delete(ctx context.Context, recNumber int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ref_fts WHERE rec_number = ?`, recNumber); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM page_fts WHERE rec_number = ?`, recNumber); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return nil
}

// SearchReferences queries metadata postings with weighted BM25.
func (s *SQLiteLexicalIndex) SearchReferences(ctx context.Context, query string, fields []string, limit int) ([]RefHit, error) {
	match, err := buildMatchExpr(query, fields)
	if err != nil {
		return nil, err
	}
	if match == "" {
		return nil, nil
	}

	// bm25() takes one weight per column including UNINDEXED rec_number.
	// Lower rank is better; negate for a positive score.
	rows, err := s.db.QueryContext(ctx, `
		SELECT rec_number, bm25(ref_fts, 0, 10.0, 5.0, 3.0, 8.0, 2.0) AS rank
		FROM ref_fts
		WHERE ref_fts MATCH ?
		ORDER BY rank, rec_number
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, enerr.InvalidQuery(fmt.Sprintf("bad search query %q: %v", query, err))
	}
	defer rows.Close()

	var hits []RefHit
	for rows.Next() {
		var h RefHit
		var rank float64
		if err := rows.Scan(&h.RecNumber, &rank); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchFulltext queries extracted PDF text, best page first.
func (s *SQLiteLexicalIndex) SearchFulltext(ctx context.Context, query string, limit int) ([]PageHit, error) {
	match, err := buildMatchExpr(query, nil)
	if err != nil {
		return nil, err
	}
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rec_number, page_number,
		       snippet(page_fts, 2, '>>>', '<<<', '...', 40) AS snip,
		       bm25(page_fts) AS rank
		FROM page_fts
		WHERE page_fts MATCH ?
		ORDER BY rank, rec_number, page_number
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, enerr.InvalidQuery(fmt.Sprintf("bad search query %q: %v", query, err))
	}
	defer rows.Close()

	var hits []PageHit
	for rows.Next() {
		var h PageHit
		var rank float64
		if err := rows.Scan(&h.RecNumber, &h.PageNumber, &h.Snippet, &rank); err != nil {
			return nil, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Count returns the number of indexed references.
func (s *SQLiteLexicalIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ref_fts`).Scan(&count)
	if err != nil {
		return 0, enerr.Wrap(enerr.ErrCodeStoreFailed, err)
	}
	return count, nil
}

// Close is a no-op; the database handle belongs to the record store.
func (s *SQLiteLexicalIndex) Close() error {
	return nil
}

// buildMatchExpr converts a user query to a safe FTS5 MATCH expression.
// Tokens are double-quoted so FTS5 operator words like NEAR stay literal;
// a trailing * keeps prefix-match behavior. An optional field list
// becomes an FTS5 column filter.
func buildMatchExpr(query string, fields []string) (string, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return "", nil
	}

	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		prefix := strings.HasSuffix(tok, "*")
		tok = strings.Trim(tok, `"*`)
		if tok == "" {
			continue
		}
		tok = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
		if prefix {
			tok += "*"
		}
		quoted = append(quoted, tok)
	}
	if len(quoted) == 0 {
		return "", nil
	}
	expr := strings.Join(quoted, " ")

	if len(fields) == 0 {
		return expr, nil
	}
	for _, f := range fields {
		if !isSearchableField(f) {
			return "", enerr.InvalidQuery(fmt.Sprintf("unknown search field %q", f))
		}
	}
	return "{" + strings.Join(fields, " ") + "}: (" + expr + ")", nil
}

func isSearchableField(name string) bool {
	for _, f := range SearchableFields {
		if f == name {
			return true
		}
	}
	return false
}
