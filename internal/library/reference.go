// Package library defines the bibliographic data model shared by the
// importer, the stores, and the retrieval engine.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Reference is one bibliographic record from the EndNote export.
// RecNumber is the stable external identity; everything else is content.
type Reference struct {
	RecNumber int    `json:"rec_number"`
	RefType   string `json:"ref_type"`

	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     string   `json:"year"`
	Journal  string   `json:"journal,omitempty"`
	Volume   string   `json:"volume,omitempty"`
	Issue    string   `json:"issue,omitempty"`
	Pages    string   `json:"pages,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url,omitempty"`

	Publisher      string `json:"publisher,omitempty"`
	PlacePublished string `json:"place_published,omitempty"`
	Edition        string `json:"edition,omitempty"`
	ISBN           string `json:"isbn,omitempty"`
	Label          string `json:"label,omitempty"`
	Notes          string `json:"notes,omitempty"`

	// PDFPath is the attachment filename as recorded in the export
	// (internal-pdf:// reference), not a resolved filesystem path.
	PDFPath string `json:"pdf_path,omitempty"`

	// Indexing state, owned by the store.
	ContentHash       string    `json:"content_hash,omitempty"`
	ExtractionPending bool      `json:"extraction_pending,omitempty"`
	LastIndexedAt     time.Time `json:"last_indexed_at,omitempty"`
}

// ComputeContentHash returns the sha256 hex digest over the ordered
// content fields. Two references with equal hashes need no re-indexing.
// Field order is fixed; changing it invalidates every stored hash, which
// forces a full re-index on upgrade (intended).
func (r *Reference) ComputeContentHash() string {
	h := sha256.New()
	fields := []string{
		strconv.Itoa(r.RecNumber),
		r.RefType,
		r.Title,
		strings.Join(r.Authors, "|"),
		r.Year,
		r.Journal,
		r.Volume,
		r.Issue,
		r.Pages,
		r.Abstract,
		strings.Join(r.Keywords, "|"),
		r.DOI,
		r.URL,
		r.Publisher,
		r.PlacePublished,
		r.Edition,
		r.ISBN,
		r.Label,
		r.Notes,
		r.PDFPath,
	}
	for _, f := range fields {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EmbeddingText returns the text embedded for semantic search:
// title, abstract, and keywords joined. Empty when none are set.
func (r *Reference) EmbeddingText() string {
	var parts []string
	if r.Title != "" {
		parts = append(parts, r.Title)
	}
	if r.Abstract != "" {
		parts = append(parts, r.Abstract)
	}
	if len(r.Keywords) > 0 {
		parts = append(parts, strings.Join(r.Keywords, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// FirstAuthorSurname returns the surname of the first author, or "" when
// the author list is empty. Authors are stored "Surname, Given".
func (r *Reference) FirstAuthorSurname() string {
	if len(r.Authors) == 0 {
		return ""
	}
	name := r.Authors[0]
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	// Direct-order name: take the last word.
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}

// HasAttachment reports whether the record carries a PDF attachment.
func (r *Reference) HasAttachment() bool {
	return r.PDFPath != ""
}

// Page is one extracted PDF page. Pages with no extractable text are
// stored with empty Text so page counts stay exact.
type Page struct {
	RecNumber  int    `json:"rec_number"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// Embedding is a stored semantic vector for one reference.
// SourceTextHash records the content hash the vector was computed from;
// a mismatch with the reference's current hash marks it stale.
type Embedding struct {
	RecNumber      int       `json:"rec_number"`
	Vector         []float32 `json:"vector"`
	ModelName      string    `json:"model_name"`
	SourceTextHash string    `json:"source_text_hash"`
}
