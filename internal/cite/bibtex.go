package cite

import (
	"strings"

	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// bibtexEntryType maps a reference type to a BibTeX entry type.
func bibtexEntryType(refType string) string {
	rt := strings.ToLower(refType)
	switch {
	case isArticle(rt):
		return "article"
	case strings.Contains(rt, "book section"), strings.Contains(rt, "chapter"):
		return "incollection"
	case strings.Contains(rt, "book"):
		return "book"
	case strings.Contains(rt, "conference"), strings.Contains(rt, "proceeding"):
		return "inproceedings"
	case strings.Contains(rt, "thesis"), strings.Contains(rt, "dissertation"):
		return "phdthesis"
	case strings.Contains(rt, "report"):
		return "techreport"
	}
	return "misc"
}

// citeKeyBase builds the undeduplicated key: first author surname
// (letters only, lowercased) plus year.
func citeKeyBase(ref *library.Reference) string {
	surname := "unknown"
	if len(ref.Authors) > 0 {
		var b strings.Builder
		for _, r := range ref.FirstAuthorSurname() {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			surname = strings.ToLower(b.String())
		}
	}
	return surname + strings.TrimSpace(ref.Year)
}

// citeKeys assigns a unique key per reference. Colliding keys get a
// trailing letter in input order: smith2020a, smith2020b.
func citeKeys(refs []*library.Reference) map[int]string {
	counts := make(map[string]int)
	for _, ref := range refs {
		counts[citeKeyBase(ref)]++
	}

	seen := make(map[string]int)
	keys := make(map[int]string, len(refs))
	for _, ref := range refs {
		base := citeKeyBase(ref)
		if counts[base] == 1 {
			keys[ref.RecNumber] = base
			continue
		}
		keys[ref.RecNumber] = base + string(rune('a'+seen[base]))
		seen[base]++
	}
	return keys
}

type bibtexField struct {
	name  string
	value string
}

func bibtexFields(ref *library.Reference) []bibtexField {
	var fields []bibtexField
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, bibtexField{name, value})
		}
	}

	add("author", strings.Join(ref.Authors, " and "))
	if ref.Title != "" {
		add("title", "{"+ref.Title+"}")
	}
	add("year", ref.Year)
	if isArticle(ref.RefType) {
		add("journal", ref.Journal)
	}
	add("volume", ref.Volume)
	add("number", ref.Issue)
	add("pages", strings.ReplaceAll(ref.Pages, "-", "--"))
	add("publisher", ref.Publisher)
	add("address", ref.PlacePublished)

	if doi := strings.TrimSpace(ref.DOI); doi != "" {
		doi = strings.TrimPrefix(doi, "https://doi.org/")
		doi = strings.TrimPrefix(doi, "http://doi.org/")
		add("doi", doi)
	}
	add("isbn", ref.ISBN)
	add("keywords", strings.Join(ref.Keywords, ", "))
	return fields
}

// BibTeX renders references as BibTeX entries separated by blank
// lines. Cite keys are deduplicated across the whole set.
func BibTeX(refs []*library.Reference) string {
	keys := citeKeys(refs)

	entries := make([]string, 0, len(refs))
	for _, ref := range refs {
		var b strings.Builder
		b.WriteString("@" + bibtexEntryType(ref.RefType) + "{" + keys[ref.RecNumber] + ",\n")
		for _, f := range bibtexFields(ref) {
			b.WriteString("  " + f.name + " = {" + f.value + "},\n")
		}
		b.WriteString("}")
		entries = append(entries, b.String())
	}
	return strings.Join(entries, "\n\n")
}
