package cite

import (
	"sort"
	"strings"

	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// entryKind selects the template branch for a reference type. Anything
// that is not a periodical article renders with the book template.
type entryKind int

const (
	kindArticle entryKind = iota
	kindBook
)

// isArticle reports whether a reference type is a periodical article.
func isArticle(refType string) bool {
	rt := strings.ToLower(refType)
	for _, kw := range []string{"journal", "article", "magazine", "periodical"} {
		if strings.Contains(rt, kw) {
			return true
		}
	}
	return false
}

func kindOf(ref *library.Reference) entryKind {
	if isArticle(ref.RefType) {
		return kindArticle
	}
	return kindBook
}

// part is one unit of a citation template. A part whose field resolves
// empty is dropped entirely, punctuation included, so missing data
// never leaves stray brackets behind.
type part struct {
	field  string
	prefix string
	suffix string
}

// templates drives rendering: ordered parts per (style, entry kind).
// Resolved parts are joined with single spaces.
var templates = map[Style]map[entryKind][]part{
	StyleAPA7: {
		kindArticle: {
			{field: "authors"},
			{field: "year", prefix: "(", suffix: ")."},
			{field: "title", suffix: "."},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
		kindBook: {
			{field: "authors"},
			{field: "year", prefix: "(", suffix: ")."},
			{field: "title", prefix: "*", suffix: "*."},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
	},
	StyleHarvard: {
		kindArticle: {
			{field: "authors"},
			{field: "year", prefix: "(", suffix: ")"},
			{field: "title", prefix: "'", suffix: "',"},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
		kindBook: {
			{field: "authors"},
			{field: "year", prefix: "(", suffix: ")"},
			{field: "title", prefix: "*", suffix: "*."},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
	},
	StyleVancouver: {
		kindArticle: {
			{field: "authors", suffix: "."},
			{field: "title", suffix: "."},
			{field: "source", suffix: "."},
		},
		kindBook: {
			{field: "authors", suffix: "."},
			{field: "title", suffix: "."},
			{field: "source", suffix: "."},
		},
	},
	StyleChicago: {
		kindArticle: {
			{field: "authors", suffix: "."},
			{field: "year", suffix: "."},
			{field: "title", prefix: `"`, suffix: `."`},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
		kindBook: {
			{field: "authors", suffix: "."},
			{field: "year", suffix: "."},
			{field: "title", prefix: "*", suffix: "*."},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
	},
	StyleIEEE: {
		kindArticle: {
			{field: "authors", suffix: ","},
			{field: "title", prefix: `"`, suffix: `,"`},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
		kindBook: {
			{field: "authors", suffix: ","},
			{field: "title", prefix: `"`, suffix: `,"`},
			{field: "source", suffix: "."},
			{field: "doi"},
		},
	},
}

// renderContext resolves template fields for one reference.
type renderContext struct {
	style     Style
	kind      entryKind
	ref       *library.Reference
	year      string // includes any a/b/c disambiguation suffix
	titleUsed bool
}

func (rc *renderContext) resolve(field string) string {
	switch field {
	case "authors":
		return rc.resolveAuthors()
	case "year":
		return rc.year
	case "title":
		return rc.resolveTitle()
	case "source":
		return rc.resolveSource()
	case "doi":
		return rc.resolveDOI()
	}
	return ""
}

func (rc *renderContext) resolveAuthors() string {
	if len(rc.ref.Authors) > 0 {
		return renderAuthors(rc.style, rc.ref.Authors)
	}
	// Author-date styles lead with the title when no author exists.
	if (rc.style == StyleAPA7 || rc.style == StyleChicago) && rc.ref.Title != "" {
		rc.titleUsed = true
		return rc.ref.Title + "."
	}
	return ""
}

func (rc *renderContext) resolveTitle() string {
	if rc.titleUsed {
		return ""
	}
	return rc.ref.Title
}

func (rc *renderContext) resolveSource() string {
	if rc.kind == kindArticle && rc.ref.Journal != "" {
		return rc.articleSource()
	}
	return rc.bookSource()
}

func (rc *renderContext) articleSource() string {
	ref := rc.ref
	var b strings.Builder
	switch rc.style {
	case StyleAPA7:
		b.WriteString("*" + ref.Journal + "*")
		if ref.Volume != "" {
			b.WriteString(", *" + ref.Volume + "*")
		}
		if ref.Issue != "" {
			b.WriteString("(" + ref.Issue + ")")
		}
		if ref.Pages != "" {
			b.WriteString(", " + ref.Pages)
		}
	case StyleHarvard:
		b.WriteString("*" + ref.Journal + "*")
		if ref.Volume != "" {
			b.WriteString(", vol. " + ref.Volume)
		}
		if ref.Issue != "" {
			b.WriteString(", no. " + ref.Issue)
		}
		if ref.Pages != "" {
			b.WriteString(", pp. " + ref.Pages)
		}
	case StyleVancouver:
		b.WriteString(ref.Journal + ". " + rc.year)
		if ref.Volume != "" {
			b.WriteString(";" + ref.Volume)
		}
		if ref.Issue != "" {
			b.WriteString("(" + ref.Issue + ")")
		}
		if ref.Pages != "" {
			b.WriteString(":" + ref.Pages)
		}
	case StyleChicago:
		b.WriteString("*" + ref.Journal + "*")
		if ref.Volume != "" {
			b.WriteString(" " + ref.Volume)
		}
		if ref.Issue != "" {
			b.WriteString(", no. " + ref.Issue)
		}
		if ref.Pages != "" {
			b.WriteString(": " + ref.Pages)
		}
	case StyleIEEE:
		b.WriteString("*" + ref.Journal + "*")
		if ref.Volume != "" {
			b.WriteString(", vol. " + ref.Volume)
		}
		if ref.Issue != "" {
			b.WriteString(", no. " + ref.Issue)
		}
		if ref.Pages != "" {
			b.WriteString(", pp. " + ref.Pages)
		}
		b.WriteString(", " + rc.year)
	}
	return b.String()
}

func (rc *renderContext) bookSource() string {
	ref := rc.ref
	if ref.Publisher == "" {
		return ""
	}
	imprint := ref.Publisher
	if ref.PlacePublished != "" {
		imprint = ref.PlacePublished + ": " + ref.Publisher
	}
	switch rc.style {
	case StyleVancouver:
		return imprint + "; " + rc.year
	case StyleIEEE:
		return imprint + ", " + rc.year
	}
	return imprint
}

func (rc *renderContext) resolveDOI() string {
	doi := strings.TrimSpace(rc.ref.DOI)
	if doi == "" {
		return ""
	}
	if strings.HasPrefix(doi, "http") {
		return doi
	}
	if rc.style == StyleIEEE {
		return "doi: " + doi
	}
	return "https://doi.org/" + doi
}

func render(ref *library.Reference, style Style, yearSuffix string) string {
	year := strings.TrimSpace(ref.Year)
	if year == "" {
		year = "n.d."
	}
	rc := &renderContext{
		style: style,
		kind:  kindOf(ref),
		ref:   ref,
		year:  year + yearSuffix,
	}

	var rendered []string
	for _, p := range templates[style][rc.kind] {
		value := rc.resolve(p.field)
		if value == "" {
			continue
		}
		rendered = append(rendered, p.prefix+value+p.suffix)
	}
	return strings.Join(rendered, " ")
}

// Format renders a single reference in the given style.
func Format(ref *library.Reference, style Style) string {
	return render(ref, style, "")
}

// FormatSet renders a set of references together, applying a/b/c year
// suffixes to entries that share the same authors and year. Suffixes
// are assigned in title order and are scoped to this set only.
func FormatSet(refs []*library.Reference, style Style) map[int]string {
	suffixes := yearSuffixes(refs)
	out := make(map[int]string, len(refs))
	for _, ref := range refs {
		out[ref.RecNumber] = render(ref, style, suffixes[ref.RecNumber])
	}
	return out
}

// yearSuffixes assigns disambiguation suffixes within one set.
func yearSuffixes(refs []*library.Reference) map[int]string {
	groups := make(map[string][]*library.Reference)
	for _, ref := range refs {
		key := strings.ToLower(strings.Join(ref.Authors, ";")) + "\x00" + ref.Year
		groups[key] = append(groups[key], ref)
	}

	suffixes := make(map[int]string)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].Title != group[j].Title {
				return group[i].Title < group[j].Title
			}
			return group[i].RecNumber < group[j].RecNumber
		})
		for i, ref := range group {
			suffixes[ref.RecNumber] = string(rune('a' + i))
		}
	}
	return suffixes
}

// SortOrder selects bibliography ordering.
type SortOrder string

const (
	SortByAuthor SortOrder = "author"
	SortByYear   SortOrder = "year"
)

// Entry is one formatted bibliography line.
type Entry struct {
	RecNumber int
	Text      string
}

// Bibliography formats a set with disambiguation and returns entries in
// the requested order: alphabetical by first author surname, or
// chronological by year. Ties fall back to the other key, then record
// number.
func Bibliography(refs []*library.Reference, style Style, order SortOrder) []Entry {
	formatted := FormatSet(refs, style)

	sorted := make([]*library.Reference, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		authorA := strings.ToLower(a.FirstAuthorSurname())
		authorB := strings.ToLower(b.FirstAuthorSurname())
		if order == SortByYear {
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			if authorA != authorB {
				return authorA < authorB
			}
		} else {
			if authorA != authorB {
				return authorA < authorB
			}
			if a.Year != b.Year {
				return a.Year < b.Year
			}
		}
		return a.RecNumber < b.RecNumber
	})

	entries := make([]Entry, 0, len(sorted))
	for _, ref := range sorted {
		entries = append(entries, Entry{RecNumber: ref.RecNumber, Text: formatted[ref.RecNumber]})
	}
	return entries
}
