package search

import (
	"strconv"
	"strings"

	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// Filters narrows search results after ranking. Zero values match all.
type Filters struct {
	YearFrom int    // inclusive lower bound
	YearTo   int    // inclusive upper bound
	RefType  string // exact type, case-insensitive
	Author   string // substring of any author name, case-insensitive
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Match reports whether ref passes all set filters. References with an
// unparseable year fail any year bound.
func (f Filters) Match(ref *library.Reference) bool {
	if f.YearFrom != 0 || f.YearTo != 0 {
		year, err := strconv.Atoi(strings.TrimSpace(ref.Year))
		if err != nil {
			return false
		}
		if f.YearFrom != 0 && year < f.YearFrom {
			return false
		}
		if f.YearTo != 0 && year > f.YearTo {
			return false
		}
	}
	if f.RefType != "" && !strings.EqualFold(f.RefType, ref.RefType) {
		return false
	}
	if f.Author != "" {
		found := false
		for _, a := range ref.Authors {
			if strings.Contains(strings.ToLower(a), strings.ToLower(f.Author)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
