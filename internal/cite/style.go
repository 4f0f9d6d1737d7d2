// Package cite formats references as citations, bibliographies, and
// BibTeX entries. Rendering is table-driven: each (style, entry kind)
// pair maps to an ordered list of field parts, so adding a style is a
// data change rather than new branching.
package cite

import (
	"fmt"
	"strings"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
)

// Style identifies a citation style.
type Style string

const (
	StyleAPA7      Style = "apa7"
	StyleHarvard   Style = "harvard"
	StyleVancouver Style = "vancouver"
	StyleChicago   Style = "chicago"
	StyleIEEE      Style = "ieee"
)

// Styles lists all supported styles in display order.
func Styles() []Style {
	return []Style{StyleAPA7, StyleHarvard, StyleVancouver, StyleChicago, StyleIEEE}
}

// ParseStyle validates a style identifier, case-insensitively.
func ParseStyle(s string) (Style, error) {
	normalized := Style(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Styles() {
		if normalized == known {
			return known, nil
		}
	}
	names := make([]string, 0, len(Styles()))
	for _, st := range Styles() {
		names = append(names, string(st))
	}
	return "", enerr.New(enerr.ErrCodeUnknownStyle,
		fmt.Sprintf("unknown citation style %q", s), nil).
		WithSuggestion("choose one of: " + strings.Join(names, ", "))
}

// EtAlThreshold controls multi-author truncation for one style. Zero
// MaxListed means every author is listed.
type EtAlThreshold struct {
	// MaxListed is the largest author count rendered in full.
	MaxListed int
	// Leading is how many authors to keep when the list is truncated.
	Leading int
	// Ellipsis inserts "..." before the final author instead of
	// replacing the tail with "et al." (APA 7th rule).
	Ellipsis bool
}

// EtAlThresholds holds the published style-guide defaults. Exposed as a
// variable so deployments with house rules can override them.
var EtAlThresholds = map[Style]EtAlThreshold{
	StyleAPA7:      {MaxListed: 20, Leading: 19, Ellipsis: true},
	StyleHarvard:   {MaxListed: 3, Leading: 1},
	StyleVancouver: {MaxListed: 6, Leading: 6},
	StyleChicago:   {MaxListed: 3, Leading: 1},
	StyleIEEE:      {},
}
