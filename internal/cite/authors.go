package cite

import "strings"

// invertName puts a name into "Surname, I. I." order. Names that
// already contain a comma are trusted as inverted.
func invertName(name string) string {
	if strings.Contains(name, ",") {
		return strings.TrimSpace(name)
	}
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return strings.TrimSpace(name)
	}
	surname := parts[len(parts)-1]
	initials := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		initials = append(initials, string([]rune(p)[0])+".")
	}
	return surname + ", " + strings.Join(initials, " ")
}

// directOrder converts "Smith, John" to "John Smith".
func directOrder(name string) string {
	surname, given, ok := strings.Cut(name, ",")
	if !ok {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(given) + " " + strings.TrimSpace(surname)
}

// directOrderInitials converts "Smith, John A." to "J. A. Smith".
func directOrderInitials(name string) string {
	surname, given, ok := strings.Cut(name, ",")
	if !ok {
		return strings.TrimSpace(name)
	}
	var initials []string
	for _, w := range strings.Fields(given) {
		initials = append(initials, string([]rune(w)[0])+".")
	}
	return strings.Join(initials, " ") + " " + strings.TrimSpace(surname)
}

// vancouverName converts "Smith, John A." to "Smith JA".
func vancouverName(name string) string {
	surname, given, ok := strings.Cut(name, ",")
	if !ok {
		return strings.TrimSpace(name)
	}
	var initials strings.Builder
	for _, w := range strings.Fields(given) {
		initials.WriteString(strings.ToUpper(string([]rune(w)[0])))
	}
	return strings.TrimSpace(surname) + " " + initials.String()
}

// renderAuthors applies the per-style author list rules, including the
// et-al truncation thresholds from EtAlThresholds.
func renderAuthors(style Style, authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	switch style {
	case StyleAPA7, StyleHarvard:
		return renderInvertedAuthors(style, authors)
	case StyleVancouver:
		return renderVancouverAuthors(authors)
	case StyleChicago:
		return renderChicagoAuthors(authors)
	case StyleIEEE:
		return renderIEEEAuthors(authors)
	}
	return strings.Join(authors, "; ")
}

func renderInvertedAuthors(style Style, authors []string) string {
	formatted := make([]string, len(authors))
	for i, a := range authors {
		formatted[i] = invertName(a)
	}

	joiner := " & "
	if style == StyleHarvard {
		joiner = " and "
	}

	t := EtAlThresholds[style]
	switch {
	case len(formatted) == 1:
		return formatted[0]
	case len(formatted) == 2:
		return formatted[0] + joiner + formatted[1]
	case t.MaxListed == 0 || len(formatted) <= t.MaxListed:
		head := strings.Join(formatted[:len(formatted)-1], ", ")
		last := formatted[len(formatted)-1]
		if style == StyleAPA7 {
			return head + ", & " + last // serial comma
		}
		return head + " and " + last
	case t.Ellipsis:
		return strings.Join(formatted[:t.Leading], ", ") + ", ... " + formatted[len(formatted)-1]
	default:
		return formatted[0] + " et al."
	}
}

func renderVancouverAuthors(authors []string) string {
	formatted := make([]string, len(authors))
	for i, a := range authors {
		formatted[i] = vancouverName(a)
	}
	t := EtAlThresholds[StyleVancouver]
	if t.MaxListed == 0 || len(formatted) <= t.MaxListed {
		return strings.Join(formatted, ", ")
	}
	return strings.Join(formatted[:t.Leading], ", ") + ", et al"
}

func renderChicagoAuthors(authors []string) string {
	t := EtAlThresholds[StyleChicago]
	switch {
	case len(authors) == 1:
		return authors[0]
	case len(authors) == 2:
		return authors[0] + " and " + directOrder(authors[1])
	case t.MaxListed == 0 || len(authors) <= t.MaxListed:
		middle := make([]string, 0, len(authors)-2)
		for _, a := range authors[1 : len(authors)-1] {
			middle = append(middle, directOrder(a))
		}
		return authors[0] + ", " + strings.Join(middle, ", ") +
			", and " + directOrder(authors[len(authors)-1])
	default:
		return authors[0] + " et al."
	}
}

func renderIEEEAuthors(authors []string) string {
	formatted := make([]string, len(authors))
	for i, a := range authors {
		formatted[i] = directOrderInitials(a)
	}
	switch len(formatted) {
	case 1:
		return formatted[0]
	case 2:
		return formatted[0] + " and " + formatted[1]
	}
	return strings.Join(formatted[:len(formatted)-1], ", ") + ", and " + formatted[len(formatted)-1]
}
