// Package format renders in-text citation markers and bibliographies. All
// functions are pure: identical inputs always produce identical strings.
package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matsen/citetrack/internal/citation"
)

// Style selects how citations are rendered.
type Style string

const (
	// StyleAuthorDate renders "(Family, 2023) [n]" markers and an
	// alphabetical bibliography.
	StyleAuthorDate Style = "author-date"

	// StyleNumeric renders "[n]" markers and a number-ordered bibliography.
	StyleNumeric Style = "numeric"
)

// styleAliases maps the style names callers commonly supply.
var styleAliases = map[string]Style{
	"author-date": StyleAuthorDate,
	"apa":         StyleAuthorDate,
	"numeric":     StyleNumeric,
	"vancouver":   StyleNumeric,
	"ieee":        StyleNumeric,
}

// ParseStyle resolves a style name or alias.
func ParseStyle(s string) (Style, error) {
	if style, ok := styleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return style, nil
	}
	return "", fmt.Errorf("unknown citation style %q (valid: author-date, apa, numeric, vancouver, ieee)", s)
}

// InText renders the in-text marker for one or more citations in the given
// style, with an optional page locator.
func InText(style Style, cits []*citation.Citation, page string) string {
	if len(cits) == 0 {
		return ""
	}
	if style == StyleNumeric {
		return inTextNumeric(cits, page)
	}
	return inTextAuthorDate(cits, page)
}

func inTextNumeric(cits []*citation.Citation, page string) string {
	nums := make([]string, len(cits))
	for i, c := range cits {
		nums[i] = fmt.Sprintf("%d", c.Number)
	}
	if len(cits) == 1 && page != "" {
		return fmt.Sprintf("[%s, p. %s]", nums[0], page)
	}
	return "[" + strings.Join(nums, ",") + "]"
}

func inTextAuthorDate(cits []*citation.Citation, page string) string {
	if len(cits) == 1 {
		c := cits[0]
		if page != "" {
			return fmt.Sprintf("(%s, %s, p. %s) [%d]", authorLabel(c), yearLabel(c), page, c.Number)
		}
		return fmt.Sprintf("(%s, %s) [%d]", authorLabel(c), yearLabel(c), c.Number)
	}

	parts := make([]string, len(cits))
	for i, c := range cits {
		parts[i] = fmt.Sprintf("%s, %s [%d]", authorLabel(c), yearLabel(c), c.Number)
	}
	return "(" + strings.Join(parts, "; ") + ")"
}

func authorLabel(c *citation.Citation) string {
	if fam := c.FirstAuthorFamily(); fam != "" {
		return fam
	}
	return "Unknown"
}

func yearLabel(c *citation.Citation) string {
	if y := c.Year(); y != 0 {
		return fmt.Sprintf("%d", y)
	}
	return "n.d."
}

// Entry renders one bibliography entry: authors, year, title, container with
// volume/issue/pages, then DOI or URL.
func Entry(c *citation.Citation) string {
	var parts []string

	if s := entryAuthors(c.Authors); s != "" {
		parts = append(parts, s)
	}
	if y := c.Year(); y != 0 {
		parts = append(parts, fmt.Sprintf("(%d).", y))
	}
	if c.Title != "" {
		parts = append(parts, ensurePeriod(c.Title))
	}
	if s := entryContainer(c); s != "" {
		parts = append(parts, s)
	}
	if c.Publisher != "" && c.ContainerTitle == "" {
		parts = append(parts, ensurePeriod(c.Publisher))
	}

	switch {
	case c.DOI != "":
		parts = append(parts, "https://doi.org/"+c.DOI)
	case c.URL != "":
		parts = append(parts, c.URL)
	}

	return strings.Join(parts, " ")
}

func entryAuthors(authors []citation.Name) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0].String()
	case 2:
		return authors[0].String() + " & " + authors[1].String()
	default:
		return authors[0].String() + " et al."
	}
}

func entryContainer(c *citation.Citation) string {
	if c.ContainerTitle == "" {
		return ""
	}
	s := c.ContainerTitle
	if c.Volume != "" {
		s += ", " + c.Volume
	}
	if c.Issue != "" {
		s += "(" + c.Issue + ")"
	}
	if c.Pages != "" {
		s += ", " + c.Pages
	}
	return s + "."
}

func ensurePeriod(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!") {
		return s
	}
	return s + "."
}

// Bibliography renders every validated citation once, numbered, ordered per
// the style convention: alphabetical by first-author family for author-date,
// ascending citation number for numeric.
func Bibliography(style Style, cits []*citation.Citation) string {
	ordered := make([]*citation.Citation, 0, len(cits))
	for _, c := range cits {
		if c.Validated {
			ordered = append(ordered, c)
		}
	}

	if style == StyleAuthorDate {
		sort.SliceStable(ordered, func(i, j int) bool {
			a := strings.ToLower(authorLabel(ordered[i]))
			b := strings.ToLower(authorLabel(ordered[j]))
			if a != b {
				return a < b
			}
			return ordered[i].Number < ordered[j].Number
		})
	} else {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Number < ordered[j].Number
		})
	}

	lines := make([]string, len(ordered))
	for i, c := range ordered {
		lines[i] = fmt.Sprintf("[%d] %s", c.Number, Entry(c))
	}
	return strings.Join(lines, "\n")
}
