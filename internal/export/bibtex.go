// Package export serializes the citation store into interchange formats:
// BibTeX, CSL-JSON, and a plain-text reference list. Exports never fabricate
// fields: anything absent from the model is omitted.
package export

import (
	"fmt"
	"strings"

	"github.com/matsen/citetrack/internal/citation"
)

// bibtexTypes maps canonical work types to BibTeX entry types.
var bibtexTypes = map[citation.Type]string{
	citation.TypeArticleJournal:  "article",
	citation.TypeArticleMagazine: "article",
	citation.TypePaperConference: "inproceedings",
	citation.TypeBook:            "book",
	citation.TypeChapter:         "incollection",
	citation.TypeReport:          "techreport",
	citation.TypeThesis:          "phdthesis",
}

// ToBibTeX converts one citation to a BibTeX entry.
func ToBibTeX(c *citation.Citation) string {
	entryType, ok := bibtexTypes[c.Type]
	if !ok {
		entryType = "misc"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", entryType, c.ID)

	if len(c.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", bibtexAuthors(c.Authors))
	}
	if c.Title != "" {
		fmt.Fprintf(&b, "  title = {%s},\n", escapeLatex(c.Title))
	}
	if c.ContainerTitle != "" {
		field := "journal"
		if entryType == "inproceedings" || entryType == "incollection" {
			field = "booktitle"
		}
		fmt.Fprintf(&b, "  %s = {%s},\n", field, escapeLatex(c.ContainerTitle))
	}
	if c.Publisher != "" {
		fmt.Fprintf(&b, "  publisher = {%s},\n", escapeLatex(c.Publisher))
	}
	if c.Issued.Year != 0 {
		fmt.Fprintf(&b, "  year = {%d},\n", c.Issued.Year)
	}
	if c.Issued.Month != 0 {
		fmt.Fprintf(&b, "  month = {%d},\n", c.Issued.Month)
	}
	if c.Volume != "" {
		fmt.Fprintf(&b, "  volume = {%s},\n", c.Volume)
	}
	if c.Issue != "" {
		fmt.Fprintf(&b, "  number = {%s},\n", c.Issue)
	}
	if c.Pages != "" {
		fmt.Fprintf(&b, "  pages = {%s},\n", c.Pages)
	}
	if c.DOI != "" {
		fmt.Fprintf(&b, "  doi = {%s},\n", c.DOI)
	}
	if c.PMID != "" {
		fmt.Fprintf(&b, "  pmid = {%s},\n", c.PMID)
	}
	if c.URL != "" && c.DOI == "" {
		fmt.Fprintf(&b, "  url = {%s},\n", c.URL)
	}

	b.WriteString("}\n")
	return b.String()
}

// ToBibTeXList converts multiple citations to a BibTeX document.
func ToBibTeXList(cits []*citation.Citation) string {
	entries := make([]string, 0, len(cits))
	for _, c := range cits {
		entries = append(entries, ToBibTeX(c))
	}
	return strings.Join(entries, "\n")
}

// bibtexAuthors formats authors as "Last, First and Last, First".
func bibtexAuthors(authors []citation.Name) string {
	formatted := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.Literal != "":
			formatted = append(formatted, "{"+escapeLatex(a.Literal)+"}")
		case a.Given != "":
			formatted = append(formatted, fmt.Sprintf("%s, %s", escapeLatex(a.Family), escapeLatex(a.Given)))
		default:
			formatted = append(formatted, escapeLatex(a.Family))
		}
	}
	return strings.Join(formatted, " and ")
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
