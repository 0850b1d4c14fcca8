// Package citation defines the canonical bibliographic data model.
//
// The model follows the CSL-JSON field vocabulary: works carry a type, a
// title, a container title, structured names, and date parts. Fields a
// registry does not report stay zero-valued; nothing is defaulted.
package citation

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Type is the kind of cited work, using CSL-JSON type names.
type Type string

// Work types accepted by the model.
const (
	TypeArticleJournal  Type = "article-journal"
	TypeArticleMagazine Type = "article-magazine"
	TypeBook            Type = "book"
	TypeChapter         Type = "chapter"
	TypePaperConference Type = "paper-conference"
	TypeReport          Type = "report"
	TypeDataset         Type = "dataset"
	TypeSoftware        Type = "software"
	TypeThesis          Type = "thesis"
	TypeWebpage         Type = "webpage"
)

// Method records how a citation's identifier was confirmed.
type Method string

const (
	MethodDOI  Method = "doi"
	MethodPMID Method = "pmid"
	MethodURL  Method = "url"
)

// Name represents one creator: a person (Family required, Given optional)
// or an organization (Literal).
type Name struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
	Literal string `json:"literal,omitempty"` // Organizational name
}

// IsZero reports whether the name carries no usable identity.
func (n Name) IsZero() bool {
	return n.Family == "" && n.Literal == ""
}

// String formats the name as "Family, Given" or the literal form.
func (n Name) String() string {
	if n.Literal != "" {
		return n.Literal
	}
	if n.Given != "" {
		return n.Family + ", " + n.Given
	}
	return n.Family
}

// DateParts represents an issue date with optional month and day.
type DateParts struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // 1-12, 0 if unknown
	Day   int `json:"day,omitempty"`   // 1-31, 0 if unknown
}

// IsZero reports whether no date is known.
func (d DateParts) IsZero() bool { return d.Year == 0 }

// String formats the date as YYYY, YYYY-MM, or YYYY-MM-DD.
func (d DateParts) String() string {
	switch {
	case d.Year == 0:
		return ""
	case d.Month == 0:
		return fmt.Sprintf("%d", d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

// MoreSpecificThan reports whether d carries more date precision than other.
func (d DateParts) MoreSpecificThan(other DateParts) bool {
	return d.precision() > other.precision()
}

func (d DateParts) precision() int {
	switch {
	case d.Year == 0:
		return 0
	case d.Month == 0:
		return 1
	case d.Day == 0:
		return 2
	default:
		return 3
	}
}

// Citation is one verified bibliographic work together with its tracking
// state and the usages drawn from it.
type Citation struct {
	// Identity
	ID  string `json:"id"` // Internal stable citekey, never reused
	DOI string `json:"doi,omitempty"`
	// PMID is the PubMed identifier, digits only.
	PMID  string `json:"pmid,omitempty"`
	PMCID string `json:"pmcid,omitempty"`
	ISSN  string `json:"issn,omitempty"`
	URL   string `json:"url,omitempty"`

	// Bibliographic fields
	Type           Type      `json:"type"`
	Title          string    `json:"title,omitempty"`
	ContainerTitle string    `json:"container_title,omitempty"`
	Authors        []Name    `json:"authors,omitempty"`
	Issued         DateParts `json:"issued,omitempty"`
	Publisher      string    `json:"publisher,omitempty"`
	Volume         string    `json:"volume,omitempty"`
	Issue          string    `json:"issue,omitempty"`
	Pages          string    `json:"pages,omitempty"`
	Abstract       string    `json:"abstract,omitempty"`

	// Tracking fields
	Number           int       `json:"number"` // Assigned once at first acceptance
	Validated        bool      `json:"validated"`
	ValidationMethod Method    `json:"validation_method,omitempty"`
	AddedBy          string    `json:"added_by,omitempty"`
	AddedAt          time.Time `json:"added_at,omitempty"`

	Usages []Usage `json:"usages,omitempty"`
}

// Clone returns a copy whose slices are independent of the receiver. Cached
// validation results share citation values; callers must clone before
// mutating tracking state.
func (c *Citation) Clone() *Citation {
	out := *c
	out.Authors = append([]Name(nil), c.Authors...)
	out.Usages = append([]Usage(nil), c.Usages...)
	return &out
}

// FirstAuthorFamily returns the family (or literal) name of the first author.
func (c *Citation) FirstAuthorFamily() string {
	if len(c.Authors) == 0 {
		return ""
	}
	a := c.Authors[0]
	if a.Literal != "" {
		return a.Literal
	}
	return a.Family
}

// Year returns the publication year, or 0 if unknown.
func (c *Citation) Year() int { return c.Issued.Year }

// HasIdentifier reports whether the citation carries any external identifier
// or URL. A citation without one is never admissible.
func (c *Citation) HasIdentifier() bool {
	return c.DOI != "" || c.PMID != "" || c.URL != ""
}

// CiteKey generates a human-readable citekey like "Smith2023-ml".
// Not guaranteed unique; the store suffixes collisions before persisting.
func (c *Citation) CiteKey() string {
	family := sanitizeKeyPart(c.FirstAuthorFamily())
	if family == "" {
		family = "Anon"
	}
	year := c.Issued.Year
	if year == 0 {
		year = 9999
	}
	return fmt.Sprintf("%s%d-%s", family, year, titleSuffix(c.Title))
}

// CompletenessScore measures metadata coverage in [0,1]. Core fields and
// identifiers weigh 2.0, container/publisher 1.5, locator fields 1.0.
func (c *Citation) CompletenessScore() float64 {
	var total, filled float64

	core := []bool{c.Title != "", len(c.Authors) > 0, !c.Issued.IsZero()}
	for _, ok := range core {
		total += 2
		if ok {
			filled += 2
		}
	}

	important := []bool{c.ContainerTitle != "", c.Publisher != ""}
	for _, ok := range important {
		total += 1.5
		if ok {
			filled += 1.5
		}
	}

	identifiers := []bool{c.DOI != "", c.PMID != "", c.URL != ""}
	for _, ok := range identifiers {
		total += 2
		if ok {
			filled += 2
		}
	}

	optional := []bool{c.Volume != "", c.Issue != "", c.Pages != "", c.Abstract != ""}
	for _, ok := range optional {
		total++
		if ok {
			filled++
		}
	}

	return filled / total
}

// sanitizeKeyPart keeps letters and digits only.
func sanitizeKeyPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var keyStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "and": true,
	"in": true, "on": true, "for": true, "to": true, "with": true,
}

// titleSuffix creates a 2-letter suffix from the first significant title words.
func titleSuffix(title string) string {
	var b strings.Builder
	for _, word := range strings.Fields(strings.ToLower(title)) {
		if keyStopWords[word] || word == "" {
			continue
		}
		b.WriteByte(word[0])
		if b.Len() >= 2 {
			break
		}
	}
	for b.Len() < 2 {
		b.WriteByte('x')
	}
	return b.String()
}
