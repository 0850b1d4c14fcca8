// Package dedup detects duplicate citations and folds them into the
// canonical record. Exact identifier matching runs first; fuzzy metadata
// matching only applies when no identifier is shared.
package dedup

import (
	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
)

// Default similarity thresholds. Tunable via config; these are starting
// points, not validated constants.
const (
	DefaultTitleThreshold  = 0.85
	DefaultAuthorThreshold = 0.90
)

// Detector finds duplicates among citations.
type Detector struct {
	titleThreshold  float64
	authorThreshold float64
}

// NewDetector creates a Detector. Thresholds outside (0,1] fall back to the
// defaults.
func NewDetector(titleThreshold, authorThreshold float64) *Detector {
	if titleThreshold <= 0 || titleThreshold > 1 {
		titleThreshold = DefaultTitleThreshold
	}
	if authorThreshold <= 0 || authorThreshold > 1 {
		authorThreshold = DefaultAuthorThreshold
	}
	return &Detector{titleThreshold: titleThreshold, authorThreshold: authorThreshold}
}

// Match describes how a candidate duplicates an existing record.
type Match struct {
	Canonical *citation.Citation `json:"-"`
	Method    string             `json:"method"` // doi, pmid, url, fuzzy
	Score     float64            `json:"score"`  // 1.0 for exact matches
}

// FindDuplicate returns the first existing record the candidate duplicates,
// or nil. Existing records are scanned in insertion order, so the earliest
// record wins and stays canonical.
func (d *Detector) FindDuplicate(cand *citation.Citation, existing []*citation.Citation) *Match {
	// Exact identifier pass.
	for _, e := range existing {
		if m := exactMatch(cand, e); m != nil {
			return m
		}
	}

	// Fuzzy metadata pass.
	for _, e := range existing {
		if m := d.fuzzyMatch(cand, e); m != nil {
			return m
		}
	}

	return nil
}

func exactMatch(cand, e *citation.Citation) *Match {
	if cand.DOI != "" && e.DOI != "" &&
		validate.NormalizeDOI(cand.DOI) == validate.NormalizeDOI(e.DOI) {
		return &Match{Canonical: e, Method: "doi", Score: 1.0}
	}
	if cand.PMID != "" && cand.PMID == e.PMID {
		return &Match{Canonical: e, Method: "pmid", Score: 1.0}
	}
	if cand.URL != "" && e.URL != "" &&
		validate.NormalizeURL(cand.URL) == validate.NormalizeURL(e.URL) {
		return &Match{Canonical: e, Method: "url", Score: 1.0}
	}
	return nil
}

// fuzzyMatch requires title similarity, first-author similarity, and an
// exact year match all at once.
func (d *Detector) fuzzyMatch(cand, e *citation.Citation) *Match {
	if cand.Year() == 0 || cand.Year() != e.Year() {
		return nil
	}

	titleSim := titleSimilarity(cand.Title, e.Title)
	if titleSim < d.titleThreshold {
		return nil
	}

	authorSim := authorSimilarity(cand.Authors, e.Authors)
	if authorSim < d.authorThreshold {
		return nil
	}

	return &Match{Canonical: e, Method: "fuzzy", Score: (titleSim + authorSim) / 2}
}

func titleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	return Ratio(normalizeText(a), normalizeText(b))
}

// authorSimilarity compares first authors, averaging in the second authors
// when both lists have them and the first authors already agree well.
func authorSimilarity(a, b []citation.Name) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	sim := Ratio(nameKey(a[0]), nameKey(b[0]))
	if sim > 0.8 && len(a) > 1 && len(b) > 1 {
		sim = (sim + Ratio(nameKey(a[1]), nameKey(b[1]))) / 2
	}
	return sim
}

func nameKey(n citation.Name) string {
	if n.Literal != "" {
		return normalizeText(n.Literal)
	}
	return normalizeText(n.Family + " " + n.Given)
}

// Merge folds the duplicate candidate into the canonical record: fields the
// canonical record lacks are filled from the candidate, populated fields are
// never overwritten, usages move over, and the citation number is untouched.
func Merge(canonical, dup *citation.Citation) {
	fillString(&canonical.Title, dup.Title)
	fillString(&canonical.ContainerTitle, dup.ContainerTitle)
	fillString(&canonical.Publisher, dup.Publisher)
	fillString(&canonical.Volume, dup.Volume)
	fillString(&canonical.Issue, dup.Issue)
	fillString(&canonical.Pages, dup.Pages)
	fillString(&canonical.Abstract, dup.Abstract)
	fillString(&canonical.DOI, dup.DOI)
	fillString(&canonical.PMID, dup.PMID)
	fillString(&canonical.PMCID, dup.PMCID)
	fillString(&canonical.ISSN, dup.ISSN)
	fillString(&canonical.URL, dup.URL)

	if canonical.Type == "" {
		canonical.Type = dup.Type
	}

	// Prefer the longer author list; registries differ in how many
	// authors they report.
	if len(dup.Authors) > len(canonical.Authors) {
		canonical.Authors = dup.Authors
	}

	if dup.Issued.MoreSpecificThan(canonical.Issued) {
		canonical.Issued = dup.Issued
	}

	if dup.Validated && !canonical.Validated {
		canonical.Validated = true
		canonical.ValidationMethod = dup.ValidationMethod
	}

	canonical.Usages = append(canonical.Usages, dup.Usages...)
	dup.Usages = nil
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}
