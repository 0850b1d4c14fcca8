// Package integrity audits a finished document against the citation store:
// every in-text marker must resolve to a stored citation, every stored
// citation should be cited, and no single source should dominate.
// The checker never mutates the store.
package integrity

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/matsen/citetrack/internal/store"
)

// DefaultOverRelianceFraction flags a source carrying more than this share
// of all in-text occurrences.
const DefaultOverRelianceFraction = 0.30

// minMarkersForOverReliance avoids flagging documents with too few markers
// for a fraction to be meaningful.
const minMarkersForOverReliance = 5

// markerPattern matches numeric in-text markers: [3], [1,4,7], [2, p. 15].
var markerPattern = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)*)(?:\s*,\s*p\.\s*[^\]]+)?\]`)

// Report is the result of one integrity check.
type Report struct {
	TotalMarkers    int `json:"total_markers"`    // All in-text occurrences
	DistinctCited   int `json:"distinct_cited"`   // Distinct citation numbers seen
	StoredCitations int `json:"stored_citations"` // Validated records in the store

	OrphanedMarkers []int `json:"orphaned_markers,omitempty"` // Numbers in text with no stored record
	UncitedEntries  []int `json:"uncited_entries,omitempty"`  // Stored numbers never cited

	Density      map[int]int    `json:"density,omitempty"` // Occurrences per citation number
	OverReliance []OverReliance `json:"over_reliance,omitempty"`

	Clean bool `json:"clean"` // No orphans, no uncited entries, no over-reliance
}

// OverReliance flags one dominating source.
type OverReliance struct {
	Number   int     `json:"number"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// Checker audits documents against a store.
type Checker struct {
	overRelianceFraction float64
}

// NewChecker creates a Checker. Fractions outside (0,1] fall back to the
// default.
func NewChecker(overRelianceFraction float64) *Checker {
	if overRelianceFraction <= 0 || overRelianceFraction > 1 {
		overRelianceFraction = DefaultOverRelianceFraction
	}
	return &Checker{overRelianceFraction: overRelianceFraction}
}

// Check extracts all in-text markers from the document and reconciles them
// with the store.
func (ch *Checker) Check(document string, s *store.Store) *Report {
	occurrences := ExtractMarkers(document)

	report := &Report{
		Density: make(map[int]int),
	}

	seen := make(map[int]bool)
	orphaned := make(map[int]bool)
	for _, n := range occurrences {
		report.TotalMarkers++
		report.Density[n]++
		if !seen[n] {
			seen[n] = true
			if _, ok := s.GetByNumber(n); !ok {
				orphaned[n] = true
			}
		}
	}
	report.DistinctCited = len(seen)

	for n := range orphaned {
		report.OrphanedMarkers = append(report.OrphanedMarkers, n)
	}
	sort.Ints(report.OrphanedMarkers)

	for _, c := range s.All() {
		if !c.Validated {
			continue
		}
		report.StoredCitations++
		if !seen[c.Number] {
			report.UncitedEntries = append(report.UncitedEntries, c.Number)
		}
	}
	sort.Ints(report.UncitedEntries)

	if report.TotalMarkers >= minMarkersForOverReliance {
		for n, count := range report.Density {
			frac := float64(count) / float64(report.TotalMarkers)
			if frac > ch.overRelianceFraction {
				report.OverReliance = append(report.OverReliance, OverReliance{
					Number:   n,
					Count:    count,
					Fraction: frac,
				})
			}
		}
		sort.Slice(report.OverReliance, func(i, j int) bool {
			return report.OverReliance[i].Number < report.OverReliance[j].Number
		})
	}

	report.Clean = len(report.OrphanedMarkers) == 0 &&
		len(report.UncitedEntries) == 0 &&
		len(report.OverReliance) == 0

	return report
}

// ExtractMarkers returns every citation number occurrence in document order.
// Grouped markers like [1,3,5] contribute one occurrence per number.
func ExtractMarkers(document string) []int {
	var out []int
	for _, m := range markerPattern.FindAllStringSubmatch(document, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			out = append(out, n)
		}
	}
	return out
}
