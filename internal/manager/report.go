package manager

import (
	"sort"

	"github.com/matsen/citetrack/internal/citation"
)

// UsageReport summarizes how the job's citations are actually being used.
type UsageReport struct {
	Citations        []CitationUsage `json:"citations"`
	TotalUsages      int             `json:"total_usages"`
	KindDistribution map[string]int  `json:"kind_distribution"`
	WithoutUsage     []string        `json:"without_usage,omitempty"` // Citation IDs
	Coverage         float64         `json:"coverage"`               // Fraction with >= 1 usage
}

// CitationUsage is one citation's usage entries in report form.
type CitationUsage struct {
	CitationID string           `json:"citation_id"`
	Number     int              `json:"number"`
	Title      string           `json:"title"`
	Usages     []citation.Usage `json:"usages"`
}

// UsageReport builds the per-citation usage summary, ordered by citation
// number.
func (m *Manager) UsageReport() *UsageReport {
	cits := m.store.All()
	sort.Slice(cits, func(i, j int) bool { return cits[i].Number < cits[j].Number })

	report := &UsageReport{KindDistribution: map[string]int{}}
	for _, c := range cits {
		report.Citations = append(report.Citations, CitationUsage{
			CitationID: c.ID,
			Number:     c.Number,
			Title:      c.Title,
			Usages:     c.Usages,
		})
		if len(c.Usages) == 0 {
			report.WithoutUsage = append(report.WithoutUsage, c.ID)
		}
		for _, u := range c.Usages {
			report.TotalUsages++
			report.KindDistribution[string(u.Kind)]++
		}
	}
	if len(cits) > 0 {
		report.Coverage = float64(len(cits)-len(report.WithoutUsage)) / float64(len(cits))
	}
	return report
}

// QualityMetrics aggregates record-quality signals across the store.
type QualityMetrics struct {
	Total           int     `json:"total"`
	Validated       int     `json:"validated"`
	ValidationRate  float64 `json:"validation_rate"`
	AvgCompleteness float64 `json:"avg_completeness"`
	DOICoverage     float64 `json:"doi_coverage"`
	PMIDCoverage    float64 `json:"pmid_coverage"`
}

// QualityMetrics computes validation rate, average completeness, and
// identifier coverage over the stored citations.
func (m *Manager) QualityMetrics() *QualityMetrics {
	cits := m.store.All()
	qm := &QualityMetrics{Total: len(cits)}
	if len(cits) == 0 {
		return qm
	}

	var completeness float64
	var doi, pmid int
	for _, c := range cits {
		if c.Validated {
			qm.Validated++
		}
		completeness += c.CompletenessScore()
		if c.DOI != "" {
			doi++
		}
		if c.PMID != "" {
			pmid++
		}
	}
	n := float64(len(cits))
	qm.ValidationRate = float64(qm.Validated) / n
	qm.AvgCompleteness = completeness / n
	qm.DOICoverage = float64(doi) / n
	qm.PMIDCoverage = float64(pmid) / n
	return qm
}
