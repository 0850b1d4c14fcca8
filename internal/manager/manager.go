// Package manager coordinates the add pipeline: identifier validation,
// usage-context gating, duplicate detection, and insertion into the per-job
// store. Validation (the slow network part) runs outside the critical
// section with bounded parallelism; the duplicate-check-and-insert sequence
// is serialized per store so two concurrent adds of the same identifier can
// never both receive a citation number.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/dedup"
	"github.com/matsen/citetrack/internal/format"
	"github.com/matsen/citetrack/internal/store"
	"github.com/matsen/citetrack/internal/validate"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxOutbound caps simultaneous outbound registry calls per job.
const DefaultMaxOutbound = 4

// Manager is the coordinating façade for one job's citation tracking.
type Manager struct {
	store    *store.Store
	runner   *validate.Runner
	detector *dedup.Detector
	style    format.Style

	insertMu sync.Mutex          // Serializes duplicate-check-and-insert
	outbound *semaphore.Weighted // Bounds concurrent registry calls
}

// Option configures a Manager.
type Option func(*Manager)

// WithStyle sets the job's citation style (default author-date).
func WithStyle(style format.Style) Option {
	return func(m *Manager) { m.style = style }
}

// WithDetector sets a duplicate detector with custom thresholds.
func WithDetector(d *dedup.Detector) Option {
	return func(m *Manager) { m.detector = d }
}

// WithMaxOutbound caps simultaneous outbound validation calls.
func WithMaxOutbound(n int64) Option {
	return func(m *Manager) {
		if n > 0 {
			m.outbound = semaphore.NewWeighted(n)
		}
	}
}

// New creates a Manager for one job's store and validation runner.
func New(s *store.Store, runner *validate.Runner, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		runner:   runner,
		detector: dedup.NewDetector(dedup.DefaultTitleThreshold, dedup.DefaultAuthorThreshold),
		style:    format.StyleAuthorDate,
		outbound: semaphore.NewWeighted(DefaultMaxOutbound),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store exposes the underlying per-job store for read-only consumers
// (formatter, exporter, integrity checker).
func (m *Manager) Store() *store.Store { return m.store }

// Style returns the job's citation style.
func (m *Manager) Style() format.Style { return m.style }

// AddRequest is one candidate citation with its mandatory usage context.
type AddRequest struct {
	Identifier string              `json:"identifier"` // DOI, PMID, or URL in any accepted format
	Usage      citation.UsageDraft `json:"usage"`
	AddedBy    string              `json:"added_by,omitempty"`
}

// AddResult reports the outcome of an accepted add.
type AddResult struct {
	Citation  *citation.Citation `json:"citation"`
	Number    int                `json:"number"`
	Formatted string             `json:"formatted"`
	UsageID   string             `json:"usage_id"`

	// Merged reports that the candidate duplicated an existing record;
	// the result then describes the canonical record. Informational,
	// not an error.
	Merged      bool   `json:"merged"`
	MergeMethod string `json:"merge_method,omitempty"`
}

// Add runs the full pipeline for one candidate. Gate and validation
// failures are reported distinctly: a malformed identifier wraps
// validate.ErrInvalidFormat, a registry denial wraps validate.ErrNotFound,
// an exhausted retry wraps validate.ErrTransient, and an insufficient
// usage context wraps citation.ErrContextInsufficient. A failed add leaves
// the store untouched and consumes no citation number.
func (m *Manager) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	id, err := validate.Parse(req.Identifier)
	if err != nil {
		return nil, err
	}

	// The gate runs before any network work: a padding citation must not
	// cost a registry call.
	usage, err := citation.NewUsage(req.Usage)
	if err != nil {
		return nil, err
	}

	res, err := m.validateBounded(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status == validate.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", validate.ErrNotFound, res.Reason)
	}

	cand := res.Citation.Clone()
	cand.AddedBy = req.AddedBy
	cand.AddedAt = time.Now().UTC()
	cand.Usages = append(cand.Usages, usage)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.insertMu.Lock()
	defer m.insertMu.Unlock()

	if match := m.detector.FindDuplicate(cand, m.store.All()); match != nil {
		dedup.Merge(match.Canonical, cand)
		m.store.Reindex(match.Canonical)
		return &AddResult{
			Citation:    match.Canonical,
			Number:      match.Canonical.Number,
			Formatted:   format.Entry(match.Canonical),
			UsageID:     usage.ID,
			Merged:      true,
			MergeMethod: match.Method,
		}, nil
	}

	if err := m.store.Insert(cand); err != nil {
		return nil, err
	}

	return &AddResult{
		Citation:  cand,
		Number:    cand.Number,
		Formatted: format.Entry(cand),
		UsageID:   usage.ID,
	}, nil
}

func (m *Manager) validateBounded(ctx context.Context, id validate.Identifier) (*validate.Result, error) {
	if err := m.outbound.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.outbound.Release(1)
	return m.runner.Validate(ctx, id)
}

// AddUsage appends a further usage to an existing citation after the same
// gate check an add runs.
func (m *Manager) AddUsage(citationID string, draft citation.UsageDraft) (*citation.Usage, error) {
	usage, err := citation.NewUsage(draft)
	if err != nil {
		return nil, err
	}
	if err := m.store.AppendUsage(citationID, usage); err != nil {
		return nil, err
	}
	return &usage, nil
}

// FormatInText renders the in-text marker for the given citation IDs.
func (m *Manager) FormatInText(citationIDs []string, page string) (string, error) {
	cits := make([]*citation.Citation, 0, len(citationIDs))
	for _, id := range citationIDs {
		c, ok := m.store.Get(id)
		if !ok {
			return "", fmt.Errorf("citation %q not found", id)
		}
		cits = append(cits, c)
	}
	return format.InText(m.style, cits, page), nil
}

// FormatBibliography renders the full bibliography in the job's style.
func (m *Manager) FormatBibliography() string {
	return format.Bibliography(m.style, m.store.All())
}

// ValidationReport summarizes a re-validation pass over the store.
type ValidationReport struct {
	Total   int               `json:"total"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Skipped int               `json:"skipped"` // No re-checkable identifier
	Issues  []ValidationIssue `json:"issues,omitempty"`
}

// ValidationIssue describes one citation that failed re-validation.
type ValidationIssue struct {
	CitationID string `json:"citation_id"`
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

// ValidateAll re-runs identifier validation for every stored citation,
// cache-aided and bounded by the outbound cap. It catches identifiers that
// later became invalid or whose cache entries expired. The store itself is
// not mutated; failures are reported for the caller to act on.
func (m *Manager) ValidateAll(ctx context.Context) (*ValidationReport, error) {
	cits := m.store.All()
	report := &ValidationReport{Total: len(cits)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range cits {
		c := c
		id, ok := revalidationID(c)
		if !ok {
			mu.Lock()
			report.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			res, err := m.validateBounded(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && errors.Is(err, validate.ErrTransient):
				report.Failed++
				report.Issues = append(report.Issues, ValidationIssue{
					CitationID: c.ID, Identifier: id.String(), Reason: err.Error(),
				})
				return nil // Recoverable; keep checking the rest
			case err != nil:
				return err
			case res.Status == validate.StatusNotFound:
				report.Failed++
				report.Issues = append(report.Issues, ValidationIssue{
					CitationID: c.ID, Identifier: id.String(), Reason: res.Reason,
				})
			default:
				report.Passed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

// revalidationID picks the strongest identifier a citation can be re-checked
// by: DOI, then PMID, then URL.
func revalidationID(c *citation.Citation) (validate.Identifier, bool) {
	switch {
	case c.DOI != "":
		return validate.Identifier{Family: validate.FamilyDOI, Value: validate.NormalizeDOI(c.DOI)}, true
	case c.PMID != "":
		return validate.Identifier{Family: validate.FamilyPMID, Value: c.PMID}, true
	case c.URL != "":
		return validate.Identifier{Family: validate.FamilyURL, Value: c.URL}, true
	}
	return validate.Identifier{}, false
}
