// Package validate defines the identifier-validation contract shared by the
// registry clients: identifier families and normalization, the three-way
// outcome classification, the per-job result cache, and bounded retry.
package validate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/matsen/citetrack/internal/citation"
)

// Family names one identifier family.
type Family string

const (
	FamilyDOI  Family = "doi"
	FamilyPMID Family = "pmid"
	FamilyURL  Family = "url"
)

// Sentinel errors for validation outcomes.
var (
	// ErrInvalidFormat indicates a malformed identifier, rejected before
	// any network call.
	ErrInvalidFormat = errors.New("invalid identifier format")

	// ErrNotFound indicates the registry affirmatively reports no such
	// record. Hard rejection, cached, never retried.
	ErrNotFound = errors.New("identifier not found in registry")

	// ErrTransient indicates a network or service failure. Eligible for
	// bounded retry; never cached.
	ErrTransient = errors.New("transient validation failure")
)

// Status classifies a definitive validation outcome.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusNotFound  Status = "not_found"
)

// Result is the outcome of validating one identifier. Citation carries the
// registry metadata mapped into the canonical model when Status is confirmed.
type Result struct {
	Status   Status             `json:"status"`
	Citation *citation.Citation `json:"citation,omitempty"`
	Reason   string             `json:"reason,omitempty"`
}

// Validator resolves one identifier family against its registry.
// Validate receives a normalized identifier and returns a definitive Result,
// or an error wrapping ErrTransient for retryable failures.
type Validator interface {
	Family() Family
	Validate(ctx context.Context, id string) (*Result, error)
}

// Identifier is a parsed identifier. DOI and PMID values are normalized;
// URL values keep their supplied form so the record stores the URL the
// caller gave, and only keys normalize.
type Identifier struct {
	Family Family `json:"family"`
	Value  string `json:"value"`
}

// Normalized returns the canonical form used for cache and index keys. Two
// surface forms of one identifier normalize identically and so share a
// cache entry and a canonical record.
func (id Identifier) Normalized() string {
	if id.Family == FamilyURL {
		return NormalizeURL(id.Value)
	}
	return id.Value
}

// Key returns the cache key for this identifier within a job namespace.
func (id Identifier) Key(jobID string) string {
	return jobID + "/" + string(id.Family) + ":" + id.Normalized()
}

func (id Identifier) String() string {
	return string(id.Family) + ":" + id.Value
}

// doiPattern is the registrant/suffix shape every DOI follows.
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

var pmidPattern = regexp.MustCompile(`^\d{1,9}$`)

// Parse detects the identifier family and normalizes the value.
// Accepted inputs:
//   - DOI: "10.1038/...", "doi:10....", "https://doi.org/10...."
//   - PMID: "PMID:19872477" or a bare numeric string
//   - URL: anything starting with http:// or https://
func Parse(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty identifier", ErrInvalidFormat)
	}

	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "PMID:"):
		return parsePMID(s[len("PMID:"):])
	case strings.HasPrefix(upper, "DOI:"):
		return parseDOI(s[len("DOI:"):])
	case strings.Contains(strings.ToLower(s), "doi.org/"):
		return parseDOI(s)
	case strings.HasPrefix(strings.ToLower(s), "http://"),
		strings.HasPrefix(strings.ToLower(s), "https://"):
		return Identifier{Family: FamilyURL, Value: s}, nil
	case strings.HasPrefix(s, "10."):
		return parseDOI(s)
	case pmidPattern.MatchString(s):
		return Identifier{Family: FamilyPMID, Value: s}, nil
	}

	return Identifier{}, fmt.Errorf("%w: %q is not a DOI, PMID, or URL", ErrInvalidFormat, raw)
}

func parseDOI(s string) (Identifier, error) {
	doi := NormalizeDOI(s)
	if !doiPattern.MatchString(doi) {
		return Identifier{}, fmt.Errorf("%w: %q is not a valid DOI", ErrInvalidFormat, s)
	}
	return Identifier{Family: FamilyDOI, Value: doi}, nil
}

func parsePMID(s string) (Identifier, error) {
	pmid := strings.TrimSpace(s)
	if !pmidPattern.MatchString(pmid) {
		return Identifier{}, fmt.Errorf("%w: PMID must be numeric, got %q", ErrInvalidFormat, s)
	}
	return Identifier{Family: FamilyPMID, Value: pmid}, nil
}

// NormalizeDOI strips URL and scheme prefixes, lowercases, and trims.
// Two differently-formatted inputs that normalize identically validate to
// the same cache entry and the same canonical record.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			doi = doi[len(prefix):]
			lower = lower[len(prefix):]
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}

// NormalizeURL lowercases and strips scheme, leading www., and trailing slash.
func NormalizeURL(url string) string {
	url = strings.ToLower(strings.TrimSpace(url))
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "www.")
	return strings.TrimSuffix(url, "/")
}
