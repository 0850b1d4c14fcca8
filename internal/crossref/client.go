// Package crossref validates DOIs against the Crossref works API and maps
// the returned metadata into the canonical citation model.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the Crossref works API endpoint.
	BaseURL = "https://api.crossref.org/works"

	// DefaultTimeout is the per-request deadline.
	DefaultTimeout = 10 * time.Second

	// RateLimit keeps us inside Crossref's polite-pool expectations.
	RateLimit = 5.0
)

// Client is a rate-limited HTTP client for the Crossref works API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	mailto     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMailto sets the contact address sent in the User-Agent. Crossref
// routes requests carrying one to the faster polite pool.
func WithMailto(addr string) ClientOption {
	return func(c *Client) { c.mailto = addr }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a Crossref client. CROSSREF_MAILTO is read from the
// environment when no explicit mailto is given.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
	}

	if addr := os.Getenv("CROSSREF_MAILTO"); addr != "" {
		c.mailto = addr
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Family implements validate.Validator.
func (c *Client) Family() validate.Family { return validate.FamilyDOI }

// Validate looks up a normalized DOI. A 404 is a definitive not-found;
// timeouts, connection failures, and 5xx responses wrap validate.ErrTransient.
func (c *Client) Validate(ctx context.Context, doi string) (*validate.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := c.baseURL + "/" + doi
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent(c.mailto))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: crossref: %v", validate.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return &validate.Result{
			Status: validate.StatusNotFound,
			Reason: fmt.Sprintf("DOI %s not registered with Crossref", doi),
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: crossref returned %d", validate.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("crossref returned unexpected status %d for %s", resp.StatusCode, doi)
	}

	var envelope struct {
		Message work `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding crossref response: %v", validate.ErrTransient, err)
	}

	cit := mapWork(envelope.Message)
	if cit.DOI == "" {
		cit.DOI = doi
	}
	return &validate.Result{Status: validate.StatusConfirmed, Citation: cit}, nil
}

func userAgent(mailto string) string {
	if mailto == "" {
		return "citetrack/1.0"
	}
	return fmt.Sprintf("citetrack/1.0 (mailto:%s)", mailto)
}

// IsTransient reports whether the error is a retryable Crossref failure.
func IsTransient(err error) bool {
	return errors.Is(err, validate.ErrTransient)
}

var _ validate.Validator = (*Client)(nil)

// The following types mirror the subset of the Crossref works schema we map.

type work struct {
	DOI            string     `json:"DOI"`
	Type           string     `json:"type"`
	Title          []string   `json:"title"`
	ContainerTitle []string   `json:"container-title"`
	Author         []workName `json:"author"`
	Volume         string     `json:"volume"`
	Issue          string     `json:"issue"`
	Page           string     `json:"page"`
	Publisher      string     `json:"publisher"`
	ISSN           []string   `json:"ISSN"`
	URL            string     `json:"URL"`
	Abstract       string     `json:"abstract"`

	Issued          workDate `json:"issued"`
	PublishedPrint  workDate `json:"published-print"`
	PublishedOnline workDate `json:"published-online"`
	Created         workDate `json:"created"`
}

type workName struct {
	Family string `json:"family"`
	Given  string `json:"given"`
	Name   string `json:"name"` // Organizational authors
}

type workDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d workDate) isZero() bool {
	return len(d.DateParts) == 0 || len(d.DateParts[0]) == 0
}

// typeMap translates Crossref work types to canonical (CSL) types.
var typeMap = map[string]citation.Type{
	"journal-article":     citation.TypeArticleJournal,
	"proceedings-article": citation.TypePaperConference,
	"book-chapter":        citation.TypeChapter,
	"book":                citation.TypeBook,
	"monograph":           citation.TypeBook,
	"edited-book":         citation.TypeBook,
	"reference-book":      citation.TypeBook,
	"posted-content":      citation.TypeReport,
	"report":              citation.TypeReport,
	"dataset":             citation.TypeDataset,
	"dissertation":        citation.TypeThesis,
}

// mapWork translates a Crossref work into the canonical model. Fields the
// registry omits stay unset.
func mapWork(w work) *citation.Citation {
	cit := &citation.Citation{
		DOI:              validate.NormalizeDOI(w.DOI),
		Type:             mapType(w.Type),
		Volume:           w.Volume,
		Issue:            w.Issue,
		Pages:            w.Page,
		Publisher:        w.Publisher,
		URL:              w.URL,
		Abstract:         w.Abstract,
		Validated:        true,
		ValidationMethod: citation.MethodDOI,
	}

	if len(w.Title) > 0 {
		cit.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		cit.ContainerTitle = w.ContainerTitle[0]
	}
	if len(w.ISSN) > 0 {
		cit.ISSN = w.ISSN[0]
	}

	for _, a := range w.Author {
		switch {
		case a.Family != "":
			cit.Authors = append(cit.Authors, citation.Name{Family: a.Family, Given: a.Given})
		case a.Name != "":
			cit.Authors = append(cit.Authors, citation.Name{Literal: a.Name})
		}
	}

	// Crossref may report the date under several keys; take the first
	// populated one in preference order.
	for _, d := range []workDate{w.Issued, w.PublishedPrint, w.PublishedOnline, w.Created} {
		if !d.isZero() {
			cit.Issued = mapDate(d)
			break
		}
	}

	return cit
}

func mapType(t string) citation.Type {
	if mapped, ok := typeMap[t]; ok {
		return mapped
	}
	if t == "" {
		return citation.TypeArticleJournal
	}
	return citation.Type(t)
}

func mapDate(d workDate) citation.DateParts {
	parts := d.DateParts[0]
	dp := citation.DateParts{Year: parts[0]}
	if len(parts) > 1 && parts[1] >= 1 && parts[1] <= 12 {
		dp.Month = parts[1]
	}
	if len(parts) > 2 && parts[2] >= 1 && parts[2] <= 31 {
		dp.Day = parts[2]
	}
	return dp
}
