// Package pubmed validates PubMed identifiers against the NCBI E-utilities
// efetch API and maps the returned record into the canonical citation model.
package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
	"golang.org/x/time/rate"
)

const (
	// BaseURL is the E-utilities efetch endpoint.
	BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"

	// DefaultTimeout is the per-request deadline.
	DefaultTimeout = 10 * time.Second

	// RateLimit is NCBI's documented cap without an API key (3 req/s).
	RateLimit = 3.0

	// KeyedRateLimit applies when an API key is configured (10 req/s).
	KeyedRateLimit = 10.0
)

// Client is a rate-limited HTTP client for the PubMed efetch API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets an NCBI API key, which raises the rate limit.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a PubMed client. NCBI_API_KEY is read from the
// environment when no explicit key is given.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    BaseURL,
	}

	if key := os.Getenv("NCBI_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}

	limit := RateLimit
	if c.apiKey != "" {
		limit = KeyedRateLimit
	}
	c.limiter = rate.NewLimiter(rate.Limit(limit), 1)

	return c
}

// Family implements validate.Validator.
func (c *Client) Family() validate.Family { return validate.FamilyPMID }

// Validate looks up a normalized PMID. efetch answers 200 with an empty
// article set for unknown PMIDs, which is a definitive not-found.
func (c *Client) Validate(ctx context.Context, pmid string) (*validate.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
		"rettype": {"abstract"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: pubmed: %v", validate.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return notFound(pmid), nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: pubmed returned %d", validate.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("pubmed returned unexpected status %d for PMID %s", resp.StatusCode, pmid)
	}

	var set articleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("%w: parsing pubmed XML: %v", validate.ErrTransient, err)
	}

	if len(set.Articles) == 0 {
		return notFound(pmid), nil
	}

	return &validate.Result{
		Status:   validate.StatusConfirmed,
		Citation: mapArticle(set.Articles[0], pmid),
	}, nil
}

func notFound(pmid string) *validate.Result {
	return &validate.Result{
		Status: validate.StatusNotFound,
		Reason: fmt.Sprintf("PMID %s not found in PubMed", pmid),
	}
}

var _ validate.Validator = (*Client)(nil)

// XML mapping for the subset of the PubMed efetch schema we consume.

type articleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Medline medlineCitation `xml:"MedlineCitation"`
	IDs     []articleID     `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type medlineCitation struct {
	Article articleRecord `xml:"Article"`
}

type articleRecord struct {
	Title      string         `xml:"ArticleTitle"`
	Abstract   []string       `xml:"Abstract>AbstractText"`
	Journal    journalRecord  `xml:"Journal"`
	Pagination string         `xml:"Pagination>MedlinePgn"`
	Authors    []authorRecord `xml:"AuthorList>Author"`
}

type journalRecord struct {
	Title string      `xml:"Title"`
	ISSN  string      `xml:"ISSN"`
	Issue issueRecord `xml:"JournalIssue"`
}

type issueRecord struct {
	Volume  string     `xml:"Volume"`
	Issue   string     `xml:"Issue"`
	PubDate dateRecord `xml:"PubDate"`
}

type dateRecord struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type authorRecord struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Suffix         string `xml:"Suffix"`
	CollectiveName string `xml:"CollectiveName"`
}

type articleID struct {
	Type  string `xml:"IdType,attr"`
	Value string `xml:",chardata"`
}

// mapArticle translates a PubmedArticle into the canonical model.
func mapArticle(a pubmedArticle, pmid string) *citation.Citation {
	rec := a.Medline.Article
	cit := &citation.Citation{
		PMID:             pmid,
		Type:             citation.TypeArticleJournal,
		Title:            strings.TrimSpace(rec.Title),
		ContainerTitle:   rec.Journal.Title,
		ISSN:             rec.Journal.ISSN,
		Volume:           rec.Journal.Issue.Volume,
		Issue:            rec.Journal.Issue.Issue,
		Pages:            rec.Pagination,
		URL:              fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
		Validated:        true,
		ValidationMethod: citation.MethodPMID,
	}

	if len(rec.Abstract) > 0 {
		cit.Abstract = strings.TrimSpace(strings.Join(rec.Abstract, " "))
	}

	for _, au := range rec.Authors {
		switch {
		case au.LastName != "":
			cit.Authors = append(cit.Authors, citation.Name{
				Family: au.LastName,
				Given:  au.ForeName,
				Suffix: au.Suffix,
			})
		case au.CollectiveName != "":
			cit.Authors = append(cit.Authors, citation.Name{Literal: au.CollectiveName})
		}
	}

	cit.Issued = mapDate(rec.Journal.Issue.PubDate)

	for _, id := range a.IDs {
		switch id.Type {
		case "doi":
			cit.DOI = validate.NormalizeDOI(id.Value)
		case "pmc":
			cit.PMCID = strings.TrimSpace(id.Value)
		}
	}

	return cit
}

func mapDate(d dateRecord) citation.DateParts {
	var dp citation.DateParts
	if y, err := strconv.Atoi(strings.TrimSpace(d.Year)); err == nil {
		dp.Year = y
	}
	if m := parseMonth(d.Month); m != 0 {
		dp.Month = m
	}
	if day, err := strconv.Atoi(strings.TrimSpace(d.Day)); err == nil && day >= 1 && day <= 31 {
		dp.Day = day
	}
	return dp
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// parseMonth accepts numeric months and English names or abbreviations,
// which PubMed uses interchangeably.
func parseMonth(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return n
	}
	if len(s) >= 3 {
		if n, ok := monthNames[s[:3]]; ok {
			return n
		}
	}
	return 0
}
