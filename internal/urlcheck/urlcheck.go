// Package urlcheck probes whether a URL-only source is reachable. It is a
// lightweight existence check, never a content fetch.
package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
)

// DefaultTimeout is the per-probe deadline.
const DefaultTimeout = 10 * time.Second

// Checker probes URLs with HEAD, falling back to GET when the server
// rejects HEAD.
type Checker struct {
	httpClient *http.Client
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) CheckerOption {
	return func(c *Checker) { c.httpClient = hc }
}

// NewChecker creates a URL reachability checker.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Family implements validate.Validator.
func (c *Checker) Family() validate.Family { return validate.FamilyURL }

// Validate probes the URL as supplied, so an http-only source is checked
// over http rather than rejected. 2xx is confirmed, 404/410 is a definitive
// not-found, everything network-shaped wraps validate.ErrTransient.
func (c *Checker) Validate(ctx context.Context, rawURL string) (*validate.Result, error) {
	target := rawURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	status, err := c.probe(ctx, http.MethodHead, target)
	if err != nil {
		return nil, err
	}
	if status == http.StatusMethodNotAllowed {
		status, err = c.probe(ctx, http.MethodGet, target)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case status >= 200 && status < 400:
		return &validate.Result{
			Status:   validate.StatusConfirmed,
			Citation: webCitation(target),
		}, nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return &validate.Result{
			Status: validate.StatusNotFound,
			Reason: fmt.Sprintf("URL responded %d", status),
		}, nil
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, fmt.Errorf("%w: url probe returned %d", validate.ErrTransient, status)
	default:
		return &validate.Result{
			Status: validate.StatusNotFound,
			Reason: fmt.Sprintf("URL responded %d", status),
		}, nil
	}
}

func (c *Checker) probe(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", validate.ErrInvalidFormat, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: probing %s: %v", validate.ErrTransient, target, err)
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

var _ validate.Validator = (*Checker)(nil)

// webCitation builds the minimal webpage record a confirmed URL yields.
// The URL is stored as probed, scheme included; there is no registry
// metadata to map, the caller supplies anything more.
func webCitation(target string) *citation.Citation {
	return &citation.Citation{
		Type:             citation.TypeWebpage,
		URL:              target,
		Title:            hostOf(target),
		Validated:        true,
		ValidationMethod: citation.MethodURL,
	}
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err == nil && u.Host != "" {
		return u.Host
	}
	trimmed := validate.NormalizeURL(target)
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}
