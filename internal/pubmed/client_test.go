package pubmed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/validate"
)

const articleXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <Article>
        <Journal>
          <ISSN>1063-5157</ISSN>
          <Title>Systematic Biology</Title>
          <JournalIssue>
            <Volume>59</Volume>
            <Issue>3</Issue>
            <PubDate>
              <Year>2010</Year>
              <Month>May</Month>
            </PubDate>
          </JournalIssue>
        </Journal>
        <ArticleTitle>New algorithms for phylogenetic inference</ArticleTitle>
        <Pagination>
          <MedlinePgn>307-321</MedlinePgn>
        </Pagination>
        <Abstract>
          <AbstractText>We present new methods.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author>
            <LastName>Stamatakis</LastName>
            <ForeName>Alexandros</ForeName>
          </Author>
          <Author>
            <CollectiveName>RAxML Development Team</CollectiveName>
          </Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">20525580</ArticleId>
        <ArticleId IdType="doi">10.1093/sysbio/syq010</ArticleId>
        <ArticleId IdType="pmc">PMC2887522</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

const emptyXML = `<?xml version="1.0" ?>
<PubmedArticleSet>
</PubmedArticleSet>`

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return c, srv
}

func TestValidateConfirmed(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("db") != "pubmed" || q.Get("id") != "20525580" || q.Get("retmode") != "xml" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(articleXML))
	})
	defer srv.Close()

	res, err := c.Validate(context.Background(), "20525580")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Status != validate.StatusConfirmed {
		t.Fatalf("Status = %q, want confirmed", res.Status)
	}

	cit := res.Citation
	if cit.PMID != "20525580" {
		t.Errorf("PMID = %q", cit.PMID)
	}
	if cit.Title != "New algorithms for phylogenetic inference" {
		t.Errorf("Title = %q", cit.Title)
	}
	if cit.ContainerTitle != "Systematic Biology" || cit.ISSN != "1063-5157" {
		t.Errorf("journal fields: %q / %q", cit.ContainerTitle, cit.ISSN)
	}
	if cit.Volume != "59" || cit.Issue != "3" || cit.Pages != "307-321" {
		t.Errorf("locators: %q %q %q", cit.Volume, cit.Issue, cit.Pages)
	}
	if cit.Issued != (citation.DateParts{Year: 2010, Month: 5}) {
		t.Errorf("Issued = %+v, want May 2010", cit.Issued)
	}
	if len(cit.Authors) != 2 {
		t.Fatalf("got %d authors, want 2", len(cit.Authors))
	}
	if cit.Authors[0].Family != "Stamatakis" || cit.Authors[0].Given != "Alexandros" {
		t.Errorf("first author = %+v", cit.Authors[0])
	}
	if cit.Authors[1].Literal != "RAxML Development Team" {
		t.Errorf("second author = %+v", cit.Authors[1])
	}
	if cit.DOI != "10.1093/sysbio/syq010" {
		t.Errorf("DOI = %q, want sidecar DOI mapped", cit.DOI)
	}
	if cit.PMCID != "PMC2887522" {
		t.Errorf("PMCID = %q", cit.PMCID)
	}
	if cit.URL != "https://pubmed.ncbi.nlm.nih.gov/20525580/" {
		t.Errorf("URL = %q", cit.URL)
	}
	if cit.Abstract != "We present new methods." {
		t.Errorf("Abstract = %q", cit.Abstract)
	}
	if !cit.Validated || cit.ValidationMethod != citation.MethodPMID {
		t.Errorf("validation state = %v/%q", cit.Validated, cit.ValidationMethod)
	}
}

func TestValidateEmptySetIsNotFound(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyXML))
	})
	defer srv.Close()

	res, err := c.Validate(context.Background(), "99999999")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Status != validate.StatusNotFound {
		t.Errorf("Status = %q, want not_found for empty article set", res.Status)
	}
}

func TestValidateTransient(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := c.Validate(context.Background(), "20525580")
	if !errors.Is(err, validate.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient", err)
	}
}

func TestValidateMalformedXML(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<PubmedArticleSet><broken"))
	})
	defer srv.Close()

	_, err := c.Validate(context.Background(), "20525580")
	if !errors.Is(err, validate.ErrTransient) {
		t.Errorf("error = %v, want ErrTransient for truncated response", err)
	}
}

func TestAPIKeyRaisesLimit(t *testing.T) {
	t.Setenv("NCBI_API_KEY", "")
	plain := NewClient()
	keyed := NewClient(WithAPIKey("secret"))
	if plain.limiter.Limit() != RateLimit {
		t.Errorf("plain limit = %v, want %v", plain.limiter.Limit(), RateLimit)
	}
	if keyed.limiter.Limit() != KeyedRateLimit {
		t.Errorf("keyed limit = %v, want %v", keyed.limiter.Limit(), KeyedRateLimit)
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"May", 5},
		{"may", 5},
		{"December", 12},
		{"7", 7},
		{"", 0},
		{"Spring", 0},
		{"13", 0},
	}
	for _, tt := range tests {
		if got := parseMonth(tt.in); got != tt.want {
			t.Errorf("parseMonth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
