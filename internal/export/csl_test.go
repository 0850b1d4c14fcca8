package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matsen/citetrack/internal/citation"
)

func TestToCSLJSON(t *testing.T) {
	cits := []*citation.Citation{{
		ID:               "Smith2023-ml",
		Number:           1,
		Type:             citation.TypeArticleJournal,
		Title:            "Machine Learning for Phylogenetics",
		ContainerTitle:   "Systematic Biology",
		Authors:          []citation.Name{{Family: "Smith", Given: "Jane"}},
		Issued:           citation.DateParts{Year: 2023, Month: 4, Day: 9},
		Pages:            "501-517",
		DOI:              "10.1093/sysbio/syad001",
		URL:              "http://example.org/paper",
		Validated:        true,
		ValidationMethod: citation.MethodDOI,
	}}

	data, err := ToCSLJSON(cits)
	if err != nil {
		t.Fatalf("ToCSLJSON() error = %v", err)
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	item := items[0]

	if item["id"] != "Smith2023-ml" || item["type"] != "article-journal" {
		t.Errorf("identity fields wrong: %v", item)
	}
	if item["container-title"] != "Systematic Biology" {
		t.Errorf("container-title = %v", item["container-title"])
	}
	if item["DOI"] != "10.1093/sysbio/syad001" {
		t.Errorf("DOI = %v", item["DOI"])
	}
	if item["URL"] != "http://example.org/paper" {
		t.Errorf("URL = %v, want the stored URL verbatim", item["URL"])
	}
	if item["page"] != "501-517" {
		t.Errorf("page = %v", item["page"])
	}
	if item["custom-validated"] != true {
		t.Errorf("custom-validated = %v", item["custom-validated"])
	}

	issued, _ := item["issued"].(map[string]any)
	parts, _ := issued["date-parts"].([]any)
	if len(parts) != 1 {
		t.Fatalf("date-parts = %v", issued)
	}
	first, _ := parts[0].([]any)
	if len(first) != 3 || first[0].(float64) != 2023 || first[1].(float64) != 4 || first[2].(float64) != 9 {
		t.Errorf("date-parts = %v, want [2023 4 9]", first)
	}
}

func TestToCSLJSONOmitsAbsentFields(t *testing.T) {
	data, err := ToCSLJSON([]*citation.Citation{{
		ID:   "minimal",
		Type: citation.TypeWebpage,
	}})
	if err != nil {
		t.Fatal(err)
	}

	s := string(data)
	for _, absent := range []string{"issued", "DOI", "PMID", "container-title", "author", "abstract"} {
		if strings.Contains(s, `"`+absent+`"`) {
			t.Errorf("output contains %q for a record without it:\n%s", absent, s)
		}
	}
}

func TestToCSLJSONEmpty(t *testing.T) {
	data, err := ToCSLJSON(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("ToCSLJSON(nil) = %q, want empty array", data)
	}
}

func TestToText(t *testing.T) {
	cits := []*citation.Citation{
		{ID: "b", Number: 2, Title: "Second Paper", Validated: true},
		{ID: "a", Number: 1, Title: "First Paper", Validated: true},
	}
	got := ToText(cits)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "[1] First Paper") {
		t.Errorf("line 0 = %q, want number order", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[2] Second Paper") {
		t.Errorf("line 1 = %q", lines[1])
	}
}
