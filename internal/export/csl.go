package export

import (
	"encoding/json"
	"fmt"

	"github.com/matsen/citetrack/internal/citation"
)

// cslItem is the CSL-JSON shape of one citation. Only populated model fields
// are emitted; empty fields are dropped from the output entirely.
type cslItem struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Title          string    `json:"title,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty"`
	Author         []cslName `json:"author,omitempty"`
	Issued         *cslDate  `json:"issued,omitempty"`
	Publisher      string    `json:"publisher,omitempty"`
	Volume         string    `json:"volume,omitempty"`
	Issue          string    `json:"issue,omitempty"`
	Page           string    `json:"page,omitempty"`
	Abstract       string    `json:"abstract,omitempty"`
	DOI            string    `json:"DOI,omitempty"`
	PMID           string    `json:"PMID,omitempty"`
	PMCID          string    `json:"PMCID,omitempty"`
	ISSN           string    `json:"ISSN,omitempty"`
	URL            string    `json:"URL,omitempty"`

	// Tracking extensions, custom-prefixed per CSL convention.
	CitationNumber int    `json:"custom-citation-number,omitempty"`
	Validated      bool   `json:"custom-validated,omitempty"`
	Method         string `json:"custom-validation-method,omitempty"`
}

type cslName struct {
	Family  string `json:"family,omitempty"`
	Given   string `json:"given,omitempty"`
	Suffix  string `json:"suffix,omitempty"`
	Literal string `json:"literal,omitempty"`
}

type cslDate struct {
	DateParts [][]int `json:"date-parts"`
}

// ToCSLJSON serializes citations as a CSL-JSON array.
func ToCSLJSON(cits []*citation.Citation) ([]byte, error) {
	items := make([]cslItem, 0, len(cits))
	for _, c := range cits {
		items = append(items, mapCSL(c))
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding CSL-JSON: %w", err)
	}
	return data, nil
}

func mapCSL(c *citation.Citation) cslItem {
	item := cslItem{
		ID:             c.ID,
		Type:           string(c.Type),
		Title:          c.Title,
		ContainerTitle: c.ContainerTitle,
		Publisher:      c.Publisher,
		Volume:         c.Volume,
		Issue:          c.Issue,
		Page:           c.Pages,
		Abstract:       c.Abstract,
		DOI:            c.DOI,
		PMID:           c.PMID,
		PMCID:          c.PMCID,
		ISSN:           c.ISSN,
		CitationNumber: c.Number,
		Validated:      c.Validated,
		Method:         string(c.ValidationMethod),
	}

	if c.URL != "" {
		item.URL = c.URL
	}

	for _, a := range c.Authors {
		item.Author = append(item.Author, cslName(a))
	}

	if !c.Issued.IsZero() {
		parts := []int{c.Issued.Year}
		if c.Issued.Month != 0 {
			parts = append(parts, c.Issued.Month)
			if c.Issued.Day != 0 {
				parts = append(parts, c.Issued.Day)
			}
		}
		item.Issued = &cslDate{DateParts: [][]int{parts}}
	}

	return item
}
