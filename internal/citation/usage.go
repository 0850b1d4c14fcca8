package citation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// UsageKind tags what role a citation plays at a point of use.
type UsageKind string

const (
	UsageEvidence    UsageKind = "evidence"
	UsageBackground  UsageKind = "background"
	UsageMethodology UsageKind = "methodology"
	UsageComparison  UsageKind = "comparison"
	UsageCritique    UsageKind = "critique"
)

// ValidUsageKinds lists the accepted usage-kind values.
var ValidUsageKinds = []UsageKind{
	UsageEvidence, UsageBackground, UsageMethodology, UsageComparison, UsageCritique,
}

// MinContextLen is the minimum number of significant characters each
// mandatory usage-context field must carry.
const MinContextLen = 20

// boilerplate lists generic filler phrases that disqualify a context field.
// Matching is case-insensitive containment on the normalized field text, so
// padding a denylisted phrase past the length minimum does not help.
var boilerplate = []string{
	"relevant paper",
	"useful source",
	"supports our work",
	"good reference",
	"important paper",
	"see this paper",
	"as discussed",
	"interesting study",
}

// Usage is one instance of a citation being drawn upon. A Usage value only
// exists after its mandatory context fields passed the gate; construct it
// with NewUsage.
type Usage struct {
	ID              string    `json:"id"`
	Excerpt         string    `json:"excerpt,omitempty"` // Direct quote or paraphrased passage
	Rationale       string    `json:"rationale"`
	ContextValue    string    `json:"context_value"`
	SupportingClaim string    `json:"supporting_claim"`
	Locator         string    `json:"locator,omitempty"` // Page or section, e.g. "p. 42"
	Kind            UsageKind `json:"kind"`
	CreatedAt       time.Time `json:"created_at"`
}

// UsageDraft carries proposed, not-yet-validated usage context.
type UsageDraft struct {
	Excerpt         string    `json:"excerpt,omitempty"`
	Rationale       string    `json:"rationale"`
	ContextValue    string    `json:"context_value"`
	SupportingClaim string    `json:"supporting_claim"`
	Locator         string    `json:"locator,omitempty"`
	Kind            UsageKind `json:"kind,omitempty"`
}

// ErrContextInsufficient is the sentinel for gate rejections. Use
// errors.As with *ContextError to learn which fields failed.
var ErrContextInsufficient = errors.New("usage context insufficient")

// ContextError reports which mandatory usage-context fields were rejected.
type ContextError struct {
	Fields []FieldIssue
}

// FieldIssue names one rejected field and why it was rejected.
type FieldIssue struct {
	Field  string `json:"field"`  // rationale, context_value, supporting_claim
	Reason string `json:"reason"` // too_short, boilerplate, missing
}

func (e *ContextError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " (" + f.Reason + ")"
	}
	return fmt.Sprintf("usage context insufficient: %s", strings.Join(parts, ", "))
}

func (e *ContextError) Unwrap() error { return ErrContextInsufficient }

// NewUsage validates the draft's mandatory context fields and constructs a
// Usage. The add operation that carried a failing draft must be rejected in
// full; no partial Usage is ever attached.
func NewUsage(d UsageDraft) (Usage, error) {
	var issues []FieldIssue
	for _, f := range []struct {
		name  string
		value string
	}{
		{"rationale", d.Rationale},
		{"context_value", d.ContextValue},
		{"supporting_claim", d.SupportingClaim},
	} {
		if reason := checkContextField(f.value); reason != "" {
			issues = append(issues, FieldIssue{Field: f.name, Reason: reason})
		}
	}
	if len(issues) > 0 {
		return Usage{}, &ContextError{Fields: issues}
	}

	kind := d.Kind
	if kind == "" {
		kind = UsageEvidence
	}
	if !validKind(kind) {
		return Usage{}, &ContextError{Fields: []FieldIssue{{Field: "kind", Reason: "unknown"}}}
	}

	return Usage{
		ID:              uuid.NewString(),
		Excerpt:         strings.TrimSpace(d.Excerpt),
		Rationale:       strings.TrimSpace(d.Rationale),
		ContextValue:    strings.TrimSpace(d.ContextValue),
		SupportingClaim: strings.TrimSpace(d.SupportingClaim),
		Locator:         strings.TrimSpace(d.Locator),
		Kind:            kind,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func validKind(k UsageKind) bool {
	for _, v := range ValidUsageKinds {
		if k == v {
			return true
		}
	}
	return false
}

// checkContextField returns "" if the field is substantive, or the reason
// it is not.
func checkContextField(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "missing"
	}
	normalized := strings.ToLower(strings.Join(strings.Fields(s), " "))
	for _, phrase := range boilerplate {
		if strings.Contains(normalized, phrase) {
			return "boilerplate"
		}
	}
	if significantLen(s) < MinContextLen {
		return "too_short"
	}
	return ""
}

// significantLen counts letters and digits, ignoring padding characters.
func significantLen(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
