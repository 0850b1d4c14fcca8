// Package tool is the agent-facing operation surface: one JSON request in,
// one JSON response out. The operation set is a closed enum with one typed
// payload per operation, so an unknown or malformed request is rejected at
// decode time instead of surfacing as a half-executed action.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/matsen/citetrack/internal/citation"
	"github.com/matsen/citetrack/internal/export"
	"github.com/matsen/citetrack/internal/integrity"
	"github.com/matsen/citetrack/internal/manager"
)

// Op names one operation in the closed request set.
type Op string

const (
	OpAdd         Op = "add"
	OpAddUsage    Op = "add_usage"
	OpGet         Op = "get"
	OpValidate    Op = "validate"
	OpFormat      Op = "format"
	OpUsageReport Op = "usage_report"
	OpList        Op = "list"
	OpExport      Op = "export"
	OpCheck       Op = "check"
)

var knownOps = map[Op]bool{
	OpAdd:         true,
	OpAddUsage:    true,
	OpGet:         true,
	OpValidate:    true,
	OpFormat:      true,
	OpUsageReport: true,
	OpList:        true,
	OpExport:      true,
	OpCheck:       true,
}

// Request is the decoded union: exactly one payload field is set, matching Op.
type Request struct {
	Op Op

	Add      *AddPayload
	AddUsage *AddUsagePayload
	Get      *GetPayload
	Format   *FormatPayload
	Export   *ExportPayload
	Check    *CheckPayload
}

// AddPayload adds one citation with its mandatory usage context.
type AddPayload struct {
	Identifier string              `json:"identifier"`
	Usage      citation.UsageDraft `json:"usage"`
	AddedBy    string              `json:"added_by,omitempty"`
}

// AddUsagePayload appends a usage to an existing citation.
type AddUsagePayload struct {
	CitationID string              `json:"citation_id"`
	Usage      citation.UsageDraft `json:"usage"`
}

// GetPayload fetches one citation by internal ID or citation number.
type GetPayload struct {
	CitationID string `json:"citation_id,omitempty"`
	Number     int    `json:"number,omitempty"`
}

// FormatPayload renders either an in-text marker or the bibliography.
type FormatPayload struct {
	Mode        string   `json:"mode"` // "intext" or "bibliography"
	CitationIDs []string `json:"citation_ids,omitempty"`
	Page        string   `json:"page,omitempty"`
}

// ExportPayload selects an export format.
type ExportPayload struct {
	Format string `json:"format"` // "bibtex", "csl", or "text"
}

// CheckPayload runs the integrity check against a document body.
type CheckPayload struct {
	Document string `json:"document"`
}

// envelope is the raw wire form before the payload is bound to its op.
type envelope struct {
	Op      Op              `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses one JSON request, rejecting unknown operations and unknown
// payload fields.
func Decode(data []byte) (*Request, error) {
	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	if !knownOps[env.Op] {
		return nil, fmt.Errorf("unknown op %q", env.Op)
	}

	req := &Request{Op: env.Op}
	bind := func(dst any) error {
		if len(env.Payload) == 0 {
			return fmt.Errorf("op %q requires a payload", env.Op)
		}
		d := json.NewDecoder(bytes.NewReader(env.Payload))
		d.DisallowUnknownFields()
		if err := d.Decode(dst); err != nil {
			return fmt.Errorf("decoding %q payload: %w", env.Op, err)
		}
		return nil
	}

	var err error
	switch env.Op {
	case OpAdd:
		req.Add = &AddPayload{}
		err = bind(req.Add)
	case OpAddUsage:
		req.AddUsage = &AddUsagePayload{}
		err = bind(req.AddUsage)
	case OpGet:
		req.Get = &GetPayload{}
		err = bind(req.Get)
	case OpFormat:
		req.Format = &FormatPayload{}
		err = bind(req.Format)
	case OpExport:
		req.Export = &ExportPayload{}
		err = bind(req.Export)
	case OpCheck:
		req.Check = &CheckPayload{}
		err = bind(req.Check)
	case OpValidate, OpUsageReport, OpList:
		// No payload.
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Response is the wire form of an operation result.
type Response struct {
	Op     Op     `json:"op"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Dispatcher executes decoded requests against one job's manager.
type Dispatcher struct {
	manager *manager.Manager
	checker *integrity.Checker
}

// NewDispatcher wires a dispatcher to a manager and integrity checker.
func NewDispatcher(m *manager.Manager, c *integrity.Checker) *Dispatcher {
	return &Dispatcher{manager: m, checker: c}
}

// Dispatch executes one request. Every member of the op set is handled; the
// default branch is unreachable for requests produced by Decode.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (any, error) {
	switch req.Op {
	case OpAdd:
		return d.manager.Add(ctx, manager.AddRequest{
			Identifier: req.Add.Identifier,
			Usage:      req.Add.Usage,
			AddedBy:    req.Add.AddedBy,
		})
	case OpAddUsage:
		return d.manager.AddUsage(req.AddUsage.CitationID, req.AddUsage.Usage)
	case OpGet:
		return d.dispatchGet(req.Get)
	case OpValidate:
		return d.manager.ValidateAll(ctx)
	case OpFormat:
		return d.dispatchFormat(req.Format)
	case OpUsageReport:
		return d.manager.UsageReport(), nil
	case OpList:
		return d.manager.Store().All(), nil
	case OpExport:
		return d.dispatchExport(req.Export)
	case OpCheck:
		return d.checker.Check(req.Check.Document, d.manager.Store()), nil
	default:
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}

func (d *Dispatcher) dispatchGet(p *GetPayload) (any, error) {
	switch {
	case p.CitationID != "":
		c, ok := d.manager.Store().Get(p.CitationID)
		if !ok {
			return nil, fmt.Errorf("citation %q not found", p.CitationID)
		}
		return c, nil
	case p.Number > 0:
		c, ok := d.manager.Store().GetByNumber(p.Number)
		if !ok {
			return nil, fmt.Errorf("no citation numbered %d", p.Number)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("get requires citation_id or number")
	}
}

func (d *Dispatcher) dispatchFormat(p *FormatPayload) (any, error) {
	switch p.Mode {
	case "intext":
		s, err := d.manager.FormatInText(p.CitationIDs, p.Page)
		if err != nil {
			return nil, err
		}
		return map[string]string{"formatted": s}, nil
	case "bibliography", "bib":
		return map[string]string{"formatted": d.manager.FormatBibliography()}, nil
	default:
		return nil, fmt.Errorf("unknown format mode %q", p.Mode)
	}
}

func (d *Dispatcher) dispatchExport(p *ExportPayload) (any, error) {
	cits := d.manager.Store().All()
	switch p.Format {
	case "bibtex":
		return map[string]string{"content": export.ToBibTeXList(cits)}, nil
	case "csl", "csl-json":
		data, err := export.ToCSLJSON(cits)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	case "text":
		return map[string]string{"content": export.ToText(cits)}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", p.Format)
	}
}
