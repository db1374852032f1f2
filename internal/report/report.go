// Package report builds the QA report document for one repair run and
// validates it against the embedded JSON Schema before it leaves the
// process (file, HTTP response or database row).
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

const schemaURL = "https://scoracle.app/schemas/pbp-qa-report.json"

//go:embed report.schema.json
var schemaJSON []byte

// Options echoes the run parameters into the report.
type Options struct {
	Tolerance      int     `json:"tolerance"`
	MatchThreshold float64 `json:"match_threshold"`
}

// Report is the audit-trail document for one run.
type Report struct {
	RunID        string           `json:"run_id"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Source       string           `json:"source,omitempty"`
	Options      Options          `json:"options"`
	Patch        pbp.PatchStats   `json:"patch"`
	PreAudit     *pbp.AuditResult `json:"pre_audit"`
	PostAudit    pbp.AuditResult  `json:"post_audit"`
	Gates        pbp.GateResult   `json:"gates"`
	BlockReasons []string         `json:"block_reasons,omitempty"`
}

// New assembles a report from a pipeline result. A new run id is minted.
func New(source string, opts pbp.Options, res *pbp.Result) Report {
	return Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Source:       source,
		Options:      Options{Tolerance: opts.Tolerance, MatchThreshold: opts.MatchThreshold},
		Patch:        res.Patch,
		PreAudit:     res.PreAudit,
		PostAudit:    res.PostAudit,
		Gates:        res.Gates,
		BlockReasons: res.Gates.BlockReasons(),
	}
}

// Marshal encodes the report as indented JSON and validates it.
func (r Report) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteFile writes the validated report to path.
func (r Report) WriteFile(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Schema validation
// --------------------------------------------------------------------------

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// Validate checks a JSON report document against the report schema.
func Validate(raw []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("report failed schema validation: %w", err)
	}
	return nil
}
