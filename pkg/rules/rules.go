// Package rules loads extra issue-detection rules from YAML or JSON files.
// Each rule carries an expr predicate evaluated against a component; the
// rule raises its issue whenever the predicate is true.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/platformsim/pkg/catalog"
	"github.com/rmax-ai/platformsim/pkg/scoring"
)

var validate = validator.New()

// File is the on-disk rule document.
type File struct {
	Rules []Definition `json:"rules" yaml:"rules" validate:"dive"`
}

// Definition is one rule as written by an operator.
//
//	- id: db-without-backups
//	  componentTypes: [database]
//	  when: "!reliability.backups"
//	  issue:
//	    type: reliability
//	    severity: critical
//	    title: Database without backups
//	    impact: {userSatisfaction: 10, cost: 20000}
type Definition struct {
	ID             string                  `json:"id" yaml:"id" validate:"required"`
	Description    string                  `json:"description,omitempty" yaml:"description,omitempty"`
	ComponentTypes []catalog.ComponentType `json:"componentTypes,omitempty" yaml:"componentTypes,omitempty"`
	When           string                  `json:"when" yaml:"when" validate:"required"`
	Issue          scoring.IssueSpec       `json:"issue" yaml:"issue"`
}

// Parse decodes a rule document. YAML is assumed unless the payload looks
// like a JSON object.
func Parse(data []byte) (File, error) {
	var f File
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return File{}, fmt.Errorf("decode rules json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("decode rules yaml: %w", err)
		}
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks structure, enum values and id uniqueness.
func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}
	seen := make(map[string]bool)
	for _, d := range f.Rules {
		if seen[d.ID] {
			return fmt.Errorf("invalid rules: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		if !d.Issue.Type.Valid() {
			return fmt.Errorf("invalid rules: %s: unknown issue type %q", d.ID, d.Issue.Type)
		}
		if !d.Issue.Severity.Valid() {
			return fmt.Errorf("invalid rules: %s: unknown severity %q", d.ID, d.Issue.Severity)
		}
		for _, t := range d.ComponentTypes {
			if !t.Valid() {
				return fmt.Errorf("invalid rules: %s: unknown component type %q", d.ID, t)
			}
		}
	}
	return nil
}

// LoadFile reads, validates and compiles the rules at path.
func LoadFile(path string) ([]scoring.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return f.Compile()
}

// Compile turns every definition into a scoring.Rule.
func (f File) Compile() ([]scoring.Rule, error) {
	out := make([]scoring.Rule, 0, len(f.Rules))
	for _, d := range f.Rules {
		r, err := d.Compile()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Compile type-checks the predicate against the component environment.
func (d Definition) Compile() (*ExprRule, error) {
	prog, err := expr.Compile(d.When, expr.Env(Env(scoring.Component{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("rule %s: compile %q: %w", d.ID, d.When, err)
	}
	types := make(map[catalog.ComponentType]bool, len(d.ComponentTypes))
	for _, t := range d.ComponentTypes {
		types[t] = true
	}
	return &ExprRule{def: d, program: prog, types: types}, nil
}

// ExprRule is a compiled Definition.
type ExprRule struct {
	def     Definition
	program *vm.Program
	types   map[catalog.ComponentType]bool
}

func (r *ExprRule) Name() string { return r.def.ID }

// Check runs the predicate. Evaluation errors count as compliance.
func (r *ExprRule) Check(c scoring.Component) (scoring.IssueSpec, bool) {
	if len(r.types) > 0 && !r.types[c.Type] {
		return scoring.IssueSpec{}, false
	}
	out, err := expr.Run(r.program, Env(c))
	if err != nil {
		return scoring.IssueSpec{}, false
	}
	violated, _ := out.(bool)
	if !violated {
		return scoring.IssueSpec{}, false
	}
	return r.def.Issue, true
}

// Env is the variable set visible to rule predicates.
func Env(c scoring.Component) map[string]any {
	sec := c.Config.Security
	perf := c.Config.Performance
	rel := c.Config.Reliability
	return map[string]any{
		"id":          c.ID,
		"type":        string(c.Type),
		"name":        c.Name,
		"rateLimit":   c.Config.RateLimit,
		"connections": len(c.Connections),
		"security": map[string]any{
			"encryption":      sec.Encryption,
			"authentication":  sec.Authentication,
			"authorization":   sec.Authorization,
			"inputValidation": sec.InputValidation,
			"securityReview":  sec.SecurityReview,
		},
		"performance": map[string]any{
			"caching":          perf.Caching,
			"compression":      perf.Compression,
			"optimizedQueries": perf.OptimizedQueries,
			"loadBalancing":    perf.LoadBalancing,
		},
		"reliability": map[string]any{
			"healthChecks":  rel.HealthChecks,
			"monitoring":    rel.Monitoring,
			"backups":       rel.Backups,
			"errorHandling": rel.ErrorHandling,
		},
		"metrics": map[string]any{
			"performance": c.Metrics.Performance,
			"security":    c.Metrics.Security,
			"reliability": c.Metrics.Reliability,
			"cost":        c.Metrics.Cost,
			"complexity":  c.Metrics.Complexity,
		},
	}
}

func isRuleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
