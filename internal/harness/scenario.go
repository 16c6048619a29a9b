package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeopt/internal/compiler"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/optimizer"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// Scenario defines a pipeline optimization scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is scanned by the pipeline unless a leading $source stage
	// names one.
	Collection string `yaml:"collection,omitempty"`

	// PushDown sets whether the source accepts a native filter.
	// If nil, the pipeline's own setting is kept (default true).
	PushDown *bool `yaml:"pushdown,omitempty"`

	// Documents are inserted into Collection, in order, before the run.
	Documents []map[string]any `yaml:"documents,omitempty"`

	// Pipeline is the stage list, in the same form the compiler accepts.
	Pipeline yaml.Node `yaml:"pipeline"`

	// Expect holds optional expectations about the optimized pipeline.
	Expect Expect `yaml:"expect,omitempty"`
}

// Expect lists what the optimized run must produce. Absent fields are not
// checked.
type Expect struct {
	// Results are the documents the pipeline returns, in order.
	Results yaml.Node `yaml:"results,omitempty"`

	// ScanFilter is the native filter attached to the source, as a match
	// document. An explicit null expects no native filter.
	ScanFilter yaml.Node `yaml:"scan_filter,omitempty"`

	// Stages is the number of stages left after the source.
	Stages *int `yaml:"stages,omitempty"`

	// Rules are the rewrite rules applied, in order.
	Rules []string `yaml:"rules,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files directly under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("find scenarios in %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Pipeline.Kind != yaml.SequenceNode {
		return fmt.Errorf("pipeline list is required")
	}

	p, err := s.BuildPipeline()
	if err != nil {
		return err
	}
	if src, _ := p.Source(); src.Collection == "" {
		return fmt.Errorf("collection is required (top level or in $source)")
	}

	if _, err := s.Docs(); err != nil {
		return err
	}
	if _, err := s.Expect.results(); err != nil {
		return err
	}
	if _, err := s.Expect.scanFilter(); err != nil {
		return err
	}

	if s.Expect.Stages != nil && *s.Expect.Stages < 0 {
		return fmt.Errorf("expect.stages must be non-negative")
	}

	known := []string{optimizer.RuleMergeFilters, optimizer.RuleSplitFilterSort, optimizer.RulePushDown}
	for i, rule := range s.Expect.Rules {
		if !slices.Contains(known, rule) {
			return fmt.Errorf("expect.rules[%d]: unknown rule %q", i, rule)
		}
	}

	return nil
}

// BuildPipeline parses Pipeline and applies the scenario's collection and
// push-down settings to its source.
func (s *Scenario) BuildPipeline() (pipeline.Pipeline, error) {
	spec, err := compiler.ParseStages(&s.Pipeline)
	if err != nil {
		return pipeline.Pipeline{}, fmt.Errorf("pipeline: %w", err)
	}
	if spec.Source.Collection == "" {
		spec.Source.Collection = s.Collection
	}
	if s.PushDown != nil {
		spec.Source.SupportsFilterPushdown = *s.PushDown
	}
	return spec.Pipeline(), nil
}

// Docs converts Documents to IR.
func (s *Scenario) Docs() ([]ir.IRObject, error) {
	docs := make([]ir.IRObject, len(s.Documents))
	for i, raw := range s.Documents {
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("documents[%d]: %w", i, err)
		}
		docs[i] = v.(ir.IRObject)
	}
	return docs, nil
}

// results decodes Results. It returns nil when the field is absent.
func (e Expect) results() (docs ir.IRArray, err error) {
	if e.Results.Kind == 0 {
		return nil, nil
	}

	var raw []map[string]any
	if err := e.Results.Decode(&raw); err != nil {
		return nil, fmt.Errorf("expect.results: %w", err)
	}
	docs = make(ir.IRArray, len(raw))
	for i, doc := range raw {
		v, err := ir.FromGo(doc)
		if err != nil {
			return nil, fmt.Errorf("expect.results[%d]: %w", i, err)
		}
		docs[i] = v
	}
	return docs, nil
}

// scanFilterExpect is a parsed expect.scan_filter. A nil Predicate expects
// the source to carry no native filter.
type scanFilterExpect struct {
	Predicate predicate.Predicate
}

// scanFilter parses ScanFilter. It returns nil when the field is absent.
func (e Expect) scanFilter() (*scanFilterExpect, error) {
	n := &e.ScanFilter
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null" {
		return &scanFilterExpect{}, nil
	}

	pred, err := compiler.ParseMatch(n)
	if err != nil {
		return nil, fmt.Errorf("expect.scan_filter: %w", err)
	}
	return &scanFilterExpect{Predicate: pred}, nil
}
