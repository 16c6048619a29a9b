package harness

import (
	"github.com/roach88/pipeopt/internal/explain"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall success: equivalence, idempotence and every
	// present expectation held.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Original and Optimized are the pipelines before and after Optimize.
	Original  pipeline.Pipeline `json:"-"`
	Optimized pipeline.Pipeline `json:"-"`

	// Plan is the explain plan of the optimized pipeline.
	Plan explain.Plan `json:"plan"`

	// Results are the documents the optimized pipeline returned.
	Results []ir.IRObject `json:"results"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:    name,
		Pass:    true,
		Errors:  []string{},
		Results: []ir.IRObject{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Summary counts passed and failed results.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize counts results by outcome.
func Summarize(results []*Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Pass {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}
