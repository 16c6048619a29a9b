package optimizer

import (
	"slices"

	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// rule rewrites an adjacent stage pair. ok is false when the rule does not
// apply; otherwise repl replaces the pair.
type rule struct {
	name  string
	apply func(a, b pipeline.Stage) (repl []pipeline.Stage, moved, residual predicate.Predicate, ok bool)
}

var rewriteRules = []rule{
	{name: RuleMergeFilters, apply: mergeFilters},
	{name: RuleSplitFilterSort, apply: splitFilterSort},
}

// rewrite applies rewriteRules left to right, pass after pass, until a pass
// changes nothing. A filter moves back at most one stage per pass and merges
// only shrink the pipeline, so n*n+1 passes always suffice.
func (o *Optimizer) rewrite(p pipeline.Pipeline) (pipeline.Pipeline, []Event, int) {
	stages := slices.Clone(p.Stages)
	maxPasses := len(stages)*len(stages) + 1

	var events []Event
	pass := 0
	for pass < maxPasses {
		pass++
		changed := false

		for i := 0; i+1 < len(stages); {
			repl, ev, ok := o.applyAt(stages, i)
			if !ok {
				i++
				continue
			}
			ev.Pass = pass
			events = append(events, ev)
			changed = true

			stages = append(append(append(slices.Grow([]pipeline.Stage(nil), i+len(repl)+len(stages)-(i+2)), stages[:i]...), repl...), stages[i+2:]...)
			// Re-examine the last replacement stage against its new neighbour.
			i += len(repl) - 1
		}

		if !changed {
			return pipeline.Pipeline{Stages: stages}, events, pass
		}
	}

	o.logger.Warn("rewrite pass limit reached", "passes", pass, "stages", len(stages))
	return pipeline.Pipeline{Stages: stages}, events, pass
}

func (o *Optimizer) applyAt(stages []pipeline.Stage, i int) ([]pipeline.Stage, Event, bool) {
	for _, r := range rewriteRules {
		repl, moved, residual, ok := r.apply(stages[i], stages[i+1])
		if !ok {
			continue
		}

		ev := Event{Rule: r.name, Position: i, Moved: predicate.String(moved)}
		if residual != nil {
			ev.Residual = predicate.String(residual)
		}
		o.logger.Debug("rewrite applied",
			"rule", ev.Rule,
			"position", ev.Position,
			"moved", ev.Moved,
			"residual", ev.Residual,
		)
		return repl, ev, true
	}
	return nil, Event{}, false
}

// mergeFilters coalesces two adjacent filters into one conjunction.
func mergeFilters(a, b pipeline.Stage) ([]pipeline.Stage, predicate.Predicate, predicate.Predicate, bool) {
	first, ok := a.(pipeline.Filter)
	if !ok {
		return nil, nil, nil, false
	}
	second, ok := b.(pipeline.Filter)
	if !ok {
		return nil, nil, nil, false
	}

	merged := predicate.Simplify(predicate.AllOf(orTrue(first.Predicate), orTrue(second.Predicate)))
	return []pipeline.Stage{pipeline.Filter{Predicate: merged}}, second.Predicate, nil, true
}

// splitFilterSort moves the part of a filter that only reads fields present
// before a sort ahead of that sort.
func splitFilterSort(a, b pipeline.Stage) ([]pipeline.Stage, predicate.Predicate, predicate.Predicate, bool) {
	sort, ok := a.(pipeline.Sort)
	if !ok {
		return nil, nil, nil, false
	}
	filter, ok := b.(pipeline.Filter)
	if !ok {
		return nil, nil, nil, false
	}

	// Simplify before Split: an unsimplified single-child Or would not split.
	simplified := predicate.Simplify(filter.Predicate)
	splittable, residual := predicate.Split(simplified, availableBefore(sort))
	if splittable == nil {
		return nil, nil, nil, false
	}

	repl := []pipeline.Stage{pipeline.Filter{Predicate: splittable}, sort}
	if residual != nil {
		repl = append(repl, pipeline.Filter{Predicate: residual})
	}
	return repl, splittable, residual, true
}

// availableBefore returns the fields present in documents before a sort runs.
// A sort reorders documents without introducing fields, so every field
// is available.
func availableBefore(pipeline.Sort) predicate.FieldSet {
	return predicate.AllFields()
}

// orTrue maps a nil predicate to the empty conjunction.
func orTrue(p predicate.Predicate) predicate.Predicate {
	if p == nil {
		return predicate.AllOf()
	}
	return p
}
