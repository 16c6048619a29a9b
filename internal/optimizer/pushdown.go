package optimizer

import (
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// pushDownFilter attaches the first filter to the source when the filter sits
// directly on a source that supports push-down.
//
// The scan layer only understands field comparisons, so the filter is split
// with every field available: the comparison-only part is attached (conjoined
// with any native filter already present) and an opaque residual stays as a
// Filter stage right after the source.
func (o *Optimizer) pushDownFilter(p pipeline.Pipeline) (pipeline.Pipeline, *Event) {
	idx := firstFilter(p)
	if idx != 1 {
		return p, nil
	}
	src, ok := p.Source()
	if !ok || !src.SupportsFilterPushdown {
		o.logger.Debug("push-down skipped: source does not support filters", "kind", src.Kind)
		return p, nil
	}

	filter := p.Stages[idx].(pipeline.Filter)
	attach, residual := predicate.Split(predicate.Simplify(filter.Predicate), predicate.AllFields())
	if attach == nil {
		return p, nil
	}

	src.Filter = predicate.Simplify(predicate.Conjoin(src.Filter, attach))

	stages := make([]pipeline.Stage, 0, len(p.Stages))
	stages = append(stages, src)
	if residual != nil {
		stages = append(stages, pipeline.Filter{Predicate: residual})
	}
	stages = append(stages, p.Stages[idx+1:]...)

	ev := &Event{Rule: RulePushDown, Position: idx, Moved: predicate.String(attach)}
	if residual != nil {
		ev.Residual = predicate.String(residual)
	}
	o.logger.Debug("filter pushed down",
		"collection", src.Collection,
		"filter", ev.Moved,
		"residual", ev.Residual,
	)
	return pipeline.Pipeline{Stages: stages}, ev
}

func firstFilter(p pipeline.Pipeline) int {
	for i, s := range p.Stages {
		if _, ok := s.(pipeline.Filter); ok {
			return i
		}
	}
	return -1
}
