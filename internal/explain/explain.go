// Package explain renders an optimized pipeline as a plan document: the
// collection scan with its native filter, the stages left to execute, and
// the rewrites that produced them.
package explain

import (
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/optimizer"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// StageCollScan is the plan stage name of a collection scan.
const StageCollScan = "COLLSCAN"

// Plan describes how an optimized pipeline will run.
type Plan struct {
	// Collection is empty when the pipeline has no source stage.
	Collection string

	// Scan is the winning scan stage: {stage: "COLLSCAN", filter: ...}.
	// Nil when the pipeline has no source stage.
	Scan ir.IRObject

	// Stages are the remaining stages in declarative form.
	Stages ir.IRArray

	Rewrites    []optimizer.Event
	Passes      int
	Fingerprint string
}

// Explain builds the plan for an optimizer result.
func Explain(res optimizer.Result) Plan {
	plan := Plan{
		Stages:      pipeline.Render(pipeline.New(res.Pipeline.Body()...)),
		Rewrites:    res.Events,
		Passes:      res.Passes,
		Fingerprint: res.Fingerprint,
	}

	if src, ok := res.Pipeline.Source(); ok {
		plan.Collection = src.Collection
		plan.Scan = ir.IRObject{
			"stage":     ir.IRString(StageCollScan),
			"direction": ir.IRString("forward"),
			"pushdown":  ir.IRBool(src.SupportsFilterPushdown),
		}
		if src.Filter != nil {
			plan.Scan["filter"] = predicate.Render(src.Filter)
		}
	}
	return plan
}

// Document returns the plan as a single document:
//
//	{
//	  queryPlanner: {namespace, winningPlan: {stage: "COLLSCAN", filter}},
//	  stages:       [...],
//	  rewrites:     [{rule, pass, position, moved, residual}],
//	  passes:       n,
//	  fingerprint:  "..."
//	}
func (p Plan) Document() ir.IRObject {
	doc := ir.IRObject{
		"stages":      p.Stages,
		"rewrites":    renderEvents(p.Rewrites),
		"passes":      ir.IRInt(p.Passes),
		"fingerprint": ir.IRString(p.Fingerprint),
	}
	if p.Scan != nil {
		doc["queryPlanner"] = ir.IRObject{
			"namespace":   ir.IRString(p.Collection),
			"winningPlan": p.Scan,
		}
	}
	return doc
}

// MarshalJSON encodes Document with sorted keys.
func (p Plan) MarshalJSON() ([]byte, error) {
	return p.Document().MarshalJSON()
}

func renderEvents(events []optimizer.Event) ir.IRArray {
	out := make(ir.IRArray, len(events))
	for i, ev := range events {
		doc := ir.IRObject{
			"rule":     ir.IRString(ev.Rule),
			"pass":     ir.IRInt(ev.Pass),
			"position": ir.IRInt(ev.Position),
			"moved":    ir.IRString(ev.Moved),
		}
		if ev.Residual != "" {
			doc["residual"] = ir.IRString(ev.Residual)
		}
		out[i] = doc
	}
	return out
}

// FindStage returns the first object nested anywhere in doc whose "stage"
// field equals name, searching depth first in key order. It returns nil when
// no such stage exists.
func FindStage(doc ir.IRValue, name string) ir.IRObject {
	switch v := doc.(type) {
	case ir.IRObject:
		if s, ok := v["stage"].(ir.IRString); ok && string(s) == name {
			return v
		}
		for _, k := range v.SortedKeys() {
			if found := FindStage(v[k], name); found != nil {
				return found
			}
		}
	case ir.IRArray:
		for _, elem := range v {
			if found := FindStage(elem, name); found != nil {
				return found
			}
		}
	}
	return nil
}
