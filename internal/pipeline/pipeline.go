// Package pipeline defines the stage sequence the optimizer rewrites.
package pipeline

import (
	"slices"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/predicate"
)

// Stage is a sealed interface: Filter, Sort, Source or Other.
type Stage interface {
	stageNode() // Marker method - seals interface to this package

	// Name is the stage-kind key used in the declarative form, e.g. "$match".
	Name() string
}

// Filter keeps documents that satisfy Predicate ($match).
type Filter struct {
	Predicate predicate.Predicate
}

func (Filter) stageNode()   {}
func (Filter) Name() string { return "$match" }

// Direction is a sort direction: 1 ascending, -1 descending.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// SortKey is one field of a sort specification.
type SortKey struct {
	Field     string
	Direction Direction
}

// Sort orders documents by Keys, in key order ($sort).
// The sort is stable: documents that tie on every key keep their input order.
type Sort struct {
	Keys []SortKey
}

func (Sort) stageNode()   {}
func (Sort) Name() string { return "$sort" }

// Source produces the input documents by scanning a collection.
// Filter holds the native filter attached by push-down, evaluated by the scan
// layer itself. It is only ever set when SupportsFilterPushdown is true.
type Source struct {
	Kind                   string
	Collection             string
	SupportsFilterPushdown bool
	Filter                 predicate.Predicate
}

func (Source) stageNode()   {}
func (Source) Name() string { return "$source" }

// Other is any stage outside the match/sort class ($limit, $project, ...).
// The optimizer never moves anything across it.
type Other struct {
	Kind string
	Spec ir.IRValue
}

func (Other) stageNode()     {}
func (o Other) Name() string { return o.Kind }

// Source kinds.
const (
	KindCollection = "collection"
)

// Pipeline is an ordered, immutable sequence of stages.
type Pipeline struct {
	Stages []Stage
}

// New builds a pipeline. The stage slice is copied.
func New(stages ...Stage) Pipeline {
	return Pipeline{Stages: slices.Clone(stages)}
}

// Collection builds a pipeline that scans collection with the given
// push-down support, followed by stages.
func Collection(collection string, pushdown bool, stages ...Stage) Pipeline {
	src := Source{Kind: KindCollection, Collection: collection, SupportsFilterPushdown: pushdown}
	return New(append([]Stage{src}, stages...)...)
}

// Clone returns a copy whose stage slice can be modified independently.
// Stages themselves are values and are shared.
func (p Pipeline) Clone() Pipeline {
	return Pipeline{Stages: slices.Clone(p.Stages)}
}

// Len returns the number of stages.
func (p Pipeline) Len() int {
	return len(p.Stages)
}

// Source returns the leading Source stage, if any.
func (p Pipeline) Source() (Source, bool) {
	if len(p.Stages) == 0 {
		return Source{}, false
	}
	src, ok := p.Stages[0].(Source)
	return src, ok
}

// Body returns the stages after a leading Source.
func (p Pipeline) Body() []Stage {
	if _, ok := p.Source(); ok {
		return p.Stages[1:]
	}
	return p.Stages
}
