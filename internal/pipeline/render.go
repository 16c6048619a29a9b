package pipeline

import (
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/predicate"
)

// RenderStage converts a stage to its declarative document form:
//
//	Filter   {$match: <match document>}
//	Sort     {$sort: {b: 1}}, or {$sort: [{b: 1}, {a: -1}]} for several keys
//	Source   {$source: {kind, collection, pushdown, filter}}
//	Other    {<kind>: <spec>}
//
// Several sort keys render as a list so their order survives canonical
// encoding, which sorts object keys.
func RenderStage(s Stage) ir.IRObject {
	switch st := s.(type) {
	case Filter:
		return ir.IRObject{st.Name(): predicate.Render(st.Predicate)}
	case Sort:
		return ir.IRObject{st.Name(): renderSortKeys(st.Keys)}
	case Source:
		src := ir.IRObject{
			"kind":       ir.IRString(st.Kind),
			"collection": ir.IRString(st.Collection),
			"pushdown":   ir.IRBool(st.SupportsFilterPushdown),
		}
		if st.Filter != nil {
			src["filter"] = predicate.Render(st.Filter)
		}
		return ir.IRObject{st.Name(): src}
	case Other:
		spec := st.Spec
		if spec == nil {
			spec = ir.IRNull{}
		}
		return ir.IRObject{st.Kind: spec}
	default:
		return ir.IRObject{}
	}
}

func renderSortKeys(keys []SortKey) ir.IRValue {
	if len(keys) == 1 {
		return ir.IRObject{keys[0].Field: ir.IRInt(keys[0].Direction)}
	}
	out := make(ir.IRArray, len(keys))
	for i, k := range keys {
		out[i] = ir.IRObject{k.Field: ir.IRInt(k.Direction)}
	}
	return out
}

// Render converts every stage of p to document form.
func Render(p Pipeline) ir.IRArray {
	out := make(ir.IRArray, len(p.Stages))
	for i, s := range p.Stages {
		out[i] = RenderStage(s)
	}
	return out
}

// Fingerprint is the domain-separated hash of Render(p). Two pipelines with
// the same fingerprint execute identically.
func Fingerprint(p Pipeline) string {
	return ir.MustFingerprint(ir.DomainPipeline, Render(p))
}

// Equal reports whether a and b render identically.
func Equal(a, b Pipeline) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// String returns the canonical JSON of Render(p), for logs and test failures.
func String(p Pipeline) string {
	b, err := ir.MarshalCanonical(Render(p))
	if err != nil {
		return "<invalid pipeline>"
	}
	return string(b)
}
