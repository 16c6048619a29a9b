package engine

import (
	"slices"

	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

// runStage applies one non-source stage to docs.
func (e *Engine) runStage(idx int, stage pipeline.Stage, docs []ir.IRObject) ([]ir.IRObject, error) {
	switch st := stage.(type) {
	case pipeline.Filter:
		return filterDocs(idx, st, docs)
	case pipeline.Sort:
		return sortDocs(st, docs), nil
	case pipeline.Other:
		return runOther(idx, st, docs)
	case pipeline.Source:
		return nil, stageError(ErrCodeInvalidStage, idx, st.Name(), "source stage must be first")
	default:
		return nil, stageError(ErrCodeUnsupportedStage, idx, stage.Name(), "unsupported stage type %T", stage)
	}
}

func filterDocs(idx int, f pipeline.Filter, docs []ir.IRObject) ([]ir.IRObject, error) {
	out := make([]ir.IRObject, 0, len(docs))
	for _, doc := range docs {
		ok, err := predicate.Matches(f.Predicate, doc)
		if err != nil {
			return nil, &ExecError{
				Code:    ErrCodeMatchFailed,
				Message: "evaluate " + predicate.String(f.Predicate),
				Stage:   idx,
				Kind:    f.Name(),
				Err:     err,
			}
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// sortDocs sorts a copy of docs. Missing fields sort as null.
func sortDocs(s pipeline.Sort, docs []ir.IRObject) []ir.IRObject {
	out := slices.Clone(docs)
	slices.SortStableFunc(out, func(a, b ir.IRObject) int {
		for _, k := range s.Keys {
			va, _ := ir.Lookup(a, k.Field)
			vb, _ := ir.Lookup(b, k.Field)
			if c := ir.Compare(va, vb); c != 0 {
				return c * int(k.Direction)
			}
		}
		return 0
	})
	return out
}

func runOther(idx int, st pipeline.Other, docs []ir.IRObject) ([]ir.IRObject, error) {
	switch st.Kind {
	case "$limit":
		n, ok := st.Spec.(ir.IRInt)
		if !ok || n <= 0 {
			return nil, stageError(ErrCodeInvalidStage, idx, st.Kind, "$limit requires a positive integer, got %s", ir.TypeName(st.Spec))
		}
		if int(n) < len(docs) {
			return docs[:n], nil
		}
		return docs, nil
	case "$skip":
		n, ok := st.Spec.(ir.IRInt)
		if !ok || n < 0 {
			return nil, stageError(ErrCodeInvalidStage, idx, st.Kind, "$skip requires a non-negative integer, got %s", ir.TypeName(st.Spec))
		}
		if int(n) >= len(docs) {
			return []ir.IRObject{}, nil
		}
		return docs[n:], nil
	case "$project":
		return projectDocs(idx, st, docs)
	default:
		return nil, stageError(ErrCodeUnsupportedStage, idx, st.Kind, "stage %s is not supported by the engine", st.Kind)
	}
}

// projectDocs applies an inclusion or exclusion projection. _id is kept
// unless excluded explicitly; inclusion and exclusion cannot be mixed
// for other fields.
func projectDocs(idx int, st pipeline.Other, docs []ir.IRObject) ([]ir.IRObject, error) {
	spec, ok := st.Spec.(ir.IRObject)
	if !ok || len(spec) == 0 {
		return nil, stageError(ErrCodeInvalidStage, idx, st.Kind, "$project requires a non-empty document")
	}

	keepID := true
	var include, exclude []string
	for _, field := range spec.SortedKeys() {
		on, ok := projectionFlag(spec[field])
		if !ok {
			return nil, stageError(ErrCodeInvalidStage, idx, st.Kind, "$project value for %q must be 0, 1 or a bool", field)
		}
		switch {
		case field == "_id":
			keepID = on
		case on:
			include = append(include, field)
		default:
			exclude = append(exclude, field)
		}
	}
	if len(include) > 0 && len(exclude) > 0 {
		return nil, stageError(ErrCodeInvalidStage, idx, st.Kind, "$project cannot mix inclusion and exclusion")
	}

	out := make([]ir.IRObject, len(docs))
	for i, doc := range docs {
		if len(include) > 0 {
			paths := include
			if keepID {
				paths = append([]string{"_id"}, include...)
			}
			out[i] = ir.Project(doc, paths)
			continue
		}
		drop := exclude
		if !keepID {
			drop = append([]string{"_id"}, exclude...)
		}
		out[i] = ir.Without(doc, drop)
	}
	return out, nil
}

func projectionFlag(v ir.IRValue) (bool, bool) {
	switch val := v.(type) {
	case ir.IRBool:
		return bool(val), true
	case ir.IRInt:
		if val == 0 || val == 1 {
			return val == 1, true
		}
	}
	return false, false
}
