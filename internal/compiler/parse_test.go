package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

func i(n int64) ir.IRValue { return ir.IRInt(n) }

func aNeB() predicate.Opaque {
	return predicate.Expr(expr.Fn("$ne", expr.Field("a"), expr.Field("b")))
}

func assertPipeline(t *testing.T, want, got pipeline.Pipeline) {
	t.Helper()
	assert.True(t, pipeline.Equal(want, got), "want %s\n got %s", pipeline.String(want), pipeline.String(got))
}

func parseYAML(t *testing.T, src string) Spec {
	t.Helper()
	spec, err := ParseYAML([]byte(src))
	require.NoError(t, err)
	return spec
}

func TestParseYAML_HeaderForm(t *testing.T) {
	spec := parseYAML(t, `
collection: c
pushdown: true
pipeline:
  - $sort: {b: 1}
  - $match:
      a: {$ne: 2}
      $expr: {$ne: ["$a", "$b"]}
`)

	want := pipeline.New(
		pipeline.Source{Kind: pipeline.KindCollection, Collection: "c", SupportsFilterPushdown: true},
		pipeline.Sort{Keys: []pipeline.SortKey{{Field: "b", Direction: pipeline.Ascending}}},
		pipeline.Filter{Predicate: predicate.AllOf(predicate.Ne("a", i(2)), aNeB())},
	)
	assertPipeline(t, want, spec.Pipeline())
}

func TestParseYAML_StageListForm(t *testing.T) {
	spec := parseYAML(t, `
- $sort: {b: 1, a: -1}
- $match: {a: 1}
- $limit: 5
`)

	assert.Equal(t, "", spec.Source.Collection)
	assert.True(t, spec.Source.SupportsFilterPushdown)
	require.Len(t, spec.Stages, 3)
	assert.Equal(t, pipeline.Sort{Keys: []pipeline.SortKey{
		{Field: "b", Direction: pipeline.Ascending},
		{Field: "a", Direction: pipeline.Descending},
	}}, spec.Stages[0])
	assert.True(t, predicate.Equal(predicate.Eq("a", i(1)), spec.Stages[1].(pipeline.Filter).Predicate))
	assert.Equal(t, pipeline.Other{Kind: "$limit", Spec: i(5)}, spec.Stages[2])
}

func TestParseYAML_PushdownFalse(t *testing.T) {
	spec := parseYAML(t, `
collection: c
pushdown: false
pipeline: []
`)
	assert.False(t, spec.Source.SupportsFilterPushdown)
	assert.Empty(t, spec.Stages)
}

func TestParseYAML_SortListForm(t *testing.T) {
	spec := parseYAML(t, `[{$sort: [{b: 1}, {a: -1}]}]`)
	assert.Equal(t, pipeline.Sort{Keys: []pipeline.SortKey{
		{Field: "b", Direction: pipeline.Ascending},
		{Field: "a", Direction: pipeline.Descending},
	}}, spec.Stages[0])
}

func TestParseYAML_Anchors(t *testing.T) {
	spec := parseYAML(t, `
- $match: &cond {a: {$gt: 1}}
- $sort: {b: 1}
- $match: *cond
`)
	require.Len(t, spec.Stages, 3)
	assert.True(t, predicate.Equal(spec.Stages[0].(pipeline.Filter).Predicate, spec.Stages[2].(pipeline.Filter).Predicate))
}

func TestParseYAML_OtherStagesPassThrough(t *testing.T) {
	spec := parseYAML(t, `
- $project: {a: 1, _id: 0}
- $skip: 2
- $group: {_id: "$a"}
`)
	require.Len(t, spec.Stages, 3)
	assert.Equal(t, "$project", spec.Stages[0].Name())
	assert.Equal(t, pipeline.Other{Kind: "$skip", Spec: i(2)}, spec.Stages[1])
	assert.Equal(t, pipeline.Other{Kind: "$group", Spec: ir.Doc(ir.O("_id", ir.IRString("$a")))}, spec.Stages[2])
}

func TestParseYAML_SourceStageRoundTrip(t *testing.T) {
	p := pipeline.New(
		pipeline.Source{
			Kind: pipeline.KindCollection, Collection: "orders", SupportsFilterPushdown: true,
			Filter: predicate.AllOf(predicate.Ne("a", i(2)), predicate.Cmp("b", predicate.OpIn, ir.IRArray{i(1), i(2)})),
		},
		pipeline.Sort{Keys: []pipeline.SortKey{{Field: "b", Direction: pipeline.Ascending}, {Field: "a", Direction: pipeline.Descending}}},
		pipeline.Filter{Predicate: aNeB()},
		pipeline.Other{Kind: "$limit", Spec: i(3)},
	)

	rendered, err := ir.MarshalCanonical(pipeline.Render(p))
	require.NoError(t, err)

	spec, err := ParseJSON(rendered)
	require.NoError(t, err)
	got := spec.Pipeline()

	// Ne renders as {$not: {$eq: v}}, which parses as Not(Eq); Simplify folds it back.
	src, _ := got.Source()
	src.Filter = predicate.Simplify(src.Filter)
	got.Stages[0] = src

	assertPipeline(t, p, got)
}

func TestParseJSON_KeepsKeyOrder(t *testing.T) {
	spec, err := ParseJSON([]byte(`{
	"collection": "c",
	"pipeline": [
		{"$sort": {"z": 1, "a": -1, "m": 1}},
		{"$match": {"z": 1, "a": 2}}
	]
}`))
	require.NoError(t, err)

	sort := spec.Stages[0].(pipeline.Sort)
	assert.Equal(t, []string{"z", "a", "m"}, []string{sort.Keys[0].Field, sort.Keys[1].Field, sort.Keys[2].Field})

	and := spec.Stages[1].(pipeline.Filter).Predicate.(predicate.And)
	assert.Equal(t, "z", and.Children[0].(predicate.Comparison).Field)
	assert.Equal(t, "a", and.Children[1].(predicate.Comparison).Field)
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"syntax", `[{"$match": }]`, ErrSyntax},
		{"trailing", `[] []`, ErrSyntax},
		{"empty", ``, ErrSyntax},
		{"float literal", `[{"$match": {"a": 1.5}}]`, ErrInvalidValue},
		{"scalar root", `42`, ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.src))
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestParseYAML_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  string
		stage int
		path  string
	}{
		{"empty", ``, ErrInvalidDocument, -1, ""},
		{"scalar root", `hello`, ErrInvalidDocument, -1, ""},
		{"unknown header key", "collection: c\nstages: []", ErrInvalidDocument, -1, "stages"},
		{"missing pipeline", "collection: c", ErrInvalidDocument, -1, "pipeline"},
		{"two-key stage", `[{$sort: {b: 1}, $match: {}}]`, ErrInvalidStage, 0, ""},
		{"scalar stage", `[$limit]`, ErrInvalidStage, 0, ""},
		{"stage without dollar", `[{limit: 1}]`, ErrInvalidStage, 0, "limit"},
		{"empty sort", `[{$sort: {}}]`, ErrInvalidSort, 0, "$sort"},
		{"duplicate sort key", `[{$sort: [{a: 1}, {a: -1}]}]`, ErrInvalidSort, 0, "$sort.a"},
		{"bad direction", `[{$sort: {a: 2}}]`, ErrSortDirection, 0, "$sort.a"},
		{"string direction", `[{$sort: {a: asc}}]`, ErrSortDirection, 0, "$sort.a"},
		{"match not mapping", `[{$match: [1]}]`, ErrInvalidMatch, 0, "$match"},
		{"and not list", `[{$match: {$and: {a: 1}}}]`, ErrConnective, 0, "$match.$and"},
		{"or item not doc", `[{$sort: {a: 1}}, {$match: {$or: [{a: 1}, 2]}}]`, ErrConnective, 1, "$match.$or[1]"},
		{"bad expr", `[{$match: {$expr: {$nope: [1]}}}]`, ErrInvalidExpr, 0, "$match.$expr"},
		{"unknown top-level", `[{$match: {$where: "x"}}]`, ErrUnknownTopLevel, 0, "$match.$where"},
		{"operator mix", `[{$match: {a: {$gt: 1, b: 2}}}]`, ErrOperatorMix, 0, "$match.a"},
		{"empty segment", `[{$match: {"a..b": 1}}]`, ErrInvalidField, 0, "$match.a..b"},
		{"in needs list", `[{$match: {a: {$in: 1}}}]`, ErrInvalidOperand, 0, "$match.a.$in"},
		{"exists needs bool", `[{$match: {a: {$exists: 1}}}]`, ErrInvalidOperand, 0, "$match.a.$exists"},
		{"not needs operators", `[{$match: {a: {$not: 5}}}]`, ErrInvalidOperand, 0, "$match.a.$not"},
		{"float", `[{$match: {a: 0.5}}]`, ErrInvalidValue, 0, "$match.a"},
		{"limit type", `[{$limit: "5"}]`, ErrInvalidStageArg, 0, "$limit"},
		{"project type", `[{$project: 1}]`, ErrInvalidStageArg, 0, "$project"},
		{"late source", `[{$sort: {a: 1}}, {$source: {collection: c}}]`, ErrInvalidSource, 1, "$source"},
		{"source unknown key", `[{$source: {table: c}}]`, ErrInvalidSource, 0, "$source.table"},
		{"source filter without pushdown", `[{$source: {collection: c, pushdown: false, filter: {a: 1}}}]`, ErrInvalidSource, 0, "$source.filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.src))
			var pe *ParseError
			require.ErrorAs(t, err, &pe, "got %v", err)
			assert.Equal(t, tt.code, pe.Code, pe.Error())
			assert.Equal(t, tt.stage, pe.Stage)
			assert.Equal(t, tt.path, pe.Path)
		})
	}
}

func TestParseError_Format(t *testing.T) {
	pe := &ParseError{Stage: 1, Path: "$sort.a", Code: ErrSortDirection, Message: "bad", File: "p.yaml", Line: 3, Column: 9}
	assert.Equal(t, "p.yaml:3:9: [E203] stage 1: $sort.a: bad", pe.Error())

	pe = &ParseError{Stage: -1, Code: ErrSyntax, Message: "oops"}
	assert.Equal(t, "[E213] oops", pe.Error())

	pe = &ParseError{Stage: -1, Code: ErrUnknownFormat, Message: "nope", File: "x.txt"}
	assert.Equal(t, "x.txt: [E211] nope", pe.Error())
}

func TestParseYAML_ErrorHasPosition(t *testing.T) {
	_, err := ParseYAML([]byte("- $sort: {b: 1}\n- $sort: {a: 3}\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.Greater(t, pe.Column, 1)
}

func TestParseStages_RequiresSequence(t *testing.T) {
	_, err := ParseStages(&yaml.Node{Kind: yaml.MappingNode})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrInvalidDocument, pe.Code)

	_, err = ParseStages(nil)
	require.ErrorAs(t, err, &pe)
}

func TestCompileCUE(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		collection: "c"
		pushdown:   true
		pipeline: [
			{"$sort": {b: 1}},
			{"$match": {
				"$or": [{
					a: {"$ne": 2}
					"$expr": {"$ne": ["$a", "$b"]}
				}]
			}},
		]
	`)

	spec, err := CompileCUE(v)
	require.NoError(t, err)

	want := pipeline.New(
		pipeline.Source{Kind: pipeline.KindCollection, Collection: "c", SupportsFilterPushdown: true},
		pipeline.Sort{Keys: []pipeline.SortKey{{Field: "b", Direction: pipeline.Ascending}}},
		pipeline.Filter{Predicate: predicate.AnyOf(predicate.AllOf(predicate.Ne("a", i(2)), aNeB()))},
	)
	assertPipeline(t, want, spec.Pipeline())
}

func TestCompileCUE_Errors(t *testing.T) {
	ctx := cuecontext.New()

	t.Run("conflict", func(t *testing.T) {
		v := ctx.CompileString("collection: \"a\"\ncollection: \"b\"\npipeline: []", cue.Filename("bad.cue"))
		_, err := CompileCUE(v)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ErrCUE, pe.Code)
	})

	t.Run("incomplete", func(t *testing.T) {
		v := ctx.CompileString(`collection: string, pipeline: []`)
		_, err := CompileCUE(v)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ErrCUE, pe.Code)
	})

	t.Run("float", func(t *testing.T) {
		v := ctx.CompileString(`pipeline: [{"$match": {a: 1.5}}]`)
		_, err := CompileCUE(v)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ErrInvalidValue, pe.Code)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"p.yaml": "collection: c\npipeline:\n  - $sort: {b: 1}\n  - $match: {a: {$ne: 2}}\n",
		"p.yml":  "collection: c\npipeline:\n  - $sort: {b: 1}\n  - $match: {a: {$ne: 2}}\n",
		"p.json": `{"collection": "c", "pipeline": [{"$sort": {"b": 1}}, {"$match": {"a": {"$ne": 2}}}]}`,
		"p.cue":  "collection: \"c\"\npipeline: [{\"$sort\": {b: 1}}, {\"$match\": {a: {\"$ne\": 2}}}]\n",
	}

	want := pipeline.New(
		pipeline.Source{Kind: pipeline.KindCollection, Collection: "c", SupportsFilterPushdown: true},
		pipeline.Sort{Keys: []pipeline.SortKey{{Field: "b", Direction: pipeline.Ascending}}},
		pipeline.Filter{Predicate: predicate.Ne("a", i(2))},
	)

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			spec, err := LoadFile(path)
			require.NoError(t, err)
			assertPipeline(t, want, spec.Pipeline())
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "p.txt"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrUnknownFormat, pe.Code)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("[{$sort: {a: 7}}]"), 0o644))
	_, err = LoadFile(bad)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, bad, pe.File)
	assert.Equal(t, ErrSortDirection, pe.Code)
}
