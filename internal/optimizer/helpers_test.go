package optimizer

import (
	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
	"github.com/roach88/pipeopt/internal/pipeline"
	"github.com/roach88/pipeopt/internal/predicate"
)

func i(n int64) ir.IRValue { return ir.IRInt(n) }

// aNeB is the opaque {$expr: {$ne: ["$a", "$b"]}} clause.
func aNeB() predicate.Opaque {
	return predicate.Expr(expr.Fn("$ne", expr.Field("a"), expr.Field("b")))
}

func byB() pipeline.Sort {
	return pipeline.Sort{Keys: []pipeline.SortKey{{Field: "b", Direction: pipeline.Ascending}}}
}

func byA() pipeline.Sort {
	return pipeline.Sort{Keys: []pipeline.SortKey{{Field: "a", Direction: pipeline.Descending}}}
}

func match(p predicate.Predicate) pipeline.Filter {
	return pipeline.Filter{Predicate: p}
}

func source(pushdown bool, filter predicate.Predicate) pipeline.Source {
	return pipeline.Source{
		Kind:                   pipeline.KindCollection,
		Collection:             "c",
		SupportsFilterPushdown: pushdown,
		Filter:                 filter,
	}
}

func scenarioDocs() []ir.IRObject {
	return []ir.IRObject{
		ir.Doc(ir.O("_id", i(1)), ir.O("a", i(1)), ir.O("b", i(3))),
		ir.Doc(ir.O("_id", i(2)), ir.O("a", i(2)), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(3)), ir.O("a", i(3)), ir.O("b", i(1))),
	}
}

// mixedDocs adds missing, null and mixed-type values to scenarioDocs.
func mixedDocs() []ir.IRObject {
	return append(scenarioDocs(),
		ir.Doc(ir.O("_id", i(4)), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(5)), ir.O("a", ir.IRNull{}), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(6)), ir.O("a", ir.IRString("2")), ir.O("b", ir.IRBool(true))),
		ir.Doc(ir.O("_id", i(7)), ir.O("a", ir.Doc(ir.O("c", i(2)))), ir.O("b", ir.IRArray{i(2)})),
		ir.Doc(ir.O("_id", i(8)), ir.O("a", i(2)), ir.O("b", i(3))),
	)
}
