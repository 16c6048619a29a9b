package predicate

import (
	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
)

func i(n int64) ir.IRValue { return ir.IRInt(n) }

// aNeB is the opaque {$expr: {$ne: ["$a", "$b"]}} clause.
func aNeB() Opaque {
	return Expr(expr.Fn("$ne", expr.Field("a"), expr.Field("b")))
}

// sampleDocs covers present, missing, null and mixed-type values for a and b.
func sampleDocs() []ir.IRObject {
	return []ir.IRObject{
		ir.Doc(ir.O("_id", i(1)), ir.O("a", i(1)), ir.O("b", i(3))),
		ir.Doc(ir.O("_id", i(2)), ir.O("a", i(2)), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(3)), ir.O("a", i(3)), ir.O("b", i(1))),
		ir.Doc(ir.O("_id", i(4)), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(5)), ir.O("a", ir.IRNull{}), ir.O("b", i(2))),
		ir.Doc(ir.O("_id", i(6)), ir.O("a", ir.IRString("2")), ir.O("b", ir.IRBool(true))),
		ir.Doc(ir.O("_id", i(7)), ir.O("a", ir.Doc(ir.O("c", i(2)))), ir.O("b", ir.IRArray{i(2)})),
	}
}
