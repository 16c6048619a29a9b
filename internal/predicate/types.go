package predicate

import (
	"github.com/roach88/pipeopt/internal/expr"
	"github.com/roach88/pipeopt/internal/ir"
)

// Predicate is a sealed interface; only the types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a field comparison operator.
type Op string

// Known comparison operators.
const (
	OpEq     Op = "$eq"
	OpNe     Op = "$ne"
	OpGt     Op = "$gt"
	OpGte    Op = "$gte"
	OpLt     Op = "$lt"
	OpLte    Op = "$lte"
	OpIn     Op = "$in"
	OpNin    Op = "$nin"
	OpExists Op = "$exists"
)

var knownOps = map[Op]bool{
	OpEq: true, OpNe: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNin: true,
	OpExists: true,
}

// Known reports whether op is one of the comparison operators above.
// Comparisons with unknown operators are treated like opaque expressions:
// they are never relocated and the matcher rejects them.
func (op Op) Known() bool {
	return knownOps[op]
}

// IsRange reports whether op is an ordering comparison.
func (op Op) IsRange() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Comparison tests a single field against a literal.
//
// Examples:
//
//	Comparison{Field: "a", Op: OpNe, Value: ir.IRInt(2)}          a != 2
//	Comparison{Field: "tags", Op: OpIn, Value: ir.IRArray{...}}   tags in [...]
//	Comparison{Field: "x.y", Op: OpExists, Value: ir.IRBool(true)}
type Comparison struct {
	Field string
	Op    Op
	Value ir.IRValue
}

func (Comparison) predicateNode() {}

// And holds when every child holds.
type And struct {
	Children []Predicate
}

func (And) predicateNode() {}

// Or holds when at least one child holds.
type Or struct {
	Children []Predicate
}

func (Or) predicateNode() {}

// Not negates its child.
type Not struct {
	Child Predicate
}

func (Not) predicateNode() {}

// Opaque wraps an expression that only the expression engine can evaluate.
type Opaque struct {
	Expr expr.Expr
}

func (Opaque) predicateNode() {}

// Constructors used throughout tests and the parser.

// Eq builds field == v.
func Eq(field string, v ir.IRValue) Comparison { return Comparison{Field: field, Op: OpEq, Value: v} }

// Ne builds field != v.
func Ne(field string, v ir.IRValue) Comparison { return Comparison{Field: field, Op: OpNe, Value: v} }

// Cmp builds a comparison with an arbitrary operator.
func Cmp(field string, op Op, v ir.IRValue) Comparison {
	return Comparison{Field: field, Op: op, Value: v}
}

// AllOf builds And(children...).
func AllOf(children ...Predicate) And { return And{Children: children} }

// AnyOf builds Or(children...).
func AnyOf(children ...Predicate) Or { return Or{Children: children} }

// Negate builds Not(child).
func Negate(child Predicate) Not { return Not{Child: child} }

// Expr builds an Opaque node.
func Expr(e expr.Expr) Opaque { return Opaque{Expr: e} }
