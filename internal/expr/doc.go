// Package expr is the general expression engine behind $expr filters.
//
// Expressions are a small sealed tree:
//
//	FieldRef   "$a.b"           value of a document field (missing if absent)
//	Literal    1, "x", null     constant ir.IRValue
//	Call       {$ne: [x, y]}    operator applied to argument expressions
//
// The predicate package wraps an Expr in an Opaque node. Opaque nodes are
// evaluated only through Eval and are never relocated by the optimizer, since
// the scan layer cannot express them.
//
// Comparison operators inside expressions use the total ir.Compare order
// (missing and null compare equal), which differs from field-comparison
// predicates where range operators only match within a type class.
package expr
