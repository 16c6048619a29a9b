// Package predicate provides the boolean filter tree used by $match stages.
//
// A Predicate is a sealed tagged union:
//
//	Comparison{Field, Op, Value}   field-level test ($eq, $ne, $gt, $in, $exists, ...)
//	And{Children}                  every child holds (empty And is always true)
//	Or{Children}                   some child holds (empty Or is always false)
//	Not{Child}                     child does not hold
//	Opaque{Expr}                   general expression, see package expr
//
// Trees are immutable values. Simplify, Split and Conjoin always return new
// trees and never modify their inputs, so a predicate can be shared between
// pipelines and goroutines.
//
// SPLITTING:
//
// Split partitions a predicate into the part that can be evaluated using only
// a given FieldSet and the residual that cannot. The rules are structural:
//
//	Comparison   splittable iff its field is available and its operator is known
//	Opaque       never splittable
//	And          children split independently (lossless for conjunctions)
//	Or, Not      all or nothing
//
// Callers must Simplify before Split. A single-child Or is only recognised as
// its child after simplification; splitting it unsimplified treats it as a
// disjunction and yields no splittable part.
//
// MATCHING:
//
// Matches is the reference evaluator. The SQL compiler in package querysql
// produces filters with the same semantics, so a predicate gives identical
// results whether it runs in the scan layer or in a pipeline stage.
package predicate
