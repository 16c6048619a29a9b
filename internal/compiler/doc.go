// Package compiler parses declarative pipeline specs into pipeline.Pipeline.
//
// A spec is either a bare stage list or a mapping with a source header:
//
//	collection: orders
//	pushdown: true
//	pipeline:
//	  - $sort: {b: 1}
//	  - $match: {a: {$ne: 2}}
//
// Specs are read from YAML, JSON or CUE. All three go through yaml.Node so
// mapping order is kept: sort keys are ordered, and the clauses of a match
// document become an implicit conjunction in the order written.
//
// Match documents support field conditions ($eq $ne $gt $gte $lt $lte $in
// $nin $exists $not, and implicit equality) and the top-level operators
// $and, $or, $nor, $not and $expr. Field operators the optimizer does not
// know are kept as comparisons with that operator, so they are never moved;
// predicate.Validate reports them.
package compiler
