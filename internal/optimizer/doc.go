// Package optimizer statically rewrites match/sort pipelines into cheaper,
// equivalent ones before execution.
//
// Two phases run in order:
//
//	Rewrite    rule passes over adjacent stage pairs, iterated to a fixed point
//	PushDown   attach the leading filter to the source as a native scan filter
//
// Rewrite rules:
//
//	merge-filters       (Filter a, Filter b)  -> Filter(a AND b)
//	split-filter-sort   (Sort, Filter p)      -> Filter(splittable), Sort, Filter(residual)
//
// The split rule always simplifies the predicate before splitting it. A
// single-child Or only splits as its child once simplified, so the order of
// these two calls is part of the rule's correctness, not an optimization.
//
// Every rule preserves output: the rewritten pipeline returns the same
// documents in the same order as the input for every collection. The
// optimizer is total. It never returns an error and never modifies its input
// pipeline, so one Optimizer can serve concurrent callers.
package optimizer
