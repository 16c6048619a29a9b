// Package engine executes pipelines against a document source.
//
// The engine is the reference executor for optimized and unoptimized
// pipelines alike. It is deliberately simple and deterministic, so that
// running a pipeline before and after optimization is a direct check of
// output equivalence:
//
//   - the leading Source stage is resolved through the Source interface,
//     passing any pushed-down native filter to the scan layer
//   - Filter stages evaluate predicates with predicate.Matches
//   - Sort stages are stable, so ties keep scan order
//   - $limit, $skip and $project are the only Other stages supported
//
// CRITICAL PATTERNS:
//
// Deterministic results:
// Sources return documents in insertion order and every stage preserves the
// relative order of the documents it keeps. No maps are iterated while
// producing results.
//
// Bounded execution:
// WithMaxDocuments caps the number of documents a single execution may scan,
// so a runaway pipeline fails with a quota error instead of exhausting memory.
package engine
