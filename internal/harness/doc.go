// Package harness runs pipeline scenarios as executable contract tests for
// the optimizer.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_b
//	description: "Comparison moves ahead of the sort, $expr stays behind"
//	collection: c
//	pushdown: true
//	documents:
//	  - { _id: 1, a: 1, b: 3 }
//	  - { _id: 2, a: 2, b: 2 }
//	pipeline:
//	  - $sort: { b: 1 }
//	  - $match:
//	      $and:
//	        - { a: { $ne: 2 } }
//	        - { $expr: { $ne: ["$a", "$b"] } }
//	expect:
//	  results:
//	    - { _id: 1, a: 1, b: 3 }
//	  scan_filter: { a: { $ne: 2 } }
//	  stages: 2
//	  rules: [split-filter-sort, push-down]
//
// # Checks
//
// Every scenario is checked for:
//
//   - Equivalence: the optimized pipeline returns exactly the documents, in
//     the same order, that the original pipeline returns
//   - Idempotence: optimizing the optimized pipeline changes nothing
//   - Expectations: whichever expect fields are present
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory SQLite store. Documents
// without an _id get "<scenario>-N" IDs from testutil.SequentialIDs, so
// results and golden snapshots are identical across runs.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/scenario_a.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
