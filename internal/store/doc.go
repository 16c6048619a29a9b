// Package store provides a SQLite-backed document store.
//
// Each collection is a sequence of JSON documents kept in insertion order.
// Scans accept a predicate; comparison-only predicates are compiled to SQL
// by package querysql and evaluated inside SQLite, anything else is
// evaluated in process with predicate.Matches. Both paths return the same
// documents.
//
// # Critical Patterns
//
// Deterministic results:
//   - Bodies are stored as RFC 8785 canonical JSON (ir.MarshalCanonical)
//   - All scans use ORDER BY seq ASC, the logical insertion clock
//
// Document identity:
//   - _id is unique per collection (UNIQUE(collection, id))
//   - Documents without _id get a UUIDv7 string from the IDGenerator
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Dropping a collection cascades to its documents
package store
