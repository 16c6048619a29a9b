// Package ir provides the value model shared by every pipeopt package.
//
// Documents, predicate literals and rendered plans are all built from the
// sealed IRValue union. ir imports nothing internal, so it stays the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64 (keeps comparison and hashing exact)
//   - Object keys are ordered by UTF-16 code units (RFC 8785) whenever they are serialized
//   - Compare defines one total order across all value types, used by sort stages
//   - All fingerprints are domain-separated SHA-256 over canonical JSON
package ir
