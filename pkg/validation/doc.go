// Package validation decides whether a message may enter processing.
//
// Validators are pluggable predicates combined into a chain. The
// default chain checks the constitutional hash with a constant-time
// comparison, screens content for prompt-injection markers, and caches
// passing results keyed by content hash.
//
// Hash values never appear in full in validation errors; they are
// sanitized to their first eight characters.
package validation
