// Package message defines the core message model for the Concord agent bus.
//
// Every unit of work that moves through the bus is a Message: a typed,
// prioritized envelope carrying content and payload between agents, stamped
// with the constitutional hash it was validated against. The package also
// defines the supporting wire types shared across the runtime: validation
// results, governance decision logs, routing and security contexts, and the
// stable error-kind vocabulary.
//
// # Message Lifecycle
//
// Messages move through a fixed status graph:
//
//	PENDING → EXPIRED
//	PENDING → FAILED
//	PENDING → PROCESSING → DELIVERED | FAILED
//	PENDING → PENDING_DELIBERATION → DELIVERED | FAILED
//
// TransitionTo enforces the graph; transitions outside it are rejected so a
// terminal message can never be revived.
//
// # Wire Format
//
// JSON field names are a stable contract consumed by audit storage, the
// distributed registry, and external reviewers. Priority marshals as its
// name ("HIGH") but unmarshals from either a name or the numeric level,
// because upstream producers disagree on the encoding.
//
// # Constitutional Hash Handling
//
// The package owns hash sanitization: any constitutional hash that leaves
// the process in an error message or log line must pass through
// SanitizeHash, which truncates to the first eight characters. Comparison
// itself lives in the validation package and is constant-time.
package message
