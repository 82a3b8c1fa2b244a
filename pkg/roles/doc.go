// Package roles implements separation-of-powers enforcement for the
// agent bus.
//
// Every agent holds at most one of three fixed roles (EXECUTIVE,
// LEGISLATIVE, or JUDICIAL), and every message type maps to a governed
// action. The enforcer checks each action against a fixed per-role
// whitelist before a message may proceed through the pipeline.
//
// The whitelists are constructed so that no single role can both
// propose and validate a governance action. Ownership tracking closes
// the remaining gap: a JUDICIAL agent cannot validate output it
// produced itself, and cannot validate another JUDICIAL agent.
//
// The message-type-to-action table is configurable; the defaults cover
// every defined message type.
package roles
