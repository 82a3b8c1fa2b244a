// Package processing runs the governance pipeline over bus messages:
// expiry, constitutional validation, role authorization, policy
// evaluation, impact scoring, the deliberation gate, strategy and
// handler dispatch, and the audit and metering hooks.
//
// Per-message failures never escape the processor; they are rendered
// into the Outcome and the message fails. Messages diverted to
// deliberation re-enter through Resume once a review resolves.
package processing
