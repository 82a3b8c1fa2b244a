// Package bus is the agent-facing facade: registration with identity
// and role checks, send and broadcast with tenant isolation, receive,
// and handler registration.
//
// Admitted messages wait in a bounded priority queue whose scheduling
// unit is the conversation: messages sharing a conversation id drain
// FIFO and never run concurrently, while unrelated messages run in
// parallel across the worker pool. Send blocks until the pipeline
// settles and hands the caller the processed outcome, so a governance
// rejection is observable at the call site. When the governance pipeline itself
// breaks, the bus degrades to a static constitutional check and marks
// delivered messages with governance_mode=DEGRADED.
package bus
