// Package metering aggregates per-tenant bus usage.
//
// Observations ride a bounded queue into a single aggregation worker,
// shedding the oldest event under pressure so producers never block.
// Totals optionally persist to a sqlite ledger on a flush interval and
// at shutdown, and are reloaded on start.
package metering
