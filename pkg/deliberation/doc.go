// Package deliberation holds high-impact messages for review before
// delivery.
//
// A message whose impact score crosses the deliberation threshold is
// parked under a correlation id. It resolves one of three ways: an
// explicit reviewer decision, vote consensus among agents, or a
// deadline timeout that denies it with DELIBERATION_TIMEOUT. Each
// review resolves exactly once; the installed resolver callback
// returns approved messages to the bus for delivery.
package deliberation
