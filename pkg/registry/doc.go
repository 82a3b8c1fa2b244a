// Package registry tracks the agents known to the bus.
//
// A registry maps agent ids to capability and metadata records. Two
// backends implement the same contract: an in-memory map for a single
// bus process (the default), and a redis backing that lets multiple
// bus instances share agent records.
//
// Registration is atomic: a duplicate agent id is rejected, and
// unregistering an unknown agent reports ErrAgentNotFound. Reads return
// copies, so callers never observe concurrent mutation.
package registry
