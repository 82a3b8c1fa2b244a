// Package strategy defines how a validated message reaches its target.
//
// A Strategy takes a message to a terminal status. Baseline delivers
// in-process through the handler dispatcher; Composite chains
// strategies in preference order, falling back past unavailable or
// failing ones. A strategy failure is distinct from a logical denial:
// only the former moves the chain along.
package strategy
