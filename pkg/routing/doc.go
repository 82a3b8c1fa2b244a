// Package routing resolves message destinations against the agent
// registry and delivers into per-agent bounded inboxes.
//
// Single-target delivery follows routing.target when pinned, falling
// back to to_agent. Broadcast fans out to the sender's tenant peers,
// cloning the message per target. Tenant isolation holds on every
// path: a message never reaches an agent outside its tenant.
package routing
