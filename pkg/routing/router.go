package routing

import (
	"context"

	"concordlabs/concord/pkg/message"
)

// Delivery is a resolved destination set.
type Delivery struct {
	// Targets are the agent ids the message will be delivered to.
	Targets []string

	// Broadcast reports whether the set came from tenant-wide fan-out.
	Broadcast bool
}

// Router resolves message destinations and delivers to local inboxes.
type Router interface {
	// Route resolves the message's destination without delivering.
	Route(ctx context.Context, m *message.Message) (*Delivery, error)

	// Deliver resolves the destination and places the message (a clone
	// per target on fan-out) into each target inbox.
	Deliver(ctx context.Context, m *message.Message) error

	// Targets returns the resolved agent ids.
	Targets(ctx context.Context, m *message.Message) ([]string, error)
}
