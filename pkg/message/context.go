package message

// SecurityContext identifies the principal behind a message or a
// registration. The token is a bearer credential and must never appear
// in logs.
type SecurityContext struct {
	// Principal is the authenticated identity (subject claim).
	Principal string `json:"principal,omitempty"`

	// Roles are the principal's granted role names.
	Roles []string `json:"roles,omitempty"`

	// Token is the raw bearer credential used for verification.
	Token string `json:"token,omitempty"`

	// Claims carries verified token claims.
	Claims map[string]any `json:"claims,omitempty"`
}

func (s *SecurityContext) clone() *SecurityContext {
	cp := *s
	if s.Roles != nil {
		cp.Roles = append([]string(nil), s.Roles...)
	}
	if s.Claims != nil {
		cp.Claims = make(map[string]any, len(s.Claims))
		for k, v := range s.Claims {
			cp.Claims[k] = v
		}
	}
	return &cp
}

// RoutingContext carries delivery parameters for a message.
type RoutingContext struct {
	// Source is the logical origin, usually the sending agent.
	Source string `json:"source,omitempty"`

	// Target pins delivery to a specific agent, overriding to_agent.
	Target string `json:"target,omitempty"`

	// Key selects special routing behavior ("broadcast" fans out to the
	// sender's tenant).
	Key string `json:"routing_key,omitempty"`

	// Tags are free-form routing labels.
	Tags []string `json:"routing_tags,omitempty"`

	// RetryCount is the number of delivery attempts made so far.
	RetryCount int `json:"retry_count"`

	// MaxRetries bounds delivery attempts.
	MaxRetries int `json:"max_retries"`

	// TimeoutMS bounds the time the sender is willing to block on
	// queue admission. Zero means the bus default.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

// BroadcastKey is the routing key that requests tenant-wide fan-out.
const BroadcastKey = "broadcast"

// IsBroadcast reports whether the message requests tenant-wide fan-out.
func (m *Message) IsBroadcast() bool {
	return m.ToAgent == "" && m.Routing.Key == BroadcastKey
}
