package breaker

import (
	"sync"

	"concordlabs/concord/pkg/config"
)

// Manager owns the per-service breakers. Breakers are created on first
// use with the manager's configuration; subscribers registered on the
// manager observe transitions of every breaker, current and future.
type Manager struct {
	cfg config.BreakerConfig

	mu       sync.RWMutex
	breakers map[string]*Breaker
	onChange []func(StateChange)
}

// NewManager creates a breaker manager with the given default breaker
// configuration.
func NewManager(cfg config.BreakerConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a service, creating it when first asked.
func (m *Manager) Get(service string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[service]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok = m.breakers[service]; ok {
		return b
	}
	b = New(service, m.cfg)
	for _, fn := range m.onChange {
		b.OnStateChange(fn)
	}
	m.breakers[service] = b
	return b
}

// OnStateChange subscribes to transitions of every breaker the manager
// owns, including breakers created later.
func (m *Manager) OnStateChange(fn func(StateChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = append(m.onChange, fn)
	for _, b := range m.breakers {
		b.OnStateChange(fn)
	}
}

// Snapshot returns the current state of every known breaker.
func (m *Manager) Snapshot() map[string]State {
	m.mu.RLock()
	names := make([]string, 0, len(m.breakers))
	refs := make([]*Breaker, 0, len(m.breakers))
	for name, b := range m.breakers {
		names = append(names, name)
		refs = append(refs, b)
	}
	m.mu.RUnlock()

	// State() takes each breaker's own lock; never hold the manager
	// lock across that.
	out := make(map[string]State, len(names))
	for i, b := range refs {
		out[names[i]] = b.State()
	}
	return out
}

// Services returns the names of every known breaker.
func (m *Manager) Services() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		out = append(out, name)
	}
	return out
}
