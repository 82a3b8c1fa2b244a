package metering

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/config"
	"concordlabs/concord/pkg/message"
	"concordlabs/concord/pkg/telemetry/metrics"
)

// Totals is a tenant's aggregated usage.
type Totals struct {
	// Messages is the number of processed messages.
	Messages int64 `json:"messages"`

	// Validations counts validation outcomes ("valid", "invalid").
	Validations map[string]int64 `json:"validations"`

	// Processed counts terminal statuses.
	Processed map[string]int64 `json:"processed"`

	// ByType counts processed messages per message type.
	ByType map[string]int64 `json:"by_type"`

	// ProcessingMS is the cumulative processing time in milliseconds.
	ProcessingMS int64 `json:"processing_ms"`
}

func newTotals() *Totals {
	return &Totals{
		Validations: make(map[string]int64),
		Processed:   make(map[string]int64),
		ByType:      make(map[string]int64),
	}
}

func (t *Totals) clone() Totals {
	cp := Totals{
		Messages:     t.Messages,
		ProcessingMS: t.ProcessingMS,
		Validations:  make(map[string]int64, len(t.Validations)),
		Processed:    make(map[string]int64, len(t.Processed)),
		ByType:       make(map[string]int64, len(t.ByType)),
	}
	for k, v := range t.Validations {
		cp.Validations[k] = v
	}
	for k, v := range t.Processed {
		cp.Processed[k] = v
	}
	for k, v := range t.ByType {
		cp.ByType[k] = v
	}
	return cp
}

// usageEvent is one metering observation.
type usageEvent struct {
	tenant   string
	kind     string // "validation" or "processed"
	outcome  string
	msgType  message.MessageType
	duration time.Duration
}

// Meter aggregates per-tenant usage. Observations go through a bounded
// queue drained by a single worker; a full queue sheds the oldest
// event. Aggregates optionally persist to a sqlite ledger on a flush
// interval and on Stop.
type Meter struct {
	enabled bool
	queue   chan usageEvent

	dropped atomic.Int64
	stopped atomic.Bool

	mu     sync.RWMutex
	totals map[string]*Totals

	ledger        *Ledger
	flushInterval time.Duration

	wg   sync.WaitGroup
	done chan struct{}

	sm     *metrics.SinkMetrics
	logger *slog.Logger
}

// NewMeter starts a meter. When cfg.LedgerPath is set, existing totals
// are loaded from the ledger so counters survive restarts. sm may be
// nil.
func NewMeter(cfg config.MeteringConfig, sm *metrics.SinkMetrics) (*Meter, error) {
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	m := &Meter{
		enabled:       cfg.IsEnabled(),
		queue:         make(chan usageEvent, queueSize),
		totals:        make(map[string]*Totals),
		flushInterval: cfg.FlushInterval,
		done:          make(chan struct{}),
		sm:            sm,
		logger:        slog.Default().With("component", "metering.meter"),
	}

	if cfg.LedgerPath != "" && m.enabled {
		ledger, err := OpenLedger(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		loaded, err := ledger.Load(context.Background())
		if err != nil {
			ledger.Close()
			return nil, err
		}
		m.ledger = ledger
		m.totals = loaded
	}

	m.wg.Add(1)
	go m.worker()
	return m, nil
}

// OnValidation records a validation outcome for a tenant.
func (m *Meter) OnValidation(tenant, outcome string) {
	m.offer(usageEvent{tenant: tenant, kind: "validation", outcome: outcome})
}

// OnProcessed records a processed message.
func (m *Meter) OnProcessed(tenant string, msgType message.MessageType, status message.Status, duration time.Duration) {
	m.offer(usageEvent{
		tenant:   tenant,
		kind:     "processed",
		outcome:  string(status),
		msgType:  msgType,
		duration: duration,
	})
}

// Totals returns a snapshot of a tenant's aggregated usage.
func (m *Meter) Totals(tenant string) Totals {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if t, ok := m.totals[tenant]; ok {
		return t.clone()
	}
	return *newTotals()
}

// Tenants returns the tenants with recorded usage.
func (m *Meter) Tenants() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.totals))
	for tenant := range m.totals {
		out = append(out, tenant)
	}
	return out
}

// Dropped returns the number of events shed since start.
func (m *Meter) Dropped() int64 {
	return m.dropped.Load()
}

// Stop stops intake, drains the queue, flushes the ledger, and closes
// it, bounded by ctx.
func (m *Meter) Stop(ctx context.Context) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(m.done)

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.ledger != nil {
		m.flush(ctx)
		if err := m.ledger.Close(); err != nil {
			return err
		}
	}
	m.logger.Info("meter stopped", "dropped_total", m.Dropped())
	return nil
}

// offer enqueues an event; a full queue sheds the oldest one. Never
// blocks.
func (m *Meter) offer(ev usageEvent) {
	if !m.enabled || m.stopped.Load() {
		return
	}

	for {
		select {
		case m.queue <- ev:
			m.sm.RecordMeteringEvent()
			return
		default:
		}

		select {
		case <-m.queue:
			m.dropped.Add(1)
			m.sm.RecordMeteringDrop()
		default:
		}
	}
}

// worker drains the queue and flushes the ledger periodically.
func (m *Meter) worker() {
	defer m.wg.Done()

	var flushC <-chan time.Time
	if m.ledger != nil && m.flushInterval > 0 {
		ticker := time.NewTicker(m.flushInterval)
		defer ticker.Stop()
		flushC = ticker.C
	}

	for {
		select {
		case ev := <-m.queue:
			m.apply(ev)
		case <-flushC:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.flush(ctx)
			cancel()
		case <-m.done:
			for {
				select {
				case ev := <-m.queue:
					m.apply(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Meter) apply(ev usageEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.totals[ev.tenant]
	if !ok {
		t = newTotals()
		m.totals[ev.tenant] = t
	}

	switch ev.kind {
	case "validation":
		t.Validations[ev.outcome]++
	case "processed":
		t.Messages++
		t.Processed[ev.outcome]++
		t.ByType[string(ev.msgType)]++
		t.ProcessingMS += ev.duration.Milliseconds()
	}
}

// flush persists every tenant's totals. Persistence failures are
// logged, never propagated.
func (m *Meter) flush(ctx context.Context) {
	m.mu.RLock()
	snapshot := make(map[string]Totals, len(m.totals))
	for tenant, t := range m.totals {
		snapshot[tenant] = t.clone()
	}
	m.mu.RUnlock()

	for tenant, t := range snapshot {
		if err := m.ledger.Save(ctx, tenant, &t); err != nil {
			m.logger.Error("ledger flush failed", "tenant", tenant, "error", err)
		}
	}
}
