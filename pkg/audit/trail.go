package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"concordlabs/concord/pkg/telemetry/metrics"
)

// Trail is the asynchronous audit sink. Record never blocks the
// caller: entries go into a bounded queue drained by a single writer
// goroutine; a full queue sheds the oldest entry and counts the drop.
type Trail struct {
	store Store
	queue chan *Entry

	dropped atomic.Int64
	stopped atomic.Bool

	wg   sync.WaitGroup
	done chan struct{}

	sm     *metrics.SinkMetrics
	logger *slog.Logger
}

// NewTrail starts a trail writing to store with the given queue size.
// sm may be nil.
func NewTrail(store Store, queueSize int, sm *metrics.SinkMetrics) *Trail {
	if queueSize < 1 {
		queueSize = 1
	}
	t := &Trail{
		store:  store,
		queue:  make(chan *Entry, queueSize),
		done:   make(chan struct{}),
		sm:     sm,
		logger: slog.Default().With("component", "audit.trail"),
	}
	t.wg.Add(1)
	go t.writer()
	return t
}

// Record enqueues an entry. On a full queue the oldest entry is shed
// so the newest governance record survives. Never blocks.
func (t *Trail) Record(_ context.Context, e *Entry) error {
	if t.stopped.Load() {
		return ErrTrailStopped
	}

	for {
		select {
		case t.queue <- e:
			t.sm.RecordAuditEntry(e.Event)
			t.sm.SetAuditQueueDepth(len(t.queue))
			return nil
		default:
		}

		select {
		case old := <-t.queue:
			t.dropped.Add(1)
			t.sm.RecordAuditDrop()
			t.logger.Warn("audit queue full, oldest entry dropped",
				"dropped_entry_id", old.ID, "dropped_event", old.Event)
		default:
		}
	}
}

// Dropped returns the number of entries shed since start.
func (t *Trail) Dropped() int64 {
	return t.dropped.Load()
}

// Search queries the underlying store.
func (t *Trail) Search(ctx context.Context, q Query) ([]*Entry, error) {
	return t.store.Search(ctx, q)
}

// Stop stops intake, drains the queue to storage, and waits for the
// writer, bounded by ctx.
func (t *Trail) Stop(ctx context.Context) error {
	if !t.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(t.done)

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		t.logger.Info("audit trail stopped", "dropped_total", t.Dropped())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer drains the queue to storage. Storage failures are logged and
// never propagate to message processing.
func (t *Trail) writer() {
	defer t.wg.Done()

	for {
		select {
		case e := <-t.queue:
			t.write(e)
		case <-t.done:
			for {
				select {
				case e := <-t.queue:
					t.write(e)
				default:
					return
				}
			}
		}
	}
}

func (t *Trail) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.store.Append(ctx, e); err != nil {
		t.logger.Error("audit write failed",
			"entry_id", e.ID, "event", e.Event, "error", err)
	}
}
