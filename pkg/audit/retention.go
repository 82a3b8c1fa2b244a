package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"concordlabs/concord/pkg/config"
)

// Retention prunes aged entries on a cron schedule.
type Retention struct {
	store    Store
	days     int
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewRetention creates a pruner over the store. Zero retention days
// disables pruning.
func NewRetention(store Store, cfg config.RetentionConfig) *Retention {
	return &Retention{
		store:    store,
		days:     cfg.Days,
		schedule: cfg.Schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "audit.retention"),
	}
}

// Start schedules pruning. A zero retention or empty schedule is a
// configuration-level opt-out, not an error.
func (r *Retention) Start() error {
	if r.days == 0 || r.schedule == "" {
		r.logger.Info("audit retention disabled")
		return nil
	}

	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.schedule, err)
	}
	if _, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.Prune(ctx); err != nil {
			r.logger.Error("scheduled audit prune failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule audit pruning: %w", err)
	}

	r.cron.Start()
	r.logger.Info("audit retention started",
		"schedule", r.schedule, "retention_days", r.days)
	return nil
}

// Stop halts the schedule, waiting for an in-flight prune.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

// Prune deletes entries older than the retention window.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.days)
	removed, err := r.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("audit entries pruned",
			"removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
	return removed, nil
}
