// Package janitor removes workspaces that have outlived the configured
// retention window. It runs as a background goroutine in gateway mode,
// sweeping on a cron schedule.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/starbridge-ai/starbridge/internal/config"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

// Remover deletes a workspace by id. Satisfied by *workspace.Manager.
type Remover interface {
	Delete(ctx context.Context, workspaceID string) error
}

// Lister finds workspaces created before a cutoff. Satisfied by the
// storage ledger.
type Lister interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]workspace.Record, error)
}

// Janitor sweeps expired workspaces on a schedule.
type Janitor struct {
	lister   Lister
	remover  Remover
	maxAge   time.Duration
	schedule cron.Schedule
	logger   *slog.Logger
	nowFunc  func() time.Time
}

// New creates a Janitor from the retention configuration. Returns nil
// when retention is disabled, which callers treat as "do not start".
func New(cfg *config.RetentionConfig, lister Lister, remover Remover, logger *slog.Logger) (*Janitor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if lister == nil {
		return nil, fmt.Errorf("retention requires a workspace ledger")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cfg.CronSchedule())
	if err != nil {
		return nil, fmt.Errorf("parsing retention schedule %q: %w", cfg.CronSchedule(), err)
	}

	return &Janitor{
		lister:   lister,
		remover:  remover,
		maxAge:   cfg.MaxAge(),
		schedule: schedule,
		logger:   logger,
		nowFunc:  time.Now,
	}, nil
}

// Start begins the sweep loop. Returns a cancel function.
func (j *Janitor) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		j.logger.InfoContext(ctx, "retention janitor started",
			slog.Duration("max_age", j.maxAge),
			slog.Time("next_sweep", j.schedule.Next(j.nowFunc())),
		)

		for {
			next := j.schedule.Next(j.nowFunc())
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				j.logger.Info("retention janitor stopped")
				return
			case <-timer.C:
				j.Sweep(ctx)
			}
		}
	}()

	return cancel
}

// Sweep removes every workspace older than the retention window. One
// failed removal does not stop the rest of the sweep.
func (j *Janitor) Sweep(ctx context.Context) (removed int) {
	cutoff := j.nowFunc().UTC().Add(-j.maxAge)

	expired, err := j.lister.ListOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "retention sweep failed to list workspaces",
			slog.String("error", err.Error()),
		)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	for _, rec := range expired {
		if err := j.remover.Delete(ctx, rec.ID); err != nil {
			j.logger.WarnContext(ctx, "retention sweep could not remove workspace",
				slog.String("workspace_id", rec.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	j.logger.InfoContext(ctx, "retention sweep completed",
		slog.Time("cutoff", cutoff),
		slog.Int("expired", len(expired)),
		slog.Int("removed", removed),
	)
	return removed
}
