package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/notification"
	"github.com/robfig/cron/v3"
)

// dueCheckSchedule is how often due notification schedules are looked up.
const dueCheckSchedule = "@every 1m"

type trimmer interface {
	Trim(ctx context.Context) (audit.TrimResult, error)
}

type dueFinder interface {
	Due(ctx context.Context, since, until time.Time) ([]*notification.Schedule, error)
}

// startJobs schedules audit retention and due-notification logging. Delivery is
// out of scope, so due schedules are only logged.
func startJobs(deps *Dependencies) (*cron.Cron, error) {
	c := cron.New()
	if err := registerJobs(c, deps.Config.Audit.TrimSchedule, deps.Audit, deps.Notifications, deps.Logger, time.Now); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func registerJobs(c *cron.Cron, trimSchedule string, logs trimmer, schedules dueFinder, lg *slog.Logger, now func() time.Time) error {
	if trimSchedule != "" {
		_, err := c.AddFunc(trimSchedule, func() { runTrim(context.Background(), logs, lg) })
		if err != nil {
			return fmt.Errorf("failed to schedule audit trim: %w", err)
		}
	}

	check := newDueCheck(schedules, lg, now)
	if _, err := c.AddFunc(dueCheckSchedule, func() { check.run(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule notification check: %w", err)
	}
	return nil
}

func runTrim(ctx context.Context, logs trimmer, lg *slog.Logger) {
	res, err := logs.Trim(ctx)
	if err != nil {
		lg.Error("audit trim failed", "error", err)
		return
	}
	lg.Info("audit trim completed",
		"entries", res.Entries,
		"access_entries", res.AccessEntries,
		"security_events", res.SecurityEvents)
}

// dueCheck remembers the end of the previous window so no activation is
// reported twice.
type dueCheck struct {
	schedules dueFinder
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	last time.Time
}

func newDueCheck(schedules dueFinder, lg *slog.Logger, now func() time.Time) *dueCheck {
	return &dueCheck{schedules: schedules, logger: lg, now: now, last: now()}
}

func (d *dueCheck) run(ctx context.Context) []*notification.Schedule {
	d.mu.Lock()
	defer d.mu.Unlock()

	until := d.now()
	due, err := d.schedules.Due(ctx, d.last, until)
	if err != nil {
		d.logger.Error("notification check failed", "error", err)
		return nil
	}
	d.last = until
	for _, s := range due {
		d.logger.Info("notification due",
			"schedule_id", s.ID,
			"name", s.Name,
			"type", s.Type,
			"recipients", len(s.Recipients))
	}
	return due
}
