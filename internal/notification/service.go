package notification

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/ids"
)

type Service struct {
	repo   Repository
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns schedules ordered by their next activation, with NextRun
// recomputed against the current time. Schedules that never fire sort last.
func (s *Service) List(ctx context.Context) ([]*Schedule, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list schedules", err)
	}
	now := s.now()
	for _, it := range items {
		it.refresh(now)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].NextRun, items[j].NextRun
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return items, nil
}

func (s *Service) Create(ctx context.Context, actor *user.User, req CreateScheduleRequest) (*Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	recipients := make([]string, 0, len(req.Recipients))
	for _, rc := range req.Recipients {
		recipients = append(recipients, strings.TrimSpace(rc))
	}

	now := s.now()
	sched := &Schedule{
		ID:         ids.New(),
		Name:       strings.TrimSpace(req.Name),
		Type:       Type(req.Type),
		Cron:       req.Cron,
		Recipients: recipients,
		Active:     active,
		CreatedAt:  now,
		CreatedBy:  actor.ID,
	}
	sched.refresh(now)

	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, internal.NewInternalError("failed to save schedule", err)
	}

	s.record(ctx, actor, audit.ActionScheduleCreated, sched)
	s.logger.Info("notification: schedule created", "schedule_id", sched.ID, "type", sched.Type, "by", actor.ID)
	return sched, nil
}

func (s *Service) Delete(ctx context.Context, actor *user.User, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return err
		}
		return internal.NewInternalError("failed to delete schedule", err)
	}
	s.record(ctx, actor, audit.ActionScheduleDeleted, removed)
	return nil
}

// Due returns active schedules whose next activation after since is not
// later than until.
func (s *Service) Due(ctx context.Context, since, until time.Time) ([]*Schedule, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list schedules", err)
	}
	var due []*Schedule
	for _, it := range items {
		if !it.Active {
			continue
		}
		next, err := NextRun(it.Cron, since)
		if err != nil || next.IsZero() || next.After(until) {
			continue
		}
		due = append(due, it)
	}
	return due, nil
}

func (s *Service) record(ctx context.Context, actor *user.User, action string, sched *Schedule) {
	err := s.audit.LogEvent(ctx, audit.Entry{
		Action:          action,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		TargetID:        sched.ID,
		TargetName:      sched.Name,
		Details:         map[string]interface{}{"type": string(sched.Type), "cron": sched.Cron},
	})
	if err != nil {
		s.logger.Error("notification: failed to record audit event", "action", action, "error", err)
	}
}
