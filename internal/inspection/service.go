package inspection

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/ids"
)

var errUnknownTemplate = internal.NewValidationFieldError("templateId", "unknown form template", internal.ErrCodeValidationFailed)

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

func (s *Service) ListTemplates(ctx context.Context) ([]*FormTemplate, error) {
	items, err := s.repo.Templates(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list form templates", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// SaveTemplate creates or replaces the template with id, bumping its version.
func (s *Service) SaveTemplate(ctx context.Context, actor *user.User, id string, req SaveTemplateRequest) (*FormTemplate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, internal.NewValidationFieldError("id", "id is required", internal.ErrCodeValidationFailed)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	saved, err := s.repo.SaveTemplate(ctx, id, func(existing *FormTemplate) (*FormTemplate, error) {
		t := &FormTemplate{ID: id, CreatedAt: now}
		if existing != nil {
			t.CreatedAt = existing.CreatedAt
			t.Version = existing.Version
		}
		t.Name = strings.TrimSpace(req.Name)
		t.Description = strings.TrimSpace(req.Description)
		t.Schema = req.Schema
		t.Version++
		t.UpdatedAt = now
		t.UpdatedBy = actor.ID
		return t, nil
	})
	if err != nil {
		return nil, internal.NewInternalError("failed to save form template", err)
	}

	s.record(ctx, actor, audit.ActionFormTemplateSaved, saved.ID, saved.Name, map[string]interface{}{"version": saved.Version})
	return saved, nil
}

// ListInspections returns every inspection to holders of canViewAllInspections
// and only the actor's own otherwise. Newest first.
func (s *Service) ListInspections(ctx context.Context, actor *user.User) ([]*Inspection, error) {
	items, err := s.repo.Inspections(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list inspections", err)
	}
	all := actor.HasPermission(permission.CanViewAllInspections)
	out := make([]*Inspection, 0, len(items))
	for _, in := range items {
		if all || in.InspectorID == actor.ID {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Service) CreateInspection(ctx context.Context, actor *user.User, req CreateInspectionRequest) (*Inspection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := s.repo.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, internal.ErrResourceNotFound) {
			return nil, errUnknownTemplate
		}
		return nil, internal.NewInternalError("failed to load form template", err)
	}

	status := Status(req.Status)
	if status == "" {
		status = StatusDraft
	}
	now := s.now()
	in := &Inspection{
		ID:            ids.New(),
		TemplateID:    tmpl.ID,
		Title:         strings.TrimSpace(req.Title),
		Location:      strings.TrimSpace(req.Location),
		Status:        status,
		Data:          req.Data,
		InspectorID:   actor.ID,
		InspectorName: actor.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateInspection(ctx, in); err != nil {
		return nil, internal.NewInternalError("failed to save inspection", err)
	}

	s.record(ctx, actor, audit.ActionInspectionCreated, in.ID, in.Title, map[string]interface{}{
		"templateId": tmpl.ID,
		"version":    tmpl.Version,
		"status":     string(in.Status),
	})
	s.logger.Info("inspection: created", "inspection_id", in.ID, "template_id", tmpl.ID, "by", actor.ID)
	return in, nil
}

func (s *Service) record(ctx context.Context, actor *user.User, action, targetID, targetName string, details map[string]interface{}) {
	err := s.audit.LogEvent(ctx, audit.Entry{
		Action:          action,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		TargetID:        targetID,
		TargetName:      targetName,
		Details:         details,
	})
	if err != nil {
		s.logger.Error("inspection: failed to record audit event", "action", action, "error", err)
	}
}
