package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/pin"
	"github.com/frahmantamala/hse-inspection/pkg/ids"
)

// maxPINAttempts bounds the search for a PIN no other user holds.
const maxPINAttempts = 50

var errPINInUse = internal.NewValidationFieldError("pin", "PIN is already in use", internal.ErrCodeInvalidPIN)

type Service struct {
	repo   Repository
	hasher pin.Hasher
	index  *pin.Index
	audit  audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

// WithPINIndex stores a keyed lookup next to each PIN hash so logins and
// uniqueness checks verify at most one hash instead of one per user.
func WithPINIndex(idx *pin.Index) ServiceOption {
	return func(s *Service) { s.index = idx }
}

func NewService(repo Repository, hasher pin.Hasher, recorder audit.Recorder, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		hasher: hasher,
		audit:  recorder,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, actor *User, action string, target *User, details map[string]interface{}) {
	entry := audit.Entry{
		Action:          action,
		PerformedBy:     actor.ID,
		PerformedByName: actor.Name,
		Details:         details,
	}
	if target != nil {
		entry.TargetID = target.ID
		entry.TargetName = target.Name
	}
	if err := s.audit.LogEvent(ctx, entry); err != nil {
		s.logger.Error("user: failed to record audit event", "action", action, "error", err)
	}
}

// holdsPIN reports whether candidate signs u in. Indexed records are decided
// by their lookup; the hash is only verified on a lookup hit or for records
// written without one.
func (s *Service) holdsPIN(u *User, candidate string) bool {
	matched, indexed := s.index.Match(u.PINLookup, candidate)
	if indexed && !matched {
		return false
	}
	return s.hasher.Verify(u.PINHash, candidate)
}

func (s *Service) pinTaken(users []*User, candidate string) bool {
	for _, u := range users {
		if s.holdsPIN(u, candidate) {
			return true
		}
	}
	return false
}

type assignedPIN struct {
	plain  string
	hash   string
	lookup string
}

// assignPIN hashes requested, or a fresh strong PIN when requested is empty,
// making sure no other user can sign in with it.
func (s *Service) assignPIN(others []*User, requested string) (assignedPIN, error) {
	if requested != "" {
		if s.pinTaken(others, requested) {
			return assignedPIN{}, errPINInUse
		}
		return s.hashPIN(requested)
	}
	for i := 0; i < maxPINAttempts; i++ {
		candidate, err := pin.Generate()
		if err != nil {
			return assignedPIN{}, internal.NewInternalError("failed to generate PIN", err)
		}
		if s.pinTaken(others, candidate) {
			continue
		}
		return s.hashPIN(candidate)
	}
	return assignedPIN{}, internal.NewInternalError("failed to find an unused PIN", nil)
}

func (s *Service) hashPIN(plain string) (assignedPIN, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return assignedPIN{}, internal.NewInternalError("failed to hash PIN", err)
	}
	return assignedPIN{plain: plain, hash: hash, lookup: s.index.Lookup(plain)}, nil
}

// Create adds an active user with its role template and returns the PIN once.
func (s *Service) Create(ctx context.Context, actor *User, req CreateUserRequest) (*User, string, error) {
	return s.create(ctx, actor, req, "")
}

// CreateWithPIN provisions a user with a known PIN. Only the format is checked,
// so seeded demo credentials remain usable.
func (s *Service) CreateWithPIN(ctx context.Context, actor *User, req CreateUserRequest, knownPIN string) (*User, error) {
	if err := pin.CheckFormat(knownPIN); err != nil {
		return nil, err
	}
	u, _, err := s.create(ctx, actor, req, knownPIN)
	return u, err
}

func (s *Service) create(ctx context.Context, actor *User, req CreateUserRequest, knownPIN string) (*User, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}
	role, _ := permission.ParseRole(req.Role)
	overrides, _ := permission.ParseOverrides(req.Permissions)

	now := s.now()
	u := &User{
		ID:          ids.NewUUID(),
		Name:        strings.TrimSpace(req.Name),
		Role:        role,
		Department:  strings.TrimSpace(req.Department),
		Active:      true,
		Permissions: permission.ForRole(role).Apply(overrides),
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actor.ID,
	}

	var plain string
	err := s.repo.Create(ctx, u, func(existing []*User) error {
		a, err := s.assignPIN(existing, knownPIN)
		if err != nil {
			return err
		}
		plain, u.PINHash, u.PINLookup = a.plain, a.hash, a.lookup
		return nil
	})
	if err != nil {
		return nil, "", wrapRepoError("create user", err)
	}

	s.record(ctx, actor, audit.ActionUserCreated, u, map[string]interface{}{
		"role":       string(u.Role),
		"department": u.Department,
	})
	s.logger.Info("user: created", "user_id", u.ID, "role", u.Role, "by", actor.ID)
	return u, plain, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapRepoError("list users", err)
	}
	out := make([]*User, 0, len(users))
	for _, u := range users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapRepoError("get user", err)
	}
	return u, nil
}

// Update applies a partial update. A role change resets permissions to the new
// role's template before any overrides in the same request are applied.
func (s *Service) Update(ctx context.Context, actor *User, id string, req UpdateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Active != nil && !*req.Active && id == actor.ID {
		return nil, internal.ErrSelfDeactivation
	}

	type change struct {
		action  string
		details map[string]interface{}
	}
	var changes []change

	updated, err := s.repo.Update(ctx, id, func(u *User, _ []*User) error {
		changes = changes[:0]
		fields := []string{}

		if req.Name != nil {
			if name := strings.TrimSpace(*req.Name); name != u.Name {
				u.Name = name
				fields = append(fields, "name")
			}
		}
		if req.Department != nil {
			if dept := strings.TrimSpace(*req.Department); dept != u.Department {
				u.Department = dept
				fields = append(fields, "department")
			}
		}
		if req.Role != nil {
			role, _ := permission.ParseRole(*req.Role)
			if role != u.Role {
				changes = append(changes, change{audit.ActionRoleChanged, map[string]interface{}{
					"from": string(u.Role),
					"to":   string(role),
				}})
				u.Role = role
				u.Permissions = permission.ForRole(role)
			}
		}
		if len(req.Permissions) > 0 {
			overrides, _ := permission.ParseOverrides(req.Permissions)
			next := u.Permissions.Apply(overrides)
			if diff := permissionDiff(u.Permissions, next); len(diff) > 0 {
				changes = append(changes, change{audit.ActionPermissionsUpdated, map[string]interface{}{
					"changes": diff,
				}})
				u.Permissions = next
			}
		}
		if req.Active != nil && *req.Active != u.Active {
			u.Active = *req.Active
			if u.Active {
				fields = append(fields, "active")
			} else {
				changes = append(changes, change{audit.ActionUserDeactivated, nil})
			}
		}
		if len(fields) > 0 {
			changes = append(changes, change{audit.ActionUserUpdated, map[string]interface{}{
				"fields": fields,
			}})
		}
		if len(changes) > 0 {
			u.UpdatedAt = s.now()
		}
		return nil
	})
	if err != nil {
		return nil, wrapRepoError("update user", err)
	}

	for _, c := range changes {
		s.record(ctx, actor, c.action, updated, c.details)
	}
	return updated, nil
}

// Deactivate soft-deletes a user. The record stays in the collection.
func (s *Service) Deactivate(ctx context.Context, actor *User, id string) (*User, error) {
	if id == actor.ID {
		return nil, internal.ErrSelfDeactivation
	}
	changed := false
	u, err := s.repo.Update(ctx, id, func(u *User, _ []*User) error {
		if !u.Active {
			return nil
		}
		u.Active = false
		u.UpdatedAt = s.now()
		changed = true
		return nil
	})
	if err != nil {
		return nil, wrapRepoError("deactivate user", err)
	}
	if changed {
		s.record(ctx, actor, audit.ActionUserDeactivated, u, nil)
	}
	return u, nil
}

// ResetPIN replaces the user's PIN hash, so the old PIN stops working at once,
// and appends a reset history entry. The new PIN is returned once.
func (s *Service) ResetPIN(ctx context.Context, actor *User, id string, req ResetPINRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var plain string
	u, err := s.repo.Update(ctx, id, func(u *User, others []*User) error {
		// The current PIN counts as taken so a reset always changes it.
		a, err := s.assignPIN(append(others, u), req.PIN)
		if err != nil {
			return err
		}
		now := s.now()
		plain = a.plain
		u.PINHash = a.hash
		u.PINLookup = a.lookup
		u.UpdatedAt = now
		u.PINResetHistory = append(u.PINResetHistory, PINReset{
			ResetBy:     actor.ID,
			ResetByName: actor.Name,
			ResetAt:     now,
			Reason:      strings.TrimSpace(req.Reason),
		})
		return nil
	})
	if err != nil {
		return "", wrapRepoError("reset pin", err)
	}
	s.record(ctx, actor, audit.ActionPINReset, u, map[string]interface{}{
		"reason": strings.TrimSpace(req.Reason),
	})
	return plain, nil
}

// FindByPIN returns the user whose stored hash verifies candidate.
func (s *Service) FindByPIN(ctx context.Context, candidate string) (*User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, wrapRepoError("find user by pin", err)
	}
	for _, u := range users {
		if s.holdsPIN(u, candidate) {
			return u, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

// RecordLogin stamps lastLogin.
func (s *Service) RecordLogin(ctx context.Context, id string) (*User, error) {
	u, err := s.repo.Update(ctx, id, func(u *User, _ []*User) error {
		now := s.now()
		u.LastLogin = &now
		return nil
	})
	if err != nil {
		return nil, wrapRepoError("record login", err)
	}
	return u, nil
}

// Clear removes every user. Only the seeder calls it.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return wrapRepoError("clear users", err)
	}
	return nil
}

func permissionDiff(before, after permission.Set) map[string]bool {
	diff := map[string]bool{}
	for _, p := range permission.All {
		if before[p] != after[p] {
			diff[string(p)] = after[p]
		}
	}
	return diff
}

// wrapRepoError passes AppErrors through and hides everything else behind a 500.
func wrapRepoError(op string, err error) error {
	var appErr *internal.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return internal.NewInternalError(op, fmt.Errorf("user: %s: %w", op, err))
}
