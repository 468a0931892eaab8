package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/pin"
	"github.com/frahmantamala/hse-inspection/internal/user"
)

// anonymousActor is recorded as performer when a login matched no account.
const anonymousActor = "anonymous"

// Service is the main auth service with dependencies
type Service struct {
	users          UserStore
	tokenGenerator TokenGenerator
	audit          audit.Recorder
	limiter        *LoginLimiter
	metrics        *Metrics
	logger         *slog.Logger
}

type ServiceOption func(*Service)

func WithLimiter(l *LoginLimiter) ServiceOption {
	return func(s *Service) { s.limiter = l }
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new auth service
func NewService(users UserStore, tokenGen TokenGenerator, recorder audit.Recorder, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		users:          users,
		tokenGenerator: tokenGen,
		audit:          recorder,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if err := s.audit.LogEvent(ctx, entry); err != nil {
		s.logger.Error("auth: failed to record audit event", "action", entry.Action, "error", err)
	}
}

func (s *Service) securityEvent(ctx context.Context, ev audit.SecurityEvent) {
	if err := s.audit.LogSecurityEvent(ctx, ev); err != nil {
		s.logger.Error("auth: failed to record security event", "type", ev.Type, "error", err)
	}
}

// Login exchanges a PIN for a session token.
func (s *Service) Login(ctx context.Context, dto LoginDTO, meta ClientMeta) (*LoginResult, error) {
	if err := pin.CheckFormat(dto.PIN); err != nil {
		s.metrics.login(loginMalformed)
		return nil, err
	}

	if !s.limiter.Allow(meta.IP) {
		s.metrics.login(loginRateLimited)
		s.securityEvent(ctx, audit.SecurityEvent{
			Type:     audit.SecurityRateLimited,
			Severity: audit.SeverityMedium,
			IP:       meta.IP,
			Path:     meta.Path,
		})
		return nil, internal.NewTooManyRequestsError("too many login attempts, try again later")
	}

	u, err := s.users.FindByPIN(ctx, dto.PIN)
	if err != nil {
		if !errors.Is(err, internal.ErrUserNotFound) {
			return nil, err
		}
		s.metrics.login(loginInvalidPIN)
		s.record(ctx, audit.Entry{
			Action:          audit.ActionLoginFailed,
			PerformedBy:     anonymousActor,
			PerformedByName: anonymousActor,
			Details:         map[string]interface{}{"reason": "invalid PIN", "ip": meta.IP},
		})
		s.securityEvent(ctx, audit.SecurityEvent{
			Type:     audit.SecurityLoginFailed,
			Severity: audit.SeverityMedium,
			IP:       meta.IP,
			Path:     meta.Path,
			Details:  map[string]interface{}{"reason": "invalid PIN"},
		})
		return nil, internal.ErrInvalidCredentials
	}

	if !u.Active {
		s.metrics.login(loginInactive)
		s.record(ctx, audit.Entry{
			Action:          audit.ActionLoginFailed,
			PerformedBy:     u.ID,
			PerformedByName: u.Name,
			TargetID:        u.ID,
			TargetName:      u.Name,
			Details:         map[string]interface{}{"reason": "account deactivated", "ip": meta.IP},
		})
		s.securityEvent(ctx, audit.SecurityEvent{
			Type:     audit.SecurityLoginFailed,
			Severity: audit.SeverityHigh,
			UserID:   u.ID,
			IP:       meta.IP,
			Path:     meta.Path,
			Details:  map[string]interface{}{"reason": "account deactivated"},
		})
		return nil, internal.ErrLoginInactive
	}

	u, err = s.users.RecordLogin(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue session", err)
	}

	s.metrics.login(loginSuccess)
	s.record(ctx, audit.Entry{
		Action:          audit.ActionLoginSuccess,
		PerformedBy:     u.ID,
		PerformedByName: u.Name,
		Details:         map[string]interface{}{"role": string(u.Role), "ip": meta.IP},
	})
	s.logger.Info("user logged in", "user_id", u.ID, "role", u.Role)

	return &LoginResult{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a token to its stored user. Active status is not
// checked here; callers decide how to treat inactive accounts.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, internal.ErrNoAuthToken
	}
	claims, err := s.tokenGenerator.ValidateToken(token)
	if err != nil {
		return nil, internal.ErrInvalidToken.WithCause(err)
	}
	u, err := s.users.Get(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, internal.ErrUserNotFound) {
			return nil, internal.ErrInvalidToken.WithCause(err)
		}
		return nil, err
	}
	return u, nil
}

// Logout records LOGOUT when the token still resolves. It never fails the
// caller since the cookie is cleared regardless.
func (s *Service) Logout(ctx context.Context, token string, meta ClientMeta) {
	if token == "" {
		return
	}
	u, err := s.Authenticate(ctx, token)
	if err != nil {
		return
	}
	s.record(ctx, audit.Entry{
		Action:          audit.ActionLogout,
		PerformedBy:     u.ID,
		PerformedByName: u.Name,
		Details:         map[string]interface{}{"ip": meta.IP},
	})
}
