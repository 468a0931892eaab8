// Package audit records who did what. Entries are append-only and each log is
// trimmed to its retention cap on every append.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/hse-inspection/pkg/ids"
	"github.com/frahmantamala/hse-inspection/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type Service struct {
	repo    Repository
	caps    Caps
	logger  *slog.Logger
	now     func() time.Time
	written *prometheus.CounterVec
	trimmed *prometheus.CounterVec
}

type Option func(*Service)

func WithCaps(caps Caps) Option {
	return func(s *Service) {
		def := DefaultCaps()
		if caps.Entries <= 0 {
			caps.Entries = def.Entries
		}
		if caps.AccessEntries <= 0 {
			caps.AccessEntries = def.AccessEntries
		}
		if caps.SecurityEvents <= 0 {
			caps.SecurityEvents = def.SecurityEvents
		}
		s.caps = caps
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRegisterer registers the append and trim counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.written = metrics.CounterVec(reg, prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Audit, access and security records appended, by log.",
		}, []string{"log"})
		s.trimmed = metrics.CounterVec(reg, prometheus.CounterOpts{
			Name: "audit_records_trimmed_total",
			Help: "Records dropped by retention, by log.",
		}, []string{"log"})
	}
}

func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		caps:   DefaultCaps(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) Caps() Caps {
	return s.caps
}

func (s *Service) count(log string, written, dropped int) {
	if s.written != nil && written > 0 {
		s.written.WithLabelValues(log).Add(float64(written))
	}
	if s.trimmed != nil && dropped > 0 {
		s.trimmed.WithLabelValues(log).Add(float64(dropped))
	}
	if dropped > 0 {
		s.logger.Debug("audit: trimmed log", "log", log, "dropped", dropped)
	}
}

func (s *Service) stamp(id *string, ts *time.Time) {
	if ts.IsZero() {
		*ts = s.now().UTC()
	}
	if *id == "" {
		*id = ids.NewAt(*ts)
	}
}

// LogEvent appends one audit entry. Only a missing id or timestamp is filled in.
func (s *Service) LogEvent(ctx context.Context, entry Entry) error {
	return s.LogEvents(ctx, []Entry{entry})
}

// LogEvents appends entries in order under a single trim.
func (s *Service) LogEvents(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]Entry, len(entries))
	copy(batch, entries)
	for i := range batch {
		s.stamp(&batch[i].ID, &batch[i].Timestamp)
	}
	dropped, err := s.repo.AppendEntries(ctx, batch, s.caps.Entries)
	if err != nil {
		return fmt.Errorf("audit: append entries: %w", err)
	}
	s.count("audit", len(batch), dropped)
	return nil
}

func (s *Service) LogAccess(ctx context.Context, entry AccessEntry) error {
	s.stamp(&entry.ID, &entry.Timestamp)
	dropped, err := s.repo.AppendAccess(ctx, entry, s.caps.AccessEntries)
	if err != nil {
		return fmt.Errorf("audit: append access entry: %w", err)
	}
	s.count("access", 1, dropped)
	return nil
}

func (s *Service) LogSecurityEvent(ctx context.Context, event SecurityEvent) error {
	s.stamp(&event.ID, &event.Timestamp)
	if event.Severity == "" {
		event.Severity = SeverityMedium
	}
	dropped, err := s.repo.AppendSecurityEvent(ctx, event, s.caps.SecurityEvents)
	if err != nil {
		return fmt.Errorf("audit: append security event: %w", err)
	}
	s.count("security", 1, dropped)
	return nil
}

// newestFirst reverses append order and then sorts by timestamp descending, so
// equal timestamps keep the later append first.
func newestFirst[T any](items []T, ts func(T) time.Time) []T {
	out := make([]T, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ts(out[i]).After(ts(out[j]))
	})
	return out
}

func filterLimit[T any](items []T, limit int, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !keep(it) {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (f Filter) matchTime(t time.Time) bool {
	return f.Since.IsZero() || !t.Before(f.Since)
}

// ListEvents returns audit entries newest first.
func (s *Service) ListEvents(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	sorted := newestFirst(entries, func(e Entry) time.Time { return e.Timestamp })
	return filterLimit(sorted, f.Limit, func(e Entry) bool {
		return (f.Action == "" || e.Action == f.Action) &&
			(f.UserID == "" || e.PerformedBy == f.UserID || e.TargetID == f.UserID) &&
			f.matchTime(e.Timestamp)
	}), nil
}

func (s *Service) ListAccess(ctx context.Context, f Filter) ([]AccessEntry, error) {
	entries, err := s.repo.AccessEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list access entries: %w", err)
	}
	sorted := newestFirst(entries, func(e AccessEntry) time.Time { return e.Timestamp })
	return filterLimit(sorted, f.Limit, func(e AccessEntry) bool {
		return (f.Action == "" || e.Method == f.Action) &&
			(f.UserID == "" || e.UserID == f.UserID) &&
			f.matchTime(e.Timestamp)
	}), nil
}

func (s *Service) ListSecurityEvents(ctx context.Context, f Filter) ([]SecurityEvent, error) {
	events, err := s.repo.SecurityEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list security events: %w", err)
	}
	sorted := newestFirst(events, func(e SecurityEvent) time.Time { return e.Timestamp })
	return filterLimit(sorted, f.Limit, func(e SecurityEvent) bool {
		return (f.Action == "" || string(e.Type) == f.Action) &&
			(f.UserID == "" || e.UserID == f.UserID) &&
			f.matchTime(e.Timestamp)
	}), nil
}

// Summary aggregates the security dashboard counters over the trailing window.
func (s *Service) Summary(ctx context.Context, window time.Duration) (Summary, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	since := s.now().UTC().Add(-window)

	entries, err := s.repo.Entries(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: summary: %w", err)
	}
	access, err := s.repo.AccessEntries(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: summary: %w", err)
	}
	events, err := s.ListSecurityEvents(ctx, Filter{})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Window:              window.String(),
		TotalAuditEntries:   len(entries),
		TotalAccessEntries:  len(access),
		TotalSecurityEvents: len(events),
		BySeverity:          map[Severity]int{SeverityLow: 0, SeverityMedium: 0, SeverityHigh: 0},
		RecentEvents:        []SecurityEvent{},
	}

	users := map[string]struct{}{}
	for _, a := range access {
		if !a.Timestamp.Before(since) {
			users[a.UserID] = struct{}{}
		}
	}
	sum.ActiveUsers = len(users)

	for _, e := range entries {
		if e.Action == ActionLoginFailed && !e.Timestamp.Before(since) {
			sum.FailedLogins++
		}
	}

	for _, ev := range events {
		if ev.Timestamp.Before(since) {
			continue
		}
		sum.BySeverity[ev.Severity]++
		if ev.Type == SecurityAccessDenied {
			sum.AccessDenied++
		}
		if len(sum.RecentEvents) < 10 {
			sum.RecentEvents = append(sum.RecentEvents, ev)
		}
	}
	return sum, nil
}

// Trim re-applies every retention cap.
func (s *Service) Trim(ctx context.Context) (TrimResult, error) {
	res, err := s.repo.Trim(ctx, s.caps)
	if err != nil {
		return res, fmt.Errorf("audit: trim: %w", err)
	}
	s.count("audit", 0, res.Entries)
	s.count("access", 0, res.AccessEntries)
	s.count("security", 0, res.SecurityEvents)
	return res, nil
}
