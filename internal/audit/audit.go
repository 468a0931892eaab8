package audit

import (
	"context"
	"time"
)

const (
	ActionLoginSuccess       = "LOGIN_SUCCESS"
	ActionLoginFailed        = "LOGIN_FAILED"
	ActionLogout             = "LOGOUT"
	ActionUserCreated        = "USER_CREATED"
	ActionUserUpdated        = "USER_UPDATED"
	ActionRoleChanged        = "ROLE_CHANGED"
	ActionPermissionsUpdated = "PERMISSIONS_UPDATED"
	ActionUserDeactivated    = "USER_DEACTIVATED"
	ActionPINReset           = "PIN_RESET"

	ActionScheduleCreated   = "NOTIFICATION_SCHEDULE_CREATED"
	ActionScheduleDeleted   = "NOTIFICATION_SCHEDULE_DELETED"
	ActionFormTemplateSaved = "FORM_TEMPLATE_SAVED"
	ActionInspectionCreated = "INSPECTION_CREATED"
	ActionAuditTrimmed      = "AUDIT_TRIMMED"
)

const (
	DefaultMaxEntries        = 50000
	DefaultMaxAccessEntries  = 10000
	DefaultMaxSecurityEvents = 10000
)

// SystemActor is recorded as performer for events not triggered by a user.
const SystemActor = "system"

// Entry is one append-only audit record. Details are stored as given.
type Entry struct {
	ID              string                 `json:"id"`
	Action          string                 `json:"action"`
	PerformedBy     string                 `json:"performedBy"`
	PerformedByName string                 `json:"performedByName"`
	TargetID        string                 `json:"targetId,omitempty"`
	TargetName      string                 `json:"targetName,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

// AccessEntry records one authorized request to a protected operation.
type AccessEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Role      string    `json:"role"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Timestamp time.Time `json:"timestamp"`
}

type SecurityEventType string

const (
	SecurityLoginFailed  SecurityEventType = "LOGIN_FAILED"
	SecurityAccessDenied SecurityEventType = "ACCESS_DENIED"
	SecurityRateLimited  SecurityEventType = "RATE_LIMITED"
	SecurityInvalidToken SecurityEventType = "INVALID_TOKEN"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type SecurityEvent struct {
	ID        string                 `json:"id"`
	Type      SecurityEventType      `json:"type"`
	Severity  Severity               `json:"severity"`
	UserID    string                 `json:"userId,omitempty"`
	IP        string                 `json:"ip"`
	Path      string                 `json:"path"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Caps bounds each log collection. Appends beyond a cap drop the oldest records.
type Caps struct {
	Entries        int
	AccessEntries  int
	SecurityEvents int
}

func DefaultCaps() Caps {
	return Caps{
		Entries:        DefaultMaxEntries,
		AccessEntries:  DefaultMaxAccessEntries,
		SecurityEvents: DefaultMaxSecurityEvents,
	}
}

// Filter narrows list queries. Zero values match everything.
type Filter struct {
	Action string
	UserID string
	Since  time.Time
	Limit  int
}

type TrimResult struct {
	Entries        int `json:"entries"`
	AccessEntries  int `json:"accessEntries"`
	SecurityEvents int `json:"securityEvents"`
}

type Summary struct {
	Window              string           `json:"window"`
	TotalAuditEntries   int              `json:"totalAuditEntries"`
	TotalAccessEntries  int              `json:"totalAccessEntries"`
	TotalSecurityEvents int              `json:"totalSecurityEvents"`
	FailedLogins        int              `json:"failedLogins"`
	AccessDenied        int              `json:"accessDenied"`
	ActiveUsers         int              `json:"activeUsers"`
	BySeverity          map[Severity]int `json:"bySeverity"`
	RecentEvents        []SecurityEvent  `json:"recentEvents"`
}

// Repository persists the three log collections.
type Repository interface {
	AppendEntries(ctx context.Context, entries []Entry, max int) (dropped int, err error)
	Entries(ctx context.Context) ([]Entry, error)
	AppendAccess(ctx context.Context, entry AccessEntry, max int) (dropped int, err error)
	AccessEntries(ctx context.Context) ([]AccessEntry, error)
	AppendSecurityEvent(ctx context.Context, event SecurityEvent, max int) (dropped int, err error)
	SecurityEvents(ctx context.Context) ([]SecurityEvent, error)
	Trim(ctx context.Context, caps Caps) (TrimResult, error)
}

// Recorder is the narrow write side other packages depend on.
type Recorder interface {
	LogEvent(ctx context.Context, entry Entry) error
	LogAccess(ctx context.Context, entry AccessEntry) error
	LogSecurityEvent(ctx context.Context, event SecurityEvent) error
}
