package user

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/hse-inspection/internal/core/datamodel/user"
	"github.com/frahmantamala/hse-inspection/internal/permission"
)

// User is the account model handed to handlers and clients. PINHash never
// leaves the process.
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Role            permission.Role `json:"role"`
	Department      string          `json:"department"`
	Active          bool            `json:"active"`
	PINHash         string          `json:"-"`
	PINLookup       string          `json:"-"`
	Permissions     permission.Set  `json:"permissions"`
	LastLogin       *time.Time      `json:"lastLogin,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	PINResetHistory []PINReset      `json:"pinResetHistory,omitempty"`
}

type PINReset struct {
	ResetBy     string    `json:"resetBy"`
	ResetByName string    `json:"resetByName"`
	ResetAt     time.Time `json:"resetAt"`
	Reason      string    `json:"reason,omitempty"`
}

func (u *User) HasPermission(p permission.Permission) bool {
	return u.Permissions.Has(p)
}

func (u *User) HasAnyPermission(perms ...permission.Permission) bool {
	return u.Permissions.HasAny(perms...)
}

func (u *User) HasAllPermissions(perms ...permission.Permission) bool {
	return u.Permissions.HasAll(perms...)
}

func (u *User) HasRole(roles ...permission.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.Role == permission.RoleAdmin
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (u *User) Clone() *User {
	c := *u
	c.Permissions = u.Permissions.Clone()
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.PINResetHistory != nil {
		c.PINResetHistory = append([]PINReset(nil), u.PINResetHistory...)
	}
	return &c
}

// System is the actor recorded for operator-initiated changes.
func System() *User {
	return &User{
		ID:          "system",
		Name:        "System",
		Role:        permission.RoleAdmin,
		Active:      true,
		Permissions: permission.ForRole(permission.RoleAdmin),
	}
}

type ctxKey struct{}

// ContextWithUser stores the authenticated user for downstream handlers.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*User)
	return u, ok && u != nil
}

func ToDataModel(u *User) *userDatamodel.User {
	perms := make(map[string]bool, len(permission.All))
	for _, p := range permission.All {
		perms[string(p)] = u.Permissions[p]
	}
	history := make([]userDatamodel.PINReset, len(u.PINResetHistory))
	for i, h := range u.PINResetHistory {
		history[i] = userDatamodel.PINReset(h)
	}
	return &userDatamodel.User{
		ID:              u.ID,
		Name:            u.Name,
		Role:            string(u.Role),
		Department:      u.Department,
		Active:          u.Active,
		PINHash:         u.PINHash,
		PINLookup:       u.PINLookup,
		Permissions:     perms,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		CreatedBy:       u.CreatedBy,
		PINResetHistory: history,
	}
}

// FromDataModel normalizes stored permissions onto the canonical flags.
// Records in the six-flag shape are expanded through the legacy mapping and
// rewritten canonically on their next save. A record without stored
// permissions gets its role template.
func FromDataModel(u *userDatamodel.User) *User {
	role := permission.Role(u.Role)
	perms := permission.ForRole(role)
	if len(u.Permissions) > 0 {
		perms, _ = permission.FromStored(u.Permissions)
	}
	var history []PINReset
	if len(u.PINResetHistory) > 0 {
		history = make([]PINReset, len(u.PINResetHistory))
		for i, h := range u.PINResetHistory {
			history[i] = PINReset(h)
		}
	}
	return &User{
		ID:              u.ID,
		Name:            u.Name,
		Role:            role,
		Department:      u.Department,
		Active:          u.Active,
		PINHash:         u.PINHash,
		PINLookup:       u.PINLookup,
		Permissions:     perms,
		LastLogin:       u.LastLogin,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
		CreatedBy:       u.CreatedBy,
		PINResetHistory: history,
	}
}
