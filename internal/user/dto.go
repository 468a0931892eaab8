package user

import (
	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/core/common/validation"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/pin"
)

type CreateUserRequest struct {
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Department  string          `json:"department"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

// UpdateUserRequest is a partial update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name        *string         `json:"name,omitempty"`
	Role        *string         `json:"role,omitempty"`
	Department  *string         `json:"department,omitempty"`
	Active      *bool           `json:"active,omitempty"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}

type ResetPINRequest struct {
	Reason string `json:"reason"`
	// PIN is optional. A strong PIN is generated when empty.
	PIN string `json:"pin,omitempty"`
}

type CreateUserResponse struct {
	User *User  `json:"user"`
	PIN  string `json:"pin"`
}

type ResetPINResponse struct {
	UserID string `json:"userId"`
	PIN    string `json:"pin"`
}

type UsersResponse struct {
	Users []*User `json:"users"`
}

type TemplatesResponse struct {
	Templates map[permission.Role]permission.Set `json:"templates"`
	Legacy    LegacyMappingResponse              `json:"legacyMapping"`
}

type LegacyMappingResponse struct {
	Version int                                `json:"version"`
	Mapping map[string][]permission.Permission `json:"mapping"`
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Role   permission.Role
	Active *bool
}

const (
	maxNameLength       = 100
	maxDepartmentLength = 100
	maxReasonLength     = 500
)

func invalidRole() *internal.AppError {
	return internal.NewValidationError("invalid role", internal.ErrCodeInvalidRole).
		WithValidTypes(permission.RoleNames())
}

func invalidPermissions(unknown []string) *internal.AppError {
	return internal.NewValidationError("unknown permission: "+unknown[0], internal.ErrCodeInvalidPermission).
		WithValidTypes(permission.Names()).
		WithDetails(map[string]interface{}{"unknown": unknown})
}

func (r CreateUserRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("name", r.Name).Required().MaxLength(maxNameLength)
	v.Field("department", r.Department).MaxLength(maxDepartmentLength)
	if err := v.Validate(); err != nil {
		return err
	}
	if _, err := permission.ParseRole(r.Role); err != nil {
		return invalidRole()
	}
	if _, unknown := permission.ParseOverrides(r.Permissions); len(unknown) > 0 {
		return invalidPermissions(unknown)
	}
	return nil
}

func (r UpdateUserRequest) Validate() error {
	v := validation.NewValidator()
	if r.Name != nil {
		v.Field("name", r.Name).Required().MaxLength(maxNameLength)
	}
	v.Field("department", r.Department).MaxLength(maxDepartmentLength)
	if err := v.Validate(); err != nil {
		return err
	}
	if r.Role != nil {
		if _, err := permission.ParseRole(*r.Role); err != nil {
			return invalidRole()
		}
	}
	if _, unknown := permission.ParseOverrides(r.Permissions); len(unknown) > 0 {
		return invalidPermissions(unknown)
	}
	return nil
}

func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Role == nil && r.Department == nil && r.Active == nil && len(r.Permissions) == 0
}

func (r ResetPINRequest) Validate() error {
	v := validation.NewValidator()
	v.Field("reason", r.Reason).MaxLength(maxReasonLength)
	if err := v.Validate(); err != nil {
		return err
	}
	if r.PIN != "" {
		return pin.Validate(r.PIN)
	}
	return nil
}
