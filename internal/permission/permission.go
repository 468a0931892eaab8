// Package permission holds the closed role and permission vocabularies and the
// role templates every user's permission set is derived from.
package permission

import (
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleInspector Role = "inspector"
	RoleDevSecOps Role = "devsecops"
)

// Roles lists every assignable role. The legacy "supervisor" role is intentionally absent.
var Roles = []Role{RoleAdmin, RoleInspector, RoleDevSecOps}

type Permission string

const (
	CanManageUsers          Permission = "canManageUsers"
	CanResetPINs            Permission = "canResetPINs"
	CanManageForms          Permission = "canManageForms"
	CanManageNotifications  Permission = "canManageNotifications"
	CanViewAllInspections   Permission = "canViewAllInspections"
	CanApproveInspections   Permission = "canApproveInspections"
	CanExportData           Permission = "canExportData"
	CanViewAnalytics        Permission = "canViewAnalytics"
	CanCreateInspections    Permission = "canCreateInspections"
	CanEditInspections      Permission = "canEditInspections"
	CanViewOwnInspections   Permission = "canViewOwnInspections"
	CanUploadPhotos         Permission = "canUploadPhotos"
	CanSignInspections      Permission = "canSignInspections"
	CanViewAuditTrail       Permission = "canViewAuditTrail"
	CanViewSecurityLogs     Permission = "canViewSecurityLogs"
	CanViewAccessLogs       Permission = "canViewAccessLogs"
	CanManageSecurityEvents Permission = "canManageSecurityEvents"
	CanViewSystemHealth     Permission = "canViewSystemHealth"
)

// All is the canonical, ordered permission vocabulary.
var All = []Permission{
	CanManageUsers,
	CanResetPINs,
	CanManageForms,
	CanManageNotifications,
	CanViewAllInspections,
	CanApproveInspections,
	CanExportData,
	CanViewAnalytics,
	CanCreateInspections,
	CanEditInspections,
	CanViewOwnInspections,
	CanUploadPhotos,
	CanSignInspections,
	CanViewAuditTrail,
	CanViewSecurityLogs,
	CanViewAccessLogs,
	CanManageSecurityEvents,
	CanViewSystemHealth,
}

var known = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(All))
	for _, p := range All {
		m[p] = struct{}{}
	}
	return m
}()

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInspector, RoleDevSecOps:
		return true
	}
	return false
}

func (p Permission) Valid() bool {
	_, ok := known[p]
	return ok
}

// ParseRole accepts only assignable roles.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Parse maps a caller-supplied name onto the closed vocabulary.
func Parse(name string) (Permission, error) {
	p := Permission(strings.TrimSpace(name))
	if !p.Valid() {
		return "", fmt.Errorf("unknown permission %q", name)
	}
	return p, nil
}

func RoleNames() []string {
	out := make([]string, len(Roles))
	for i, r := range Roles {
		out[i] = string(r)
	}
	return out
}

func Names() []string {
	out := make([]string, len(All))
	for i, p := range All {
		out[i] = string(p)
	}
	return out
}

// Set is the full permission shape. Every canonical flag is always present.
type Set map[Permission]bool

// Empty returns a set with every flag false.
func Empty() Set {
	s := make(Set, len(All))
	for _, p := range All {
		s[p] = false
	}
	return s
}

func (s Set) Has(p Permission) bool {
	return s[p]
}

// HasAll reports whether every listed permission is granted. An empty list is satisfied.
func (s Set) HasAll(perms ...Permission) bool {
	for _, p := range perms {
		if !s[p] {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one listed permission is granted. An empty list is satisfied.
func (s Set) HasAny(perms ...Permission) bool {
	if len(perms) == 0 {
		return true
	}
	for _, p := range perms {
		if s[p] {
			return true
		}
	}
	return false
}

// Clone returns a normalized copy: unknown keys dropped, missing flags false.
func (s Set) Clone() Set {
	out := Empty()
	for p, v := range s {
		if p.Valid() {
			out[p] = v
		}
	}
	return out
}

// Apply overlays overrides on a copy of s.
func (s Set) Apply(overrides map[Permission]bool) Set {
	out := s.Clone()
	for p, v := range overrides {
		if p.Valid() {
			out[p] = v
		}
	}
	return out
}

// Granted lists the true flags in canonical order.
func (s Set) Granted() []Permission {
	var out []Permission
	for _, p := range All {
		if s[p] {
			out = append(out, p)
		}
	}
	return out
}

func (s Set) Equal(other Set) bool {
	for _, p := range All {
		if s[p] != other[p] {
			return false
		}
	}
	return true
}

var templates = map[Role][]Permission{
	RoleAdmin: {
		CanManageUsers,
		CanResetPINs,
		CanManageForms,
		CanManageNotifications,
		CanViewAllInspections,
		CanApproveInspections,
		CanExportData,
		CanViewAnalytics,
		CanViewAuditTrail,
	},
	RoleInspector: {
		CanCreateInspections,
		CanEditInspections,
		CanViewOwnInspections,
		CanUploadPhotos,
		CanSignInspections,
	},
	RoleDevSecOps: {
		CanViewAuditTrail,
		CanViewSecurityLogs,
		CanViewAccessLogs,
		CanManageSecurityEvents,
		CanViewSystemHealth,
	},
}

// ForRole returns a fresh copy of the role's template. Unknown roles get an all-false set.
func ForRole(role Role) Set {
	s := Empty()
	for _, p := range templates[role] {
		s[p] = true
	}
	return s
}

// Templates returns the template of every assignable role.
func Templates() map[Role]Set {
	out := make(map[Role]Set, len(Roles))
	for _, r := range Roles {
		out[r] = ForRole(r)
	}
	return out
}

// ParseOverrides converts a request body map into typed overrides. The returned
// slice lists rejected names, sorted.
func ParseOverrides(raw map[string]bool) (map[Permission]bool, []string) {
	out := make(map[Permission]bool, len(raw))
	var unknown []string
	for name, v := range raw {
		p, err := Parse(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		out[p] = v
	}
	sort.Strings(unknown)
	return out, unknown
}
