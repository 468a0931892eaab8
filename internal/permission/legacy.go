package permission

// LegacyMappingVersion identifies the revision of LegacyMapping. Bump it whenever
// a row changes so stored conversions can be traced.
const LegacyMappingVersion = 1

// LegacySet is the six-flag shape older UI clients send.
type LegacySet struct {
	CanManageUsers       bool `json:"canManageUsers"`
	CanManageForms       bool `json:"canManageForms"`
	CanViewReports       bool `json:"canViewReports"`
	CanCreateInspections bool `json:"canCreateInspections"`
	CanViewAuditLogs     bool `json:"canViewAuditLogs"`
	CanManageSettings    bool `json:"canManageSettings"`
}

// LegacyMapping expands each legacy flag into canonical flags.
var LegacyMapping = map[string][]Permission{
	"canManageUsers":       {CanManageUsers, CanResetPINs},
	"canManageForms":       {CanManageForms},
	"canViewReports":       {CanViewAnalytics, CanViewAllInspections, CanExportData},
	"canCreateInspections": {CanCreateInspections, CanEditInspections, CanUploadPhotos, CanSignInspections, CanViewOwnInspections},
	"canViewAuditLogs":     {CanViewAuditTrail},
	"canManageSettings":    {CanManageNotifications},
}

func (l LegacySet) flags() map[string]bool {
	return map[string]bool{
		"canManageUsers":       l.CanManageUsers,
		"canManageForms":       l.CanManageForms,
		"canViewReports":       l.CanViewReports,
		"canCreateInspections": l.CanCreateInspections,
		"canViewAuditLogs":     l.CanViewAuditLogs,
		"canManageSettings":    l.CanManageSettings,
	}
}

// FromLegacy converts a six-flag set into the canonical shape. Flags not reachable
// from the legacy shape stay false.
func FromLegacy(l LegacySet) Set {
	s := Empty()
	for name, granted := range l.flags() {
		if !granted {
			continue
		}
		for _, p := range LegacyMapping[name] {
			s[p] = true
		}
	}
	return s
}

// FromStored rebuilds a set from persisted flags. Records written in the
// six-flag shape are expanded through LegacyMapping first; canonical keys that
// the legacy shape cannot express are then overlaid. Unknown keys are ignored.
func FromStored(flags map[string]bool) (Set, bool) {
	if !isLegacy(flags) {
		s := Empty()
		for name, v := range flags {
			if p, err := Parse(name); err == nil {
				s[p] = v
			}
		}
		return s, false
	}

	s := FromLegacy(LegacySet{
		CanManageUsers:       flags["canManageUsers"],
		CanManageForms:       flags["canManageForms"],
		CanViewReports:       flags["canViewReports"],
		CanCreateInspections: flags["canCreateInspections"],
		CanViewAuditLogs:     flags["canViewAuditLogs"],
		CanManageSettings:    flags["canManageSettings"],
	})
	for name, v := range flags {
		if _, shared := LegacyMapping[name]; shared {
			continue
		}
		if p, err := Parse(name); err == nil {
			s[p] = v
		}
	}
	return s, true
}

// isLegacy reports whether flags carry a key only the six-flag shape uses.
func isLegacy(flags map[string]bool) bool {
	for name := range flags {
		if _, legacy := LegacyMapping[name]; !legacy {
			continue
		}
		if !Permission(name).Valid() {
			return true
		}
	}
	return false
}
