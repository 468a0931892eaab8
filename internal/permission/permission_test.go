package permission_test

import (
	"testing"

	"github.com/frahmantamala/hse-inspection/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Suite")
}

var _ = Describe("Permission templates", func() {
	It("returns the same set on every call", func() {
		for _, r := range permission.Roles {
			Expect(permission.ForRole(r).Equal(permission.ForRole(r))).To(BeTrue())
		}
	})

	It("returns an independent copy", func() {
		s := permission.ForRole(permission.RoleAdmin)
		s[permission.CanManageUsers] = false
		Expect(permission.ForRole(permission.RoleAdmin).Has(permission.CanManageUsers)).To(BeTrue())
	})

	It("always carries every flag", func() {
		for _, r := range []permission.Role{permission.RoleAdmin, permission.RoleInspector, permission.RoleDevSecOps, "supervisor", ""} {
			Expect(permission.ForRole(r)).To(HaveLen(len(permission.All)))
		}
	})

	It("fails closed for unknown roles", func() {
		for _, r := range []permission.Role{"supervisor", "root", ""} {
			Expect(permission.ForRole(r).Granted()).To(BeEmpty())
		}
	})

	It("gives admins management without authoring", func() {
		s := permission.ForRole(permission.RoleAdmin)
		Expect(s.HasAll(permission.CanManageUsers, permission.CanResetPINs, permission.CanViewAnalytics, permission.CanViewAuditTrail)).To(BeTrue())
		Expect(s.HasAny(permission.CanCreateInspections, permission.CanSignInspections, permission.CanViewSecurityLogs)).To(BeFalse())
	})

	It("gives inspectors authoring only", func() {
		s := permission.ForRole(permission.RoleInspector)
		Expect(s.Granted()).To(ConsistOf(
			permission.CanCreateInspections,
			permission.CanEditInspections,
			permission.CanViewOwnInspections,
			permission.CanUploadPhotos,
			permission.CanSignInspections,
		))
	})

	It("gives devsecops security views only", func() {
		s := permission.ForRole(permission.RoleDevSecOps)
		Expect(s.Granted()).To(ConsistOf(
			permission.CanViewAuditTrail,
			permission.CanViewSecurityLogs,
			permission.CanViewAccessLogs,
			permission.CanManageSecurityEvents,
			permission.CanViewSystemHealth,
		))
	})

	It("exposes one template per assignable role", func() {
		Expect(permission.Templates()).To(HaveLen(3))
	})
})

var _ = Describe("Parsing", func() {
	It("rejects the removed supervisor role", func() {
		_, err := permission.ParseRole("supervisor")
		Expect(err).To(HaveOccurred())
	})

	It("normalizes role case", func() {
		r, err := permission.ParseRole(" Admin ")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(permission.RoleAdmin))
	})

	It("splits overrides into known and unknown names", func() {
		known, unknown := permission.ParseOverrides(map[string]bool{
			"canExportData": false,
			"canFly":        true,
			"canDoAnything": true,
		})
		Expect(known).To(Equal(map[permission.Permission]bool{permission.CanExportData: false}))
		Expect(unknown).To(Equal([]string{"canDoAnything", "canFly"}))
	})
})

var _ = Describe("Set", func() {
	It("treats empty requirement lists as satisfied", func() {
		s := permission.Empty()
		Expect(s.HasAll()).To(BeTrue())
		Expect(s.HasAny()).To(BeTrue())
	})

	It("overlays overrides without touching the source", func() {
		base := permission.ForRole(permission.RoleInspector)
		out := base.Apply(map[permission.Permission]bool{
			permission.CanExportData:        true,
			permission.CanCreateInspections: false,
		})
		Expect(out.Has(permission.CanExportData)).To(BeTrue())
		Expect(out.Has(permission.CanCreateInspections)).To(BeFalse())
		Expect(base.Has(permission.CanCreateInspections)).To(BeTrue())
	})

	It("normalizes unknown keys away on clone", func() {
		s := permission.Set{"bogus": true, permission.CanManageUsers: true}
		c := s.Clone()
		Expect(c).To(HaveLen(len(permission.All)))
		Expect(c).NotTo(HaveKey(permission.Permission("bogus")))
	})
})

var _ = Describe("Legacy mapping", func() {
	It("expands the six-flag shape", func() {
		s := permission.FromLegacy(permission.LegacySet{CanManageUsers: true, CanViewReports: true})
		Expect(s.Granted()).To(ConsistOf(
			permission.CanManageUsers,
			permission.CanResetPINs,
			permission.CanViewAnalytics,
			permission.CanViewAllInspections,
			permission.CanExportData,
		))
	})

	It("expands stored records written in the six-flag shape", func() {
		s, legacy := permission.FromStored(map[string]bool{
			"canManageUsers":     true,
			"canViewReports":     true,
			"canViewAuditLogs":   true,
			"canManageSettings":  false,
			"canSignInspections": true,
		})
		Expect(legacy).To(BeTrue())
		Expect(s.Granted()).To(ConsistOf(
			permission.CanManageUsers,
			permission.CanResetPINs,
			permission.CanViewAnalytics,
			permission.CanViewAllInspections,
			permission.CanExportData,
			permission.CanViewAuditTrail,
			permission.CanSignInspections,
		))
	})

	It("reads canonical records key by key", func() {
		s, legacy := permission.FromStored(map[string]bool{
			"canManageUsers": true,
			"canResetPINs":   false,
			"bogus":          true,
		})
		Expect(legacy).To(BeFalse())
		Expect(s.Granted()).To(ConsistOf(permission.CanManageUsers))
		Expect(s).To(HaveLen(len(permission.All)))
	})

	It("maps only canonical flags", func() {
		for _, perms := range permission.LegacyMapping {
			for _, p := range perms {
				Expect(p.Valid()).To(BeTrue())
			}
		}
	})
})
