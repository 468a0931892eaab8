package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = ginkgo.Describe("Guard", func() {
	var (
		f         *fixture
		guard     *Guard
		inspector *user.User
		called    int
		seen      *user.User
		next      HandlerFunc
	)

	request := func(u *user.User) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		if u != nil {
			token, _, err := f.tokens.GenerateAccessToken(u.ID)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	serve := func(h http.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, internal.Response) {
		w := httptest.NewRecorder()
		h(w, req)
		var body internal.Response
		if w.Code >= 400 {
			gomega.Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(gomega.Succeed())
		}
		return w, body
	}

	ginkgo.BeforeEach(func() {
		f = newFixture(nil)
		guard = NewGuard(transport.NewBaseHandler(logger.Discard()), f.service, f.auditSvc, f.metrics)

		var err error
		inspector, err = f.users.CreateWithPIN(f.ctx, f.admin, user.CreateUserRequest{
			Name: "Ian Inspector",
			Role: "inspector",
		}, "5827")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		called, seen = 0, nil
		next = func(w http.ResponseWriter, r *http.Request, u *user.User) {
			called++
			seen = u
			ctxUser, ok := user.FromContext(r.Context())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(ctxUser.ID).To(gomega.Equal(u.ID))
			gomega.Expect(internal.UserIDFromContext(r.Context())).To(gomega.Equal(u.ID))
			w.WriteHeader(http.StatusNoContent)
		}
	})

	ginkgo.It("answers 401 without a token", func() {
		w, body := serve(guard.Protect(next, Options{}), request(nil))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(body.Error).To(gomega.Equal("no auth token"))
		gomega.Expect(called).To(gomega.BeZero())
	})

	ginkgo.It("answers 401 for a forged token and records a security event", func() {
		req := request(nil)
		req.Header.Set("Authorization", "Bearer forged")
		w, _ := serve(guard.Protect(next, Options{}), req)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(called).To(gomega.BeZero())

		events, _ := f.auditSvc.ListSecurityEvents(f.ctx, audit.Filter{})
		gomega.Expect(events).To(gomega.HaveLen(1))
		gomega.Expect(events[0].Type).To(gomega.Equal(audit.SecurityInvalidToken))
	})

	ginkgo.It("reads the token from the auth cookie", func() {
		token, _, _ := f.tokens.GenerateAccessToken(f.admin.ID)
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.AddCookie(&http.Cookie{Name: transport.AuthCookieName, Value: token})
		w, _ := serve(guard.Protect(next, Options{}), req)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(seen.ID).To(gomega.Equal(f.admin.ID))
	})

	ginkgo.It("falls back to the bearer header when the cookie token is stale", func() {
		req := request(inspector)
		req.AddCookie(&http.Cookie{Name: transport.AuthCookieName, Value: "expired-or-forged"})
		w, _ := serve(guard.Protect(next, Options{}), req)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(seen.ID).To(gomega.Equal(inspector.ID))
	})

	ginkgo.It("answers 403 with required and current role and never calls the handler", func() {
		opts := Options{RequiredRoles: []permission.Role{permission.RoleAdmin}}
		w, body := serve(guard.Protect(next, opts), request(inspector))

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(body.Code).To(gomega.Equal(internal.ErrCodeRoleRequired))
		gomega.Expect(body.Required).To(gomega.ConsistOf("admin"))
		gomega.Expect(body.Current).To(gomega.Equal("inspector"))
		gomega.Expect(called).To(gomega.BeZero())

		events, _ := f.auditSvc.ListSecurityEvents(f.ctx, audit.Filter{})
		gomega.Expect(events).To(gomega.HaveLen(1))
		gomega.Expect(events[0].Type).To(gomega.Equal(audit.SecurityAccessDenied))
		gomega.Expect(events[0].UserID).To(gomega.Equal(inspector.ID))

		access, _ := f.auditSvc.ListAccess(f.ctx, audit.Filter{})
		gomega.Expect(access).To(gomega.BeEmpty())
		gomega.Expect(testutil.ToFloat64(f.metrics.decisions.WithLabelValues(outcomeRoleDenied))).To(gomega.Equal(1.0))
	})

	ginkgo.It("answers 403 for a deactivated account holding a valid token", func() {
		req := request(inspector)
		_, err := f.users.Deactivate(f.ctx, f.admin, inspector.ID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		w, body := serve(guard.Protect(next, Options{}), req)
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(body.Error).To(gomega.Equal("account deactivated"))
		gomega.Expect(called).To(gomega.BeZero())
	})

	ginkgo.Describe("permissions", func() {
		var limited *user.User

		ginkgo.BeforeEach(func() {
			var err error
			limited, err = f.users.CreateWithPIN(f.ctx, f.admin, user.CreateUserRequest{
				Name:        "Lee Limited",
				Role:        "admin",
				Permissions: map[string]bool{"canResetPINs": false},
			}, "3917")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
		})

		perms := []permission.Permission{permission.CanManageUsers, permission.CanResetPINs}

		ginkgo.It("passes with ANY of the permissions by default", func() {
			w, _ := serve(guard.Protect(next, Options{RequiredPermissions: perms}), request(limited))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(called).To(gomega.Equal(1))
		})

		ginkgo.It("requires every permission with RequireAll", func() {
			w, body := serve(guard.Protect(next, Options{RequiredPermissions: perms, RequireAll: true}), request(limited))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(body.Code).To(gomega.Equal(internal.ErrCodePermissionRequired))
			gomega.Expect(body.Required).To(gomega.ConsistOf("canManageUsers", "canResetPINs"))
			gomega.Expect(called).To(gomega.BeZero())

			w, _ = serve(guard.Protect(next, Options{RequiredPermissions: perms, RequireAll: true}), request(f.admin))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(called).To(gomega.Equal(1))
		})

		ginkgo.It("denies when none of the permissions is granted", func() {
			w, _ := serve(guard.Protect(next, Options{RequiredPermissions: perms}), request(inspector))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(called).To(gomega.BeZero())
		})
	})

	ginkgo.It("logs access and hands the user to the handler", func() {
		opts := Options{
			RequiredRoles:       []permission.Role{permission.RoleAdmin},
			RequiredPermissions: []permission.Permission{permission.CanManageUsers},
		}
		req := request(f.admin)
		req.Header.Set("User-Agent", "tablet")
		w, _ := serve(guard.Protect(next, opts), req)

		gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(seen.ID).To(gomega.Equal(f.admin.ID))

		access, _ := f.auditSvc.ListAccess(f.ctx, audit.Filter{})
		gomega.Expect(access).To(gomega.HaveLen(1))
		gomega.Expect(access[0].UserID).To(gomega.Equal(f.admin.ID))
		gomega.Expect(access[0].Path).To(gomega.Equal("/api/users"))
		gomega.Expect(access[0].Method).To(gomega.Equal(http.MethodGet))
		gomega.Expect(access[0].UserAgent).To(gomega.Equal("tablet"))
		gomega.Expect(testutil.ToFloat64(f.metrics.decisions.WithLabelValues(outcomeAllowed))).To(gomega.Equal(1.0))
	})

	ginkgo.It("turns a handler panic into a bare 500", func() {
		boom := func(http.ResponseWriter, *http.Request, *user.User) { panic("secret detail") }
		w, body := serve(guard.Protect(boom, Options{}), request(f.admin))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusInternalServerError))
		gomega.Expect(body.Error).To(gomega.Equal("internal server error"))
		gomega.Expect(w.Body.String()).NotTo(gomega.ContainSubstring("secret"))
	})

	ginkgo.It("adapts context-reading handlers through ProtectHTTP", func() {
		h := guard.ProtectHTTP(func(w http.ResponseWriter, r *http.Request) {
			u, ok := user.FromContext(r.Context())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(u.ID).To(gomega.Equal(f.admin.ID))
			w.WriteHeader(http.StatusOK)
		}, Options{RequiredPermissions: []permission.Permission{permission.CanViewAuditTrail}})
		w, _ := serve(h, request(f.admin))
		gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
	})

	ginkgo.Describe("Me", func() {
		ginkgo.It("returns the authenticated user", func() {
			w, _ := serve(guard.Protect(f.handler.Me, Options{}), request(inspector))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			var resp struct {
				User struct {
					ID string `json:"id"`
				} `json:"user"`
			}
			gomega.Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.User.ID).To(gomega.Equal(inspector.ID))
		})
	})
})
