package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/transport/middleware"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

func newUser(role permission.Role) *user.User {
	return &user.User{ID: "u-" + string(role), Role: role, Active: true, Permissions: permission.ForRole(role)}
}

type fakeAuth map[string]*user.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (*user.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("unknown token")
}

var _ = Describe("RouteGuard", func() {
	var guard *middleware.RouteGuard

	BeforeEach(func() {
		guard = middleware.NewRouteGuard(nil)
	})

	It("sends anonymous visitors of protected pages to login with the return path", func() {
		d := guard.Evaluate("/admin/users", nil)
		Expect(d.State).To(Equal(middleware.StateRedirecting))
		Expect(d.Location).To(Equal("/login?from=%2Fadmin%2Fusers"))
	})

	It("leaves public pages alone", func() {
		Expect(guard.Evaluate("/", nil).State).To(Equal(middleware.StateAuthorized))
		Expect(guard.Evaluate("/administrator", nil).State).To(Equal(middleware.StateAuthorized))
	})

	It("redirects authenticated users away from login", func() {
		d := guard.Evaluate("/login", newUser(permission.RoleInspector))
		Expect(d).To(Equal(middleware.Decision{State: middleware.StateRedirecting, Location: "/"}))
		Expect(guard.Evaluate("/login", nil).State).To(Equal(middleware.StateAuthorized))
	})

	DescribeTable("role and permission rules",
		func(path string, role permission.Role, expected string) {
			d := guard.Evaluate(path, newUser(role))
			Expect(d.Location).To(Equal(expected))
		},
		Entry("admin area for admin", "/admin", permission.RoleAdmin, ""),
		Entry("admin area for inspector", "/admin", permission.RoleInspector, "/unauthorized"),
		Entry("analytics for admin", "/analytics", permission.RoleAdmin, ""),
		Entry("analytics for devsecops", "/analytics", permission.RoleDevSecOps, "/unauthorized"),
		Entry("approvals for admin", "/approval-workflow/42", permission.RoleAdmin, ""),
		Entry("approvals for inspector", "/approval-workflow", permission.RoleInspector, "/unauthorized"),
	)

	It("treats a deactivated user as anonymous", func() {
		u := newUser(permission.RoleAdmin)
		u.Active = false
		Expect(guard.Evaluate("/admin", u).Location).To(HavePrefix("/login"))
	})

	It("redirects through the session middleware", func() {
		auth := fakeAuth{"tok": newUser(permission.RoleInspector)}
		h := middleware.Session(auth)(guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: transport.AuthCookieName, Value: "tok"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusFound))
		Expect(w.Header().Get("Location")).To(Equal("/unauthorized"))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
		Expect(w.Header().Get("Location")).To(Equal("/login?from=%2Fadmin"))

		req = httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get("Location")).To(HavePrefix("/login"))
	})
})

var _ = Describe("Recovery", func() {
	It("answers panics with a detail-free 500", func() {
		var logs bytes.Buffer
		base := transport.NewBaseHandler(logger.New(&logs, "json", "debug"))
		h := middleware.Recovery(base)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("db password is hunter2")
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		var body internal.Response
		Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Error).To(Equal("internal server error"))
		Expect(w.Body.String()).NotTo(ContainSubstring("hunter2"))
		Expect(logs.String()).To(ContainSubstring("panic recovered"))
	})
})

var _ = Describe("Logging", func() {
	var (
		logs bytes.Buffer
		h    http.Handler
	)

	BeforeEach(func() {
		logs.Reset()
		lg := logger.New(&logs, "json", "debug")
		h = middleware.RequestID(lg)(middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(internal.RequestIDFromContext(r.Context())).To(Equal("trace-1"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"user":{"id":"u1"},"pin":"4821"}`))
		})))
	})

	It("masks PINs, tokens and cookies", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login?token=abc", strings.NewReader(`{"pin":"4821"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer secret-token")
		req.Header.Set(middleware.TraceHeader, "trace-1")
		req.AddCookie(&http.Cookie{Name: transport.AuthCookieName, Value: "cookie-token"})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		out := logs.String()
		Expect(out).To(ContainSubstring("incoming request"))
		Expect(out).To(ContainSubstring("trace-1"))
		Expect(out).NotTo(ContainSubstring("4821"))
		Expect(out).NotTo(ContainSubstring("secret-token"))
		Expect(out).NotTo(ContainSubstring("cookie-token"))
		Expect(out).NotTo(ContainSubstring("abc"))
		Expect(w.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})

	It("still hands the full body to the handler", func() {
		var got map[string]string
		inner := middleware.Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
		}))
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"pin":"4821"}`))
		req.Header.Set("Content-Type", "application/json")
		inner.ServeHTTP(httptest.NewRecorder(), req.WithContext(logger.Into(req.Context(), slog.New(slog.NewTextHandler(&logs, nil)))))
		Expect(got["pin"]).To(Equal("4821"))
	})
})

var _ = Describe("CORS", func() {
	It("echoes allowed origins only", func() {
		h := middleware.CORS("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(Equal("http://localhost:3000"))

		req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Origin", "http://evil.example")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("RealIP", func() {
	seenAddr := func(trusted []netip.Prefix, remote string, headers map[string]string) string {
		var got string
		h := middleware.RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = transport.ClientIP(r)
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	proxies := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	It("ignores forwarding headers from untrusted peers", func() {
		Expect(seenAddr(proxies, "192.0.2.10:5000", map[string]string{
			"X-Forwarded-For": "203.0.113.9",
			"X-Real-IP":       "203.0.113.9",
		})).To(Equal("192.0.2.10"))
	})

	It("takes the nearest untrusted hop from a trusted peer", func() {
		Expect(seenAddr(proxies, "10.1.2.3:5000", map[string]string{
			"X-Forwarded-For": "198.51.100.1, 203.0.113.9, 10.9.9.9",
		})).To(Equal("203.0.113.9"))
	})

	It("uses X-Real-IP from a trusted peer without X-Forwarded-For", func() {
		Expect(seenAddr(proxies, "10.1.2.3:5000", map[string]string{
			"X-Real-IP": "203.0.113.4",
		})).To(Equal("203.0.113.4"))
	})

	It("keeps the peer when the forwarded chain is unreadable", func() {
		Expect(seenAddr(proxies, "10.1.2.3:5000", map[string]string{
			"X-Forwarded-For": "not-an-ip",
		})).To(Equal("10.1.2.3"))
	})
})

var _ = Describe("Session", func() {
	It("falls back to the bearer header when the cookie token does not resolve", func() {
		inspector := newUser(permission.RoleInspector)
		var got *user.User
		h := middleware.Session(fakeAuth{"good": inspector})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = user.FromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/inspections", nil)
		req.AddCookie(&http.Cookie{Name: transport.AuthCookieName, Value: "stale"})
		req.Header.Set("Authorization", "Bearer good")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(got).To(Equal(inspector))
	})
})
