package rest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"

	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/auth"
	"github.com/frahmantamala/hse-inspection/internal/pin"
	"github.com/frahmantamala/hse-inspection/internal/store"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/transport/rest"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Login throttling by client address", func() {
	var (
		auditSvc  *audit.Service
		newRouter func(trusted ...string) *chi.Mux
	)

	BeforeEach(func() {
		lg := logger.Discard()
		base := transport.NewBaseHandler(lg)
		st := store.New(store.NewMemory())
		auditSvc = audit.NewService(audit.NewStoreRepository(st), lg)
		users := user.NewService(user.NewStoreRepository(st), pin.DigestHasher{}, auditSvc, lg)
		_, err := users.CreateWithPIN(context.Background(), user.System(), user.CreateUserRequest{Name: "Ada Admin", Role: "admin"}, "1234")
		Expect(err).NotTo(HaveOccurred())

		newRouter = func(trusted ...string) *chi.Mux {
			authSvc := auth.NewService(users, auth.NewJWTTokenGenerator("client-ip-test-secret", 0), auditSvc, lg,
				auth.WithLimiter(auth.NewLoginLimiter(1, 2)),
			)
			var proxies []netip.Prefix
			for _, t := range trusted {
				proxies = append(proxies, netip.MustParsePrefix(t))
			}
			router := chi.NewRouter()
			rest.RegisterAllRoutes(router, base, auth.NewGuard(base, authSvc, auditSvc, nil), authSvc, rest.Handlers{
				Auth: auth.NewHandler(base, authSvc, 0, false),
			}, rest.RouterOptions{TrustedProxies: proxies})
			return router
		}
	})

	login := func(router *chi.Mux, remote string, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"pin":"0000"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = remote
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	It("keys the limiter on the peer when forwarding headers are not trusted", func() {
		router := newRouter()
		limited := 0
		for i := 0; i < 50; i++ {
			if login(router, "10.0.0.1:40000", fmt.Sprintf("203.0.113.%d", i)) == http.StatusTooManyRequests {
				limited++
			}
		}
		Expect(limited).To(BeNumerically(">=", 45))

		events, err := auditSvc.ListSecurityEvents(context.Background(), audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).NotTo(BeEmpty())
		for _, e := range events {
			Expect(e.IP).To(Equal("10.0.0.1"))
		}
	})

	It("uses the nearest untrusted hop behind a trusted proxy", func() {
		router := newRouter("10.0.0.0/8")

		Expect(login(router, "10.0.0.1:40000", "198.51.100.1, 203.0.113.7")).To(Equal(http.StatusUnauthorized))
		Expect(login(router, "10.0.0.1:40000", "198.51.100.2, 203.0.113.7")).To(Equal(http.StatusUnauthorized))
		Expect(login(router, "10.0.0.1:40000", "198.51.100.3, 203.0.113.7")).To(Equal(http.StatusTooManyRequests))

		Expect(login(router, "10.0.0.1:40000", "203.0.113.8")).To(Equal(http.StatusUnauthorized))

		limited, err := auditSvc.ListSecurityEvents(context.Background(), audit.Filter{Action: string(audit.SecurityRateLimited)})
		Expect(err).NotTo(HaveOccurred())
		Expect(limited).To(HaveLen(1))
		Expect(limited[0].IP).To(Equal("203.0.113.7"))
	})
})
