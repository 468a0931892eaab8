package rest

import (
	"net/http"
	"net/netip"

	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/auth"
	"github.com/frahmantamala/hse-inspection/internal/inspection"
	"github.com/frahmantamala/hse-inspection/internal/notification"
	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/internal/transport/middleware"
	"github.com/frahmantamala/hse-inspection/internal/transport/swagger"
	"github.com/frahmantamala/hse-inspection/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the API handlers the router mounts. Nil entries leave their
// routes unregistered.
type Handlers struct {
	Auth         *auth.Handler
	Users        *user.Handler
	Audit        *audit.Handler
	Notification *notification.Handler
	Inspection   *inspection.Handler
	Health       *HealthHandler
}

type RouterOptions struct {
	AllowedOrigins string
	StaticDir      string
	SpecPath       string
	MetricsPath    string
	// Gatherer backs the metrics endpoint; nil disables it.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *middleware.HTTPMetrics
	PageRules   []middleware.PageRule
	// TrustedProxies enables forwarding headers for these peers only.
	TrustedProxies []netip.Prefix
}

func roles(r ...permission.Role) []permission.Role { return r }

func perms(p ...permission.Permission) []permission.Permission { return p }

func RegisterAllRoutes(router *chi.Mux, base *transport.BaseHandler, guard *auth.Guard, authn middleware.Authenticator, h Handlers, opts RouterOptions) {
	// Apply global middleware
	router.Use(chiMiddleware.RequestID)
	if len(opts.TrustedProxies) > 0 {
		router.Use(middleware.RealIP(opts.TrustedProxies))
	}
	router.Use(middleware.RequestID(base.Logger))
	router.Use(middleware.Recovery(base))
	router.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.HTTPMetrics != nil {
		router.Use(opts.HTTPMetrics.Instrument)
	}
	router.Use(middleware.Logging)

	router.MethodNotAllowed(base.MethodNotAllowed)

	if opts.SpecPath != "" {
		router.Get(swagger.SpecURL, func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, opts.SpecPath)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}
	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api", func(r chi.Router) {
		// Set before nested routes so their subrouters inherit the envelopes.
		r.NotFound(base.NotFound)
		r.MethodNotAllowed(base.MethodNotAllowed)

		if h.Health != nil {
			r.Route("/v1", func(hr chi.Router) {
				hr.Get("/health", h.Health.Health)
				hr.Get("/ping", h.Health.Ping)
			})
		}

		if h.Auth != nil {
			r.Route("/auth", func(ar chi.Router) {
				ar.Post("/login", h.Auth.Login)
				ar.Post("/logout", h.Auth.Logout)
				ar.Get("/me", guard.Protect(h.Auth.Me, auth.Options{}))
			})
		}

		if h.Users != nil {
			manageUsers := auth.Options{
				RequiredRoles:       roles(permission.RoleAdmin),
				RequiredPermissions: perms(permission.CanManageUsers),
			}
			r.Route("/users", func(ur chi.Router) {
				ur.Get("/", guard.Protect(h.Users.ListUsers, manageUsers))
				ur.Post("/", guard.Protect(h.Users.CreateUser, manageUsers))
				ur.Get("/{id}", guard.Protect(h.Users.GetUser, manageUsers))
				ur.Patch("/{id}", guard.Protect(h.Users.UpdateUser, manageUsers))
				ur.Delete("/{id}", guard.Protect(h.Users.DeactivateUser, manageUsers))
				ur.Post("/{id}/reset-pin", guard.Protect(h.Users.ResetPIN, auth.Options{
					RequiredRoles:       roles(permission.RoleAdmin),
					RequiredPermissions: perms(permission.CanManageUsers, permission.CanResetPINs),
					RequireAll:          true,
				}))
			})
			r.Get("/permissions/templates", guard.Protect(h.Users.PermissionTemplates, auth.Options{
				RequiredRoles: roles(permission.RoleAdmin),
			}))
		}

		if h.Audit != nil {
			r.Get("/audit-logs", guard.ProtectHTTP(h.Audit.ListAuditLogs, auth.Options{
				RequiredPermissions: perms(permission.CanViewAuditTrail),
			}))
			r.Get("/access-logs", guard.ProtectHTTP(h.Audit.ListAccessLogs, auth.Options{
				RequiredRoles:       roles(permission.RoleDevSecOps),
				RequiredPermissions: perms(permission.CanViewAccessLogs),
			}))
			r.Get("/security-events", guard.ProtectHTTP(h.Audit.ListSecurityEvents, auth.Options{
				RequiredRoles:       roles(permission.RoleDevSecOps),
				RequiredPermissions: perms(permission.CanViewSecurityLogs),
			}))
			r.Get("/security/summary", guard.ProtectHTTP(h.Audit.SecuritySummary, auth.Options{
				RequiredRoles:       roles(permission.RoleDevSecOps),
				RequiredPermissions: perms(permission.CanViewSecurityLogs, permission.CanViewSystemHealth),
			}))
		}

		if h.Notification != nil {
			manageNotifications := auth.Options{
				RequiredRoles:       roles(permission.RoleAdmin),
				RequiredPermissions: perms(permission.CanManageNotifications),
			}
			r.Route("/notification-schedules", func(nr chi.Router) {
				nr.Get("/", guard.Protect(h.Notification.ListSchedules, manageNotifications))
				nr.Post("/", guard.Protect(h.Notification.CreateSchedule, manageNotifications))
				nr.Delete("/{id}", guard.Protect(h.Notification.DeleteSchedule, manageNotifications))
			})
		}

		if h.Inspection != nil {
			r.Get("/form-templates", guard.Protect(h.Inspection.ListTemplates, auth.Options{
				RequiredPermissions: perms(permission.CanManageForms, permission.CanCreateInspections),
			}))
			r.Put("/form-templates/{id}", guard.Protect(h.Inspection.SaveTemplate, auth.Options{
				RequiredRoles:       roles(permission.RoleAdmin),
				RequiredPermissions: perms(permission.CanManageForms),
			}))
			r.Get("/inspections", guard.Protect(h.Inspection.ListInspections, auth.Options{
				RequiredPermissions: perms(permission.CanViewAllInspections, permission.CanViewOwnInspections),
			}))
			r.Post("/inspections", guard.Protect(h.Inspection.CreateInspection, auth.Options{
				RequiredRoles:       roles(permission.RoleInspector),
				RequiredPermissions: perms(permission.CanCreateInspections),
			}))
		}
	})

	// Frontend pages go through the advisory route guard; the API above is
	// re-checked per request by the auth guard.
	routeGuard := middleware.NewRouteGuard(opts.PageRules)
	pages := NewStaticHandler(base, opts.StaticDir)
	router.With(middleware.Session(authn), routeGuard.Middleware).Get("/*", pages.ServeHTTP)
	router.NotFound(base.NotFound)
}
