package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/frahmantamala/hse-inspection/internal/permission"
	"github.com/frahmantamala/hse-inspection/internal/user"
)

const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	HomePath         = "/"
)

// State is where a page navigation ends up.
type State string

const (
	StateChecking    State = "checking"
	StateAuthorized  State = "authorized"
	StateRedirecting State = "redirecting"
)

// PageRule gates a path prefix. Empty Role and Permission only require a session.
type PageRule struct {
	Prefix     string
	Role       permission.Role
	Permission permission.Permission
}

// DefaultPageRules are the protected areas of the frontend.
var DefaultPageRules = []PageRule{
	{Prefix: "/admin", Role: permission.RoleAdmin},
	{Prefix: "/analytics", Permission: permission.CanViewAnalytics},
	{Prefix: "/approval-workflow", Permission: permission.CanApproveInspections},
}

// Decision is the outcome of evaluating one navigation.
type Decision struct {
	State    State
	Location string
}

// RouteGuard redirects page navigations. It is advisory: every API call is
// checked again by the authorization guard.
type RouteGuard struct {
	rules []PageRule
}

func NewRouteGuard(rules []PageRule) *RouteGuard {
	if rules == nil {
		rules = DefaultPageRules
	}
	return &RouteGuard{rules: rules}
}

func (g *RouteGuard) match(path string) (PageRule, bool) {
	for _, rule := range g.rules {
		if path == rule.Prefix || strings.HasPrefix(path, strings.TrimSuffix(rule.Prefix, "/")+"/") {
			return rule, true
		}
	}
	return PageRule{}, false
}

// Evaluate decides a navigation to path for u, which is nil when anonymous.
func (g *RouteGuard) Evaluate(path string, u *user.User) Decision {
	authenticated := u != nil && u.Active

	if path == LoginPath {
		if authenticated {
			return Decision{State: StateRedirecting, Location: HomePath}
		}
		return Decision{State: StateAuthorized}
	}

	rule, protected := g.match(path)
	if !protected {
		return Decision{State: StateAuthorized}
	}
	if !authenticated {
		return Decision{State: StateRedirecting, Location: LoginPath + "?from=" + url.QueryEscape(path)}
	}
	if rule.Role != "" && u.Role != rule.Role {
		return Decision{State: StateRedirecting, Location: UnauthorizedPath}
	}
	if rule.Permission != "" && !u.HasPermission(rule.Permission) {
		return Decision{State: StateRedirecting, Location: UnauthorizedPath}
	}
	return Decision{State: StateAuthorized}
}

// Middleware applies Evaluate to GET and HEAD navigations. The caller comes
// from the context populated by Session.
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		u, _ := user.FromContext(r.Context())
		d := g.Evaluate(r.URL.Path, u)
		if d.State == StateRedirecting {
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
