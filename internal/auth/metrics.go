package auth

import (
	"github.com/frahmantamala/hse-inspection/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeAllowed          = "allowed"
	outcomeUnauthenticated  = "unauthenticated"
	outcomeInvalidToken     = "invalid_token"
	outcomeInactive         = "inactive"
	outcomeRoleDenied       = "role_denied"
	outcomePermissionDenied = "permission_denied"
	outcomeError            = "error"

	loginSuccess     = "success"
	loginMalformed   = "malformed"
	loginInvalidPIN  = "invalid_pin"
	loginInactive    = "inactive"
	loginRateLimited = "rate_limited"
)

type Metrics struct {
	decisions *prometheus.CounterVec
	logins    *prometheus.CounterVec
}

// NewMetrics registers the auth counters on reg. A nil reg keeps them private.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		decisions: metrics.CounterVec(reg, prometheus.CounterOpts{
			Name: "authorization_decisions_total",
			Help: "Guard decisions on protected operations, by outcome.",
		}, []string{"outcome"}),
		logins: metrics.CounterVec(reg, prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "PIN login attempts, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) decision(outcome string) {
	if m != nil {
		m.decisions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}
