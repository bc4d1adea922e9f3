// Package metrics defines and registers all custom Prometheus metrics for the
// Clipper API session core. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto and exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clipper"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login outcomes.
// Label:
//   - result: "success", "invalid_credentials", "locked", "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"result"},
)

// RegistrationsTotal counts registration outcomes.
// Label:
//   - result: "success", "duplicate", "invalid", "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by outcome.",
	},
	[]string{"result"},
)

// TokenRefreshesTotal counts refresh token exchanges.
// Label:
//   - result: "success", "invalid", "expired", "revoked", "error"
var TokenRefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "token_refreshes_total",
		Help:      "Total number of refresh token exchanges, by outcome.",
	},
	[]string{"result"},
)

// ── Access control metrics ────────────────────────────────────────────────────

// RateLimitRejectionsTotal counts requests refused by the rate limiter.
// Label:
//   - class: endpoint class ("global" or "sensitive")
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "Total number of requests rejected by the rate limiter.",
	},
	[]string{"class"},
)

// AccessDeniedTotal counts requests refused after authentication.
// Label:
//   - requirement: "role" or "ownership"
var AccessDeniedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_denied_total",
		Help:      "Total number of requests denied by an authorization requirement.",
	},
	[]string{"requirement"},
)
