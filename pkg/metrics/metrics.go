/*
Copyright © 2026 Deutsche Telekom AG.
*/

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace is the Prometheus metrics namespace for rbac-evaluator.
	Namespace = "rbac_evaluator"

	// DecisionAllowed labels requests that were permitted.
	DecisionAllowed = "allowed"
	// DecisionDenied labels requests that were denied.
	DecisionDenied = "denied"
	// DecisionError labels requests that could not be evaluated.
	DecisionError = "error"

	// BindingNone is the binding label value when no binding matched.
	BindingNone = "none"

	// ResultSuccess and ResultError label store reload outcomes.
	ResultSuccess = "success"
	ResultError   = "error"
)

// Registry holds all rbac-evaluator metrics. The serve command exposes it via
// Handler.
var Registry = prometheus.NewRegistry()

var (
	// DecisionsTotal counts authorization decisions by outcome and the name
	// of the binding that granted access.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decisions_total",
			Help:      "Total number of authorization decisions by outcome and granting binding",
		},
		[]string{"decision", "binding"},
	)

	// DecisionDuration measures end-to-end evaluation latency in seconds.
	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "decision_duration_seconds",
			Help:      "Duration of authorization request evaluation in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"decision"},
	)

	// StoreObjects tracks the number of policy objects in the current store.
	StoreObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "store_objects",
			Help:      "Number of policy objects in the current store per kind",
		},
		[]string{"kind"},
	)

	// StoreReloadsTotal counts policy store reloads by result.
	StoreReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "store_reloads_total",
			Help:      "Total number of policy store reloads by result",
		},
		[]string{"result"},
	)

	// DanglingRoleRefsTotal counts bindings skipped during evaluation because
	// their roleRef does not resolve.
	DanglingRoleRefsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dangling_role_refs_total",
			Help:      "Total number of bindings skipped because their role reference does not resolve",
		},
	)

	// RateLimitedTotal counts requests rejected by the serve rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
)

func init() {
	Registry.MustRegister(
		DecisionsTotal,
		DecisionDuration,
		StoreObjects,
		StoreReloadsTotal,
		DanglingRoleRefsTotal,
		RateLimitedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
