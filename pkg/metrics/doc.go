// Package metrics defines and registers Prometheus metrics for the
// rbac-evaluator, covering authorization decisions, decision latency, policy
// store contents, and store reloads.
package metrics
