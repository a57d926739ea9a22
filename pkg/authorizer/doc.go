// Package authorizer implements the RBAC decision function: given a policy
// store snapshot and a request descriptor it resolves the applicable
// bindings, aggregates granted rules, and returns an allow/deny decision with
// the matching binding, role, and rule for auditability. Authorization is
// purely additive; the default decision is deny.
package authorizer
