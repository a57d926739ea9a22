// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package authorizer

import (
	"context"

	"github.com/go-logr/logr"
	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-evaluator/pkg/helpers"
	"github.com/telekom/rbac-evaluator/pkg/metrics"
	"github.com/telekom/rbac-evaluator/pkg/policy"
)

// Authorizer answers authorization requests against one immutable policy
// store snapshot. It never mutates the store and is safe for concurrent use.
type Authorizer struct {
	store *policy.Store
	log   logr.Logger
}

// New returns an Authorizer evaluating against the given store snapshot.
func New(store *policy.Store, log logr.Logger) *Authorizer {
	return &Authorizer{store: store, log: log}
}

// Evaluate decides the request. RoleBindings of the request namespace are
// consulted first, then ClusterRoleBindings, each set ordered by binding
// name; the first matching rule wins, which keeps the reported grant stable
// for a fixed store. Bindings whose roleRef does not resolve contribute no
// grants. A structurally malformed request returns *InvalidRequestError and
// no decision.
func (a *Authorizer) Evaluate(ctx context.Context, req Request) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}

	roleBindings, clusterRoleBindings := a.store.FindBindingsFor(req.Subject, req.Namespace)

	for _, binding := range roleBindings {
		role, err := a.store.ResolveRole(binding.RoleRef.Kind, binding.RoleRef.Name, binding.Namespace)
		if err != nil {
			a.skipDangling(err, policy.RoleBindingKind, binding.Namespace, binding.Name)
			continue
		}
		if rule := matchingRule(role.Rules, req); rule != nil {
			return allow(req, &ObjectRef{Kind: policy.RoleBindingKind, Namespace: binding.Namespace, Name: binding.Name}, role, rule), nil
		}
	}

	for _, binding := range clusterRoleBindings {
		role, err := a.store.ResolveRole(policy.ClusterRoleKind, binding.RoleRef.Name, "")
		if err != nil {
			a.skipDangling(err, policy.ClusterRoleBindingKind, "", binding.Name)
			continue
		}
		if rule := matchingRule(role.Rules, req); rule != nil {
			return allow(req, &ObjectRef{Kind: policy.ClusterRoleBindingKind, Name: binding.Name}, role, rule), nil
		}
	}

	return Decision{Allowed: false, Reason: req.denyReason()}, nil
}

// CanI is the query surface a CLI wrapper uses: allowed plus a
// human-readable reason.
func (a *Authorizer) CanI(ctx context.Context, subject policy.Subject, verb, resource, namespace, apiGroup string) (bool, string, error) {
	decision, err := a.Evaluate(ctx, Request{
		Subject:   subject,
		Verb:      verb,
		Resource:  resource,
		Namespace: namespace,
		APIGroup:  apiGroup,
	})
	if err != nil {
		return false, "", err
	}
	return decision.Allowed, decision.Reason, nil
}

// skipDangling records a binding that grants nothing because its roleRef does
// not resolve. Partial policy corruption degrades toward deny, never crash.
func (a *Authorizer) skipDangling(err error, bindingKind, namespace, name string) {
	metrics.DanglingRoleRefsTotal.Inc()
	a.log.V(1).Info("skipping binding with dangling role reference",
		"bindingKind", bindingKind, "namespace", namespace, "binding", name, "reason", err.Error())
}

func matchingRule(rules []rbacv1.PolicyRule, req Request) *rbacv1.PolicyRule {
	for i := range rules {
		if req.Path != "" {
			if helpers.RuleMatchesNonResource(rules[i], req.Verb, req.Path) {
				return rules[i].DeepCopy()
			}
			continue
		}
		if helpers.RuleMatchesResource(rules[i], req.APIGroup, req.Resource, req.Name, req.Verb) {
			return rules[i].DeepCopy()
		}
	}
	return nil
}

func allow(req Request, binding *ObjectRef, role *policy.ResolvedRole, rule *rbacv1.PolicyRule) Decision {
	return Decision{
		Allowed: true,
		Reason:  "Access granted by " + binding.String(),
		Binding: binding,
		Role:    &ObjectRef{Kind: role.Kind, Namespace: role.Namespace, Name: role.Name},
		Rule:    rule,
	}
}
