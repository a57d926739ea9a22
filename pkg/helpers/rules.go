// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package helpers

import (
	"strings"

	rbacv1 "k8s.io/api/rbac/v1"
)

// MatchesAny reports whether value matches any pattern in the list.
// A pattern of "*" matches every value.
func MatchesAny(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if pattern == "*" || pattern == value {
			return true
		}
	}
	return false
}

// RuleMatchesResource reports whether a policy rule grants the given verb on
// the given resource in the given API group. When name is non-empty, rules
// that carry ResourceNames must list it; rules without ResourceNames match
// any instance name.
func RuleMatchesResource(rule rbacv1.PolicyRule, apiGroup, resource, name, verb string) bool {
	if !MatchesAny(rule.Verbs, verb) {
		return false
	}
	if !MatchesAny(rule.APIGroups, apiGroup) {
		return false
	}
	if !MatchesAny(rule.Resources, resource) {
		return false
	}
	if len(rule.ResourceNames) > 0 && !MatchesAny(rule.ResourceNames, name) {
		return false
	}
	return true
}

// RuleMatchesNonResource reports whether a policy rule grants the given verb
// on a non-resource URL path. Patterns either match the path exactly or, with
// a trailing "*", as a prefix ("/healthz/*" matches "/healthz/etcd").
func RuleMatchesNonResource(rule rbacv1.PolicyRule, verb, path string) bool {
	if len(rule.NonResourceURLs) == 0 {
		return false
	}
	if !MatchesAny(rule.Verbs, verb) {
		return false
	}
	for _, pattern := range rule.NonResourceURLs {
		if pattern == "*" || pattern == path {
			return true
		}
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(path, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}
