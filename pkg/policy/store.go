// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"slices"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-evaluator/pkg/helpers"
)

// Kinds of the policy entities the store holds.
const (
	NamespaceKind          = "Namespace"
	RoleKind               = "Role"
	ClusterRoleKind        = "ClusterRole"
	RoleBindingKind        = "RoleBinding"
	ClusterRoleBindingKind = "ClusterRoleBinding"
)

// Store is an immutable, indexed snapshot of RBAC policy. It is built once by
// Load and safe for concurrent readers without locking.
type Store struct {
	namespaces          map[string]*corev1.Namespace
	roles               map[string]map[string]*rbacv1.Role // namespace -> name
	clusterRoles        map[string]*rbacv1.ClusterRole
	roleBindings        map[string]map[string]*rbacv1.RoleBinding // namespace -> name
	clusterRoleBindings map[string]*rbacv1.ClusterRoleBinding

	// bindingsBySubject maps "<namespace>/<subject key>" to the RoleBindings
	// in that namespace naming the subject, sorted by binding name.
	bindingsBySubject map[string][]*rbacv1.RoleBinding
	// clusterBindingsBySubject maps a subject key to the ClusterRoleBindings
	// naming the subject, sorted by binding name.
	clusterBindingsBySubject map[string][]*rbacv1.ClusterRoleBinding
}

// ResolvedRole is the rule source a binding roleRef points at: a namespaced
// Role or a cluster-scoped ClusterRole.
type ResolvedRole struct {
	Kind      string
	Namespace string
	Name      string
	Rules     []rbacv1.PolicyRule
}

// FindBindingsFor returns the RoleBindings in namespace whose subject list
// names the subject (directly or through one of its groups), plus the
// ClusterRoleBindings naming it. An empty namespace returns only
// ClusterRoleBindings. Both slices are ordered by binding name, so the result
// is deterministic for a fixed store.
func (s *Store) FindBindingsFor(subject Subject, namespace string) ([]*rbacv1.RoleBinding, []*rbacv1.ClusterRoleBinding) {
	keys := subject.indexKeys()

	var roleBindings []*rbacv1.RoleBinding
	if namespace != "" {
		for _, key := range keys {
			roleBindings = append(roleBindings, s.bindingsBySubject[namespace+"/"+key]...)
		}
	}

	var clusterRoleBindings []*rbacv1.ClusterRoleBinding
	for _, key := range keys {
		clusterRoleBindings = append(clusterRoleBindings, s.clusterBindingsBySubject[key]...)
	}

	// A binding can be reached through more than one key (e.g. a user key and
	// a group key); sort and deduplicate by name. Names are unique per scope.
	slices.SortFunc(roleBindings, func(a, b *rbacv1.RoleBinding) int {
		return strings.Compare(a.Name, b.Name)
	})
	roleBindings = slices.CompactFunc(roleBindings, func(a, b *rbacv1.RoleBinding) bool {
		return a.Name == b.Name
	})
	slices.SortFunc(clusterRoleBindings, func(a, b *rbacv1.ClusterRoleBinding) int {
		return strings.Compare(a.Name, b.Name)
	})
	clusterRoleBindings = slices.CompactFunc(clusterRoleBindings, func(a, b *rbacv1.ClusterRoleBinding) bool {
		return a.Name == b.Name
	})

	return roleBindings, clusterRoleBindings
}

// ResolveRole looks up the Role or ClusterRole a binding references. The
// namespace is used for Role references only. A missing role returns a
// *DanglingReferenceError, which callers must treat as "no grant from this
// binding" rather than a fatal condition.
func (s *Store) ResolveRole(kind, name, namespace string) (*ResolvedRole, error) {
	switch kind {
	case RoleKind:
		if role, ok := s.roles[namespace][name]; ok {
			return &ResolvedRole{Kind: RoleKind, Namespace: namespace, Name: name, Rules: role.Rules}, nil
		}
		return nil, &DanglingReferenceError{Kind: RoleKind, Name: name, Namespace: namespace}
	case ClusterRoleKind:
		if clusterRole, ok := s.clusterRoles[name]; ok {
			return &ResolvedRole{Kind: ClusterRoleKind, Name: name, Rules: clusterRole.Rules}, nil
		}
		return nil, &DanglingReferenceError{Kind: ClusterRoleKind, Name: name}
	default:
		return nil, &DanglingReferenceError{Kind: kind, Name: name, Namespace: namespace}
	}
}

// Namespaces returns the names of all declared namespaces, sorted.
func (s *Store) Namespaces() []string {
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ObjectCounts returns the number of stored objects per kind.
func (s *Store) ObjectCounts() map[string]int {
	counts := map[string]int{
		NamespaceKind:          len(s.namespaces),
		ClusterRoleKind:        len(s.clusterRoles),
		ClusterRoleBindingKind: len(s.clusterRoleBindings),
	}
	for _, roles := range s.roles {
		counts[RoleKind] += len(roles)
	}
	for _, bindings := range s.roleBindings {
		counts[RoleBindingKind] += len(bindings)
	}
	return counts
}

// buildIndexes populates the subject lookup maps and sorts every index slice
// by binding name so that evaluation order is deterministic.
func (s *Store) buildIndexes() {
	s.bindingsBySubject = make(map[string][]*rbacv1.RoleBinding)
	s.clusterBindingsBySubject = make(map[string][]*rbacv1.ClusterRoleBinding)

	for namespace, bindings := range s.roleBindings {
		for _, binding := range bindings {
			for _, subject := range binding.Subjects {
				key := namespace + "/" + helpers.SubjectKey(subject.Kind, subject.Name, subject.Namespace)
				if !slices.Contains(s.bindingsBySubject[key], binding) {
					s.bindingsBySubject[key] = append(s.bindingsBySubject[key], binding)
				}
			}
		}
	}
	for _, binding := range s.clusterRoleBindings {
		for _, subject := range binding.Subjects {
			key := helpers.SubjectKey(subject.Kind, subject.Name, subject.Namespace)
			if !slices.Contains(s.clusterBindingsBySubject[key], binding) {
				s.clusterBindingsBySubject[key] = append(s.clusterBindingsBySubject[key], binding)
			}
		}
	}

	for key := range s.bindingsBySubject {
		slices.SortFunc(s.bindingsBySubject[key], func(a, b *rbacv1.RoleBinding) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
	for key := range s.clusterBindingsBySubject {
		slices.SortFunc(s.clusterBindingsBySubject[key], func(a, b *rbacv1.ClusterRoleBinding) int {
			return strings.Compare(a.Name, b.Name)
		})
	}
}
