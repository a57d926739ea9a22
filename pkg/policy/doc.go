// Package policy loads declarative RBAC policy documents (Namespaces, Roles,
// ClusterRoles, RoleBindings, ClusterRoleBindings) into an immutable,
// subject-indexed store that answers "which bindings apply to this subject in
// this namespace" in constant time. A Provider holds the current store and
// swaps it atomically on reload so concurrent readers always see a consistent
// snapshot.
package policy
