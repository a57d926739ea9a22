// Package helpers provides utility functions for matching RBAC policy rules
// against request attributes, building deterministic subject keys, and parsing
// Kubernetes user names into typed subjects.
package helpers
