// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package policy

import "fmt"

// ParseError reports a malformed policy document. A load that returns a
// ParseError commits nothing; the store is all-or-nothing.
type ParseError struct {
	// Document identifies the offending document, e.g. "roles.yaml[2]".
	Document string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Document, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DanglingReferenceError reports a binding roleRef pointing at a role that is
// not in the store. Evaluation tolerates it as "this binding grants nothing";
// it is never a fatal error.
type DanglingReferenceError struct {
	// Kind is the referenced role kind, "Role" or "ClusterRole".
	Kind string
	Name string
	// Namespace is set for Role references only.
	Namespace string
}

func (e *DanglingReferenceError) Error() string {
	if e.Kind == RoleKind {
		return fmt.Sprintf("referenced Role %s/%s does not exist", e.Namespace, e.Name)
	}
	return fmt.Sprintf("referenced ClusterRole %s does not exist", e.Name)
}
