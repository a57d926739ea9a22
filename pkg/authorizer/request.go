// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package authorizer

import (
	"fmt"
	"strings"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-evaluator/pkg/policy"
)

// Request describes one authorization question: may this subject perform
// this verb on this resource. Namespace is empty for cluster-scoped
// resources. Exactly one of Resource and Path must be set; Path asks about a
// non-resource URL such as "/healthz" and is always cluster-scoped.
type Request struct {
	Subject   policy.Subject
	Namespace string
	APIGroup  string
	Resource  string
	// Name optionally narrows the request to a single resource instance,
	// matched against rule resourceNames.
	Name string
	Verb string
	Path string
}

// InvalidRequestError reports a structurally malformed request. No decision
// is produced for such requests.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// Validate checks the request shape before evaluation.
func (r Request) Validate() error {
	if r.Verb == "" {
		return &InvalidRequestError{Reason: "verb is required"}
	}
	if r.Resource == "" && r.Path == "" {
		return &InvalidRequestError{Reason: "resource or non-resource path is required"}
	}
	if r.Resource != "" && r.Path != "" {
		return &InvalidRequestError{Reason: "resource and non-resource path are mutually exclusive"}
	}
	if r.Path != "" {
		if !strings.HasPrefix(r.Path, "/") {
			return &InvalidRequestError{Reason: fmt.Sprintf("non-resource path %q must start with /", r.Path)}
		}
		if r.Namespace != "" {
			return &InvalidRequestError{Reason: "non-resource requests are cluster-scoped"}
		}
	}
	if err := r.Subject.Validate(); err != nil {
		return &InvalidRequestError{Reason: err.Error()}
	}
	return nil
}

// denyReason renders the default-deny explanation for this request.
func (r Request) denyReason() string {
	target := r.Resource
	if r.Path != "" {
		target = r.Path
	}
	var b strings.Builder
	fmt.Fprintf(&b, "no matching role binding grants %s on %s", r.Verb, target)
	if r.APIGroup != "" {
		fmt.Fprintf(&b, " in API group %q", r.APIGroup)
	}
	fmt.Fprintf(&b, " for %s", r.Subject)
	if r.Namespace != "" {
		fmt.Fprintf(&b, " in namespace %s", r.Namespace)
	}
	return b.String()
}

// ObjectRef identifies the binding or role behind a decision.
type ObjectRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace,omitempty"`
	Name      string `json:"name"`
}

func (r ObjectRef) String() string {
	if r.Namespace != "" {
		return fmt.Sprintf("%s %s/%s", r.Kind, r.Namespace, r.Name)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.Name)
}

// Decision is the outcome of evaluating a Request. When Allowed is true,
// Binding, Role and Rule reference the grant that matched; the choice among
// multiple matching grants is deterministic for a fixed store.
type Decision struct {
	Allowed bool               `json:"allowed"`
	Reason  string             `json:"reason"`
	Binding *ObjectRef         `json:"binding,omitempty"`
	Role    *ObjectRef         `json:"role,omitempty"`
	Rule    *rbacv1.PolicyRule `json:"rule,omitempty"`
}
