// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"

	rbacv1 "k8s.io/api/rbac/v1"

	"github.com/telekom/rbac-evaluator/pkg/helpers"
)

// Subject identifies the grantee of an authorization request: a user, a
// group, or a service account. Groups carries the authenticated group
// memberships of the requester; binding subjects of kind Group match when
// they name the subject itself or any entry of Groups.
type Subject struct {
	// Kind is one of rbacv1.UserKind, rbacv1.GroupKind or
	// rbacv1.ServiceAccountKind.
	Kind string
	Name string
	// Namespace is set for service accounts only.
	Namespace string
	Groups    []string
}

// UserSubject returns a Subject for a user name with optional group
// memberships.
func UserSubject(name string, groups ...string) Subject {
	return Subject{Kind: rbacv1.UserKind, Name: name, Groups: groups}
}

// GroupSubject returns a Subject for a group name.
func GroupSubject(name string) Subject {
	return Subject{Kind: rbacv1.GroupKind, Name: name}
}

// ServiceAccountSubject returns a Subject for a service account.
func ServiceAccountSubject(namespace, name string) Subject {
	return Subject{Kind: rbacv1.ServiceAccountKind, Namespace: namespace, Name: name}
}

// ParseUser maps an authenticated user name and its groups to a Subject.
// User names of the form "system:serviceaccount:<namespace>:<name>" become
// service account subjects; everything else is an opaque user name.
func ParseUser(user string, groups ...string) Subject {
	if namespace, name, ok := helpers.ParseServiceAccountUser(user); ok {
		return Subject{Kind: rbacv1.ServiceAccountKind, Namespace: namespace, Name: name, Groups: groups}
	}
	return Subject{Kind: rbacv1.UserKind, Name: user, Groups: groups}
}

// String returns a human-readable representation of the subject.
func (s Subject) String() string {
	if s.Kind == rbacv1.ServiceAccountKind {
		return fmt.Sprintf("ServiceAccount %s/%s", s.Namespace, s.Name)
	}
	return fmt.Sprintf("%s %s", s.Kind, s.Name)
}

// Validate checks the subject for structural problems.
func (s Subject) Validate() error {
	switch s.Kind {
	case rbacv1.UserKind, rbacv1.GroupKind:
		if s.Namespace != "" {
			return fmt.Errorf("subject of kind %s must not set a namespace", s.Kind)
		}
	case rbacv1.ServiceAccountKind:
		if s.Namespace == "" {
			return fmt.Errorf("service account subject %q requires a namespace", s.Name)
		}
	case "":
		return fmt.Errorf("subject kind is required")
	default:
		return fmt.Errorf("unknown subject kind %q", s.Kind)
	}
	if s.Name == "" {
		return fmt.Errorf("subject name is required")
	}
	return nil
}

// indexKeys returns the subject keys under which bindings granting to this
// subject are indexed: the subject itself plus one Group key per group
// membership.
func (s Subject) indexKeys() []string {
	keys := make([]string, 0, 1+len(s.Groups))
	keys = append(keys, helpers.SubjectKey(s.Kind, s.Name, s.Namespace))
	for _, group := range s.Groups {
		if s.Kind == rbacv1.GroupKind && group == s.Name {
			continue
		}
		keys = append(keys, helpers.SubjectKey(rbacv1.GroupKind, group, ""))
	}
	return keys
}
