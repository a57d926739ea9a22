// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/runtime"
	yamlutil "k8s.io/apimachinery/pkg/util/yaml"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
)

// Source is one named stream of policy documents, typically the contents of a
// manifest file. Multi-document YAML and JSON are both accepted.
type Source struct {
	Name string
	Data []byte
}

// Load parses policy documents into a new Store. The load is all-or-nothing:
// any malformed document, unknown kind, or duplicate name within a scope
// aborts with a *ParseError and nothing is committed.
func Load(sources ...Source) (*Store, error) {
	store := &Store{
		namespaces:          make(map[string]*corev1.Namespace),
		roles:               make(map[string]map[string]*rbacv1.Role),
		clusterRoles:        make(map[string]*rbacv1.ClusterRole),
		roleBindings:        make(map[string]map[string]*rbacv1.RoleBinding),
		clusterRoleBindings: make(map[string]*rbacv1.ClusterRoleBinding),
	}

	decoder := clientgoscheme.Codecs.UniversalDeserializer()

	for _, source := range sources {
		documents := yamlutil.NewYAMLOrJSONDecoder(bytes.NewReader(source.Data), 4096)
		for index := 0; ; index++ {
			var raw runtime.RawExtension
			err := documents.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			document := fmt.Sprintf("%s[%d]", source.Name, index)
			if err != nil {
				return nil, &ParseError{Document: document, Err: err}
			}
			data := bytes.TrimSpace(raw.Raw)
			if len(data) == 0 || bytes.Equal(data, []byte("null")) {
				continue
			}
			obj, gvk, err := decoder.Decode(data, nil, nil)
			if err != nil {
				if runtime.IsNotRegisteredError(err) {
					return nil, &ParseError{Document: document, Err: fmt.Errorf("unknown kind: %w", err)}
				}
				return nil, &ParseError{Document: document, Err: err}
			}
			if err := store.add(obj, gvk.GroupVersion().String()+" "+gvk.Kind); err != nil {
				return nil, &ParseError{Document: document, Err: err}
			}
		}
	}

	store.buildIndexes()
	return store, nil
}

// LoadFiles reads the given files, or all .yaml/.yml/.json files under the
// given directories, and loads them as one atomic policy set. Files are read
// concurrently; source order is preserved so error attribution stays
// deterministic.
func LoadFiles(paths ...string) (*Store, error) {
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", strings.Join(paths, ", "))
	}

	sources := make([]Source, len(files))
	var group errgroup.Group
	for i, path := range files {
		group.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			sources[i] = Source{Name: path, Data: data}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return Load(sources...)
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch filepath.Ext(entry) {
			case ".yaml", ".yml", ".json":
				files = append(files, entry)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// add validates one decoded object and inserts it into the store.
func (s *Store) add(obj runtime.Object, gvk string) error {
	switch o := obj.(type) {
	case *corev1.Namespace:
		if o.Name == "" {
			return fmt.Errorf("namespace name is required")
		}
		if _, exists := s.namespaces[o.Name]; exists {
			return fmt.Errorf("duplicate Namespace %q", o.Name)
		}
		s.namespaces[o.Name] = o

	case *rbacv1.Role:
		if err := validateScopedName(RoleKind, o.Name, o.Namespace); err != nil {
			return err
		}
		if err := validateRules(RoleKind, o.Name, o.Rules); err != nil {
			return err
		}
		if _, exists := s.roles[o.Namespace][o.Name]; exists {
			return fmt.Errorf("duplicate Role %q in namespace %q", o.Name, o.Namespace)
		}
		if s.roles[o.Namespace] == nil {
			s.roles[o.Namespace] = make(map[string]*rbacv1.Role)
		}
		s.roles[o.Namespace][o.Name] = o

	case *rbacv1.ClusterRole:
		if o.Name == "" {
			return fmt.Errorf("clusterrole name is required")
		}
		if err := validateRules(ClusterRoleKind, o.Name, o.Rules); err != nil {
			return err
		}
		if _, exists := s.clusterRoles[o.Name]; exists {
			return fmt.Errorf("duplicate ClusterRole %q", o.Name)
		}
		s.clusterRoles[o.Name] = o

	case *rbacv1.RoleBinding:
		if err := validateScopedName(RoleBindingKind, o.Name, o.Namespace); err != nil {
			return err
		}
		if o.RoleRef.Kind != RoleKind && o.RoleRef.Kind != ClusterRoleKind {
			return fmt.Errorf("rolebinding %q roleRef kind must be Role or ClusterRole, got %q", o.Name, o.RoleRef.Kind)
		}
		if err := validateRoleRef(RoleBindingKind, o.Name, o.RoleRef); err != nil {
			return err
		}
		if err := validateSubjects(RoleBindingKind, o.Name, o.Subjects); err != nil {
			return err
		}
		if _, exists := s.roleBindings[o.Namespace][o.Name]; exists {
			return fmt.Errorf("duplicate RoleBinding %q in namespace %q", o.Name, o.Namespace)
		}
		if s.roleBindings[o.Namespace] == nil {
			s.roleBindings[o.Namespace] = make(map[string]*rbacv1.RoleBinding)
		}
		s.roleBindings[o.Namespace][o.Name] = o

	case *rbacv1.ClusterRoleBinding:
		if o.Name == "" {
			return fmt.Errorf("clusterrolebinding name is required")
		}
		if o.RoleRef.Kind != ClusterRoleKind {
			return fmt.Errorf("clusterrolebinding %q roleRef kind must be ClusterRole, got %q", o.Name, o.RoleRef.Kind)
		}
		if err := validateRoleRef(ClusterRoleBindingKind, o.Name, o.RoleRef); err != nil {
			return err
		}
		if err := validateSubjects(ClusterRoleBindingKind, o.Name, o.Subjects); err != nil {
			return err
		}
		if _, exists := s.clusterRoleBindings[o.Name]; exists {
			return fmt.Errorf("duplicate ClusterRoleBinding %q", o.Name)
		}
		s.clusterRoleBindings[o.Name] = o

	default:
		return fmt.Errorf("unsupported kind %s", gvk)
	}
	return nil
}

func validateScopedName(kind, name, namespace string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", strings.ToLower(kind))
	}
	if namespace == "" {
		return fmt.Errorf("%s %q requires a namespace", strings.ToLower(kind), name)
	}
	return nil
}

func validateRoleRef(kind, name string, ref rbacv1.RoleRef) error {
	if ref.Name == "" {
		return fmt.Errorf("%s %q roleRef name is required", strings.ToLower(kind), name)
	}
	if ref.APIGroup != "" && ref.APIGroup != rbacv1.GroupName {
		return fmt.Errorf("%s %q roleRef apiGroup must be %q, got %q", strings.ToLower(kind), name, rbacv1.GroupName, ref.APIGroup)
	}
	return nil
}

func validateSubjects(kind, name string, subjects []rbacv1.Subject) error {
	for _, subject := range subjects {
		switch subject.Kind {
		case rbacv1.UserKind, rbacv1.GroupKind:
			if subject.Namespace != "" {
				return fmt.Errorf("%s %q subject %q of kind %s must not set a namespace", strings.ToLower(kind), name, subject.Name, subject.Kind)
			}
		case rbacv1.ServiceAccountKind:
			if subject.Namespace == "" {
				return fmt.Errorf("%s %q service account subject %q requires a namespace", strings.ToLower(kind), name, subject.Name)
			}
		default:
			return fmt.Errorf("%s %q has unknown subject kind %q", strings.ToLower(kind), name, subject.Kind)
		}
		if subject.Name == "" {
			return fmt.Errorf("%s %q has a subject without a name", strings.ToLower(kind), name)
		}
	}
	return nil
}

func validateRules(kind, name string, rules []rbacv1.PolicyRule) error {
	for i, rule := range rules {
		if len(rule.Verbs) == 0 {
			return fmt.Errorf("%s %q rule %d must specify verbs", strings.ToLower(kind), name, i)
		}
		if len(rule.Resources) == 0 && len(rule.NonResourceURLs) == 0 {
			return fmt.Errorf("%s %q rule %d must specify resources or nonResourceURLs", strings.ToLower(kind), name, i)
		}
		if kind == RoleKind && len(rule.NonResourceURLs) > 0 {
			return fmt.Errorf("role %q rule %d: nonResourceURLs are only valid in ClusterRoles", name, i)
		}
	}
	return nil
}
