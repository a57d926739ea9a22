/*
Copyright © 2026 Deutsche Telekom AG.
*/

package authorizer_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	"github.com/telekom/rbac-evaluator/pkg/authorizer"
	"github.com/telekom/rbac-evaluator/pkg/policy"
)

// basePolicy is a two-namespace cross-access policy: the default service
// account of each namespace reads pods in the other one, user "test" reads
// pods in nginx, plus cluster-scoped roles exercising wildcards, groups,
// resource names, non-resource URLs, and a dangling role reference.
const basePolicy = `apiVersion: v1
kind: Namespace
metadata:
  name: test
---
apiVersion: v1
kind: Namespace
metadata:
  name: nginx
---
apiVersion: rbac.authorization.k8s.io/v1
kind: Role
metadata:
  name: pod-reader
  namespace: test
rules:
- apiGroups: [""]
  resources: ["pods"]
  verbs: ["get", "list", "watch"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: Role
metadata:
  name: pod-reader
  namespace: nginx
rules:
- apiGroups: [""]
  resources: ["pods"]
  verbs: ["get", "list", "watch"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: read-pods
  namespace: test
subjects:
- kind: ServiceAccount
  name: default
  namespace: nginx
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: Role
  name: pod-reader
---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: read-pods
  namespace: nginx
subjects:
- kind: ServiceAccount
  name: default
  namespace: test
- apiGroup: rbac.authorization.k8s.io
  kind: User
  name: test
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: Role
  name: pod-reader
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: secret-reader
rules:
- apiGroups: [""]
  resources: ["secrets"]
  verbs: ["get"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: read-secrets
  namespace: test
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: User
  name: secret-admin
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: secret-reader
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: superuser
rules:
- apiGroups: ["*"]
  resources: ["*"]
  verbs: ["*"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRoleBinding
metadata:
  name: masters
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: Group
  name: system:masters
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: superuser
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: config-reader
rules:
- apiGroups: [""]
  resources: ["configmaps"]
  resourceNames: ["app-config"]
  verbs: ["get"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRoleBinding
metadata:
  name: config-readers
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: User
  name: config-bot
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: config-reader
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: health-checker
rules:
- nonResourceURLs: ["/healthz", "/healthz/*"]
  verbs: ["get"]
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRoleBinding
metadata:
  name: health-checkers
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: Group
  name: ops
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: ClusterRole
  name: health-checker
---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: broken-ref
  namespace: test
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: User
  name: ghost
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: Role
  name: missing-role
`

var _ = Describe("Authorizer", func() {
	var (
		ctx   context.Context
		store *policy.Store
		eval  *authorizer.Authorizer
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = policy.Load(policy.Source{Name: "policy.yaml", Data: []byte(basePolicy)})
		Expect(err).NotTo(HaveOccurred())
		eval = authorizer.New(store, logr.Discard())
	})

	evaluate := func(req authorizer.Request) authorizer.Decision {
		decision, err := eval.Evaluate(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		return decision
	}

	Describe("namespace-scoped grants", func() {
		It("allows the foreign service account bound in the target namespace", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.ServiceAccountSubject("test", "default"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "get",
			})
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.Binding.Name).To(Equal("read-pods"))
			Expect(decision.Binding.Namespace).To(Equal("nginx"))
			Expect(decision.Role.Name).To(Equal("pod-reader"))
			Expect(decision.Rule).NotTo(BeNil())
		})

		It("denies a user bound only in another namespace", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "test",
				Resource:  "pods",
				Verb:      "get",
			})
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Reason).To(ContainSubstring("no matching role binding grants get on pods"))
			Expect(decision.Reason).To(ContainSubstring("User test"))
			Expect(decision.Reason).To(ContainSubstring("namespace test"))
		})

		It("allows the user in the namespace that binds it", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "get",
			})
			Expect(decision.Allowed).To(BeTrue())
		})

		It("denies verbs the rule does not list", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "delete",
			})
			Expect(decision.Allowed).To(BeFalse())
		})
	})

	Describe("a RoleBinding referencing a ClusterRole", func() {
		It("grants inside the binding's namespace", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("secret-admin"),
				Namespace: "test",
				Resource:  "secrets",
				Verb:      "get",
			})
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.Role.Kind).To(Equal(policy.ClusterRoleKind))
			Expect(decision.Binding.Kind).To(Equal(policy.RoleBindingKind))
		})

		It("never grants outside the binding's namespace", func() {
			for _, namespace := range []string{"nginx", "kube-system", ""} {
				decision := evaluate(authorizer.Request{
					Subject:   policy.UserSubject("secret-admin"),
					Namespace: namespace,
					Resource:  "secrets",
					Verb:      "get",
				})
				Expect(decision.Allowed).To(BeFalse(), "namespace %q", namespace)
			}
		})
	})

	Describe("ClusterRoleBindings", func() {
		It("grant in every namespace and at cluster scope", func() {
			subject := policy.UserSubject("root", "system:masters")
			for _, namespace := range []string{"test", "nginx", "never-declared", ""} {
				decision := evaluate(authorizer.Request{
					Subject:   subject,
					Namespace: namespace,
					Resource:  "deployments",
					APIGroup:  "apps",
					Verb:      "delete",
				})
				Expect(decision.Allowed).To(BeTrue(), "namespace %q", namespace)
				Expect(decision.Binding.Kind).To(Equal(policy.ClusterRoleBindingKind))
			}
		})

		It("match group subjects against the subject's memberships", func() {
			decision := evaluate(authorizer.Request{
				Subject:  policy.UserSubject("anyone", "system:masters"),
				Resource: "nodes",
				Verb:     "list",
			})
			Expect(decision.Allowed).To(BeTrue())

			decision = evaluate(authorizer.Request{
				Subject:  policy.UserSubject("anyone"),
				Resource: "nodes",
				Verb:     "list",
			})
			Expect(decision.Allowed).To(BeFalse())
		})
	})

	Describe("wildcard rules", func() {
		It("match any verb, resource, and API group", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.GroupSubject("system:masters"),
				Namespace: "test",
				APIGroup:  "batch",
				Resource:  "cronjobs",
				Verb:      "deletecollection",
			})
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.Role.Name).To(Equal("superuser"))
		})
	})

	Describe("resource names", func() {
		It("restrict the grant to the listed instances", func() {
			allowed := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("config-bot"),
				Namespace: "test",
				Resource:  "configmaps",
				Name:      "app-config",
				Verb:      "get",
			})
			Expect(allowed.Allowed).To(BeTrue())

			denied := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("config-bot"),
				Namespace: "test",
				Resource:  "configmaps",
				Name:      "other-config",
				Verb:      "get",
			})
			Expect(denied.Allowed).To(BeFalse())
		})
	})

	Describe("non-resource paths", func() {
		It("match exact paths and trailing-wildcard prefixes", func() {
			subject := policy.UserSubject("probe", "ops")
			Expect(evaluate(authorizer.Request{Subject: subject, Verb: "get", Path: "/healthz"}).Allowed).To(BeTrue())
			Expect(evaluate(authorizer.Request{Subject: subject, Verb: "get", Path: "/healthz/etcd"}).Allowed).To(BeTrue())
			Expect(evaluate(authorizer.Request{Subject: subject, Verb: "get", Path: "/metrics"}).Allowed).To(BeFalse())
			Expect(evaluate(authorizer.Request{Subject: subject, Verb: "post", Path: "/healthz"}).Allowed).To(BeFalse())
		})
	})

	Describe("dangling role references", func() {
		It("contribute no grants instead of failing", func() {
			decision := evaluate(authorizer.Request{
				Subject:   policy.UserSubject("ghost"),
				Namespace: "test",
				Resource:  "pods",
				Verb:      "get",
			})
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Reason).To(ContainSubstring("no matching role binding grants"))
		})
	})

	Describe("invalid requests", func() {
		It("reject an empty verb", func() {
			_, err := eval.Evaluate(ctx, authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "test",
				Resource:  "pods",
			})
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
			Expect(err.Error()).To(ContainSubstring("verb is required"))
		})

		It("reject a request without resource or path", func() {
			_, err := eval.Evaluate(ctx, authorizer.Request{
				Subject: policy.UserSubject("test"),
				Verb:    "get",
			})
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
		})

		It("reject a request with both resource and path", func() {
			_, err := eval.Evaluate(ctx, authorizer.Request{
				Subject:  policy.UserSubject("test"),
				Verb:     "get",
				Resource: "pods",
				Path:     "/healthz",
			})
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
		})

		It("reject a namespaced non-resource request", func() {
			_, err := eval.Evaluate(ctx, authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "test",
				Verb:      "get",
				Path:      "/healthz",
			})
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
		})

		It("reject a malformed subject", func() {
			_, err := eval.Evaluate(ctx, authorizer.Request{
				Subject:  policy.Subject{Kind: "Robot", Name: "r2d2"},
				Verb:     "get",
				Resource: "pods",
			})
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
		})
	})

	Describe("determinism", func() {
		It("returns identical decisions for repeated evaluations", func() {
			req := authorizer.Request{
				Subject:   policy.ServiceAccountSubject("test", "default"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "get",
			}
			first := evaluate(req)
			for range 10 {
				Expect(evaluate(req)).To(Equal(first))
			}
		})

		It("reports the lexicographically first matching binding", func() {
			doubled := basePolicy + `---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: also-read-pods
  namespace: nginx
subjects:
- apiGroup: rbac.authorization.k8s.io
  kind: User
  name: test
roleRef:
  apiGroup: rbac.authorization.k8s.io
  kind: Role
  name: pod-reader
`
			doubledStore, err := policy.Load(policy.Source{Name: "policy.yaml", Data: []byte(doubled)})
			Expect(err).NotTo(HaveOccurred())
			doubledEval := authorizer.New(doubledStore, logr.Discard())

			decision, err := doubledEval.Evaluate(ctx, authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "get",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.Binding.Name).To(Equal("also-read-pods"))
		})
	})

	Describe("concurrent evaluation", func() {
		It("is safe against a shared store", func() {
			req := authorizer.Request{
				Subject:   policy.UserSubject("test"),
				Namespace: "nginx",
				Resource:  "pods",
				Verb:      "get",
			}
			var wg sync.WaitGroup
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					decision, err := eval.Evaluate(ctx, req)
					Expect(err).NotTo(HaveOccurred())
					Expect(decision.Allowed).To(BeTrue())
				}()
			}
			wg.Wait()
		})
	})

	Describe("CanI", func() {
		It("returns allowed with the reason", func() {
			allowed, reason, err := eval.CanI(ctx, policy.UserSubject("test"), "get", "pods", "nginx", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeTrue())
			Expect(reason).To(ContainSubstring("Access granted by RoleBinding nginx/read-pods"))
		})

		It("returns the deny reason", func() {
			allowed, reason, err := eval.CanI(ctx, policy.UserSubject("test"), "get", "pods", "test", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(allowed).To(BeFalse())
			Expect(reason).To(ContainSubstring("no matching role binding grants"))
		})

		It("propagates invalid requests", func() {
			_, _, err := eval.CanI(ctx, policy.UserSubject("test"), "", "pods", "test", "")
			var invalid *authorizer.InvalidRequestError
			Expect(errors.As(err, &invalid)).To(BeTrue(), "got %v", err)
		})
	})
})
