// Package webhook implements an HTTP SubjectAccessReview endpoint that
// answers authorization.k8s.io/v1 review requests against the offline policy
// store, mirroring the protocol of a Kubernetes authorization webhook.
package webhook
