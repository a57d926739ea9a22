// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	authzv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/telekom/rbac-evaluator/pkg/authorizer"
	"github.com/telekom/rbac-evaluator/pkg/metrics"
	"github.com/telekom/rbac-evaluator/pkg/policy"
	"github.com/telekom/rbac-evaluator/pkg/tracing"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
// This prevents denial-of-service attacks via oversized request bodies.
const maxRequestBodySize = 1 << 20 // 1MB

// Handler serves SubjectAccessReview requests against the current policy
// store snapshot. Each request evaluates against the snapshot taken at its
// start, so reloads never expose a half-loaded policy set.
type Handler struct {
	Provider *policy.Provider
	Log      logr.Logger
	// Limiter optionally caps the request rate; nil disables limiting.
	Limiter *rate.Limiter
	// Tracer optionally records a span per review; nil disables tracing.
	Tracer trace.Tracer
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow() {
		metrics.RateLimitedTotal.Inc()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	// Limit request body size to prevent OOM from oversized payloads
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	var sar authzv1.SubjectAccessReview
	if err := json.NewDecoder(r.Body).Decode(&sar); err != nil {
		h.Log.Error(err, "failed to decode SubjectAccessReview request")
		metrics.DecisionsTotal.WithLabelValues(metrics.DecisionError, metrics.BindingNone).Inc()
		metrics.DecisionDuration.WithLabelValues(metrics.DecisionError).Observe(time.Since(start).Seconds())
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req, ok := reviewToRequest(&sar)
	if h.Tracer != nil {
		var span trace.Span
		ctx, span = h.Tracer.Start(ctx, "SubjectAccessReview")
		span.SetAttributes(
			tracing.AttrUser.String(sar.Spec.User),
			tracing.AttrNamespace.String(req.Namespace),
			tracing.AttrVerb.String(req.Verb),
			tracing.AttrAPIGroup.String(req.APIGroup),
			tracing.AttrResource.String(req.Resource),
			tracing.AttrPath.String(req.Path),
		)
		defer span.End()
	}

	status := authzv1.SubjectAccessReviewStatus{}
	decisionLabel := metrics.DecisionDenied
	bindingLabel := metrics.BindingNone

	switch {
	case !ok:
		status.EvaluationError = "review has neither resource nor non-resource attributes"
		status.Reason = "Access denied: malformed review"
		decisionLabel = metrics.DecisionError
	default:
		eval := authorizer.New(h.Provider.Store(), h.Log)
		decision, err := eval.Evaluate(ctx, req)
		var invalid *authorizer.InvalidRequestError
		switch {
		case errors.As(err, &invalid):
			status.EvaluationError = invalid.Error()
			status.Reason = "Access denied: " + invalid.Reason
			decisionLabel = metrics.DecisionError
		case err != nil:
			h.Log.Error(err, "failed to evaluate SubjectAccessReview")
			metrics.DecisionsTotal.WithLabelValues(metrics.DecisionError, metrics.BindingNone).Inc()
			metrics.DecisionDuration.WithLabelValues(metrics.DecisionError).Observe(time.Since(start).Seconds())
			http.Error(w, "internal evaluation error", http.StatusInternalServerError)
			return
		default:
			status.Allowed = decision.Allowed
			status.Reason = decision.Reason
			if decision.Allowed {
				decisionLabel = metrics.DecisionAllowed
				bindingLabel = decision.Binding.Name
			}
		}
	}

	metrics.DecisionsTotal.WithLabelValues(decisionLabel, bindingLabel).Inc()
	metrics.DecisionDuration.WithLabelValues(decisionLabel).Observe(time.Since(start).Seconds())

	response := authzv1.SubjectAccessReview{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "authorization.k8s.io/v1",
			Kind:       "SubjectAccessReview",
		},
		Status: status,
	}

	h.Log.V(1).Info("SubjectAccessReview decision",
		"user", sar.Spec.User, "allowed", status.Allowed, "reason", status.Reason)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.Log.Error(err, "failed to encode SubjectAccessReview response")
		http.Error(w, "internal evaluation error", http.StatusInternalServerError)
	}
}

// reviewToRequest maps the review spec onto an evaluator request. The second
// return value is false when the review carries neither resource nor
// non-resource attributes.
func reviewToRequest(sar *authzv1.SubjectAccessReview) (authorizer.Request, bool) {
	subject := policy.ParseUser(sar.Spec.User, sar.Spec.Groups...)
	switch {
	case sar.Spec.ResourceAttributes != nil:
		attr := sar.Spec.ResourceAttributes
		resource := attr.Resource
		if attr.Subresource != "" {
			resource = attr.Resource + "/" + attr.Subresource
		}
		return authorizer.Request{
			Subject:   subject,
			Namespace: attr.Namespace,
			APIGroup:  attr.Group,
			Resource:  resource,
			Name:      attr.Name,
			Verb:      attr.Verb,
		}, true
	case sar.Spec.NonResourceAttributes != nil:
		attr := sar.Spec.NonResourceAttributes
		return authorizer.Request{
			Subject: subject,
			Verb:    attr.Verb,
			Path:    attr.Path,
		}, true
	default:
		return authorizer.Request{}, false
	}
}
