// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/telekom/rbac-evaluator/pkg/metrics"
)

// Provider holds the current policy Store and swaps it atomically on reload.
// Readers take a snapshot with Store and keep evaluating against it even
// while a reload replaces the current store, so a half-loaded policy set is
// never observable.
type Provider struct {
	log   logr.Logger
	paths []string
	store atomic.Pointer[Store]
}

// NewProvider returns a Provider that loads policy from the given files or
// directories. Call Load before the first Store.
func NewProvider(log logr.Logger, paths ...string) *Provider {
	return &Provider{log: log, paths: paths}
}

// Store returns the current immutable snapshot.
func (p *Provider) Store() *Store {
	return p.store.Load()
}

// Replace installs a new snapshot and updates the store object gauges.
func (p *Provider) Replace(store *Store) {
	p.store.Store(store)
	for kind, count := range store.ObjectCounts() {
		metrics.StoreObjects.WithLabelValues(kind).Set(float64(count))
	}
}

// Load reads the configured paths into a fresh Store and installs it. On
// failure the previous snapshot stays in place.
func (p *Provider) Load() error {
	store, err := LoadFiles(p.paths...)
	if err != nil {
		metrics.StoreReloadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("loading policy: %w", err)
	}
	p.Replace(store)
	metrics.StoreReloadsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	p.log.Info("policy store loaded", "paths", p.paths, "objects", store.ObjectCounts())
	return nil
}
