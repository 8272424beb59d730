// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines the Prometheus collectors flowsmith exports.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

const namespace = "flowsmith"

// Call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Collector holds every flowsmith collector. A nil *Collector records nothing,
// so callers do not need to check whether metrics are enabled.
type Collector struct {
	calls          *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	issues         *prometheus.CounterVec
	diffOperations *prometheus.CounterVec
	fixes          *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	catalogTypes   prometheus.Gauge
	catalogReloads *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of service calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Service call duration in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"operation"},
		),
		issues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_issues_total",
				Help:      "Validation issues reported, by severity and category",
			},
			[]string{"severity", "category"},
		),
		diffOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diff_operations_total",
				Help:      "Diff operations processed, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		fixes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fixes_total",
				Help:      "Fixes proposed, by fix type and confidence",
			},
			[]string{"type", "confidence"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Calls rejected by the rate limiter, by surface",
			},
			[]string{"surface"},
		),
		catalogTypes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_node_types",
				Help:      "Number of node types in the current catalog snapshot",
			},
		),
		catalogReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Catalog reload attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Outcome classifies a call error.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var timeout *flowerrors.TimeoutError
	if errors.As(err, &timeout) {
		return OutcomeTimeout
	}
	return OutcomeError
}

// ObserveCall records one service call.
func (c *Collector) ObserveCall(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.calls.WithLabelValues(operation, Outcome(err)).Inc()
	c.callDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordIssues adds n issues of one severity and category.
func (c *Collector) RecordIssues(severity, category string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.issues.WithLabelValues(severity, category).Add(float64(n))
}

// RecordDiffOperation records one diff operation.
func (c *Collector) RecordDiffOperation(opType string, applied bool) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if !applied {
		outcome = OutcomeError
	}
	c.diffOperations.WithLabelValues(opType, outcome).Inc()
}

// RecordFix records one proposed fix.
func (c *Collector) RecordFix(fixType, confidence string) {
	if c == nil {
		return
	}
	c.fixes.WithLabelValues(fixType, confidence).Inc()
}

// RecordRateLimited records a call rejected by a rate limiter.
func (c *Collector) RecordRateLimited(surface string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(surface).Inc()
}

// RecordCatalogReload records a catalog reload attempt and, on success, the
// new snapshot size.
func (c *Collector) RecordCatalogReload(size int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.catalogReloads.WithLabelValues(OutcomeError).Inc()
		return
	}
	c.catalogReloads.WithLabelValues(OutcomeOK).Inc()
	c.catalogTypes.Set(float64(size))
}

// SetCatalogSize sets the catalog size gauge.
func (c *Collector) SetCatalogSize(size int) {
	if c == nil {
		return
	}
	c.catalogTypes.Set(float64(size))
}
