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

// Package service is the host layer between the transports (MCP, HTTP, CLI)
// and the core packages. Each call takes one catalog snapshot, runs under a
// wall-clock budget and is recorded in metrics and traces.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tombee/flowsmith/internal/jq"
	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/internal/metrics"
	"github.com/tombee/flowsmith/internal/tracing"
	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/catalog"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
)

// DefaultCallTimeout bounds a call when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// Service exposes every flowsmith operation. It is safe for concurrent use.
type Service struct {
	catalogs          catalog.Provider
	logger            *slog.Logger
	metrics           *metrics.Collector
	tracer            trace.Tracer
	projector         *jq.Projector
	callTimeout       time.Duration
	defaultProfile    validator.Profile
	defaultConfidence autofix.Confidence
	newID             func() string
	started           time.Time
}

// New creates a service reading node types from catalogs.
func New(catalogs catalog.Provider) *Service {
	return &Service{
		catalogs:          catalogs,
		logger:            slog.Default(),
		tracer:            noop.NewTracerProvider().Tracer(tracing.ScopeName),
		projector:         jq.NewProjector(0, 0),
		callTimeout:       DefaultCallTimeout,
		defaultProfile:    validator.DefaultProfile,
		defaultConfidence: autofix.Medium,
		newID:             uuid.NewString,
		started:           time.Now(),
	}
}

// WithLogger sets a custom logger for the service.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithMetrics records calls in c. A nil collector disables metrics.
func (s *Service) WithMetrics(c *metrics.Collector) *Service {
	s.metrics = c
	return s
}

// WithTracer records a span per call.
func (s *Service) WithTracer(t trace.Tracer) *Service {
	s.tracer = t
	return s
}

// WithCallTimeout sets the wall-clock budget of each call.
func (s *Service) WithCallTimeout(d time.Duration) *Service {
	if d > 0 {
		s.callTimeout = d
	}
	return s
}

// WithDefaults sets the validation profile and fix confidence used when a
// request does not name them.
func (s *Service) WithDefaults(profile validator.Profile, confidence autofix.Confidence) *Service {
	if profile != "" {
		s.defaultProfile = profile
	}
	if confidence != 0 {
		s.defaultConfidence = confidence
	}
	return s
}

// WithIDGenerator sets the generator for node ids and webhook paths.
func (s *Service) WithIDGenerator(fn func() string) *Service {
	s.newID = fn
	return s
}

// Snapshot returns the catalog snapshot a new call would use.
func (s *Service) Snapshot() *catalog.Snapshot {
	return s.catalogs.Current()
}

// call runs fn against one catalog snapshot under the call timeout. The core
// packages are synchronous, so fn runs on its own goroutine and is abandoned
// when the budget expires; its result is discarded.
func call[T any](ctx context.Context, s *Service, op string, attrs []attribute.KeyValue, fn func(ctx context.Context, snap *catalog.Snapshot) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, s.tracer, op, attrs...)

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	snap := s.catalogs.Current()
	go func() {
		v, err := fn(ctx, snap)
		done <- outcome{v, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
		if errors.Is(out.err, context.DeadlineExceeded) {
			out.err = &flowerrors.TimeoutError{Operation: op, Duration: s.callTimeout, Cause: out.err}
		}
	}

	elapsed := time.Since(start)
	s.metrics.ObserveCall(op, elapsed, out.err)
	tracing.EndSpan(span, out.err)
	if out.err != nil {
		s.logger.DebugContext(ctx, "service call failed",
			slog.String(log.OperationKey, op),
			slog.Int64(log.DurationKey, elapsed.Milliseconds()),
			log.Error(out.err))
	}
	return out.value, out.err
}

// Health reports liveness and the current catalog size.
type Health struct {
	Status    string  `json:"status"`
	NodeTypes int     `json:"nodeTypes"`
	Uptime    float64 `json:"uptimeSeconds"`
}

// Health returns the service health.
func (s *Service) Health(ctx context.Context) Health {
	snap := s.catalogs.Current()
	h := Health{Status: "ok", Uptime: time.Since(s.started).Seconds()}
	if snap == nil {
		h.Status = "degraded"
		return h
	}
	h.NodeTypes = snap.Len()
	return h
}
