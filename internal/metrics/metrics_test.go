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

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

func TestObserveCall(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	timeout := &flowerrors.TimeoutError{Operation: "validate_workflow", Duration: time.Second}

	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{name: "success", err: nil, outcome: OutcomeOK},
		{name: "failure", err: errors.New("boom"), outcome: OutcomeError},
		{name: "timeout", err: timeout, outcome: OutcomeTimeout},
		{name: "wrapped timeout", err: flowerrors.Wrap(timeout, "calling"), outcome: OutcomeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(c.calls.WithLabelValues("validate_workflow", tt.outcome))
			c.ObserveCall("validate_workflow", 5*time.Millisecond, tt.err)
			after := testutil.ToFloat64(c.calls.WithLabelValues("validate_workflow", tt.outcome))
			if after != before+1 {
				t.Errorf("expected count to increment by 1, got before=%f, after=%f", before, after)
			}
		})
	}

	if n := testutil.CollectAndCount(c.callDuration); n != 1 {
		t.Errorf("expected one duration series, got %d", n)
	}
}

func TestRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordIssues("error", "structural", 3)
	c.RecordIssues("error", "structural", 0)
	c.RecordDiffOperation("addNode", true)
	c.RecordDiffOperation("addNode", false)
	c.RecordFix("expression-format", "high")
	c.RecordRateLimited("mcp")

	checks := []struct {
		name      string
		collector prometheus.Collector
		want      float64
	}{
		{"issues", c.issues.WithLabelValues("error", "structural"), 3},
		{"diff ok", c.diffOperations.WithLabelValues("addNode", OutcomeOK), 1},
		{"diff error", c.diffOperations.WithLabelValues("addNode", OutcomeError), 1},
		{"fixes", c.fixes.WithLabelValues("expression-format", "high"), 1},
		{"rate limited", c.rateLimited.WithLabelValues("mcp"), 1},
	}
	for _, check := range checks {
		if got := testutil.ToFloat64(check.collector); got != check.want {
			t.Errorf("%s: expected %f, got %f", check.name, check.want, got)
		}
	}
}

func TestRecordCatalogReload(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordCatalogReload(42, nil)
	c.RecordCatalogReload(0, errors.New("parse error"))

	if got := testutil.ToFloat64(c.catalogTypes); got != 42 {
		t.Errorf("expected catalog size 42 after failed reload, got %f", got)
	}
	if got := testutil.ToFloat64(c.catalogReloads.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("expected one failed reload, got %f", got)
	}

	c.SetCatalogSize(7)
	if got := testutil.ToFloat64(c.catalogTypes); got != 7 {
		t.Errorf("expected catalog size 7, got %f", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveCall("x", time.Millisecond, nil)
	c.RecordIssues("error", "structural", 1)
	c.RecordDiffOperation("addNode", true)
	c.RecordFix("expression-format", "high")
	c.RecordRateLimited("http")
	c.RecordCatalogReload(1, nil)
	c.SetCatalogSize(1)
}
