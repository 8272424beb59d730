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

package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/diff"
	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
	"github.com/tombee/flowsmith/pkg/workflow/expression"
)

// FixRequest asks for fixes to a workflow.
type FixRequest struct {
	Workflow any               `json:"workflow"`
	Options  autofix.Options   `json:"options"`
	Profile  validator.Profile `json:"profile,omitempty"`
	// Apply commits the fixes and returns the edited workflow.
	Apply bool `json:"apply,omitempty"`
}

// FixResult is the fix preview and, when applied, the edited workflow.
type FixResult struct {
	*autofix.Result
	Applied    bool               `json:"applied"`
	Workflow   *workflow.Workflow `json:"workflow,omitempty"`
	Validation *validator.Result  `json:"validation,omitempty"`
	// Errors holds the failure of the first chunk that could not be applied.
	Errors []*diff.OperationError `json:"errors,omitempty"`
}

// GenerateFixes validates the workflow, scans its expressions and proposes
// fixes. With Apply set the operations are committed chunk by chunk and the
// result is validated again.
func (s *Service) GenerateFixes(ctx context.Context, req FixRequest) (*FixResult, error) {
	if req.Options.ConfidenceThreshold == 0 {
		req.Options.ConfidenceThreshold = s.defaultConfidence
	}
	profile := req.Profile
	if profile == "" {
		profile = s.defaultProfile
	}
	attrs := []attribute.KeyValue{
		attribute.String("confidence", req.Options.ConfidenceThreshold.String()),
		attribute.Bool("apply", req.Apply),
	}

	return call(ctx, s, OpAutofix, attrs, func(ctx context.Context, snap *catalog.Snapshot) (*FixResult, error) {
		wf, err := decodeWorkflow(req.Workflow)
		if err != nil {
			return nil, err
		}

		v := s.validator(snap)
		opts := validator.Options{Profile: profile}
		res := v.ValidateWorkflow(wf, opts)
		fixer := autofix.New(snap).WithLogger(s.logger).WithIDGenerator(s.newID)
		fixes := fixer.Generate(wf, &res, expression.ScanWorkflow(wf), req.Options)
		for _, f := range fixes.Fixes {
			s.metrics.RecordFix(string(f.Type), f.Confidence.String())
		}

		out := &FixResult{Result: fixes}
		if !req.Apply || len(fixes.Operations) == 0 {
			return out, nil
		}

		engine := diff.NewEngine(v).WithLogger(s.logger).WithValidationOptions(opts).WithIDGenerator(s.newID)
		current := wf
		for _, chunk := range diff.Chunk(fixes.Operations) {
			applied, err := engine.Apply(current, chunk, diff.ModeCommit)
			if err != nil {
				out.Errors = applied.Errors
				return out, nil
			}
			current = applied.Workflow
			out.Validation = applied.Validation
		}
		out.Applied = true
		out.Workflow = current
		return out, nil
	})
}
