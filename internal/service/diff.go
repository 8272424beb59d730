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
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/diff"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
)

// DiffRequest is one batch of diff operations against a workflow.
type DiffRequest struct {
	Workflow     any               `json:"workflow"`
	Operations   any               `json:"operations"`
	ValidateOnly bool              `json:"validateOnly,omitempty"`
	Profile      validator.Profile `json:"profile,omitempty"`
}

// ApplyOperations applies a batch. Operation failures are reported in the
// result's Errors; the returned error is reserved for inputs that are not a
// workflow at all and for call-level failures such as timeouts.
func (s *Service) ApplyOperations(ctx context.Context, req DiffRequest) (*diff.Result, error) {
	mode := diff.ModeCommit
	if req.ValidateOnly {
		mode = diff.ModeValidateOnly
	}
	profile := req.Profile
	if profile == "" {
		profile = s.defaultProfile
	}
	attrs := []attribute.KeyValue{attribute.String("mode", string(mode))}

	return call(ctx, s, OpDiff, attrs, func(ctx context.Context, snap *catalog.Snapshot) (*diff.Result, error) {
		wf, err := decodeWorkflow(req.Workflow)
		if err != nil {
			return nil, err
		}

		ops, err := diff.DecodeOperations(req.Operations)
		if err != nil {
			var opErr *diff.OperationError
			if !errors.As(err, &opErr) {
				return nil, err
			}
			s.metrics.RecordDiffOperation("decode", false)
			res := &diff.Result{Mode: mode, Errors: []*diff.OperationError{opErr}}
			if mode == diff.ModeCommit {
				res.Workflow = wf
			}
			return res, nil
		}

		engine := diff.NewEngine(s.validator(snap)).
			WithLogger(s.logger).
			WithValidationOptions(validator.Options{Profile: profile}).
			WithIDGenerator(s.newID)
		res, _ := engine.Apply(wf, ops, mode)

		failed := -1
		if len(res.Errors) > 0 {
			failed = res.Errors[0].Index
		}
		for i, op := range ops {
			s.metrics.RecordDiffOperation(string(op.Type()), failed < 0 || i < failed)
		}
		if res.Validation != nil {
			s.recordIssues(ctx, OpDiff, res.Validation)
		}
		return res, nil
	})
}

// decodeWorkflow decodes raw and rejects data that is not a graph.
func decodeWorkflow(raw any) (*workflow.Workflow, error) {
	in := workflow.Decode(raw)
	if !in.OK() {
		return nil, &flowerrors.ValidationError{
			Field:      "workflow",
			Message:    fmt.Sprintf("workflow is malformed: %s", in.Malformed),
			Suggestion: "pass an object with nodes and connections",
		}
	}
	return in.Workflow, nil
}
