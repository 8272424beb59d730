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
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/validator"
)

// Operation names used for metrics, spans and logs.
const (
	OpValidate            = "validate_workflow"
	OpValidateConnections = "validate_workflow_connections"
	OpValidateExpressions = "validate_workflow_expressions"
	OpDiff                = "update_partial_workflow"
	OpAutofix             = "autofix_workflow"
	OpSearchNodes         = "search_nodes"
	OpNodeInfo            = "get_node_info"
	OpListTemplates       = "list_templates"
	OpGetTemplate         = "get_template"
)

// ValidateWorkflow validates raw with the requested dimensions. An empty
// profile selects the configured default.
func (s *Service) ValidateWorkflow(ctx context.Context, raw any, opts validator.Options) (validator.Result, error) {
	if opts.Profile == "" {
		opts.Profile = s.defaultProfile
	}
	attrs := []attribute.KeyValue{attribute.String("profile", string(opts.Profile))}
	return call(ctx, s, OpValidate, attrs, func(ctx context.Context, snap *catalog.Snapshot) (validator.Result, error) {
		res := s.validator(snap).ValidateWorkflow(raw, opts)
		s.recordIssues(ctx, OpValidate, &res)
		return res, nil
	})
}

// ValidateConnections checks only the connection graph of raw.
func (s *Service) ValidateConnections(ctx context.Context, raw any) (validator.Result, error) {
	return call(ctx, s, OpValidateConnections, nil, func(ctx context.Context, snap *catalog.Snapshot) (validator.Result, error) {
		res := s.validator(snap).ValidateConnectionsOnly(raw)
		s.recordIssues(ctx, OpValidateConnections, &res)
		return res, nil
	})
}

// ValidateExpressions checks only the expressions of raw.
func (s *Service) ValidateExpressions(ctx context.Context, raw any) (validator.Result, error) {
	return call(ctx, s, OpValidateExpressions, nil, func(ctx context.Context, snap *catalog.Snapshot) (validator.Result, error) {
		res := s.validator(snap).ValidateExpressionsOnly(raw)
		s.recordIssues(ctx, OpValidateExpressions, &res)
		return res, nil
	})
}

func (s *Service) validator(snap *catalog.Snapshot) *validator.Validator {
	return validator.New(snap).WithLogger(s.logger)
}

func (s *Service) recordIssues(ctx context.Context, op string, res *validator.Result) {
	for _, is := range res.Errors {
		s.metrics.RecordIssues(string(is.Severity), string(is.Category), 1)
	}
	for _, is := range res.Warnings {
		s.metrics.RecordIssues(string(is.Severity), string(is.Category), 1)
	}
	log.Trace(ctx, s.logger, "validation finished",
		slog.String(log.ToolKey, op),
		slog.Bool("valid", res.Valid),
		slog.Int("errors", len(res.Errors)),
		slog.Int("warnings", len(res.Warnings)),
		slog.Int(log.NodesKey, res.Statistics.TotalNodes))
}
