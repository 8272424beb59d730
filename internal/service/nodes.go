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
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/flowsmith/internal/jq"
	"github.com/tombee/flowsmith/pkg/catalog"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

// DefaultSearchLimit caps node search results when no limit is given.
const DefaultSearchLimit = 20

// NodeSummary is one node search hit.
type NodeSummary struct {
	Type        string  `json:"type"`
	DisplayName string  `json:"displayName"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Latest      float64 `json:"latestVersion,omitempty"`
	Trigger     bool    `json:"trigger,omitempty"`
	ToolCapable bool    `json:"toolCapable,omitempty"`
}

// Detail selects how much of a node type NodeInfo returns.
type Detail string

const (
	DetailEssentials Detail = "essentials"
	DetailFull       Detail = "full"
)

// NodeInfoRequest names a node type and an optional jq filter applied after
// the detail projection.
type NodeInfoRequest struct {
	Type   string `json:"type"`
	Detail Detail `json:"detail,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// SearchNodes finds node types by name, display name or description.
func (s *Service) SearchNodes(ctx context.Context, query string, limit int) ([]NodeSummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &flowerrors.ValidationError{Field: "query", Message: "query is required"}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	attrs := []attribute.KeyValue{attribute.String("query", query)}
	return call(ctx, s, OpSearchNodes, attrs, func(ctx context.Context, snap *catalog.Snapshot) ([]NodeSummary, error) {
		hits := snap.Search(query, limit)
		out := make([]NodeSummary, 0, len(hits))
		for _, t := range hits {
			out = append(out, summarize(t))
		}
		return out, nil
	})
}

func summarize(t *catalog.NodeType) NodeSummary {
	latest, _ := t.MaxVersion()
	return NodeSummary{
		Type:        t.Name,
		DisplayName: t.DisplayName,
		Category:    t.Category,
		Description: t.Description,
		Latest:      latest,
		Trigger:     t.Trigger,
		ToolCapable: t.ToolCapable,
	}
}

// NodeInfo describes one node type. Short database forms such as
// "nodes-base.slack" and bare names such as "slack" are resolved.
func (s *Service) NodeInfo(ctx context.Context, req NodeInfoRequest) (any, error) {
	if req.Type == "" {
		return nil, &flowerrors.ValidationError{Field: "type", Message: "node type is required"}
	}
	detail := req.Detail
	if detail == "" {
		detail = DetailEssentials
	}
	if detail != DetailEssentials && detail != DetailFull {
		return nil, &flowerrors.ValidationError{
			Field:      "detail",
			Message:    fmt.Sprintf("unknown detail level %q", detail),
			Suggestion: "use essentials or full",
		}
	}
	attrs := []attribute.KeyValue{attribute.String("node_type", req.Type), attribute.String("detail", string(detail))}

	return call(ctx, s, OpNodeInfo, attrs, func(ctx context.Context, snap *catalog.Snapshot) (any, error) {
		t, ok := resolveType(snap, req.Type)
		if !ok {
			err := &flowerrors.NotFoundError{Resource: "node type", ID: req.Type}
			if sugg := snap.Suggest(req.Type, 1); len(sugg) > 0 {
				return nil, fmt.Errorf("%w (did you mean %s?)", err, sugg[0].Type)
			}
			return nil, err
		}

		var view any = t
		if detail == DetailEssentials {
			v, err := s.projector.Project(ctx, jq.Essentials, t)
			if err != nil {
				return nil, err
			}
			view = v
		}
		if req.Filter == "" {
			return view, nil
		}
		if err := s.projector.Validate(req.Filter); err != nil {
			return nil, &flowerrors.ValidationError{Field: "filter", Message: err.Error()}
		}
		return s.projector.Project(ctx, req.Filter, view)
	})
}

func resolveType(snap *catalog.Snapshot, name string) (*catalog.NodeType, bool) {
	for _, candidate := range []string{name, catalog.FullForm(name), "n8n-nodes-base." + name} {
		if t, ok := snap.Lookup(candidate); ok {
			return t, true
		}
	}
	return nil, false
}
