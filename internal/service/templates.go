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
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/flowsmith/internal/templates"
	"github.com/tombee/flowsmith/pkg/catalog"
)

// Templates lists the bundled workflow templates, filtered by query when it
// is non-empty.
func (s *Service) Templates(ctx context.Context, query string) ([]templates.Template, error) {
	return call(ctx, s, OpListTemplates, nil, func(ctx context.Context, _ *catalog.Snapshot) ([]templates.Template, error) {
		if query == "" {
			return templates.List()
		}
		return templates.Search(query)
	})
}

// Template renders a template as a fresh workflow named workflowName.
func (s *Service) Template(ctx context.Context, name, workflowName string) (json.RawMessage, error) {
	attrs := []attribute.KeyValue{attribute.String("template", name)}
	return call(ctx, s, OpGetTemplate, attrs, func(ctx context.Context, _ *catalog.Snapshot) (json.RawMessage, error) {
		data, err := templates.Render(name, workflowName)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	})
}
