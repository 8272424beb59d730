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

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/pkg/autofix"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
)

var workflowProperty = map[string]interface{}{
	"type":        []string{"object", "string"},
	"description": "The workflow as an object with nodes and connections, or as JSON or YAML text",
}

var profileProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"minimal", "runtime", "ai-friendly", "strict"},
	"description": "Validation profile (default: runtime)",
}

// registerTools registers all flowsmith tools with the MCP server
func (s *Server) registerTools() {
	s.addTool(mcp.Tool{
		Name:        "validate_workflow",
		Description: "Validate a complete workflow: node configuration, connections and expressions. Returns errors, warnings, statistics and suggestions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow": workflowProperty,
				"options": map[string]interface{}{
					"type":        "object",
					"description": "Dimensions to check and the validation profile",
					"properties": map[string]interface{}{
						"validateNodes":       map[string]interface{}{"type": "boolean", "default": true},
						"validateConnections": map[string]interface{}{"type": "boolean", "default": true},
						"validateExpressions": map[string]interface{}{"type": "boolean", "default": true},
						"profile":             profileProperty,
					},
				},
			},
			Required: []string{"workflow"},
		},
	}, s.validateWorkflow)

	s.addTool(mcp.Tool{
		Name:        "validate_workflow_connections",
		Description: "Check only the connection graph of a workflow: references, ports, error outputs, triggers and cycles.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"workflow": workflowProperty},
			Required:   []string{"workflow"},
		},
	}, s.validateConnections)

	s.addTool(mcp.Tool{
		Name:        "validate_workflow_expressions",
		Description: "Check only the expressions of a workflow: the leading = marker, {{ }} syntax and node references.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"workflow": workflowProperty},
			Required:   []string{"workflow"},
		},
	}, s.validateExpressions)

	s.addTool(mcp.Tool{
		Name: "update_partial_workflow",
		Description: "Apply up to 5 diff operations (addNode, removeNode, updateNode, moveNode, enableNode, disableNode, " +
			"addConnection, removeConnection, updateConnection, updateSettings, updateName, addTag, removeTag) atomically. " +
			"Either every operation applies or the original workflow is returned with the failure.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow": workflowProperty,
				"operations": map[string]interface{}{
					"type":        "array",
					"description": "Operations, each an object with a type field",
					"items":       map[string]interface{}{"type": "object"},
					"maxItems":    5,
				},
				"validateOnly": map[string]interface{}{
					"type":        "boolean",
					"description": "Validate the edited workflow without returning it (default: false)",
				},
				"profile": profileProperty,
			},
			Required: []string{"workflow", "operations"},
		},
	}, s.updatePartialWorkflow)

	s.addTool(mcp.Tool{
		Name:        "autofix_workflow",
		Description: "Propose fixes for common workflow mistakes as diff operations. Set applyFixes=true to return the fixed workflow.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"workflow": workflowProperty,
				"applyFixes": map[string]interface{}{
					"type":        "boolean",
					"description": "Apply the fixes and return the edited workflow (default: false, preview only)",
				},
				"confidenceThreshold": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"high", "medium", "low"},
					"description": "Drop fixes below this confidence (default: medium)",
				},
				"fixTypes": map[string]interface{}{
					"type":        "array",
					"description": "Restrict to these fix types",
					"items": map[string]interface{}{
						"type": "string",
						"enum": fixTypeNames(),
					},
				},
				"maxFixes": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum number of fixes (default: %d)", autofix.DefaultMaxFixes),
				},
				"profile": profileProperty,
			},
			Required: []string{"workflow"},
		},
	}, s.autofixWorkflow)

	s.addTool(mcp.Tool{
		Name:        "search_nodes",
		Description: "Search node types by name, display name or description.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Search text, e.g. 'slack' or 'http'"},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum results (default: %d)", service.DefaultSearchLimit),
				},
			},
			Required: []string{"query"},
		},
	}, s.searchNodes)

	s.addTool(mcp.Tool{
		Name:        "get_node_info",
		Description: "Describe a node type. Accepts n8n-nodes-base.slack, nodes-base.slack or slack. An optional jq filter narrows the result.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"nodeType": map[string]interface{}{"type": "string", "description": "Node type identifier"},
				"detail": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(service.DetailEssentials), string(service.DetailFull)},
					"description": "essentials (default) or the full descriptor",
				},
				"filter": map[string]interface{}{"type": "string", "description": "jq filter applied to the result, e.g. '.required[].name'"},
			},
			Required: []string{"nodeType"},
		},
	}, s.getNodeInfo)

	s.addTool(mcp.Tool{
		Name:        "list_templates",
		Description: "List bundled workflow templates, optionally filtered by a search query.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Filter by name, category, tag or node type"},
			},
		},
	}, s.listTemplates)

	s.addTool(mcp.Tool{
		Name:        "get_template",
		Description: "Return a template as a workflow ready to import, with fresh node ids.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name":         map[string]interface{}{"type": "string", "description": "Template name (from list_templates)"},
				"workflowName": map[string]interface{}{"type": "string", "description": "Name for the generated workflow"},
			},
			Required: []string{"name"},
		},
	}, s.getTemplate)

	s.addTool(mcp.Tool{
		Name:        "health",
		Description: "Report server health and the size of the node type catalog.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.health)
}

func fixTypeNames() []string {
	names := make([]string, len(autofix.AllFixTypes))
	for i, t := range autofix.AllFixTypes {
		names[i] = string(t)
	}
	return names
}

func (s *Server) validateWorkflow(ctx context.Context, args map[string]any) (any, error) {
	wf, err := requireArg(args, "workflow")
	if err != nil {
		return nil, err
	}
	var opts validator.Options
	if err := bindArg(args, "options", &opts); err != nil {
		return nil, err
	}
	if opts.Profile, err = parseProfile(string(opts.Profile)); err != nil {
		return nil, err
	}
	return s.service.ValidateWorkflow(ctx, wf, opts)
}

func (s *Server) validateConnections(ctx context.Context, args map[string]any) (any, error) {
	wf, err := requireArg(args, "workflow")
	if err != nil {
		return nil, err
	}
	return s.service.ValidateConnections(ctx, wf)
}

func (s *Server) validateExpressions(ctx context.Context, args map[string]any) (any, error) {
	wf, err := requireArg(args, "workflow")
	if err != nil {
		return nil, err
	}
	return s.service.ValidateExpressions(ctx, wf)
}

func (s *Server) updatePartialWorkflow(ctx context.Context, args map[string]any) (any, error) {
	wf, err := requireArg(args, "workflow")
	if err != nil {
		return nil, err
	}
	ops, err := requireArg(args, "operations")
	if err != nil {
		return nil, err
	}
	profile, err := parseProfile(stringArg(args, "profile"))
	if err != nil {
		return nil, err
	}
	return s.service.ApplyOperations(ctx, service.DiffRequest{
		Workflow:     wf,
		Operations:   ops,
		ValidateOnly: boolArg(args, "validateOnly"),
		Profile:      profile,
	})
}

func (s *Server) autofixWorkflow(ctx context.Context, args map[string]any) (any, error) {
	wf, err := requireArg(args, "workflow")
	if err != nil {
		return nil, err
	}
	profile, err := parseProfile(stringArg(args, "profile"))
	if err != nil {
		return nil, err
	}

	var opts autofix.Options
	if level := stringArg(args, "confidenceThreshold"); level != "" {
		c, err := autofix.ParseConfidence(level)
		if err != nil {
			return nil, &flowerrors.ValidationError{Field: "confidenceThreshold", Message: err.Error(), Suggestion: "use high, medium or low"}
		}
		opts.ConfidenceThreshold = c
	}
	if err := bindArg(args, "fixTypes", &opts.FixTypes); err != nil {
		return nil, err
	}
	opts.MaxFixes = intArg(args, "maxFixes")

	return s.service.GenerateFixes(ctx, service.FixRequest{
		Workflow: wf,
		Options:  opts,
		Profile:  profile,
		Apply:    boolArg(args, "applyFixes"),
	})
}

func (s *Server) searchNodes(ctx context.Context, args map[string]any) (any, error) {
	hits, err := s.service.SearchNodes(ctx, stringArg(args, "query"), intArg(args, "limit"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": hits, "total": len(hits)}, nil
}

func (s *Server) getNodeInfo(ctx context.Context, args map[string]any) (any, error) {
	return s.service.NodeInfo(ctx, service.NodeInfoRequest{
		Type:   stringArg(args, "nodeType"),
		Detail: service.Detail(stringArg(args, "detail")),
		Filter: stringArg(args, "filter"),
	})
}

func (s *Server) listTemplates(ctx context.Context, args map[string]any) (any, error) {
	list, err := s.service.Templates(ctx, stringArg(args, "query"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"templates": list, "total": len(list)}, nil
}

func (s *Server) getTemplate(ctx context.Context, args map[string]any) (any, error) {
	name := stringArg(args, "name")
	if name == "" {
		return nil, &flowerrors.ValidationError{Field: "name", Message: "template name is required", Suggestion: "call list_templates for the available names"}
	}
	return s.service.Template(ctx, name, stringArg(args, "workflowName"))
}

func (s *Server) health(ctx context.Context, _ map[string]any) (any, error) {
	h := s.service.Health(ctx)
	return map[string]any{
		"status":        h.Status,
		"nodeTypes":     h.NodeTypes,
		"uptimeSeconds": h.Uptime,
		"server":        s.name,
		"version":       s.version,
		"tools":         len(s.tools),
	}, nil
}

func parseProfile(name string) (validator.Profile, error) {
	if name == "" {
		return "", nil
	}
	p, err := validator.ParseProfile(name)
	if err != nil {
		return "", &flowerrors.ValidationError{Field: "profile", Message: err.Error(), Suggestion: "use minimal, runtime, ai-friendly or strict"}
	}
	return p, nil
}

func requireArg(args map[string]any, key string) (any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, &flowerrors.ValidationError{Field: key, Message: fmt.Sprintf("missing required argument %q", key)}
	}
	return v, nil
}

// bindArg decodes args[key] into dst through JSON. A missing key leaves dst
// untouched.
func bindArg(args map[string]any, key string, dst any) error {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return &flowerrors.ValidationError{Field: key, Message: fmt.Sprintf("invalid argument %q: %v", key, err)}
	}
	return nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func intArg(args map[string]any, key string) int {
	switch n := args[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
