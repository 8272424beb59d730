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

// Package templates holds example workflows that are embedded in the binary
// and offered to authors as starting points.
package templates

import (
	"embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/workflow"
)

//go:embed workflows/*.json
var embeddedFS embed.FS

const dir = "workflows"

// Template describes one embedded workflow.
type Template struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	NodeTypes   []string `json:"nodeTypes"`
	Nodes       int      `json:"nodes"`
	FilePath    string   `json:"filePath"`
}

// List returns all embedded templates in name order.
func List() ([]Template, error) {
	entries, err := embeddedFS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	var templates []Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		wf, err := Load(name)
		if err != nil {
			return nil, err
		}
		templates = append(templates, describe(name, wf))
	}
	return templates, nil
}

// Search returns templates whose name, title, description, category, tags or
// node types contain query, case-insensitively. An empty query matches all.
func Search(query string) ([]Template, error) {
	all, err := List()
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return all, nil
	}

	var out []Template
	for _, t := range all {
		fields := append([]string{t.Name, t.Title, t.Description, t.Category}, t.Tags...)
		fields = append(fields, t.NodeTypes...)
		if slices.ContainsFunc(fields, func(f string) bool {
			return strings.Contains(strings.ToLower(f), q)
		}) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Get returns the raw JSON of a template.
func Get(name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("invalid template name: %q", name)
	}
	content, err := embeddedFS.ReadFile(dir + "/" + name + ".json")
	if err != nil {
		return nil, &errors.NotFoundError{Resource: "template", ID: name}
	}
	return content, nil
}

// Exists reports whether a template with the given name exists.
func Exists(name string) bool {
	_, err := Get(name)
	return err == nil
}

// Load decodes a template into a workflow.
func Load(name string) (*workflow.Workflow, error) {
	content, err := Get(name)
	if err != nil {
		return nil, err
	}
	in, err := workflow.ParseJSON(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	if !in.OK() {
		return nil, fmt.Errorf("template %q is not a workflow: %s", name, in.Malformed)
	}
	return in.Workflow, nil
}

// Render returns a copy of a template ready to import: the workflow is
// renamed (when workflowName is set) and every node and webhook gets a fresh
// id, so rendering twice never yields clashing ids.
func Render(templateName, workflowName string) ([]byte, error) {
	wf, err := Load(templateName)
	if err != nil {
		return nil, err
	}
	if workflowName != "" {
		wf.Name = workflowName
	}
	for i := range wf.Nodes {
		wf.Nodes[i].ID = uuid.NewString()
		if wf.Nodes[i].WebhookID != "" {
			wf.Nodes[i].WebhookID = uuid.NewString()
		}
	}

	out, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render template %q: %w", templateName, err)
	}
	return out, nil
}

func validName(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

func describe(name string, wf *workflow.Workflow) Template {
	var types []string
	for _, n := range wf.Nodes {
		if !slices.Contains(types, n.Type) {
			types = append(types, n.Type)
		}
	}
	slices.Sort(types)

	return Template{
		Name:        name,
		Title:       wf.Name,
		Description: getDescription(name),
		Category:    getCategory(name),
		Tags:        wf.Tags,
		NodeTypes:   types,
		Nodes:       len(wf.Nodes),
		FilePath:    dir + "/" + name + ".json",
	}
}

func getDescription(name string) string {
	descriptions := map[string]string{
		"ai-agent-chat":          "Chat-triggered AI agent with a language model, memory and an HTTP tool",
		"scheduled-health-check": "Hourly HTTP health check with an error branch and Slack alerts",
		"webhook-api":            "Webhook endpoint that computes a result in code and responds with JSON",
		"webhook-to-slack":       "Forward incoming webhook events to a Slack channel",
	}

	if desc, ok := descriptions[name]; ok {
		return desc
	}
	return "Workflow template"
}

func getCategory(name string) string {
	categories := map[string]string{
		"ai-agent-chat":          "AI",
		"scheduled-health-check": "Monitoring",
		"webhook-api":            "API",
		"webhook-to-slack":       "Notifications",
	}

	if cat, ok := categories[name]; ok {
		return cat
	}
	return "General"
}
