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

package templates

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
)

func TestList(t *testing.T) {
	templates, err := List()
	require.NoError(t, err)

	var names []string
	for _, tmpl := range templates {
		names = append(names, tmpl.Name)
		assert.NotEmpty(t, tmpl.Title, tmpl.Name)
		assert.NotEqual(t, "Workflow template", tmpl.Description, "%s has no description", tmpl.Name)
		assert.NotEqual(t, "General", tmpl.Category, "%s has no category", tmpl.Name)
		assert.NotZero(t, tmpl.Nodes, tmpl.Name)
		assert.NotEmpty(t, tmpl.NodeTypes, tmpl.Name)
	}
	assert.Equal(t, []string{"ai-agent-chat", "scheduled-health-check", "webhook-api", "webhook-to-slack"}, names)
}

func TestTemplatesValidate(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	v := validator.New(cat)

	templates, err := List()
	require.NoError(t, err)

	for _, tmpl := range templates {
		t.Run(tmpl.Name, func(t *testing.T) {
			wf, err := Load(tmpl.Name)
			require.NoError(t, err)

			res := v.ValidateWorkflow(wf, validator.Options{})
			assert.True(t, res.Valid, "unexpected errors: %+v", res.Errors)
			assert.Equal(t, tmpl.Nodes, res.Statistics.TotalNodes)
			assert.GreaterOrEqual(t, res.Statistics.TriggerNodes, 1)
		})
	}
}

func TestGet(t *testing.T) {
	content, err := Get("webhook-to-slack")
	require.NoError(t, err)
	assert.True(t, json.Valid(content))

	_, err = Get("missing")
	var notFound *errors.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	for _, name := range []string{"", "../secrets", "workflows/webhook-api", `a\b`} {
		_, err := Get(name)
		assert.Error(t, err, name)
		assert.False(t, Exists(name), name)
	}
	assert.True(t, Exists("webhook-api"))
}

func TestRender(t *testing.T) {
	original, err := Load("webhook-to-slack")
	require.NoError(t, err)

	first, err := Render("webhook-to-slack", "My Alerts")
	require.NoError(t, err)
	second, err := Render("webhook-to-slack", "")
	require.NoError(t, err)

	a := decode(t, first)
	b := decode(t, second)

	assert.Equal(t, "My Alerts", a.Name)
	assert.Equal(t, original.Name, b.Name, "empty name keeps the template title")
	require.Len(t, a.Nodes, len(original.Nodes))

	for i := range a.Nodes {
		assert.Equal(t, original.Nodes[i].Name, a.Nodes[i].Name)
		assert.NotEqual(t, original.Nodes[i].ID, a.Nodes[i].ID)
		assert.NotEqual(t, a.Nodes[i].ID, b.Nodes[i].ID)
	}
	webhook, ok := a.NodeByName("Webhook")
	require.True(t, ok)
	assert.NotEqual(t, "0b6c2f5e-3a55-4d1b-b7a8-6a0f4c8e9d12", webhook.WebhookID)
	assert.Equal(t, original.Connections, a.Connections)

	_, err = Render("missing", "x")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"ai-agent-chat", "scheduled-health-check", "webhook-api", "webhook-to-slack"}},
		{query: "slack", want: []string{"scheduled-health-check", "webhook-to-slack"}},
		{query: "AGENT", want: []string{"ai-agent-chat"}},
		{query: "respondToWebhook", want: []string{"webhook-api"}},
		{query: "kafka", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			found, err := Search(tt.query)
			require.NoError(t, err)
			var names []string
			for _, tmpl := range found {
				names = append(names, tmpl.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func decode(t *testing.T, content []byte) *workflow.Workflow {
	t.Helper()
	in, err := workflow.ParseJSON(content)
	require.NoError(t, err)
	require.True(t, in.OK(), in.Malformed)
	return in.Workflow
}
