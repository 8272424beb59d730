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

package workflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/pkg/errors"
)

const sampleJSON = `{
  "name": "Webhook to Slack",
  "nodes": [
    {"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "typeVersion": 2, "position": [0, 0], "parameters": {"path": "hook"}},
    {"id": "2", "name": "Slack", "type": "n8n-nodes-base.slack", "typeVersion": 2.2, "position": [200, 0], "parameters": {"text": "={{ $json.body }}"}, "onError": "continueErrorOutput"}
  ],
  "connections": {
    "Webhook": {"main": [[{"node": "Slack", "type": "main", "index": 0}]]}
  },
  "tags": ["alerts", {"id": "7", "name": "prod"}]
}`

func TestParseJSON(t *testing.T) {
	in, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	require.True(t, in.OK())
	assert.Empty(t, in.Issues)

	wf := in.Workflow
	assert.Equal(t, "Webhook to Slack", wf.Name)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, 2.2, *wf.Nodes[1].TypeVersion)
	assert.Equal(t, OnErrorContinueError, wf.Nodes[1].OnError)
	assert.Equal(t, []float64{200, 0}, wf.Nodes[1].Position)
	assert.Equal(t, []string{"alerts", "prod"}, wf.Tags)
	assert.True(t, wf.Connections.Has("Webhook", PortMain, 0, Connection{Node: "Slack", Type: PortMain}))
}

func TestParseYAML(t *testing.T) {
	doc := `
name: yaml flow
nodes:
  - id: a
    name: Start
    type: n8n-nodes-base.manualTrigger
    typeVersion: 1
    position: [0, 0]
  - id: b
    name: Set
    type: n8n-nodes-base.set
    typeVersion: 3
    position: [250, 0]
connections:
  Start:
    main:
      - - node: Set
`
	in, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.True(t, in.OK())
	assert.Empty(t, in.Issues)

	edges := in.Workflow.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "Set", edges[0].Target.Node)
	assert.Equal(t, PortMain, edges[0].Target.Type, "missing type defaults to the port type")
	assert.Equal(t, 0, edges[0].Target.Index, "missing index defaults to 0")
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [`))
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "json", parseErr.Format)
}

func TestDecodeMalformed(t *testing.T) {
	cyclic := map[string]any{"nodes": []any{}}
	cyclic["self"] = cyclic

	cyclicSlice := make([]any, 1)
	cyclicSlice[0] = cyclicSlice

	deep := map[string]any{}
	cur := deep
	for i := 0; i < maxDepth+5; i++ {
		next := map[string]any{}
		cur["x"] = next
		cur = next
	}
	deep["nodes"] = []any{}

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{name: "nil", raw: nil, want: "workflow is null"},
		{name: "nil pointer", raw: (*Workflow)(nil), want: "workflow is null"},
		{name: "not an object", raw: "[1,2]", want: "workflow must be an object, got array"},
		{name: "nodes missing", raw: map[string]any{"connections": map[string]any{}}, want: "nodes must be an array"},
		{name: "nodes wrong type", raw: map[string]any{"nodes": "x"}, want: "nodes must be an array, got string"},
		{name: "connections wrong type", raw: map[string]any{"nodes": []any{}, "connections": []any{}}, want: "connections must be an object, got array"},
		{name: "cyclic map", raw: cyclic, want: "circular reference in input object"},
		{name: "cyclic slice", raw: map[string]any{"nodes": []any{}, "x": cyclicSlice}, want: "circular reference in input object"},
		{name: "too deep", raw: deep, want: "input nesting exceeds 100 levels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Decode(tt.raw)
			assert.False(t, in.OK())
			assert.Equal(t, tt.want, in.Malformed)
		})
	}
}

func TestDecodeFieldIssues(t *testing.T) {
	raw := map[string]any{
		"nodes": []any{
			map[string]any{
				"id": "1", "name": "A", "type": "n8n-nodes-base.set",
				"typeVersion": "three",
				"position":    []any{"x", 1.0},
				"disabled":    "yes",
			},
			"not a node",
			map[string]any{"id": 42.0, "name": "B", "type": "n8n-nodes-base.set", "maxTries": 2.5},
		},
		"connections": map[string]any{
			"A": map[string]any{"main": []any{[]any{
				map[string]any{"node": "B", "type": "main", "index": "one"},
				map[string]any{"type": "main"},
				map[string]any{"node": "B", "index": 1.5},
				map[string]any{"node": "B", "index": 0.0},
			}}},
			"B": "broken",
		},
	}

	in := Decode(raw)
	require.True(t, in.OK())
	require.Len(t, in.Workflow.Nodes, 2)
	assert.Equal(t, "42", in.Workflow.Nodes[1].ID)
	assert.Nil(t, in.Workflow.Nodes[0].TypeVersion)
	assert.Nil(t, in.Workflow.Nodes[0].Position)
	assert.True(t, in.HasNodeIssue(0, "typeVersion"))
	assert.True(t, in.HasNodeIssue(0, "position"))
	assert.True(t, in.HasNodeIssue(0, "disabled"))
	assert.True(t, in.HasNodeIssue(2, "maxTries"))

	var connIssues []Issue
	for _, is := range in.Issues {
		if is.Scope == ScopeConnection {
			connIssues = append(connIssues, is)
		}
	}
	require.Len(t, connIssues, 4)
	assert.Equal(t, "connection index must be a number, got string", connIssues[0].Message)
	assert.Equal(t, "connection entry is missing the target node name", connIssues[1].Message)
	assert.Equal(t, "connection index must be an integer, got 1.5", connIssues[2].Message)
	assert.Equal(t, "B", connIssues[3].NodeName)

	// the one well-formed entry survives
	assert.Equal(t, 1, in.Workflow.Connections.TargetCount("A", PortMain, 0))
}

func TestDecodeAbsentConnections(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "missing", raw: map[string]any{"nodes": []any{}}},
		{name: "null", raw: map[string]any{"nodes": []any{}, "connections": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Decode(tt.raw)
			require.True(t, in.OK())
			assert.Empty(t, in.Malformed)
			assert.Empty(t, in.Workflow.Connections)
		})
	}
}

func TestDecodeTypedValue(t *testing.T) {
	type payload struct {
		Name  string           `json:"name"`
		Nodes []map[string]any `json:"nodes"`
	}
	in := Decode(payload{Name: "typed", Nodes: []map[string]any{{"name": "A", "type": "x"}}})
	require.True(t, in.OK())
	assert.Equal(t, "typed", in.Workflow.Name)
	assert.Len(t, in.Workflow.Nodes, 1)
}

func TestDecodeNode(t *testing.T) {
	n, issues := DecodeNode(map[string]any{
		"name": "HTTP", "type": "n8n-nodes-base.httpRequest", "typeVersion": 4.2,
		"position": []any{10.0, 20.0}, "continueOnFail": true,
	})
	assert.Empty(t, issues)
	assert.Equal(t, "HTTP", n.Name)
	require.NotNil(t, n.ContinueOnFail)
	assert.True(t, *n.ContinueOnFail)
	assert.NotNil(t, n.Parameters)

	_, issues = DecodeNode([]any{})
	require.Len(t, issues, 1)
}

func TestClone(t *testing.T) {
	in, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	wf := in.Workflow

	cp := wf.Clone()
	cp.Nodes[0].Parameters["path"] = "changed"
	cp.Nodes[1].Position[0] = math.Inf(1)
	*cp.Nodes[1].TypeVersion = 9
	cp.Connections["Webhook"][PortMain][0][0].Node = "Other"
	cp.Tags[0] = "x"

	assert.Equal(t, "hook", wf.Nodes[0].Parameters["path"])
	assert.Equal(t, 200.0, wf.Nodes[1].Position[0])
	assert.Equal(t, 2.2, *wf.Nodes[1].TypeVersion)
	assert.Equal(t, "Slack", wf.Connections["Webhook"][PortMain][0][0].Node)
	assert.Equal(t, "alerts", wf.Tags[0])
}

func TestEdgesOrder(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{{Name: "B"}, {Name: "A"}},
		Connections: Connections{
			"A":     {PortMain: {{{Node: "B", Type: PortMain}}}},
			"B":     {PortAITool: {{{Node: "A", Type: PortAITool}}}, PortMain: {{}, {{Node: "A", Type: PortMain}}}},
			"Ghost": {PortMain: {{{Node: "A", Type: PortMain}}}},
		},
	}
	edges := wf.Edges()
	require.Len(t, edges, 4)
	assert.Equal(t, "B", edges[0].Source)
	assert.Equal(t, PortMain, edges[0].Port)
	assert.Equal(t, 1, edges[0].Output)
	assert.Equal(t, PortAITool, edges[1].Port)
	assert.Equal(t, "A", edges[2].Source)
	assert.Equal(t, "Ghost", edges[3].Source)
	assert.Equal(t, 3, wf.Connections.Inbound("A"))
}

func TestOnErrorValid(t *testing.T) {
	assert.True(t, OnErrorUnset.Valid())
	assert.True(t, OnErrorContinueError.Valid())
	assert.False(t, OnError("continueErrorOutputs").Valid())
}
