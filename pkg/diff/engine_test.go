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

package diff

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
)

const (
	typeWebhook = "n8n-nodes-base.webhook"
	typeSet     = "n8n-nodes-base.set"
	typeHTTP    = "n8n-nodes-base.httpRequest"
	typeIf      = "n8n-nodes-base.if"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	seq := 0
	return NewEngine(validator.New(cat)).WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("gen-%d", seq)
	})
}

func node(name, typ string, version float64) workflow.Node {
	return workflow.Node{
		ID:          "id-" + name,
		Name:        name,
		Type:        typ,
		TypeVersion: workflow.Float(version),
		Position:    []float64{0, 0},
		Parameters:  map[string]any{},
	}
}

func wire(wf *workflow.Workflow, from string, output int, to string) {
	if wf.Connections[from] == nil {
		wf.Connections[from] = map[string][][]workflow.Connection{}
	}
	slots := wf.Connections[from][workflow.PortMain]
	for len(slots) <= output {
		slots = append(slots, []workflow.Connection{})
	}
	slots[output] = append(slots[output], workflow.Connection{Node: to, Type: workflow.PortMain})
	wf.Connections[from][workflow.PortMain] = slots
}

// pipeline builds Webhook -> Fetch -> Next.
func pipeline() *workflow.Workflow {
	hook := node("Webhook", typeWebhook, 2)
	hook.Parameters["path"] = "orders"
	fetch := node("Fetch", typeHTTP, 4.2)
	fetch.Parameters["url"] = "https://example.com"
	wf := &workflow.Workflow{
		Name:        "orders",
		Nodes:       []workflow.Node{hook, fetch, node("Next", typeSet, 3.4)},
		Connections: workflow.Connections{},
	}
	wire(wf, "Webhook", 0, "Fetch")
	wire(wf, "Fetch", 0, "Next")
	return wf
}

func opErr(t *testing.T, err error) *OperationError {
	t.Helper()
	require.Error(t, err)
	var oe *OperationError
	require.True(t, errors.As(err, &oe), "want *OperationError, got %T", err)
	return oe
}

func TestApplyForwardReference(t *testing.T) {
	wf := pipeline()
	ops := []Operation{
		AddConnection{Source: "Next", Target: "Log"},
		AddNode{Node: map[string]any{"name": "Log", "type": typeSet, "typeVersion": 3.4}},
	}

	res, err := newEngine(t).Apply(wf, ops, ModeCommit)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 2, res.OperationsApplied)
	require.NotNil(t, res.Validation)

	added, ok := res.Workflow.NodeByName("Log")
	require.True(t, ok)
	assert.Equal(t, "gen-1", added.ID)
	assert.Equal(t, []float64{0, 0}, added.Position)
	assert.True(t, res.Workflow.Connections.Has("Next", workflow.PortMain, 0,
		workflow.Connection{Node: "Log", Type: workflow.PortMain}))

	_, ok = wf.NodeByName("Log")
	assert.False(t, ok, "input graph must not change")
	assert.NotContains(t, wf.Connections, "Next")
}

func TestApplyValidateOnly(t *testing.T) {
	wf := pipeline()
	before := wf.Clone()

	res, err := newEngine(t).Apply(wf, []Operation{
		RemoveNode{NodeRef: ByName("Fetch")},
		UpdateName{Name: "renamed"},
	}, ModeValidateOnly)
	require.NoError(t, err)

	assert.Nil(t, res.Workflow)
	require.NotNil(t, res.Validation)
	assert.Equal(t, 2, res.Validation.Statistics.TotalNodes)
	assert.Equal(t, before, wf)
}

func TestApplyFailureIsAtomic(t *testing.T) {
	wf := pipeline()
	before := wf.Clone()

	res, err := newEngine(t).Apply(wf, []Operation{
		UpdateName{Name: "renamed"},
		AddTag{Tag: "billing"},
		DisableNode{NodeRef: ByName("Missing")},
	}, ModeCommit)

	oe := opErr(t, err)
	assert.Equal(t, 2, oe.Index)
	assert.Equal(t, KindUnknownReference, oe.Kind)
	assert.Equal(t, `operation 2 (disableNode): node "Missing" not found by id or name`, oe.Error())

	assert.False(t, res.Success())
	assert.Same(t, wf, res.Workflow)
	assert.Equal(t, 0, res.OperationsApplied)
	assert.Equal(t, before, wf)
}

func TestApplyBatchSize(t *testing.T) {
	e := newEngine(t)

	_, err := e.Apply(pipeline(), nil, ModeCommit)
	assert.Equal(t, KindBatchSize, opErr(t, err).Kind)

	ops := make([]Operation, MaxOperations+1)
	for i := range ops {
		ops[i] = AddTag{Tag: fmt.Sprintf("t%d", i)}
	}
	_, err = e.Apply(pipeline(), ops, ModeCommit)
	oe := opErr(t, err)
	assert.Equal(t, KindBatchSize, oe.Kind)
	assert.Equal(t, -1, oe.Index)
	assert.Contains(t, oe.Error(), "at most 5")

	res, err := e.Apply(pipeline(), ops[:MaxOperations], ModeCommit)
	require.NoError(t, err)
	assert.Len(t, res.Workflow.Tags, MaxOperations)
}

func TestApplyRejectsBadModeAndNilGraph(t *testing.T) {
	e := newEngine(t)

	_, err := e.Apply(pipeline(), []Operation{AddTag{Tag: "x"}}, Mode("dryRun"))
	assert.Equal(t, KindInvalidOperation, opErr(t, err).Kind)

	_, err = e.Apply(nil, []Operation{AddTag{Tag: "x"}}, ModeCommit)
	assert.Equal(t, KindInvalidOperation, opErr(t, err).Kind)
}

func TestApplyChecksOperationFields(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		message string
	}{
		{name: "nil operation", op: nil, message: "operation is nil"},
		{name: "negative source index", op: AddConnection{Source: "Fetch", Target: "Next", SourceIndex: workflow.Int(-1)}, message: "sourceIndex must be at least 0"},
		{name: "negative case", op: AddConnection{Source: "Fetch", Target: "Next", Case: workflow.Int(-2)}, message: "case must be at least 0"},
		{name: "missing reference", op: DisableNode{}, message: "nodeId or nodeName is required"},
		{name: "short position", op: MoveNode{NodeRef: ByName("Fetch"), Position: []float64{1}}, message: "position must have exactly 2 elements"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := pipeline()
			before := wf.Clone()

			res, err := newEngine(t).Apply(wf, []Operation{AddTag{Tag: "x"}, tt.op}, ModeCommit)
			oe := opErr(t, err)
			assert.Equal(t, 1, oe.Index)
			assert.Equal(t, KindInvalidOperation, oe.Kind)
			assert.Contains(t, oe.Error(), tt.message)
			assert.Same(t, wf, res.Workflow)
			assert.Equal(t, before, wf)
		})
	}
}

func TestApplyBoundsArrayPaths(t *testing.T) {
	wf := pipeline()

	_, err := newEngine(t).Apply(wf, []Operation{
		UpdateNode{NodeRef: ByName("Fetch"), Updates: map[string]any{"parameters.items[20000000]": "x"}},
	}, ModeCommit)
	oe := opErr(t, err)
	assert.Equal(t, KindMalformedPath, oe.Kind)
	assert.Contains(t, oe.Error(), "past the end of the array")

	n, _ := wf.NodeByName("Fetch")
	assert.NotContains(t, n.Parameters, "items")
}

func TestApplyTwoPassOrdering(t *testing.T) {
	t.Run("edit before removal of the same node fails", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			UpdateNode{NodeRef: ByName("Next"), Updates: map[string]any{"notes": "x"}},
			RemoveNode{NodeRef: ByName("Next")},
		}, ModeCommit)
		oe := opErr(t, err)
		assert.Equal(t, 0, oe.Index)
		assert.Equal(t, KindUnknownReference, oe.Kind)
	})

	t.Run("later patch wins", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			UpdateNode{NodeRef: ByName("Next"), Updates: map[string]any{"notes": "first"}},
			UpdateNode{NodeRef: ByID("id-Next"), Updates: map[string]any{"notes": "second"}},
		}, ModeCommit)
		require.NoError(t, err)
		n, _ := res.Workflow.NodeByName("Next")
		assert.Equal(t, "second", n.Notes)
	})

	t.Run("removed name can be reused", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			RemoveNode{NodeRef: ByName("Next")},
			AddNode{Node: map[string]any{"name": "Next", "type": typeSet, "typeVersion": 3.4}},
			AddConnection{Source: "Fetch", Target: "Next"},
		}, ModeCommit)
		require.NoError(t, err)
		n, _ := res.Workflow.NodeByName("Next")
		assert.Equal(t, "gen-1", n.ID)
		assert.Len(t, res.Workflow.Nodes, 3)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			AddNode{Node: map[string]any{"name": "Fetch", "type": typeSet}},
		}, ModeCommit)
		assert.Equal(t, KindConflict, opErr(t, err).Kind)
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			AddNode{Node: map[string]any{"id": "id-Fetch", "name": "Other", "type": typeSet}},
		}, ModeCommit)
		assert.Equal(t, KindConflict, opErr(t, err).Kind)
	})

	t.Run("added node needs a type", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			AddNode{Node: map[string]any{"name": "Other"}},
		}, ModeCommit)
		assert.Equal(t, KindInvalidOperation, opErr(t, err).Kind)
	})
}

func TestRemoveNodeDropsConnections(t *testing.T) {
	res, err := newEngine(t).Apply(pipeline(), []Operation{RemoveNode{NodeRef: ByID("id-Fetch")}}, ModeCommit)
	require.NoError(t, err)

	assert.Empty(t, res.Workflow.Connections)
	for _, n := range res.Workflow.Nodes {
		assert.NotEqual(t, "Fetch", n.Name)
	}
}

func TestUpdateNode(t *testing.T) {
	tests := []struct {
		name    string
		updates map[string]any
		kind    ErrorKind
		message string
		check   func(t *testing.T, wf *workflow.Workflow)
	}{
		{
			name:    "nested parameter path creates containers",
			updates: map[string]any{"parameters.options.items[1].value": "x"},
			check: func(t *testing.T, wf *workflow.Workflow) {
				n, _ := wf.NodeByName("Fetch")
				items := n.Parameters["options"].(map[string]any)["items"].([]any)
				require.Len(t, items, 2)
				assert.Nil(t, items[0])
				assert.Equal(t, map[string]any{"value": "x"}, items[1])
				assert.Equal(t, "https://example.com", n.Parameters["url"])
			},
		},
		{
			name:    "scalar fields",
			updates: map[string]any{"typeVersion": 4, "onError": "continueRegularOutput", "maxTries": 3.0, "position": []any{100, 200}, "disabled": true},
			check: func(t *testing.T, wf *workflow.Workflow) {
				n, _ := wf.NodeByName("Fetch")
				assert.Equal(t, 4.0, *n.TypeVersion)
				assert.Equal(t, workflow.OnErrorContinueRegular, n.OnError)
				assert.Equal(t, 3, *n.MaxTries)
				assert.Equal(t, []float64{100, 200}, n.Position)
				assert.True(t, n.Disabled)
			},
		},
		{
			name:    "nil clears a parameter",
			updates: map[string]any{"parameters.url": nil},
			check: func(t *testing.T, wf *workflow.Workflow) {
				n, _ := wf.NodeByName("Fetch")
				assert.NotContains(t, n.Parameters, "url")
			},
		},
		{
			name:    "rename rewrites connections",
			updates: map[string]any{"name": "Download"},
			check: func(t *testing.T, wf *workflow.Workflow) {
				assert.NotContains(t, wf.Connections, "Fetch")
				assert.True(t, wf.Connections.Has("Download", workflow.PortMain, 0,
					workflow.Connection{Node: "Next", Type: workflow.PortMain}))
				assert.True(t, wf.Connections.Has("Webhook", workflow.PortMain, 0,
					workflow.Connection{Node: "Download", Type: workflow.PortMain}))
			},
		},
		{
			name:    "traversing a string",
			updates: map[string]any{"parameters.url.host": "x"},
			kind:    KindMalformedPath,
			message: "cannot traverse through string at parameters.url",
		},
		{
			name:    "bad index",
			updates: map[string]any{"parameters.items[x]": 1},
			kind:    KindMalformedPath,
			message: "malformed array index",
		},
		{
			name:    "path into scalar field",
			updates: map[string]any{"name.first": "x"},
			kind:    KindMalformedPath,
		},
		{
			name:    "rename onto existing node",
			updates: map[string]any{"name": "Next"},
			kind:    KindConflict,
		},
		{
			name:    "id is immutable",
			updates: map[string]any{"id": "other"},
			kind:    KindInvalidOperation,
		},
		{
			name:    "unknown field",
			updates: map[string]any{"colour": "red"},
			kind:    KindInvalidOperation,
			message: `unknown node field "colour"`,
		},
		{
			name:    "wrong kind",
			updates: map[string]any{"disabled": "yes"},
			kind:    KindInvalidOperation,
			message: "disabled must be a boolean, got string",
		},
		{
			name:    "parameters must be an object",
			updates: map[string]any{"parameters": "x"},
			kind:    KindInvalidOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(t).Apply(pipeline(), []Operation{
				UpdateNode{NodeRef: ByName("Fetch"), Updates: tt.updates},
			}, ModeCommit)
			if tt.kind != "" {
				oe := opErr(t, err)
				assert.Equal(t, tt.kind, oe.Kind)
				assert.Contains(t, oe.Message, tt.message)
				return
			}
			require.NoError(t, err)
			tt.check(t, res.Workflow)
		})
	}
}

func TestConnectionOperations(t *testing.T) {
	branching := func() *workflow.Workflow {
		wf := pipeline()
		wf.Nodes = append(wf.Nodes, node("Check", typeIf, 2.2))
		return wf
	}
	mainTo := func(to string) workflow.Connection {
		return workflow.Connection{Node: to, Type: workflow.PortMain}
	}

	t.Run("branch false selects output 1", func(t *testing.T) {
		res, err := newEngine(t).Apply(branching(), []Operation{
			AddConnection{Source: "Check", Target: "Next", Branch: "false"},
		}, ModeCommit)
		require.NoError(t, err)
		slots := res.Workflow.Connections["Check"][workflow.PortMain]
		require.Len(t, slots, 2)
		assert.Empty(t, slots[0])
		assert.Equal(t, []workflow.Connection{mainTo("Next")}, slots[1])
	})

	t.Run("case selects output", func(t *testing.T) {
		res, err := newEngine(t).Apply(branching(), []Operation{
			AddConnection{Source: "Check", Target: "Next", Case: workflow.Int(3)},
		}, ModeCommit)
		require.NoError(t, err)
		assert.True(t, res.Workflow.Connections.Has("Check", workflow.PortMain, 3, mainTo("Next")))
	})

	t.Run("branch contradicting sourceIndex", func(t *testing.T) {
		_, err := newEngine(t).Apply(branching(), []Operation{
			AddConnection{Source: "Check", Target: "Next", Branch: "true", SourceIndex: workflow.Int(1)},
		}, ModeCommit)
		assert.Equal(t, KindInvalidOperation, opErr(t, err).Kind)
	})

	t.Run("target input defaults to source output", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			AddConnection{Source: "Next", Target: "Fetch", SourceOutput: "ai_tool"},
		}, ModeCommit)
		require.NoError(t, err)
		assert.Equal(t, "ai_tool", res.Workflow.Connections["Next"]["ai_tool"][0][0].Type)
	})

	t.Run("existing connection conflicts", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			AddConnection{Source: "Webhook", Target: "Fetch"},
		}, ModeCommit)
		assert.Equal(t, KindConflict, opErr(t, err).Kind)
	})

	t.Run("endpoints resolve by id", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			AddConnection{Source: "id-Webhook", Target: "id-Next"},
		}, ModeCommit)
		require.NoError(t, err)
		assert.True(t, res.Workflow.Connections.Has("Webhook", workflow.PortMain, 0, mainTo("Next")))
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := newEngine(t).Apply(pipeline(), []Operation{
			AddConnection{Source: "Webhook", Target: "Nowhere"},
		}, ModeCommit)
		oe := opErr(t, err)
		assert.Equal(t, KindUnknownReference, oe.Kind)
		assert.Contains(t, oe.Message, "Nowhere")
	})

	t.Run("remove prunes empty entries", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			RemoveConnection{Source: "Fetch", Target: "Next"},
		}, ModeCommit)
		require.NoError(t, err)
		assert.NotContains(t, res.Workflow.Connections, "Fetch")
	})

	t.Run("remove missing connection", func(t *testing.T) {
		ops := []Operation{RemoveConnection{Source: "Next", Target: "Fetch"}}
		_, err := newEngine(t).Apply(pipeline(), ops, ModeCommit)
		assert.Equal(t, KindConflict, opErr(t, err).Kind)

		ops = []Operation{RemoveConnection{Source: "Next", Target: "Ghost", IgnoreErrors: true}}
		_, err = newEngine(t).Apply(pipeline(), ops, ModeCommit)
		assert.NoError(t, err)
	})

	t.Run("update moves to another output", func(t *testing.T) {
		res, err := newEngine(t).Apply(pipeline(), []Operation{
			UpdateConnection{Source: "Fetch", Target: "Next", Updates: ConnectionUpdate{SourceIndex: workflow.Int(1)}},
		}, ModeCommit)
		require.NoError(t, err)
		slots := res.Workflow.Connections["Fetch"][workflow.PortMain]
		require.Len(t, slots, 2)
		assert.Empty(t, slots[0])
		assert.Equal(t, []workflow.Connection{mainTo("Next")}, slots[1])
	})
}

func TestWorkflowLevelOperations(t *testing.T) {
	wf := pipeline()
	wf.Tags = []string{"keep", "drop"}
	wf.Settings = map[string]any{"timezone": "UTC", "old": true}

	res, err := newEngine(t).Apply(wf, []Operation{
		UpdateName{Name: "orders v2"},
		AddTag{Tag: "keep"},
		AddTag{Tag: "new"},
		RemoveTag{Tag: "drop"},
		UpdateSettings{Settings: map[string]any{"old": nil, "executionOrder": "v1"}},
	}, ModeCommit)
	require.NoError(t, err)

	assert.Equal(t, "orders v2", res.Workflow.Name)
	assert.Equal(t, []string{"keep", "new"}, res.Workflow.Tags)
	assert.Equal(t, map[string]any{"timezone": "UTC", "executionOrder": "v1"}, res.Workflow.Settings)
	assert.Equal(t, []string{"keep", "drop"}, wf.Tags)
}

func errorCounts(r *validator.Result) map[validator.Code]int {
	counts := map[validator.Code]int{}
	for _, is := range r.Errors {
		counts[is.Code]++
	}
	return counts
}

func TestErrorOutputFixIsIsolated(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	v := validator.New(cat)

	wf := pipeline()
	wf.Nodes[1].OnError = workflow.OnErrorContinueError
	wf.Nodes = append(wf.Nodes, node("Handle Error", typeSet, 3.4))

	before := v.ValidateWorkflow(wf, validator.Options{})
	require.Len(t, before.ErrorsWithCode(validator.CodeErrorOutputMissing), 1)

	res, err := NewEngine(v).Apply(wf, []Operation{
		AddConnection{Source: "Fetch", Target: "Handle Error", SourceIndex: workflow.Int(1)},
	}, ModeCommit)
	require.NoError(t, err)

	assert.Empty(t, res.Validation.ErrorsWithCode(validator.CodeErrorOutputMissing))
	want := errorCounts(&before)
	delete(want, validator.CodeErrorOutputMissing)
	assert.Equal(t, want, errorCounts(res.Validation))
}
