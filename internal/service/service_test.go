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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/internal/log"
	"github.com/tombee/flowsmith/internal/metrics"
	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/diff"
	"github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
)

const fixture = `{
  "name": "Orders",
  "nodes": [
    {"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "typeVersion": 2,
     "position": [0, 0], "parameters": {"path": "orders"}},
    {"id": "2", "name": "Fetch", "type": "n8n-nodes-base.httpRequest", "typeVersion": 4.2,
     "position": [200, 0], "parameters": {"url": "{{ $json.url }}"}}
  ],
  "connections": {
    "Webhook": {"main": [[{"node": "Fetch", "type": "main", "index": 0}]]}
  }
}`

func newService(t *testing.T) (*Service, *prometheus.Registry) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc := New(cat).
		WithLogger(log.Discard()).
		WithMetrics(metrics.New(reg)).
		WithIDGenerator(func() string { return "generated" })
	return svc, reg
}

func rawFixture(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(fixture), &m))
	return m
}

func TestValidateWorkflow(t *testing.T) {
	svc, reg := newService(t)
	ctx := context.Background()

	res, err := svc.ValidateWorkflow(ctx, rawFixture(t), validator.Options{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.ErrorsWithCode(validator.CodeExpressionFormat))
	assert.Equal(t, 2, res.Statistics.TotalNodes)

	n, err := testutil.GatherAndCount(reg, "flowsmith_calls_total", "flowsmith_validation_issues_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	conns, err := svc.ValidateConnections(ctx, rawFixture(t))
	require.NoError(t, err)
	assert.Empty(t, conns.ErrorsWithCode(validator.CodeExpressionFormat), "connections only")
	assert.Equal(t, 1, conns.Statistics.ValidConnections)

	exprs, err := svc.ValidateExpressions(ctx, rawFixture(t))
	require.NoError(t, err)
	assert.NotEmpty(t, exprs.ErrorsWithCode(validator.CodeExpressionFormat))
}

func TestCallTimeout(t *testing.T) {
	svc, reg := newService(t)
	svc.WithCallTimeout(10 * time.Millisecond)

	_, err := call(context.Background(), svc, "slow", nil, func(ctx context.Context, _ *catalog.Snapshot) (int, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return 1, nil
	})
	require.Error(t, err)
	var te *errors.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "slow", te.Operation)
	assert.Equal(t, "timeout", errors.TypeOf(err))

	n, err := testutil.GatherAndCount(reg, "flowsmith_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApplyOperations(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		res, err := svc.ApplyOperations(ctx, DiffRequest{
			Workflow: rawFixture(t),
			Operations: `[
				{"type": "addNode", "node": {"name": "Log", "type": "n8n-nodes-base.noOp", "typeVersion": 1}},
				{"type": "addConnection", "source": "Fetch", "target": "Log"},
				{"type": "updateNode", "nodeName": "Fetch", "updates": {"parameters.url": "={{ $json.url }}"}}
			]`,
		})
		require.NoError(t, err)
		require.True(t, res.Success(), "%v", res.Errors)
		assert.Equal(t, 3, res.OperationsApplied)
		require.NotNil(t, res.Workflow)
		assert.Len(t, res.Workflow.Nodes, 3)
		added, ok := res.Workflow.NodeByName("Log")
		require.True(t, ok)
		assert.Equal(t, "generated", added.ID)
		require.NotNil(t, res.Validation)
		assert.Empty(t, res.Validation.ErrorsWithCode(validator.CodeExpressionFormat))
	})

	t.Run("validate only", func(t *testing.T) {
		res, err := svc.ApplyOperations(ctx, DiffRequest{
			Workflow:     rawFixture(t),
			Operations:   []any{map[string]any{"type": "disableNode", "nodeName": "Fetch"}},
			ValidateOnly: true,
		})
		require.NoError(t, err)
		assert.True(t, res.Success())
		assert.Equal(t, diff.ModeValidateOnly, res.Mode)
		assert.Nil(t, res.Workflow)
		assert.NotNil(t, res.Validation)
	})

	t.Run("operation failure is reported in the result", func(t *testing.T) {
		res, err := svc.ApplyOperations(ctx, DiffRequest{
			Workflow:   rawFixture(t),
			Operations: `[{"type": "removeNode", "nodeName": "Missing"}]`,
		})
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, diff.KindUnknownReference, res.Errors[0].Kind)
		assert.Len(t, res.Workflow.Nodes, 2, "original graph returned")
	})

	t.Run("decode failure is reported in the result", func(t *testing.T) {
		res, err := svc.ApplyOperations(ctx, DiffRequest{Workflow: rawFixture(t), Operations: `[]`})
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, diff.KindBatchSize, res.Errors[0].Kind)
	})

	t.Run("malformed workflow", func(t *testing.T) {
		_, err := svc.ApplyOperations(ctx, DiffRequest{Workflow: "nope", Operations: `[{"type": "addTag", "tag": "x"}]`})
		require.Error(t, err)
		assert.Equal(t, "validation", errors.TypeOf(err))
	})
}

func TestGenerateFixes(t *testing.T) {
	svc, reg := newService(t)
	ctx := context.Background()

	preview, err := svc.GenerateFixes(ctx, FixRequest{Workflow: rawFixture(t)})
	require.NoError(t, err)
	require.Len(t, preview.Fixes, 1)
	assert.Equal(t, autofix.FixExpressionFormat, preview.Fixes[0].Type)
	assert.False(t, preview.Applied)
	assert.Nil(t, preview.Workflow)

	applied, err := svc.GenerateFixes(ctx, FixRequest{Workflow: rawFixture(t), Apply: true})
	require.NoError(t, err)
	require.True(t, applied.Applied)
	fetch, ok := applied.Workflow.NodeByName("Fetch")
	require.True(t, ok)
	assert.Equal(t, "={{ $json.url }}", fetch.Parameters["url"])
	require.NotNil(t, applied.Validation)
	assert.Empty(t, applied.Validation.ErrorsWithCode(validator.CodeExpressionFormat))

	n, err := testutil.GatherAndCount(reg, "flowsmith_fixes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	filtered, err := svc.GenerateFixes(ctx, FixRequest{
		Workflow: rawFixture(t),
		Options:  autofix.Options{FixTypes: []autofix.FixType{autofix.FixTypeVersion}},
	})
	require.NoError(t, err)
	assert.Empty(t, filtered.Fixes)
}

func TestSearchNodes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	hits, err := svc.SearchNodes(ctx, "slack", 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "n8n-nodes-base.slack", hits[0].Type)
	assert.NotZero(t, hits[0].Latest)

	_, err = svc.SearchNodes(ctx, "  ", 5)
	assert.Equal(t, "validation", errors.TypeOf(err))
}

func TestNodeInfo(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, name := range []string{"n8n-nodes-base.slack", "nodes-base.slack", "slack"} {
		t.Run(name, func(t *testing.T) {
			info, err := svc.NodeInfo(ctx, NodeInfoRequest{Type: name})
			require.NoError(t, err)
			m, ok := info.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "n8n-nodes-base.slack", m["name"])
			assert.Contains(t, m, "required")
		})
	}

	full, err := svc.NodeInfo(ctx, NodeInfoRequest{Type: "slack", Detail: DetailFull})
	require.NoError(t, err)
	assert.IsType(t, &catalog.NodeType{}, full)

	trigger, err := svc.NodeInfo(ctx, NodeInfoRequest{Type: "webhook", Filter: ".trigger"})
	require.NoError(t, err)
	assert.Equal(t, true, trigger)

	_, err = svc.NodeInfo(ctx, NodeInfoRequest{Type: "nope.nothing"})
	assert.Equal(t, "not_found", errors.TypeOf(err))

	_, err = svc.NodeInfo(ctx, NodeInfoRequest{Type: "slack", Filter: ".["})
	assert.Equal(t, "validation", errors.TypeOf(err))

	_, err = svc.NodeInfo(ctx, NodeInfoRequest{Type: "slack", Detail: "some"})
	assert.Equal(t, "validation", errors.TypeOf(err))
}

func TestTemplates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	all, err := svc.Templates(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, all)

	slack, err := svc.Templates(ctx, "slack")
	require.NoError(t, err)
	assert.NotEmpty(t, slack)
	assert.LessOrEqual(t, len(slack), len(all))

	data, err := svc.Template(ctx, "webhook-to-slack", "My Alerts")
	require.NoError(t, err)
	var wf map[string]any
	require.NoError(t, json.Unmarshal(data, &wf))
	assert.Equal(t, "My Alerts", wf["name"])

	_, err = svc.Template(ctx, "missing", "")
	assert.Equal(t, "not_found", errors.TypeOf(err))
}

func TestHealth(t *testing.T) {
	svc, _ := newService(t)
	h := svc.Health(context.Background())
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, svc.Snapshot().Len(), h.NodeTypes)
}
