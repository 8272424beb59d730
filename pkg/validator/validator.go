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

package validator

import (
	"fmt"
	"log/slog"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/workflow"
)

// Validator checks workflow graphs against a node catalog. A Validator holds
// no per-call state, so one instance may serve concurrent calls.
type Validator struct {
	catalog    catalog.Catalog
	visibility *catalog.Visibility
	values     *catalog.ValueChecker
	logger     *slog.Logger
}

// New creates a validator backed by cat.
func New(cat catalog.Catalog) *Validator {
	return &Validator{
		catalog:    cat,
		visibility: catalog.NewVisibility(),
		values:     catalog.NewValueChecker(),
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger for the validator.
func (v *Validator) WithLogger(logger *slog.Logger) *Validator {
	v.logger = logger
	return v
}

// Catalog returns the catalog the validator was built with.
func (v *Validator) Catalog() catalog.Catalog {
	return v.catalog
}

// ValidateWorkflow validates raw workflow data. raw may be a decoded JSON
// value, a *workflow.Workflow, or JSON/YAML bytes. Malformed input yields an
// invalid result with a single structural error; it never panics.
func (v *Validator) ValidateWorkflow(raw any, opts Options) Result {
	return v.ValidateInput(workflow.Decode(raw), opts)
}

// ValidateInput validates an already decoded input.
func (v *Validator) ValidateInput(in workflow.Input, opts Options) Result {
	return v.run(in, opts.resolve())
}

// ValidateConnectionsOnly runs the connection dimension and the graph-level
// connectivity rules without node or expression checks.
func (v *Validator) ValidateConnectionsOnly(raw any) Result {
	return v.run(workflow.Decode(raw), dimensions{connections: true, profile: DefaultProfile})
}

// ValidateExpressionsOnly runs the expression dimension only.
func (v *Validator) ValidateExpressionsOnly(raw any) Result {
	return v.run(workflow.Decode(raw), dimensions{expressions: true, profile: DefaultProfile})
}

func (v *Validator) run(in workflow.Input, dims dimensions) Result {
	c := newCollector()
	if !in.OK() {
		reason := in.Malformed
		if reason == "" {
			reason = "workflow is null"
		}
		c.errorf(CodeInvalidStructure, CategoryStructural, Issue{
			Message: fmt.Sprintf("Invalid workflow structure: %s", reason),
		})
		v.logger.Debug("workflow rejected as malformed", slog.String("reason", reason))
		return c.finish()
	}

	g := newGraph(in.Workflow, v.catalog)
	c.stats().TotalNodes = len(g.wf.Nodes)
	for i := range g.wf.Nodes {
		if !g.wf.Nodes[i].Disabled {
			c.stats().EnabledNodes++
		}
	}

	if dims.structure {
		v.reportDecodeIssues(c, in, decodeNodes)
		v.checkNodes(c, g, in)
	}
	if dims.connections {
		v.reportDecodeIssues(c, in, decodeConnections)
		v.checkConnections(c, g)
		v.checkErrorOutputs(c, g)
	}
	if dims.structure || dims.connections {
		v.checkGraph(c, g, dims)
	}
	if dims.structure && dims.nodes {
		v.checkNodeConfigs(c, g, dims.profile)
	}
	if dims.expressions {
		v.checkExpressions(c, g)
	}

	result := c.finish()
	v.logger.Debug("workflow validated",
		slog.Bool("valid", result.Valid),
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)),
		slog.String("profile", string(dims.profile)))
	return result
}

// decodeScope selects which decode issues a pass reports.
type decodeScope int

const (
	decodeNodes decodeScope = iota
	decodeConnections
)

func (v *Validator) reportDecodeIssues(c *collector, in workflow.Input, scope decodeScope) {
	for _, is := range in.Issues {
		switch {
		case is.Scope == workflow.ScopeConnection && scope == decodeConnections:
			c.stats().InvalidConnections++
			c.errorf(CodeInvalidConn, CategoryStructural, Issue{
				NodeName: is.NodeName,
				Field:    is.Field,
				Message:  fmt.Sprintf("Invalid connection at %s: %s", is.Field, is.Message),
			})
		case is.Scope != workflow.ScopeConnection && scope == decodeNodes:
			c.errorf(CodeInvalidField, CategoryStructural, Issue{
				NodeID:   is.NodeID,
				NodeName: is.NodeName,
				Field:    is.Field,
				Message:  is.Message,
			})
		}
	}
}

// graph indexes a workflow for one validation call.
type graph struct {
	wf      *workflow.Workflow
	cat     catalog.Catalog
	byName  map[string]int
	byID    map[string]int
	types   []*catalog.NodeType
	names   map[string]bool
	trigger []bool
}

func newGraph(wf *workflow.Workflow, cat catalog.Catalog) *graph {
	g := &graph{
		wf:      wf,
		cat:     cat,
		byName:  make(map[string]int, len(wf.Nodes)),
		byID:    make(map[string]int, len(wf.Nodes)),
		types:   make([]*catalog.NodeType, len(wf.Nodes)),
		names:   make(map[string]bool, len(wf.Nodes)),
		trigger: make([]bool, len(wf.Nodes)),
	}
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if _, dup := g.byName[n.Name]; !dup {
			g.byName[n.Name] = i
		}
		if _, dup := g.byID[n.ID]; n.ID != "" && !dup {
			g.byID[n.ID] = i
		}
		g.names[n.Name] = true
		if cat == nil {
			continue
		}
		if t, ok := cat.Lookup(n.Type); ok {
			g.types[i] = t
			g.trigger[i] = t.Trigger || t.Webhook
		}
	}
	return g
}

// node returns the node with name and its catalog type, if known.
func (g *graph) node(name string) (*workflow.Node, *catalog.NodeType, bool) {
	i, ok := g.byName[name]
	if !ok {
		return nil, nil, false
	}
	return &g.wf.Nodes[i], g.types[i], true
}

// nodeByID returns the node whose id equals ref.
func (g *graph) nodeByID(ref string) (*workflow.Node, bool) {
	i, ok := g.byID[ref]
	if !ok {
		return nil, false
	}
	return &g.wf.Nodes[i], true
}

func nodeIssue(n *workflow.Node) Issue {
	return Issue{NodeID: n.ID, NodeName: n.Name}
}
