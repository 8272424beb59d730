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
	"strings"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// checkGraph runs the whole-graph rules.
func (v *Validator) checkGraph(c *collector, g *graph, dims dimensions) {
	nodes := g.wf.Nodes
	switch {
	case len(nodes) == 0:
		if dims.structure {
			c.warnf(CodeEmptyWorkflow, CategoryStructural, Issue{
				Message:    "Workflow is empty: no nodes defined",
				Suggestion: "Add a trigger node to start the workflow",
			})
		}
		return
	case len(nodes) == 1:
		if t := g.types[0]; dims.structure && t != nil && !t.Trigger && !t.Webhook {
			is := nodeIssue(&nodes[0])
			is.Message = fmt.Sprintf("Single-node workflow %q must use a trigger or webhook node; %s cannot start a workflow", nodes[0].Name, t.Name)
			is.Suggestion = "Add a trigger node and connect it to this node"
			c.errorf(CodeSingleNode, CategoryStructural, is)
		}
		return
	}

	if dims.structure && !hasTrigger(g) {
		c.warnf(CodeNoTrigger, CategoryAdvisory, Issue{
			Message:    "Workflow has no trigger node; it can only be started manually or from another workflow",
			Suggestion: "Add a trigger node such as a webhook, schedule or manual trigger",
		})
	}
	if !dims.connections {
		return
	}
	if countTargets(g.wf.Connections) == 0 {
		c.errorf(CodeEmptyConnections, CategoryStructural, Issue{
			Message:    fmt.Sprintf("Workflow has %d nodes but no connections", len(nodes)),
			Suggestion: "Connect the nodes; connections are keyed by source node name",
		})
		return
	}
	checkOrphans(c, g)
	if cycle := findCycle(g); len(cycle) > 0 {
		c.warnf(CodeCycle, CategorySemantic, Issue{
			Message:    "Workflow contains a cycle: " + strings.Join(cycle, " -> "),
			Details:    map[string]any{"cycle": cycle},
			Suggestion: "Make sure loops terminate, for example through a Loop Over Items node",
		})
	}
}

func hasTrigger(g *graph) bool {
	for i := range g.wf.Nodes {
		if g.trigger[i] && !g.wf.Nodes[i].Disabled {
			return true
		}
	}
	return false
}

func countTargets(conns workflow.Connections) int {
	n := 0
	for _, ports := range conns {
		for _, slots := range ports {
			for _, slot := range slots {
				n += len(slot)
			}
		}
	}
	return n
}

// checkOrphans warns about enabled nodes with no connection in either direction.
func checkOrphans(c *collector, g *graph) {
	linked := make(map[string]bool, len(g.wf.Nodes))
	for src, ports := range g.wf.Connections {
		for _, slots := range ports {
			for _, slot := range slots {
				for _, t := range slot {
					linked[src] = true
					linked[t.Node] = true
				}
			}
		}
	}
	for i := range g.wf.Nodes {
		n := &g.wf.Nodes[i]
		if n.Disabled || linked[n.Name] {
			continue
		}
		is := nodeIssue(n)
		is.Message = fmt.Sprintf("Node %q is not connected to any other node", n.Name)
		is.Suggestion = "Connect the node or remove it"
		c.warnf(CodeOrphanNode, CategoryAdvisory, is)
	}
}

// findCycle returns the node names of the first cycle reached over main
// connections, or nil.
func findCycle(g *graph) []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.wf.Nodes))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		state[name] = active
		stack = append(stack, name)
		for _, slot := range g.wf.Connections[name][workflow.PortMain] {
			for _, t := range slot {
				if _, _, ok := g.node(t.Node); !ok {
					continue
				}
				switch state[t.Node] {
				case active:
					for i, s := range stack {
						if s == t.Node {
							cycle = append(append([]string{}, stack[i:]...), t.Node)
							return true
						}
					}
				case unvisited:
					if visit(t.Node) {
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	for i := range g.wf.Nodes {
		name := g.wf.Nodes[i].Name
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}
