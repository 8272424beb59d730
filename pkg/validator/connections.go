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

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/workflow"
)

// checkConnections validates every connection target. Each target is
// counted as valid or invalid exactly once.
func (v *Validator) checkConnections(c *collector, g *graph) {
	for _, src := range g.wf.Sources() {
		ports := g.wf.Connections[src]
		srcNode, srcType, ok := g.node(src)
		if !ok {
			v.reportUnknownSource(c, g, src, ports)
			continue
		}
		for _, port := range workflow.PortTypes(ports) {
			checkPort(c, srcNode, srcType, port, ports[port])
			for out, slot := range ports[port] {
				for _, target := range slot {
					edge := workflow.Edge{Source: src, Port: port, Output: out, Target: target}
					if v.checkEdge(c, g, srcNode, srcType, edge) {
						c.stats().ValidConnections++
					} else {
						c.stats().InvalidConnections++
					}
				}
			}
		}
	}
}

func (v *Validator) reportUnknownSource(c *collector, g *graph, src string, ports map[string][][]workflow.Connection) {
	targets := 0
	for _, slots := range ports {
		for _, slot := range slots {
			targets += len(slot)
		}
	}
	c.stats().InvalidConnections += targets

	if n, ok := g.nodeByID(src); ok {
		c.errorf(CodeSourceByID, CategoryReferential, Issue{
			NodeID:     n.ID,
			NodeName:   n.Name,
			Message:    fmt.Sprintf("Connection uses node ID %q instead of node name %q", src, n.Name),
			Suggestion: fmt.Sprintf("Key the connection by the node name %q", n.Name),
			Details:    map[string]any{"source": src, "fixedSource": n.Name},
		})
		return
	}
	c.errorf(CodeUnknownSource, CategoryReferential, Issue{
		Message: fmt.Sprintf("Connection from non-existent node: %q", src),
		Details: map[string]any{"source": src},
	})
}

// checkPort reports port-level problems once per source and port.
func checkPort(c *collector, n *workflow.Node, t *catalog.NodeType, port string, slots [][]workflow.Connection) {
	is := nodeIssue(n)
	is.Field = "connections." + port
	if !catalog.IsKnownPort(port) {
		is.Message = fmt.Sprintf("Node %q uses unknown connection type %q", n.Name, port)
		is.Details = map[string]any{"knownTypes": catalog.KnownPorts}
		c.warnf(CodeUnknownPort, CategorySemantic, is)
		return
	}
	if t == nil {
		return
	}
	if port != catalog.PortAITool && !t.EmitsOutput(port) {
		is.Message = fmt.Sprintf("Node %q (%s) does not produce %s output", n.Name, t.Name, port)
		c.warnf(CodeOutputNotEmitted, CategorySemantic, is)
	}
	if port != catalog.PortMain {
		return
	}
	// Index MainOutputs() is the error output; anything past it is unreachable.
	limit := t.MainOutputs()
	for out := limit + 1; out < len(slots); out++ {
		if len(slots[out]) == 0 {
			continue
		}
		e := is
		e.Field = fmt.Sprintf("connections.main[%d]", out)
		e.Message = fmt.Sprintf("Node %q has connections at main[%d] but %s has %d main output(s)", n.Name, out, t.Name, limit)
		e.Details = map[string]any{"outputIndex": out, "outputs": limit}
		c.warnf(CodeOutputRange, CategorySemantic, e)
	}
}

// checkEdge validates one target and reports whether it counts as valid.
func (v *Validator) checkEdge(c *collector, g *graph, src *workflow.Node, srcType *catalog.NodeType, e workflow.Edge) bool {
	is := nodeIssue(src)
	is.Field = fmt.Sprintf("connections.%s[%d]", e.Port, e.Output)
	is.Details = map[string]any{
		"source":      e.Source,
		"target":      e.Target.Node,
		"type":        e.Port,
		"outputIndex": e.Output,
	}

	dst, dstType, ok := g.node(e.Target.Node)
	if !ok {
		if n, byID := g.nodeByID(e.Target.Node); byID {
			is.Message = fmt.Sprintf("Connection target uses node ID %q instead of node name %q (from %s)", e.Target.Node, n.Name, e.Source)
			is.Suggestion = fmt.Sprintf("Reference the target by name %q", n.Name)
			is.Details["fixedTarget"] = n.Name
			c.errorf(CodeTargetByID, CategoryReferential, is)
			return false
		}
		is.Message = fmt.Sprintf("Connection to non-existent node: %s (from %s)", e.Target.Node, e.Source)
		c.errorf(CodeUnknownTarget, CategoryReferential, is)
		return false
	}

	valid := true
	if e.Target.Index < 0 {
		is.Message = fmt.Sprintf("Connection from %s to %s has negative input index %d", e.Source, dst.Name, e.Target.Index)
		c.errorf(CodeNegativeIndex, CategoryRange, is)
		valid = false
	}
	if dst.Name == src.Name {
		w := is
		w.Message = fmt.Sprintf("Node %q is connected to itself", src.Name)
		c.warnf(CodeSelfReference, CategorySemantic, w)
	}
	if e.Target.Type != e.Port {
		w := is
		w.Message = fmt.Sprintf("Connection from %s to %s is declared under %s but targets input type %s", e.Source, dst.Name, e.Port, e.Target.Type)
		c.warnf(CodePortMismatch, CategorySemantic, w)
	}

	inputType := e.Target.Type
	if inputType == catalog.PortAITool || e.Port == catalog.PortAITool {
		if dstType != nil && !dstType.AgentCapable {
			x := is
			x.Message = fmt.Sprintf("Node %q (%s) cannot accept ai_tool connections; only agent nodes use tools", dst.Name, dstType.Name)
			x.Suggestion = "Connect tools to an AI Agent node"
			c.errorf(CodeToolTarget, CategorySemantic, x)
			valid = false
		}
		if srcType != nil && !srcType.ToolCapable {
			w := is
			w.Message = fmt.Sprintf("Node %q (%s) is not tool-capable but is connected as an ai_tool", src.Name, srcType.Name)
			c.warnf(CodeToolSource, CategorySemantic, w)
		}
		return valid
	}
	if dstType != nil && catalog.IsKnownPort(inputType) && !dstType.AcceptsInput(inputType) {
		w := is
		w.Message = fmt.Sprintf("Node %q (%s) does not accept %s input", dst.Name, dstType.Name, inputType)
		c.warnf(CodeInputRejected, CategorySemantic, w)
	}
	return valid
}

// handlerHints mark target names that look like error handlers.
var handlerHints = []string{"error", "fail", "catch", "exception", "fallback"}

func looksLikeHandler(name string) bool {
	lower := strings.ToLower(name)
	for _, h := range handlerHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

// checkErrorOutputs enforces the error-output wiring rules. A node's error
// output is main[k] where k is its number of regular main outputs.
func (v *Validator) checkErrorOutputs(c *collector, g *graph) {
	for i := range g.wf.Nodes {
		n := &g.wf.Nodes[i]
		if n.Name == "" || g.byName[n.Name] != i {
			continue
		}
		errIndex := 1
		if t := g.types[i]; t != nil {
			errIndex = t.MainOutputs()
		}
		slots := g.wf.Connections[n.Name][workflow.PortMain]
		errTargets := g.wf.Connections.TargetCount(n.Name, workflow.PortMain, errIndex)

		is := nodeIssue(n)
		is.Field = "onError"

		if misplaced := misplacedHandlers(n, slots, errIndex, errTargets); misplaced != nil {
			primary := targetNames(slots[0])
			is.Field = "connections.main[0]"
			is.Message = fmt.Sprintf(
				"Node %q has error-handling targets in main[0] (%s); error outputs must be connected at main[%d] with onError set to continueErrorOutput",
				n.Name, strings.Join(primary, ", "), errIndex)
			is.Suggestion = fmt.Sprintf("Keep the success path in main[0] and move %s to main[%d]", strings.Join(misplaced, ", "), errIndex)
			is.Details = map[string]any{
				"main0Targets":   primary,
				"handlerTargets": misplaced,
				"errorOutput":    errIndex,
			}
			c.errorf(CodeErrorOutputMisplaced, CategorySemantic, is)
			continue
		}

		switch {
		case n.OnError == workflow.OnErrorContinueError && errTargets == 0:
			is.Message = fmt.Sprintf("Node %q has onError: continueErrorOutput but no error output connections in main[%d]", n.Name, errIndex)
			is.Suggestion = fmt.Sprintf("Connect an error handler to main[%d], or remove onError", errIndex)
			is.Details = map[string]any{"errorOutput": errIndex}
			c.errorf(CodeErrorOutputMissing, CategorySemantic, is)
		case n.OnError != workflow.OnErrorContinueError && errTargets > 0:
			is.Message = fmt.Sprintf("Node %q has connections in main[%d] but onError is not continueErrorOutput; they will never receive items", n.Name, errIndex)
			is.Suggestion = fmt.Sprintf("Set onError: \"continueErrorOutput\" to route errors to main[%d]", errIndex)
			is.Details = map[string]any{"errorOutput": errIndex}
			c.warnf(CodeErrorOutputUnexpected, CategorySemantic, is)
		}
	}
}

// misplacedHandlers returns the main[0] targets that should be on the error
// output, or nil when the wiring is not the misplaced pattern.
func misplacedHandlers(n *workflow.Node, slots [][]workflow.Connection, errIndex, errTargets int) []string {
	if errIndex != 1 || errTargets > 0 || len(slots) == 0 || len(slots[0]) < 2 {
		return nil
	}
	var handlers []string
	for _, t := range slots[0] {
		if looksLikeHandler(t.Node) {
			handlers = append(handlers, t.Node)
		}
	}
	if len(handlers) > 0 {
		return handlers
	}
	if n.OnError == workflow.OnErrorContinueError {
		// Without a naming hint, the last target is taken as the handler.
		return []string{slots[0][len(slots[0])-1].Node}
	}
	return nil
}

func targetNames(slot []workflow.Connection) []string {
	out := make([]string, len(slot))
	for i, t := range slot {
		out[i] = t.Node
	}
	return out
}
