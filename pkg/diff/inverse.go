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
	"encoding/json"
	"slices"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// Inverse returns a batch that undoes ops when applied to the graph ops
// produced from original. Only addNode, removeNode, addConnection and
// removeConnection can be inverted; any other operation is an
// invalid_operation error. The result may be longer than MaxOperations;
// Chunk splits it into batches that can be applied in order.
func Inverse(original *workflow.Workflow, ops []Operation) ([]Operation, error) {
	if original == nil {
		return nil, &OperationError{Index: -1, Kind: KindInvalidOperation, Message: "workflow is required"}
	}
	if err := checkBatchSize(len(ops)); err != nil {
		return nil, err
	}

	a := newArena(original)
	base := len(a.nodes)
	// added reports whether a node name currently belongs to a node created
	// by this batch. Such nodes are removed by the inverse, taking their
	// connections with them.
	added := func(name string) bool {
		i, ok := a.byName[name]
		return ok && i >= base
	}
	restore := func(l link) Operation {
		out, in := l.output, l.conn.Index
		return AddConnection{
			Source:       l.source,
			Target:       l.conn.Node,
			SourceOutput: l.port,
			TargetInput:  l.conn.Type,
			SourceIndex:  &out,
			TargetIndex:  &in,
		}
	}

	var nodeGroups, edgeGroups [][]Operation
	for i, op := range ops {
		switch o := op.(type) {
		case AddNode:
			n, issues := workflow.DecodeNode(o.Node)
			if len(issues) > 0 || n.Name == "" {
				return nil, opError(i, OpAddNode, KindInvalidOperation, "node must have a name")
			}
			if _, exists := a.byName[n.Name]; exists {
				return nil, opError(i, OpAddNode, KindConflict, "a node named %q already exists", n.Name)
			}
			a.add(n)
			nodeGroups = append(nodeGroups, []Operation{RemoveNode{NodeRef: ByName(n.Name)}})
		case RemoveNode:
			idx, ok := a.resolve(o.NodeRef)
			if !ok {
				return nil, unknownNode(i, op, o.label())
			}
			n := *a.nodes[idx]
			group := []Operation{AddNode{Node: nodeMap(n)}}
			for _, l := range a.touching(n.Name) {
				if !added(l.source) && !added(l.conn.Node) {
					group = append(group, restore(l))
				}
			}
			a.remove(idx)
			nodeGroups = append(nodeGroups, group)
		}
	}
	a.reindex()

	for i, op := range ops {
		switch o := op.(type) {
		case AddNode, RemoveNode:
		case AddConnection:
			l, err := addConnection(a, i, o)
			if err != nil {
				return nil, err
			}
			if added(l.source) || added(l.conn.Node) {
				continue
			}
			out := l.output
			edgeGroups = append(edgeGroups, []Operation{RemoveConnection{
				Source:       l.source,
				Target:       l.conn.Node,
				SourceOutput: l.port,
				TargetInput:  l.conn.Type,
				SourceIndex:  &out,
				IgnoreErrors: true,
			}})
		case RemoveConnection:
			removed, err := removeConnection(a, i, o)
			if err != nil {
				return nil, err
			}
			var group []Operation
			for _, l := range removed {
				if !added(l.source) && !added(l.conn.Node) {
					group = append(group, restore(l))
				}
			}
			edgeGroups = append(edgeGroups, group)
		default:
			return nil, opError(i, op.Type(), KindInvalidOperation, "%s cannot be inverted", op.Type())
		}
	}

	var inverse []Operation
	for _, groups := range [][][]Operation{edgeGroups, nodeGroups} {
		for _, g := range slices.Backward(groups) {
			inverse = append(inverse, g...)
		}
	}
	return inverse, nil
}

// Chunk splits ops into batches of at most MaxOperations, keeping order.
func Chunk(ops []Operation) [][]Operation {
	return slices.Collect(slices.Chunk(ops, MaxOperations))
}

// nodeMap renders n in the wire form addNode accepts.
func nodeMap(n workflow.Node) map[string]any {
	data, err := json.Marshal(n)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
