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
	"slices"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// arena holds the scratch copy of a graph while a batch is applied. Nodes
// keep their slot for the whole batch; removal leaves a nil slot so indexes
// stay stable.
type arena struct {
	wf     *workflow.Workflow
	nodes  []*workflow.Node
	byName map[string]int
	byID   map[string]int
}

func newArena(wf *workflow.Workflow) *arena {
	scratch := wf.Clone()
	if scratch.Connections == nil {
		scratch.Connections = workflow.Connections{}
	}
	a := &arena{wf: scratch, nodes: make([]*workflow.Node, len(scratch.Nodes))}
	for i := range scratch.Nodes {
		a.nodes[i] = &scratch.Nodes[i]
	}
	a.reindex()
	return a
}

// reindex rebuilds the name and id indexes from the live nodes. The first
// node with a given name or id wins, as in validation.
func (a *arena) reindex() {
	a.byName = make(map[string]int, len(a.nodes))
	a.byID = make(map[string]int, len(a.nodes))
	for i, n := range a.nodes {
		if n == nil {
			continue
		}
		if _, ok := a.byName[n.Name]; !ok {
			a.byName[n.Name] = i
		}
		if _, ok := a.byID[n.ID]; n.ID != "" && !ok {
			a.byID[n.ID] = i
		}
	}
}

// resolve finds the node a reference points at.
func (a *arena) resolve(ref NodeRef) (int, bool) {
	if ref.NodeID != "" {
		if i, ok := a.byID[ref.NodeID]; ok {
			return i, true
		}
		if i, ok := a.byName[ref.NodeID]; ok {
			return i, true
		}
	}
	if ref.NodeName != "" {
		return a.resolveName(ref.NodeName)
	}
	return -1, false
}

// resolveName finds a node by name, falling back to id.
func (a *arena) resolveName(ref string) (int, bool) {
	if i, ok := a.byName[ref]; ok {
		return i, true
	}
	if i, ok := a.byID[ref]; ok {
		return i, true
	}
	return -1, false
}

func (a *arena) add(n workflow.Node) {
	a.nodes = append(a.nodes, &n)
	i := len(a.nodes) - 1
	a.byName[n.Name] = i
	if n.ID != "" {
		a.byID[n.ID] = i
	}
}

// remove deletes node i and every connection from or to it.
func (a *arena) remove(i int) {
	n := a.nodes[i]
	a.nodes[i] = nil
	delete(a.byName, n.Name)
	if a.byID[n.ID] == i {
		delete(a.byID, n.ID)
	}
	a.dropConnections(n.Name)
}

func (a *arena) dropConnections(name string) {
	delete(a.wf.Connections, name)
	for src, ports := range a.wf.Connections {
		for port, slots := range ports {
			for out, slot := range slots {
				slots[out] = slices.DeleteFunc(slot, func(c workflow.Connection) bool {
					return c.Node == name
				})
			}
			ports[port] = slots
		}
		a.prune(src)
	}
}

// rename changes node i's name and rewrites connection keys and targets.
func (a *arena) rename(i int, name string) {
	old := a.nodes[i].Name
	a.nodes[i].Name = name
	delete(a.byName, old)
	a.byName[name] = i

	if ports, ok := a.wf.Connections[old]; ok {
		delete(a.wf.Connections, old)
		a.wf.Connections[name] = ports
	}
	for _, ports := range a.wf.Connections {
		for _, slots := range ports {
			for _, slot := range slots {
				for k := range slot {
					if slot[k].Node == old {
						slot[k].Node = name
					}
				}
			}
		}
	}
}

func (a *arena) connect(src, port string, out int, c workflow.Connection) {
	ports := a.wf.Connections[src]
	if ports == nil {
		ports = map[string][][]workflow.Connection{}
		a.wf.Connections[src] = ports
	}
	slots := ports[port]
	for len(slots) <= out {
		slots = append(slots, []workflow.Connection{})
	}
	slots[out] = append(slots[out], c)
	ports[port] = slots
}

// edge is one matched connection target.
type edge struct {
	output int
	conn   workflow.Connection
}

// find returns the targets of src's port that point at dst. A nil output
// searches every slot; an empty input matches any input type.
func (a *arena) find(src, port string, output *int, dst, input string) []edge {
	var out []edge
	for i, slot := range a.wf.Connections[src][port] {
		if output != nil && *output != i {
			continue
		}
		for _, c := range slot {
			if c.Node == dst && (input == "" || c.Type == input) {
				out = append(out, edge{output: i, conn: c})
			}
		}
	}
	return out
}

// link is one connection target with its full address.
type link struct {
	source string
	port   string
	output int
	conn   workflow.Connection
}

// touching returns every connection from or to name in a stable order.
func (a *arena) touching(name string) []link {
	var out []link
	for _, src := range workflow.SortedKeys(a.wf.Connections) {
		ports := a.wf.Connections[src]
		for _, port := range workflow.PortTypes(ports) {
			for i, slot := range ports[port] {
				for _, c := range slot {
					if src == name || c.Node == name {
						out = append(out, link{source: src, port: port, output: i, conn: c})
					}
				}
			}
		}
	}
	return out
}

// disconnect removes the given targets from src's port.
func (a *arena) disconnect(src, port string, edges []edge) {
	slots := a.wf.Connections[src][port]
	for _, e := range edges {
		slots[e.output] = slices.DeleteFunc(slots[e.output], func(c workflow.Connection) bool {
			return c == e.conn
		})
	}
	a.prune(src)
}

// prune drops trailing empty output slots, then empty ports and sources.
func (a *arena) prune(src string) {
	ports := a.wf.Connections[src]
	for port, slots := range ports {
		end := len(slots)
		for end > 0 && len(slots[end-1]) == 0 {
			end--
		}
		if end == 0 {
			delete(ports, port)
			continue
		}
		ports[port] = slots[:end]
	}
	if len(ports) == 0 {
		delete(a.wf.Connections, src)
	}
}

// graph returns the scratch workflow with its node list rebuilt.
func (a *arena) graph() *workflow.Workflow {
	nodes := make([]workflow.Node, 0, len(a.nodes))
	for _, n := range a.nodes {
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	a.wf.Nodes = nodes
	return a.wf
}
