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

// Package workflow defines the node/connection graph that flowsmith validates
// and edits, and the tolerant decoder that turns arbitrary external input into
// that graph.
package workflow

import (
	"cmp"
	"slices"
	"strings"
)

// Port types used by connections.
const (
	PortMain   = "main"
	PortAITool = "ai_tool"
)

// OnError controls how the runtime continues after a node fails.
type OnError string

const (
	// OnErrorUnset means the runtime default (stop the workflow).
	OnErrorUnset OnError = ""

	// OnErrorContinueRegular passes the failed item to the regular output.
	OnErrorContinueRegular OnError = "continueRegularOutput"

	// OnErrorContinueError routes the failed item to the error output.
	OnErrorContinueError OnError = "continueErrorOutput"

	// OnErrorStop stops the workflow.
	OnErrorStop OnError = "stopWorkflow"
)

// Valid reports whether o is unset or one of the known values.
func (o OnError) Valid() bool {
	switch o {
	case OnErrorUnset, OnErrorContinueRegular, OnErrorContinueError, OnErrorStop:
		return true
	}
	return false
}

// Workflow is a graph of typed nodes joined by typed, indexed connections.
type Workflow struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Nodes       []Node         `json:"nodes" yaml:"nodes"`
	Connections Connections    `json:"connections" yaml:"connections"`
	Settings    map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Active      bool           `json:"active,omitempty" yaml:"active,omitempty"`
	PinData     map[string]any `json:"pinData,omitempty" yaml:"pinData,omitempty"`
	StaticData  any            `json:"staticData,omitempty" yaml:"staticData,omitempty"`
	Meta        map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Node is one configured step of a workflow.
type Node struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	TypeVersion *float64       `json:"typeVersion,omitempty" yaml:"typeVersion,omitempty"`
	Position    []float64      `json:"position" yaml:"position"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
	Credentials map[string]any `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	Disabled         bool    `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	OnError          OnError `json:"onError,omitempty" yaml:"onError,omitempty"`
	ContinueOnFail   *bool   `json:"continueOnFail,omitempty" yaml:"continueOnFail,omitempty"`
	RetryOnFail      bool    `json:"retryOnFail,omitempty" yaml:"retryOnFail,omitempty"`
	MaxTries         *int    `json:"maxTries,omitempty" yaml:"maxTries,omitempty"`
	WaitBetweenTries *int    `json:"waitBetweenTries,omitempty" yaml:"waitBetweenTries,omitempty"`
	AlwaysOutputData bool    `json:"alwaysOutputData,omitempty" yaml:"alwaysOutputData,omitempty"`
	ExecuteOnce      bool    `json:"executeOnce,omitempty" yaml:"executeOnce,omitempty"`
	Notes            string  `json:"notes,omitempty" yaml:"notes,omitempty"`
	WebhookID        string  `json:"webhookId,omitempty" yaml:"webhookId,omitempty"`
}

// Connection is one target of an output slot.
type Connection struct {
	Node  string `json:"node" yaml:"node"`
	Type  string `json:"type" yaml:"type"`
	Index int    `json:"index" yaml:"index"`
}

// Connections maps source node name -> port type -> output index -> targets.
type Connections map[string]map[string][][]Connection

// Edge is one flattened connection target with its full address.
type Edge struct {
	Source   string
	Port     string
	Output   int
	Position int
	Target   Connection
}

// Float returns a pointer to v, for building nodes with a TypeVersion.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// NodeByName returns the node with the given name.
func (w *Workflow) NodeByName(name string) (*Node, bool) {
	for i := range w.Nodes {
		if w.Nodes[i].Name == name {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// NodeByID returns the node with the given id.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	if id == "" {
		return nil, false
	}
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i], true
		}
	}
	return nil, false
}

// Sources returns the connection source names in a stable order: names that
// match a node in node order first, then any unknown keys sorted.
func (w *Workflow) Sources() []string {
	seen := make(map[string]bool, len(w.Connections))
	out := make([]string, 0, len(w.Connections))
	for _, n := range w.Nodes {
		if _, ok := w.Connections[n.Name]; ok && !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n.Name)
		}
	}
	var rest []string
	for name := range w.Connections {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// PortTypes returns the port types of one source, "main" first.
func PortTypes(ports map[string][][]Connection) []string {
	out := make([]string, 0, len(ports))
	for p := range ports {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b string) int {
		if a == b {
			return 0
		}
		if a == PortMain {
			return -1
		}
		if b == PortMain {
			return 1
		}
		return strings.Compare(a, b)
	})
	return out
}

// Edges flattens the connection map in deterministic order.
func (w *Workflow) Edges() []Edge {
	var edges []Edge
	for _, src := range w.Sources() {
		ports := w.Connections[src]
		for _, port := range PortTypes(ports) {
			for out, slot := range ports[port] {
				for pos, target := range slot {
					edges = append(edges, Edge{Source: src, Port: port, Output: out, Position: pos, Target: target})
				}
			}
		}
	}
	return edges
}

// TargetCount returns the number of targets in slot output of port on source.
func (c Connections) TargetCount(source, port string, output int) int {
	slots := c[source][port]
	if output < 0 || output >= len(slots) {
		return 0
	}
	return len(slots[output])
}

// Has reports whether the exact edge exists.
func (c Connections) Has(source, port string, output int, target Connection) bool {
	slots := c[source][port]
	if output < 0 || output >= len(slots) {
		return false
	}
	return slices.Contains(slots[output], target)
}

// Inbound returns how many connection targets point at name.
func (c Connections) Inbound(name string) int {
	n := 0
	for _, ports := range c {
		for _, slots := range ports {
			for _, slot := range slots {
				for _, t := range slot {
					if t.Node == name {
						n++
					}
				}
			}
		}
	}
	return n
}

// SortedKeys returns the keys of m in sorted order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}
