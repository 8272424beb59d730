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

// Clone returns a deep copy of the workflow. Parameter trees are copied
// through maps and slices; scalar leaves are shared.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		ID:          w.ID,
		Name:        w.Name,
		Active:      w.Active,
		Settings:    CloneMap(w.Settings),
		PinData:     CloneMap(w.PinData),
		Meta:        CloneMap(w.Meta),
		StaticData:  CloneValue(w.StaticData),
		Connections: w.Connections.Clone(),
	}
	if w.Tags != nil {
		out.Tags = append([]string(nil), w.Tags...)
	}
	if w.Nodes != nil {
		out.Nodes = make([]Node, len(w.Nodes))
		for i := range w.Nodes {
			out.Nodes[i] = w.Nodes[i].Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Parameters = CloneMap(n.Parameters)
	out.Credentials = CloneMap(n.Credentials)
	if n.Position != nil {
		out.Position = append([]float64(nil), n.Position...)
	}
	if n.TypeVersion != nil {
		v := *n.TypeVersion
		out.TypeVersion = &v
	}
	if n.ContinueOnFail != nil {
		v := *n.ContinueOnFail
		out.ContinueOnFail = &v
	}
	if n.MaxTries != nil {
		v := *n.MaxTries
		out.MaxTries = &v
	}
	if n.WaitBetweenTries != nil {
		v := *n.WaitBetweenTries
		out.WaitBetweenTries = &v
	}
	return out
}

// Clone returns a deep copy of the connection map.
func (c Connections) Clone() Connections {
	if c == nil {
		return Connections{}
	}
	out := make(Connections, len(c))
	for src, ports := range c {
		cp := make(map[string][][]Connection, len(ports))
		for port, slots := range ports {
			s := make([][]Connection, len(slots))
			for i, slot := range slots {
				s[i] = append([]Connection{}, slot...)
			}
			cp[port] = s
		}
		out[src] = cp
	}
	return out
}

// CloneMap deep copies a generic object.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies generic JSON-like values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	}
	return v
}
