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
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/tombee/flowsmith/pkg/errors"
)

// maxDepth bounds how deeply nested an input object graph may be.
const maxDepth = 100

// IssueScope says what part of the graph a decode issue belongs to.
type IssueScope int

const (
	ScopeWorkflow IssueScope = iota
	ScopeNode
	ScopeConnection
)

// Issue is a field-level problem found while decoding an otherwise usable graph.
type Issue struct {
	Scope     IssueScope
	NodeIndex int
	NodeName  string
	NodeID    string
	Field     string
	Message   string
}

// Input is the boundary form of a workflow: either a usable graph, possibly
// with field-level issues, or a reason why the data is not a graph at all.
type Input struct {
	Workflow  *Workflow
	Malformed string
	Issues    []Issue
}

// OK reports whether the input decoded into a graph.
func (in Input) OK() bool {
	return in.Workflow != nil && in.Malformed == ""
}

// HasNodeIssue reports whether node index has a decode issue on field.
func (in Input) HasNodeIssue(index int, field string) bool {
	for _, is := range in.Issues {
		if is.Scope == ScopeNode && is.NodeIndex == index && is.Field == field {
			return true
		}
	}
	return false
}

func malformed(format string, args ...any) Input {
	return Input{Malformed: fmt.Sprintf(format, args...)}
}

// Decode converts arbitrary data into an Input. It never panics: nil input,
// wrong shapes, cyclic object graphs and excessive nesting all come back as
// Malformed.
func Decode(raw any) Input {
	switch v := raw.(type) {
	case nil:
		return malformed("workflow is null")
	case *Workflow:
		if v == nil {
			return malformed("workflow is null")
		}
		return Input{Workflow: v}
	case Workflow:
		return Input{Workflow: &v}
	case []byte:
		in, err := Parse(v)
		if err != nil {
			return malformed("%v", err)
		}
		return in
	case json.RawMessage:
		return Decode([]byte(v))
	case string:
		return Decode([]byte(v))
	case map[string]any:
		if err := checkGraph(v, 0, map[uintptr]bool{}); err != nil {
			return malformed("%v", err)
		}
		return decodeMap(v)
	}

	// Anything else (typed structs, maps with other key types) goes through
	// a JSON round trip; encoding/json rejects pointer cycles.
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice {
		if err := checkGraph(normalize(raw), 0, map[uintptr]bool{}); err != nil {
			return malformed("%v", err)
		}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return malformed("cannot encode input: %v", err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return malformed("cannot decode input: %v", err)
	}
	m, ok := generic.(map[string]any)
	if !ok {
		return malformed("workflow must be an object, got %s", kindOf(generic))
	}
	return decodeMap(m)
}

// Parse decodes JSON or YAML bytes. Syntax errors are returned as
// *errors.ParseError; shape problems are reported through Input.
func Parse(data []byte) (Input, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return malformed("workflow is empty"), nil
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return ParseJSON(trimmed)
	}
	return ParseYAML(trimmed)
}

// ParseJSON decodes a JSON workflow document.
func ParseJSON(data []byte) (Input, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return Input{}, &errors.ParseError{Format: "json", Cause: err}
	}
	if generic == nil {
		return malformed("workflow is null"), nil
	}
	if _, ok := generic.(map[string]any); !ok {
		return malformed("workflow must be an object, got %s", kindOf(generic)), nil
	}
	return Decode(generic), nil
}

// ParseYAML decodes a YAML workflow document.
func ParseYAML(data []byte) (Input, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Input{}, &errors.ParseError{Format: "yaml", Cause: err}
	}
	generic = normalize(generic)
	if generic == nil {
		return malformed("workflow is null"), nil
	}
	if _, ok := generic.(map[string]any); !ok {
		return malformed("workflow must be an object, got %s", kindOf(generic)), nil
	}
	return Decode(generic), nil
}

// normalize rewrites map[any]any (produced by YAML for non-string keys) into
// map[string]any. Cycles are left for checkGraph to report.
func normalize(v any) any {
	return normalizeDepth(v, 0)
}

func normalizeDepth(v any, depth int) any {
	if depth > maxDepth {
		return v
	}
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeDepth(val, depth+1)
		}
		return out
	case map[string]any:
		for k, val := range t {
			if _, ok := val.(map[any]any); ok {
				t[k] = normalizeDepth(val, depth+1)
				continue
			}
			normalizeDepth(val, depth+1)
		}
		return t
	case []any:
		for i, val := range t {
			if _, ok := val.(map[any]any); ok {
				t[i] = normalizeDepth(val, depth+1)
				continue
			}
			normalizeDepth(val, depth+1)
		}
		return t
	}
	return v
}

// checkGraph rejects object graphs that refer to themselves or nest too deeply.
func checkGraph(v any, depth int, stack map[uintptr]bool) error {
	if depth > maxDepth {
		return fmt.Errorf("input nesting exceeds %d levels", maxDepth)
	}
	var ptr uintptr
	switch t := v.(type) {
	case map[string]any:
		ptr = reflect.ValueOf(t).Pointer()
		if stack[ptr] {
			return fmt.Errorf("circular reference in input object")
		}
		stack[ptr] = true
		for _, val := range t {
			if err := checkGraph(val, depth+1, stack); err != nil {
				return err
			}
		}
	case []any:
		if len(t) == 0 {
			return nil
		}
		ptr = reflect.ValueOf(t).Pointer()
		if stack[ptr] {
			return fmt.Errorf("circular reference in input object")
		}
		stack[ptr] = true
		for _, val := range t {
			if err := checkGraph(val, depth+1, stack); err != nil {
				return err
			}
		}
	default:
		return nil
	}
	delete(stack, ptr)
	return nil
}

func decodeMap(m map[string]any) Input {
	in := Input{}
	wf := &Workflow{Connections: Connections{}}

	rawNodes, present := m["nodes"]
	if !present || rawNodes == nil {
		return malformed("nodes must be an array")
	}
	nodes, ok := rawNodes.([]any)
	if !ok {
		return malformed("nodes must be an array, got %s", kindOf(rawNodes))
	}

	// Absent or null connections decode as an empty graph.
	if rawConns, present := m["connections"]; present && rawConns != nil {
		conns, ok := rawConns.(map[string]any)
		if !ok {
			return malformed("connections must be an object, got %s", kindOf(rawConns))
		}
		wf.Connections = decodeConnections(conns, &in)
	}

	fields := fieldReader{m: m, add: func(field, msg string) {
		in.Issues = append(in.Issues, Issue{Scope: ScopeWorkflow, NodeIndex: -1, Field: field, Message: msg})
	}}
	wf.ID = fields.id("id")
	wf.Name = fields.str("name")
	wf.Active = fields.boolean("active")
	wf.Settings = fields.object("settings")
	wf.PinData = fields.object("pinData")
	wf.Meta = fields.object("meta")
	wf.StaticData = m["staticData"]
	wf.Tags = decodeTags(m["tags"], fields.add)

	for i, raw := range nodes {
		node, issues, ok := decodeNode(i, raw)
		in.Issues = append(in.Issues, issues...)
		if ok {
			wf.Nodes = append(wf.Nodes, node)
		}
	}

	in.Workflow = wf
	return in
}

// DecodeNode decodes a single node object, as carried by an addNode operation.
func DecodeNode(raw any) (Node, []Issue) {
	if m, ok := raw.(map[string]any); ok {
		if err := checkGraph(m, 0, map[uintptr]bool{}); err != nil {
			return Node{}, []Issue{{Scope: ScopeNode, NodeIndex: -1, Message: err.Error()}}
		}
	}
	n, issues, ok := decodeNode(-1, raw)
	if !ok && len(issues) == 0 {
		issues = append(issues, Issue{Scope: ScopeNode, NodeIndex: -1, Message: "node must be an object"})
	}
	return n, issues
}

func decodeNode(index int, raw any) (Node, []Issue, bool) {
	var issues []Issue
	m, ok := raw.(map[string]any)
	if !ok {
		issues = append(issues, Issue{
			Scope:     ScopeNode,
			NodeIndex: index,
			Message:   fmt.Sprintf("node at index %d must be an object, got %s", index, kindOf(raw)),
		})
		return Node{}, issues, false
	}

	f := fieldReader{m: m, add: func(field, msg string) {
		issues = append(issues, Issue{Scope: ScopeNode, NodeIndex: index, Field: field, Message: msg})
	}}

	n := Node{
		ID:               f.id("id"),
		Name:             f.str("name"),
		Type:             f.str("type"),
		OnError:          OnError(f.str("onError")),
		Notes:            f.str("notes"),
		WebhookID:        f.str("webhookId"),
		Disabled:         f.boolean("disabled"),
		RetryOnFail:      f.boolean("retryOnFail"),
		AlwaysOutputData: f.boolean("alwaysOutputData"),
		ExecuteOnce:      f.boolean("executeOnce"),
		ContinueOnFail:   f.boolPtr("continueOnFail"),
		MaxTries:         f.intPtr("maxTries"),
		WaitBetweenTries: f.intPtr("waitBetweenTries"),
		Credentials:      f.object("credentials"),
		Parameters:       f.object("parameters"),
	}
	if n.Parameters == nil {
		n.Parameters = map[string]any{}
	}

	if v, present := m["typeVersion"]; present && v != nil {
		if num, ok := toNumber(v); ok {
			n.TypeVersion = &num
		} else {
			f.add("typeVersion", fmt.Sprintf("typeVersion must be a number, got %s", kindOf(v)))
		}
	}

	if v, present := m["position"]; present && v != nil {
		arr, ok := v.([]any)
		if !ok {
			f.add("position", fmt.Sprintf("position must be an array of two numbers, got %s", kindOf(v)))
		} else {
			pos := make([]float64, 0, len(arr))
			for _, p := range arr {
				num, ok := toNumber(p)
				if !ok {
					f.add("position", fmt.Sprintf("position must contain only numbers, got %s", kindOf(p)))
					pos = nil
					break
				}
				pos = append(pos, num)
			}
			n.Position = pos
		}
	}

	for i := range issues {
		issues[i].NodeName = n.Name
		issues[i].NodeID = n.ID
	}
	return n, issues, true
}

func decodeConnections(raw map[string]any, in *Input) Connections {
	out := make(Connections, len(raw))
	add := func(source, field, msg string) {
		in.Issues = append(in.Issues, Issue{
			Scope:     ScopeConnection,
			NodeIndex: -1,
			NodeName:  source,
			Field:     field,
			Message:   msg,
		})
	}

	for _, src := range SortedKeys(raw) {
		ports, ok := raw[src].(map[string]any)
		if !ok {
			add(src, "connections."+src, fmt.Sprintf("connections of %q must be an object keyed by port type, got %s", src, kindOf(raw[src])))
			continue
		}
		decoded := make(map[string][][]Connection, len(ports))
		for _, port := range SortedKeys(ports) {
			if ports[port] == nil {
				continue
			}
			slots, ok := ports[port].([]any)
			if !ok {
				add(src, fmt.Sprintf("connections.%s.%s", src, port), fmt.Sprintf("outputs of %q port %q must be an array, got %s", src, port, kindOf(ports[port])))
				continue
			}
			outSlots := make([][]Connection, len(slots))
			for i, slotRaw := range slots {
				outSlots[i] = []Connection{}
				if slotRaw == nil {
					continue
				}
				slot, ok := slotRaw.([]any)
				if !ok {
					add(src, fmt.Sprintf("connections.%s.%s[%d]", src, port, i), fmt.Sprintf("output %d of %q port %q must be an array, got %s", i, src, port, kindOf(slotRaw)))
					continue
				}
				for j, targetRaw := range slot {
					field := fmt.Sprintf("connections.%s.%s[%d][%d]", src, port, i, j)
					target, ok := targetRaw.(map[string]any)
					if !ok {
						add(src, field, fmt.Sprintf("connection entry must be an object, got %s", kindOf(targetRaw)))
						continue
					}
					conn, msg := decodeTarget(target, port)
					if msg != "" {
						add(src, field, msg)
						continue
					}
					outSlots[i] = append(outSlots[i], conn)
				}
			}
			decoded[port] = outSlots
		}
		out[src] = decoded
	}
	return out
}

func decodeTarget(m map[string]any, port string) (Connection, string) {
	conn := Connection{Type: port}
	node, ok := m["node"].(string)
	if !ok || node == "" {
		return conn, "connection entry is missing the target node name"
	}
	conn.Node = node

	if v, present := m["type"]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return conn, fmt.Sprintf("connection type must be a string, got %s", kindOf(v))
		}
		if s != "" {
			conn.Type = s
		}
	}

	if v, present := m["index"]; present && v != nil {
		num, ok := toNumber(v)
		if !ok {
			return conn, fmt.Sprintf("connection index must be a number, got %s", kindOf(v))
		}
		if num != math.Trunc(num) || math.IsInf(num, 0) {
			return conn, fmt.Sprintf("connection index must be an integer, got %v", num)
		}
		conn.Index = int(num)
	}
	return conn, ""
}

func decodeTags(raw any, add func(field, msg string)) []string {
	if raw == nil {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		add("tags", fmt.Sprintf("tags must be an array, got %s", kindOf(raw)))
		return nil
	}
	tags := make([]string, 0, len(arr))
	for _, t := range arr {
		switch v := t.(type) {
		case string:
			tags = append(tags, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				tags = append(tags, name)
			}
		default:
			add("tags", fmt.Sprintf("tag must be a string or an object with a name, got %s", kindOf(t)))
		}
	}
	return tags
}

// fieldReader reads typed fields from a generic object, reporting mismatches.
type fieldReader struct {
	m   map[string]any
	add func(field, msg string)
}

func (f fieldReader) get(key string) (any, bool) {
	v, ok := f.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f fieldReader) str(key string) string {
	v, ok := f.get(key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.add(key, fmt.Sprintf("%s must be a string, got %s", key, kindOf(v)))
	}
	return s
}

func (f fieldReader) id(key string) string {
	v, ok := f.get(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		if num, ok := toNumber(v); ok {
			return strconv.FormatFloat(num, 'f', -1, 64)
		}
	}
	f.add(key, fmt.Sprintf("%s must be a string, got %s", key, kindOf(v)))
	return ""
}

func (f fieldReader) boolean(key string) bool {
	v, ok := f.get(key)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.add(key, fmt.Sprintf("%s must be a boolean, got %s", key, kindOf(v)))
	}
	return b
}

func (f fieldReader) boolPtr(key string) *bool {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		f.add(key, fmt.Sprintf("%s must be a boolean, got %s", key, kindOf(v)))
		return nil
	}
	return &b
}

func (f fieldReader) intPtr(key string) *int {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	num, ok := toNumber(v)
	if !ok || num != math.Trunc(num) || math.IsInf(num, 0) {
		f.add(key, fmt.Sprintf("%s must be an integer, got %v", key, v))
		return nil
	}
	i := int(num)
	return &i
}

func (f fieldReader) object(key string) map[string]any {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		f.add(key, fmt.Sprintf("%s must be an object, got %s", key, kindOf(v)))
		return nil
	}
	return obj
}

// toNumber accepts every numeric representation the JSON and YAML decoders
// can produce.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ToNumber exposes the decoder's numeric coercion to other packages.
func ToNumber(v any) (float64, bool) { return toNumber(v) }

// KindOf names the JSON kind of v for messages.
func KindOf(v any) string { return kindOf(v) }

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any, map[any]any:
		return "object"
	case []any:
		return "array"
	}
	if _, ok := toNumber(v); ok {
		return "number"
	}
	return reflect.TypeOf(v).String()
}
