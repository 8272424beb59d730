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
	"math"
	"slices"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// applyEdit applies one pass-two operation.
func applyEdit(a *arena, index int, op Operation) *OperationError {
	switch o := op.(type) {
	case UpdateNode:
		i, ok := a.resolve(o.NodeRef)
		if !ok {
			return unknownNode(index, op, o.label())
		}
		for _, path := range workflow.SortedKeys(o.Updates) {
			if err := patchNode(a, i, path, o.Updates[path]); err != nil {
				return patchError(index, path, err)
			}
		}
	case MoveNode:
		i, ok := a.resolve(o.NodeRef)
		if !ok {
			return unknownNode(index, op, o.label())
		}
		a.nodes[i].Position = slices.Clone(o.Position)
	case EnableNode:
		i, ok := a.resolve(o.NodeRef)
		if !ok {
			return unknownNode(index, op, o.label())
		}
		a.nodes[i].Disabled = false
	case DisableNode:
		i, ok := a.resolve(o.NodeRef)
		if !ok {
			return unknownNode(index, op, o.label())
		}
		a.nodes[i].Disabled = true
	case AddConnection:
		_, err := addConnection(a, index, o)
		return err
	case RemoveConnection:
		_, err := removeConnection(a, index, o)
		return err
	case UpdateConnection:
		return updateConnection(a, index, o)
	case UpdateSettings:
		if a.wf.Settings == nil {
			a.wf.Settings = map[string]any{}
		}
		for _, k := range workflow.SortedKeys(o.Settings) {
			if v := o.Settings[k]; v == nil {
				delete(a.wf.Settings, k)
			} else {
				a.wf.Settings[k] = workflow.CloneValue(v)
			}
		}
	case UpdateName:
		a.wf.Name = o.Name
	case AddTag:
		if !slices.Contains(a.wf.Tags, o.Tag) {
			a.wf.Tags = append(a.wf.Tags, o.Tag)
		}
	case RemoveTag:
		a.wf.Tags = slices.DeleteFunc(a.wf.Tags, func(t string) bool { return t == o.Tag })
	default:
		return opError(index, op.Type(), KindInvalidOperation, "unsupported operation %T", op)
	}
	return nil
}

// endpoints resolves both ends of a connection operation to node names.
func endpoints(a *arena, index int, op Operation, source, target string) (string, string, *OperationError) {
	si, ok := a.resolveName(source)
	if !ok {
		return "", "", opError(index, op.Type(), KindUnknownReference, "source node %q not found by name or id", source)
	}
	ti, ok := a.resolveName(target)
	if !ok {
		return "", "", opError(index, op.Type(), KindUnknownReference, "target node %q not found by name or id", target)
	}
	return a.nodes[si].Name, a.nodes[ti].Name, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// sourceIndex resolves the output index from sourceIndex and the branch and
// case shorthands.
func sourceIndex(o AddConnection) (int, error) {
	var shorthand *int
	switch {
	case o.Branch != "" && o.Case != nil:
		return 0, errors.New("branch and case cannot both be set")
	case o.Branch == "true":
		shorthand = new(int)
	case o.Branch == "false":
		one := 1
		shorthand = &one
	case o.Case != nil:
		shorthand = o.Case
	}
	switch {
	case shorthand == nil:
		return intOr(o.SourceIndex, 0), nil
	case o.SourceIndex != nil && *o.SourceIndex != *shorthand:
		return 0, fmt.Errorf("sourceIndex %d contradicts the branch/case output %d", *o.SourceIndex, *shorthand)
	}
	return *shorthand, nil
}

func addConnection(a *arena, index int, o AddConnection) (link, *OperationError) {
	src, dst, err := endpoints(a, index, o, o.Source, o.Target)
	if err != nil {
		return link{}, err
	}
	out, ierr := sourceIndex(o)
	if ierr != nil {
		return link{}, opError(index, OpAddConnection, KindInvalidOperation, "%v", ierr)
	}
	port := orDefault(o.SourceOutput, workflow.PortMain)
	conn := workflow.Connection{
		Node:  dst,
		Type:  orDefault(o.TargetInput, port),
		Index: intOr(o.TargetIndex, 0),
	}
	if a.wf.Connections.Has(src, port, out, conn) {
		return link{}, opError(index, OpAddConnection, KindConflict, "connection %s.%s[%d] -> %s already exists", src, port, out, dst)
	}
	a.connect(src, port, out, conn)
	return link{source: src, port: port, output: out, conn: conn}, nil
}

// removeConnection returns the targets it removed.
func removeConnection(a *arena, index int, o RemoveConnection) ([]link, *OperationError) {
	src, dst, err := endpoints(a, index, o, o.Source, o.Target)
	if err != nil {
		if o.IgnoreErrors {
			return nil, nil
		}
		return nil, err
	}
	port := orDefault(o.SourceOutput, workflow.PortMain)
	found := a.find(src, port, o.SourceIndex, dst, o.TargetInput)
	if len(found) == 0 {
		if o.IgnoreErrors {
			return nil, nil
		}
		return nil, opError(index, OpRemoveConnection, KindConflict, "no %s connection from %s to %s", port, src, dst)
	}
	a.disconnect(src, port, found)
	removed := make([]link, len(found))
	for k, e := range found {
		removed[k] = link{source: src, port: port, output: e.output, conn: e.conn}
	}
	return removed, nil
}

func updateConnection(a *arena, index int, o UpdateConnection) *OperationError {
	src, dst, err := endpoints(a, index, o, o.Source, o.Target)
	if err != nil {
		return err
	}
	port := orDefault(o.SourceOutput, workflow.PortMain)
	found := a.find(src, port, o.SourceIndex, dst, "")
	if len(found) == 0 {
		return opError(index, OpUpdateConnection, KindConflict, "no %s connection from %s to %s", port, src, dst)
	}
	old := found[0]
	newPort := orDefault(o.Updates.SourceOutput, port)
	newOut := intOr(o.Updates.SourceIndex, old.output)
	conn := workflow.Connection{
		Node:  dst,
		Type:  orDefault(o.Updates.TargetInput, old.conn.Type),
		Index: intOr(o.Updates.TargetIndex, old.conn.Index),
	}
	a.disconnect(src, port, found[:1])
	if a.wf.Connections.Has(src, newPort, newOut, conn) {
		return opError(index, OpUpdateConnection, KindConflict, "connection %s.%s[%d] -> %s already exists", src, newPort, newOut, dst)
	}
	a.connect(src, newPort, newOut, conn)
	return nil
}

// conflictError marks a patch that contradicts the graph state.
type conflictError struct{ msg string }

func (e *conflictError) Error() string { return e.msg }

func patchError(index int, path string, err error) *OperationError {
	var pe *PathError
	var ce *conflictError
	kind := KindInvalidOperation
	switch {
	case errors.As(err, &pe):
		kind = KindMalformedPath
	case errors.As(err, &ce):
		kind = KindConflict
	}
	return &OperationError{
		Index:   index,
		Type:    OpUpdateNode,
		Kind:    kind,
		Message: fmt.Sprintf("updates[%q]: %v", path, err),
		Cause:   err,
	}
}

// fieldKinds names the JSON kind of the scalar node fields a patch may set.
var fieldKinds = map[string]string{
	"name":             "string",
	"type":             "string",
	"notes":            "string",
	"onError":          "string",
	"webhookId":        "string",
	"typeVersion":      "number",
	"maxTries":         "number",
	"waitBetweenTries": "number",
	"position":         "array",
	"disabled":         "boolean",
	"retryOnFail":      "boolean",
	"alwaysOutputData": "boolean",
	"executeOnce":      "boolean",
	"continueOnFail":   "boolean",
}

// patchNode sets one path on node i. Paths start with a node field;
// parameters and credentials may be followed by nested keys and indexes.
func patchNode(a *arena, i int, path string, value any) error {
	steps, err := parsePath(path)
	if err != nil {
		return err
	}
	head := steps[0]
	if !head.isKey {
		return &PathError{Path: path, Reason: "path must start with a node field"}
	}
	n := a.nodes[i]

	switch head.key {
	case "parameters", "credentials":
		target := &n.Parameters
		if head.key == "credentials" {
			target = &n.Credentials
		}
		if len(steps) == 1 {
			if value == nil {
				*target = map[string]any{}
				return nil
			}
			m, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("%s must be an object, got %s", head.key, workflow.KindOf(value))
			}
			*target = workflow.CloneMap(m)
			return nil
		}
		if *target == nil {
			*target = map[string]any{}
		}
		updated, err := setPath(*target, steps[1:], workflow.CloneValue(value), steps[:1])
		if err != nil {
			return err
		}
		*target = updated.(map[string]any)
		return nil
	case "id":
		return errors.New("node id cannot be changed")
	}

	kind, known := fieldKinds[head.key]
	if !known {
		return fmt.Errorf("unknown node field %q", head.key)
	}
	if len(steps) > 1 {
		return traverseError(kind, head.key)
	}
	return setField(a, i, head.key, kind, value)
}

func setField(a *arena, i int, field, kind string, value any) error {
	n := a.nodes[i]
	if value == nil {
		return clearField(n, field)
	}
	if got := workflow.KindOf(value); got != kind && !(kind == "array" && isNumberSlice(value)) {
		return fmt.Errorf("%s must be a %s, got %s", field, kind, got)
	}

	switch field {
	case "name":
		name := value.(string)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		if name == n.Name {
			return nil
		}
		if _, taken := a.byName[name]; taken {
			return &conflictError{msg: fmt.Sprintf("a node named %q already exists", name)}
		}
		a.rename(i, name)
	case "type":
		n.Type = value.(string)
	case "notes":
		n.Notes = value.(string)
	case "onError":
		n.OnError = workflow.OnError(value.(string))
	case "webhookId":
		n.WebhookID = value.(string)
	case "typeVersion":
		v, _ := workflow.ToNumber(value)
		n.TypeVersion = &v
	case "maxTries", "waitBetweenTries":
		v, _ := workflow.ToNumber(value)
		if v != math.Trunc(v) {
			return fmt.Errorf("%s must be an integer, got %v", field, v)
		}
		iv := int(v)
		if field == "maxTries" {
			n.MaxTries = &iv
		} else {
			n.WaitBetweenTries = &iv
		}
	case "position":
		pos, err := toPosition(value)
		if err != nil {
			return err
		}
		n.Position = pos
	case "disabled":
		n.Disabled = value.(bool)
	case "retryOnFail":
		n.RetryOnFail = value.(bool)
	case "alwaysOutputData":
		n.AlwaysOutputData = value.(bool)
	case "executeOnce":
		n.ExecuteOnce = value.(bool)
	case "continueOnFail":
		b := value.(bool)
		n.ContinueOnFail = &b
	}
	return nil
}

func clearField(n *workflow.Node, field string) error {
	switch field {
	case "name", "type", "position":
		return fmt.Errorf("%s cannot be cleared", field)
	case "notes":
		n.Notes = ""
	case "onError":
		n.OnError = workflow.OnErrorUnset
	case "webhookId":
		n.WebhookID = ""
	case "typeVersion":
		n.TypeVersion = nil
	case "maxTries":
		n.MaxTries = nil
	case "waitBetweenTries":
		n.WaitBetweenTries = nil
	case "disabled":
		n.Disabled = false
	case "retryOnFail":
		n.RetryOnFail = false
	case "alwaysOutputData":
		n.AlwaysOutputData = false
	case "executeOnce":
		n.ExecuteOnce = false
	case "continueOnFail":
		n.ContinueOnFail = nil
	}
	return nil
}

func isNumberSlice(v any) bool {
	_, ok := v.([]float64)
	return ok
}

func toPosition(v any) ([]float64, error) {
	if f, ok := v.([]float64); ok {
		if len(f) != 2 {
			return nil, fmt.Errorf("position must have 2 elements, got %d", len(f))
		}
		return slices.Clone(f), nil
	}
	arr := v.([]any)
	if len(arr) != 2 {
		return nil, fmt.Errorf("position must have 2 elements, got %d", len(arr))
	}
	pos := make([]float64, 2)
	for k, e := range arr {
		num, ok := workflow.ToNumber(e)
		if !ok {
			return nil, fmt.Errorf("position must contain numbers, got %s", workflow.KindOf(e))
		}
		pos[k] = num
	}
	return pos, nil
}
