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
	"bytes"
	"encoding/json"
)

// MaxOperations caps the number of operations in one batch.
const MaxOperations = 5

// OpType names an operation variant on the wire.
type OpType string

const (
	OpAddNode          OpType = "addNode"
	OpRemoveNode       OpType = "removeNode"
	OpUpdateNode       OpType = "updateNode"
	OpMoveNode         OpType = "moveNode"
	OpEnableNode       OpType = "enableNode"
	OpDisableNode      OpType = "disableNode"
	OpAddConnection    OpType = "addConnection"
	OpRemoveConnection OpType = "removeConnection"
	OpUpdateConnection OpType = "updateConnection"
	OpUpdateSettings   OpType = "updateSettings"
	OpUpdateName       OpType = "updateName"
	OpAddTag           OpType = "addTag"
	OpRemoveTag        OpType = "removeTag"
)

// Operation is one edit in a batch. The set of variants is closed; each
// variant carries only the fields it needs.
type Operation interface {
	Type() OpType
	isOperation()
}

// NodeRef references a node by id or by current name. Either field may hold
// either form; the engine tries the id index first for NodeID and the name
// index first for NodeName.
type NodeRef struct {
	NodeID   string `json:"nodeId,omitempty" validate:"required_without=NodeName"`
	NodeName string `json:"nodeName,omitempty" validate:"required_without=NodeID"`
}

// label returns the reference as given, for messages.
func (r NodeRef) label() string {
	if r.NodeID != "" {
		return r.NodeID
	}
	return r.NodeName
}

// ByName references a node by name.
func ByName(name string) NodeRef {
	return NodeRef{NodeName: name}
}

// ByID references a node by id.
func ByID(id string) NodeRef {
	return NodeRef{NodeID: id}
}

// AddNode inserts a node. Node is decoded with the same tolerant rules as
// workflow input; name and type are required and an id is generated when
// missing.
type AddNode struct {
	Node map[string]any `json:"node" validate:"required"`
}

// RemoveNode deletes a node and every connection from or to it.
type RemoveNode struct {
	NodeRef
}

// UpdateNode patches node fields. Keys are paths rooted at the node such as
// "name", "typeVersion" or "parameters.options.items[0].value"; a nil value
// clears the field.
type UpdateNode struct {
	NodeRef
	Updates map[string]any `json:"updates" validate:"required,min=1"`
}

// MoveNode sets a node's canvas position.
type MoveNode struct {
	NodeRef
	Position []float64 `json:"position" validate:"len=2"`
}

// EnableNode clears a node's disabled flag.
type EnableNode struct {
	NodeRef
}

// DisableNode sets a node's disabled flag.
type DisableNode struct {
	NodeRef
}

// AddConnection adds one connection target. SourceOutput defaults to "main"
// and TargetInput to SourceOutput. Branch ("true"/"false") and Case select
// the source output index of If and Switch nodes.
type AddConnection struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceOutput string `json:"sourceOutput,omitempty"`
	TargetInput  string `json:"targetInput,omitempty"`
	SourceIndex  *int   `json:"sourceIndex,omitempty" validate:"omitempty,min=0"`
	TargetIndex  *int   `json:"targetIndex,omitempty" validate:"omitempty,min=0"`
	Branch       string `json:"branch,omitempty" validate:"omitempty,oneof=true false"`
	Case         *int   `json:"case,omitempty" validate:"omitempty,min=0"`
}

// RemoveConnection removes matching connection targets. Without SourceIndex
// every output slot of the port is searched.
type RemoveConnection struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceOutput string `json:"sourceOutput,omitempty"`
	TargetInput  string `json:"targetInput,omitempty"`
	SourceIndex  *int   `json:"sourceIndex,omitempty" validate:"omitempty,min=0"`
	IgnoreErrors bool   `json:"ignoreErrors,omitempty"`
}

// ConnectionUpdate holds the address fields updateConnection may change.
type ConnectionUpdate struct {
	SourceOutput string `json:"sourceOutput,omitempty"`
	TargetInput  string `json:"targetInput,omitempty"`
	SourceIndex  *int   `json:"sourceIndex,omitempty" validate:"omitempty,min=0"`
	TargetIndex  *int   `json:"targetIndex,omitempty" validate:"omitempty,min=0"`
}

// UpdateConnection moves an existing connection to a new address.
type UpdateConnection struct {
	Source       string           `json:"source" validate:"required"`
	Target       string           `json:"target" validate:"required"`
	SourceOutput string           `json:"sourceOutput,omitempty"`
	SourceIndex  *int             `json:"sourceIndex,omitempty" validate:"omitempty,min=0"`
	Updates      ConnectionUpdate `json:"updates"`
}

// UpdateSettings merges keys into the workflow settings; a nil value
// deletes the key.
type UpdateSettings struct {
	Settings map[string]any `json:"settings" validate:"required"`
}

// UpdateName renames the workflow.
type UpdateName struct {
	Name string `json:"name" validate:"required"`
}

// AddTag adds a tag if it is not already present.
type AddTag struct {
	Tag string `json:"tag" validate:"required"`
}

// RemoveTag removes a tag if present.
type RemoveTag struct {
	Tag string `json:"tag" validate:"required"`
}

func (AddNode) Type() OpType          { return OpAddNode }
func (RemoveNode) Type() OpType       { return OpRemoveNode }
func (UpdateNode) Type() OpType       { return OpUpdateNode }
func (MoveNode) Type() OpType         { return OpMoveNode }
func (EnableNode) Type() OpType       { return OpEnableNode }
func (DisableNode) Type() OpType      { return OpDisableNode }
func (AddConnection) Type() OpType    { return OpAddConnection }
func (RemoveConnection) Type() OpType { return OpRemoveConnection }
func (UpdateConnection) Type() OpType { return OpUpdateConnection }
func (UpdateSettings) Type() OpType   { return OpUpdateSettings }
func (UpdateName) Type() OpType       { return OpUpdateName }
func (AddTag) Type() OpType           { return OpAddTag }
func (RemoveTag) Type() OpType        { return OpRemoveTag }

func (AddNode) isOperation()          {}
func (RemoveNode) isOperation()       {}
func (UpdateNode) isOperation()       {}
func (MoveNode) isOperation()         {}
func (EnableNode) isOperation()       {}
func (DisableNode) isOperation()      {}
func (AddConnection) isOperation()    {}
func (RemoveConnection) isOperation() {}
func (UpdateConnection) isOperation() {}
func (UpdateSettings) isOperation()   {}
func (UpdateName) isOperation()       {}
func (AddTag) isOperation()           {}
func (RemoveTag) isOperation()        {}

// structural reports whether op runs in pass one.
func structural(op Operation) bool {
	switch op.(type) {
	case AddNode, RemoveNode:
		return true
	}
	return false
}

// MarshalOperation encodes op in its wire form with the "type" discriminator.
func MarshalOperation(op Operation) ([]byte, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	head := []byte(`{"type":` + `"` + string(op.Type()) + `"`)
	body = bytes.TrimSpace(body)
	if bytes.Equal(body, []byte("{}")) {
		return append(head, '}'), nil
	}
	return append(append(head, ','), body[1:]...), nil
}

// Batch is a list of operations that encodes to its wire form.
type Batch []Operation

// MarshalJSON implements json.Marshaler.
func (b Batch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, op := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := MarshalOperation(op)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
