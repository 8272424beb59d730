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
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate checks operation field requirements. A Validate is safe for
// concurrent use once configured.
var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeOperations decodes a batch from its wire form. raw may be JSON
// bytes or an already decoded value such as []any. Every failure is an
// *OperationError naming the offending index.
func DecodeOperations(raw any) ([]Operation, error) {
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	case nil:
		return nil, &OperationError{Index: -1, Kind: KindBatchSize, Message: "operations are required"}
	default:
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, &OperationError{Index: -1, Kind: KindInvalidOperation, Message: "operations must be an array of objects", Cause: err}
		}
		data = b
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &OperationError{Index: -1, Kind: KindInvalidOperation, Message: "operations must be an array of objects", Cause: err}
	}
	if err := checkBatchSize(len(items)); err != nil {
		return nil, err
	}

	ops := make([]Operation, 0, len(items))
	for i, item := range items {
		op, err := decodeOperation(i, item)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func checkBatchSize(n int) *OperationError {
	switch {
	case n == 0:
		return &OperationError{Index: -1, Kind: KindBatchSize, Message: "batch contains no operations"}
	case n > MaxOperations:
		return &OperationError{
			Index:   -1,
			Kind:    KindBatchSize,
			Message: fmt.Sprintf("batch contains %d operations; at most %d are allowed per call", n, MaxOperations),
		}
	}
	return nil
}

func decodeOperation(index int, data json.RawMessage) (Operation, error) {
	var head struct {
		Type OpType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &OperationError{Index: index, Kind: KindInvalidOperation, Message: "operation must be an object", Cause: err}
	}

	var (
		op  Operation
		err error
	)
	switch head.Type {
	case OpAddNode:
		op, err = decodeAs[AddNode](data)
	case OpRemoveNode:
		op, err = decodeAs[RemoveNode](data)
	case OpUpdateNode:
		op, err = decodeAs[UpdateNode](data)
	case OpMoveNode:
		op, err = decodeAs[MoveNode](data)
	case OpEnableNode:
		op, err = decodeAs[EnableNode](data)
	case OpDisableNode:
		op, err = decodeAs[DisableNode](data)
	case OpAddConnection:
		op, err = decodeAs[AddConnection](data)
	case OpRemoveConnection:
		op, err = decodeAs[RemoveConnection](data)
	case OpUpdateConnection:
		op, err = decodeAs[UpdateConnection](data)
	case OpUpdateSettings:
		op, err = decodeAs[UpdateSettings](data)
	case OpUpdateName:
		op, err = decodeAs[UpdateName](data)
	case OpAddTag:
		op, err = decodeAs[AddTag](data)
	case OpRemoveTag:
		op, err = decodeAs[RemoveTag](data)
	case "":
		return nil, opError(index, "", KindInvalidOperation, "operation is missing its type")
	default:
		return nil, opError(index, head.Type, KindInvalidOperation, "unknown operation type %q", head.Type)
	}
	if err != nil {
		return nil, &OperationError{Index: index, Type: head.Type, Kind: KindInvalidOperation, Message: err.Error(), Cause: err}
	}
	if err := checkFields(index, op); err != nil {
		return nil, err
	}
	return op, nil
}

func decodeAs[T Operation](data []byte) (Operation, error) {
	var op T
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, err
	}
	return op, nil
}

// checkFields enforces the struct tag requirements of op.
func checkFields(index int, op Operation) *OperationError {
	err := validate.Struct(op)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &OperationError{Index: index, Type: op.Type(), Kind: KindInvalidOperation, Message: err.Error(), Cause: err}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if msg := fieldMessage(fe); !slices.Contains(msgs, msg) {
			msgs = append(msgs, msg)
		}
	}
	return &OperationError{
		Index:   index,
		Type:    op.Type(),
		Kind:    KindInvalidOperation,
		Message: joinIssues(msgs),
		Cause:   err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return "nodeId or nodeName is required"
	case "len":
		return fmt.Sprintf("%s must have exactly %s elements", fe.Field(), fe.Param())
	case "min":
		if fe.Kind() == reflect.Map || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must not be empty", fe.Field())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed the %s rule", fe.Field(), fe.Tag())
}
