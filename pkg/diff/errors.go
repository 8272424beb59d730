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
	"fmt"
	"strings"
)

// ErrorKind classifies operation failures.
type ErrorKind string

const (
	// KindUnknownReference means a node reference resolved by neither id nor name.
	KindUnknownReference ErrorKind = "unknown_reference"
	// KindMalformedPath means an updateNode path could not be parsed or traversed.
	KindMalformedPath ErrorKind = "malformed_path"
	// KindBatchSize means the batch was empty or larger than the cap.
	KindBatchSize ErrorKind = "batch_size"
	// KindConflict means the operation contradicts the graph state, such as a
	// duplicate node name or a connection that already exists.
	KindConflict ErrorKind = "conflict"
	// KindInvalidOperation means the operation itself is malformed.
	KindInvalidOperation ErrorKind = "invalid_operation"
)

// OperationError is a hard failure of a batch. Index is the zero-based
// position of the failing operation, or -1 for batch-level failures.
type OperationError struct {
	Index   int       `json:"index"`
	Type    OpType    `json:"type,omitempty"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Index < 0 {
		return e.Message
	}
	return fmt.Sprintf("operation %d (%s): %s", e.Index, e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements errors.UserVisibleError.
func (e *OperationError) IsUserVisible() bool {
	return true
}

// UserMessage implements errors.UserVisibleError.
func (e *OperationError) UserMessage() string {
	return e.Error()
}

// Suggestion implements errors.UserVisibleError.
func (e *OperationError) Suggestion() string {
	switch e.Kind {
	case KindUnknownReference:
		return "Reference nodes by their current name or id; nodes removed in the same batch cannot be referenced"
	case KindMalformedPath:
		return "Use dotted paths with numeric array indexes, for example parameters.items[0].value"
	case KindBatchSize:
		return fmt.Sprintf("Send between 1 and %d operations per call", MaxOperations)
	case KindConflict:
		return "Check the current workflow state; names must stay unique and connections cannot be added twice"
	}
	return "Check the operation's required fields"
}

// ErrorType implements errors.ErrorClassifier.
func (e *OperationError) ErrorType() string {
	return string(e.Kind)
}

// IsRetryable implements errors.ErrorClassifier.
func (e *OperationError) IsRetryable() bool {
	return false
}

func opError(index int, t OpType, kind ErrorKind, format string, args ...any) *OperationError {
	return &OperationError{Index: index, Type: t, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// PathError reports an updateNode path that cannot be applied.
type PathError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return e.Reason
}

func traverseError(kind, at string) *PathError {
	return &PathError{Path: at, Reason: fmt.Sprintf("cannot traverse through %s at %s", kind, at)}
}

func malformedSegment(segment string) *PathError {
	return &PathError{Path: segment, Reason: fmt.Sprintf("malformed array index in path segment %q", segment)}
}

// joinIssues renders decode issues as one message.
func joinIssues(msgs []string) string {
	return strings.Join(msgs, "; ")
}
