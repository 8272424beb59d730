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
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
)

// Mode selects whether a batch is committed or only previewed.
type Mode string

const (
	// ModeCommit returns the edited graph.
	ModeCommit Mode = "commit"
	// ModeValidateOnly applies the batch to a scratch copy and returns only
	// the validation of the result.
	ModeValidateOnly Mode = "validateOnly"
)

// Result is the outcome of Apply. On failure Workflow is the caller's
// original graph (commit mode) and Errors holds the failure.
type Result struct {
	Mode              Mode               `json:"mode"`
	Workflow          *workflow.Workflow `json:"workflow,omitempty"`
	Validation        *validator.Result  `json:"validation,omitempty"`
	OperationsApplied int                `json:"operationsApplied"`
	Errors            []*OperationError  `json:"errors,omitempty"`
}

// Success reports whether every operation was applied.
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

// Engine applies operation batches. It holds no per-batch state, so one
// Engine may serve concurrent calls on different graphs.
type Engine struct {
	validator *validator.Validator
	options   validator.Options
	logger    *slog.Logger
	newID     func() string
}

// NewEngine creates an engine. v validates the edited graph; it may be nil
// to skip validation.
func NewEngine(v *validator.Validator) *Engine {
	return &Engine{
		validator: v,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
}

// WithLogger sets a custom logger for the engine.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithValidationOptions sets the options used to validate edited graphs.
func (e *Engine) WithValidationOptions(opts validator.Options) *Engine {
	e.options = opts
	return e
}

// WithIDGenerator sets the function that assigns ids to added nodes.
func (e *Engine) WithIDGenerator(fn func() string) *Engine {
	e.newID = fn
	return e
}

// Apply runs ops against wf. wf is never modified. A hard failure returns a
// result describing it together with the same *OperationError.
func (e *Engine) Apply(wf *workflow.Workflow, ops []Operation, mode Mode) (*Result, error) {
	start := time.Now()
	if mode == "" {
		mode = ModeCommit
	}
	res := &Result{Mode: mode}

	fail := func(err *OperationError) (*Result, error) {
		res.Errors = []*OperationError{err}
		if mode == ModeCommit {
			res.Workflow = wf
		}
		e.logger.Debug("operation batch rejected",
			slog.String("mode", string(mode)),
			slog.Int("index", err.Index),
			slog.String("kind", string(err.Kind)),
			slog.String("error", err.Message))
		return res, err
	}

	switch {
	case mode != ModeCommit && mode != ModeValidateOnly:
		return fail(&OperationError{Index: -1, Kind: KindInvalidOperation, Message: "mode must be commit or validateOnly, got " + string(mode)})
	case wf == nil:
		return fail(&OperationError{Index: -1, Kind: KindInvalidOperation, Message: "workflow is required"})
	}
	if err := checkBatchSize(len(ops)); err != nil {
		return fail(err)
	}
	for i, op := range ops {
		if op == nil {
			return fail(&OperationError{Index: i, Kind: KindInvalidOperation, Message: "operation is nil"})
		}
		if err := checkFields(i, op); err != nil {
			return fail(err)
		}
	}

	a := newArena(wf)
	for i, op := range ops {
		if !structural(op) {
			continue
		}
		if err := e.applyStructural(a, i, op); err != nil {
			return fail(err)
		}
	}
	a.reindex()
	for i, op := range ops {
		if structural(op) {
			continue
		}
		if err := applyEdit(a, i, op); err != nil {
			return fail(err)
		}
	}

	edited := a.graph()
	res.OperationsApplied = len(ops)
	if e.validator != nil {
		v := e.validator.ValidateWorkflow(edited, e.options)
		res.Validation = &v
	}
	if mode == ModeCommit {
		res.Workflow = edited
	}

	e.logger.Debug("operation batch applied",
		slog.String("mode", string(mode)),
		slog.Int("operations", len(ops)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return res, nil
}

func (e *Engine) applyStructural(a *arena, index int, op Operation) *OperationError {
	switch o := op.(type) {
	case AddNode:
		return e.addNode(a, index, o)
	case RemoveNode:
		i, ok := a.resolve(o.NodeRef)
		if !ok {
			return unknownNode(index, op, o.label())
		}
		a.remove(i)
	}
	return nil
}

func (e *Engine) addNode(a *arena, index int, o AddNode) *OperationError {
	n, issues := workflow.DecodeNode(o.Node)
	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.Message
		}
		return opError(index, OpAddNode, KindInvalidOperation, "invalid node: %s", joinIssues(msgs))
	}
	switch {
	case n.Name == "":
		return opError(index, OpAddNode, KindInvalidOperation, "node name is required")
	case n.Type == "":
		return opError(index, OpAddNode, KindInvalidOperation, "node type is required")
	}
	if _, exists := a.byName[n.Name]; exists {
		return opError(index, OpAddNode, KindConflict, "a node named %q already exists", n.Name)
	}
	if n.ID == "" {
		n.ID = e.newID()
	} else if _, exists := a.byID[n.ID]; exists {
		return opError(index, OpAddNode, KindConflict, "a node with id %q already exists", n.ID)
	}
	if n.Position == nil {
		n.Position = []float64{0, 0}
	}
	a.add(n)
	return nil
}

func unknownNode(index int, op Operation, ref string) *OperationError {
	return opError(index, op.Type(), KindUnknownReference, "node %q not found by id or name", ref)
}
