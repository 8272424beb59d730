package expression

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tombee/flowsmith/pkg/errors"
)

// Evaluator evaluates boolean condition expressions, such as the ones built
// from a property's displayOptions. Compiled programs are cached, so an
// Evaluator should be shared across calls.
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new condition evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate runs a condition against env. An empty condition is true.
//
//	ok, err := eval.Evaluate(`has(show0, params["resource"])`, map[string]any{
//	    "params": map[string]any{"resource": "message"},
//	    "show0":  []any{"message", "channel"},
//	})
func (e *Evaluator) Evaluate(condition string, env map[string]any) (bool, error) {
	if condition == "" {
		return true, nil
	}

	program, err := e.compile(condition)
	if err != nil {
		return false, &errors.ValidationError{
			Field:      "condition",
			Message:    fmt.Sprintf("failed to compile condition: %s", err.Error()),
			Suggestion: "check condition syntax",
		}
	}

	runEnv := make(map[string]any, len(env)+1)
	for k, v := range env {
		runEnv[k] = v
	}
	runEnv["has"] = containsFunc

	result, err := expr.Run(program, runEnv)
	if err != nil {
		return false, &errors.ValidationError{
			Field:   "condition",
			Message: fmt.Sprintf("condition evaluation failed: %s", err.Error()),
		}
	}

	b, ok := result.(bool)
	if !ok {
		return false, &errors.ValidationError{
			Field:   "condition",
			Message: fmt.Sprintf("condition must return boolean, got %T (%v)", result, result),
		}
	}
	return b, nil
}

func (e *Evaluator) compile(condition string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[condition]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	prog, err := expr.Compile(condition,
		expr.Env(map[string]any{"has": containsFunc}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[condition] = prog
	e.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached programs.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
