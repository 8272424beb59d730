// Package jq projects node type descriptors and other JSON documents through
// jq filters, with timeout and size limits.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout is the default execution time for a projection (1 second)
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize is the default maximum input size (10MB)
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Essentials reduces a node type descriptor to what an author needs to
// configure it: identity, versions, required properties and a short list of
// optional ones.
const Essentials = `{
  name, displayName, description, category, versions,
  trigger: (.trigger // false),
  webhook: (.webhook // false),
  toolCapable: (.toolCapable // false),
  required: [.properties[]? | select(.required == true)
    | {name, type, displayName, default, options: ([.options[]?.value] | if length == 0 then null else . end)}],
  optional: ([.properties[]? | select(.required != true) | .name] | .[0:10]),
  credentials: [.credentials[]? | .name]
}`

// Projector runs jq filters. Compiled filters are cached, so a Projector
// should be shared.
type Projector struct {
	timeout      time.Duration
	maxInputSize int64

	mu    sync.Mutex
	cache map[string]*gojq.Code
}

// NewProjector creates a projector. Zero values select the defaults.
func NewProjector(timeout time.Duration, maxInputSize int64) *Projector {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxInputSize == 0 {
		maxInputSize = DefaultMaxInputSize
	}

	return &Projector{
		timeout:      timeout,
		maxInputSize: maxInputSize,
		cache:        make(map[string]*gojq.Code),
	}
}

// Project runs expression against data. Data is normalized through JSON
// first, so structs with json tags are accepted. An empty expression returns
// the normalized data. Multiple results are returned as an array.
func (p *Projector) Project(ctx context.Context, expression string, data any) (any, error) {
	input, err := p.normalize(data)
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return input, nil
	}

	code, err := p.compile(expression)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var results []any
	iter := code.RunWithContext(execCtx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if execCtx.Err() != nil {
				return nil, fmt.Errorf("execution timeout after %v", p.timeout)
			}
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// Validate reports whether expression parses and compiles.
func (p *Projector) Validate(expression string) error {
	if expression == "" {
		return nil
	}
	_, err := p.compile(expression)
	return err
}

func (p *Projector) compile(expression string) (*gojq.Code, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if code, ok := p.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	p.cache[expression] = code
	return code, nil
}

func (p *Projector) normalize(data any) (any, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	if int64(len(jsonData)) > p.maxInputSize {
		return nil, fmt.Errorf("data size (%d bytes) exceeds maximum (%d bytes)",
			len(jsonData), p.maxInputSize)
	}

	var out any
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize data: %w", err)
	}
	return out, nil
}
