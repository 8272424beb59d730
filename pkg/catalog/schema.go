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

package catalog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ValueChecker validates parameter values against a JSON Schema derived from
// their property definition. Schemas are compiled once per distinct shape.
type ValueChecker struct {
	mu    sync.RWMutex
	cache map[string]*gojsonschema.Schema
}

// NewValueChecker creates a value checker.
func NewValueChecker() *ValueChecker {
	return &ValueChecker{cache: make(map[string]*gojsonschema.Schema)}
}

// Check returns human-readable problems with value, or nil. Expression
// values (strings starting with '=') are resolved at runtime and always pass.
func (c *ValueChecker) Check(p *Property, value any) ([]string, error) {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "=") {
		return nil, nil
	}
	schema := PropertySchema(p)
	if schema == nil {
		return nil, nil
	}

	compiled, err := c.compile(schema)
	if err != nil {
		return nil, err
	}
	result, err := compiled.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, re.Description())
	}
	return problems, nil
}

func (c *ValueChecker) compile(schema map[string]any) (*gojsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(raw)

	c.mu.RLock()
	compiled, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = compiled
	c.mu.Unlock()
	return compiled, nil
}

// PropertySchema derives a JSON Schema for a property's value, or nil when
// the property type is not checked.
func PropertySchema(p *Property) map[string]any {
	switch p.Type {
	case TypeString:
		return map[string]any{"type": "string"}
	case TypeNumber:
		return map[string]any{"type": "number"}
	case TypeBoolean:
		return map[string]any{"type": "boolean"}
	case TypeOptions:
		if len(p.Options) == 0 {
			return nil
		}
		return map[string]any{"enum": optionValues(p)}
	case TypeMultiOptions:
		if len(p.Options) == 0 {
			return map[string]any{"type": "array"}
		}
		return map[string]any{"type": "array", "items": map[string]any{"enum": optionValues(p)}}
	case TypeCollection, TypeFixedCollection, TypeFilter, TypeAssignments:
		return map[string]any{"type": "object"}
	case TypeResourceLocator:
		return map[string]any{"type": []any{"object", "string"}}
	case TypeJSON:
		return map[string]any{"type": []any{"string", "object", "array"}}
	}
	return nil
}

func optionValues(p *Property) []any {
	values := make([]any, len(p.Options))
	for i, o := range p.Options {
		values[i] = o.Value
	}
	return values
}
