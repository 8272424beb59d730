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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/flowsmith/pkg/workflow/expression"
)

// VersionKey is the pseudo-parameter displayOptions use to gate a property
// on the node's typeVersion.
const VersionKey = "@version"

// Visibility decides whether properties are shown for a given parameter set.
// It compiles each distinct displayOptions shape once and reuses the program.
type Visibility struct {
	eval *expression.Evaluator
}

// NewVisibility creates a visibility evaluator.
func NewVisibility() *Visibility {
	return &Visibility{eval: expression.NewEvaluator()}
}

// Visible reports whether p is displayed given params. params should already
// include defaults (see EffectiveParams).
func (v *Visibility) Visible(p *Property, params map[string]any) (bool, error) {
	if p.DisplayOptions == nil {
		return true, nil
	}
	condition, env := buildCondition(p.DisplayOptions)
	env["params"] = params
	ok, err := v.eval.Evaluate(condition, env)
	if err != nil {
		return false, fmt.Errorf("property %s: %w", p.Name, err)
	}
	return ok, nil
}

// buildCondition turns displayOptions into a condition whose text depends
// only on the keys involved; the allowed values travel in env.
func buildCondition(d *DisplayOptions) (string, map[string]any) {
	env := make(map[string]any)
	var clauses []string

	for i, key := range sortedKeys(d.Show) {
		name := "show" + strconv.Itoa(i)
		env[name] = d.Show[key]
		clauses = append(clauses, fmt.Sprintf("has(%s, params[%s])", name, strconv.Quote(key)))
	}
	for i, key := range sortedKeys(d.Hide) {
		name := "hide" + strconv.Itoa(i)
		env[name] = d.Hide[key]
		clauses = append(clauses, fmt.Sprintf("!has(%s, params[%s])", name, strconv.Quote(key)))
	}
	return strings.Join(clauses, " && "), env
}

func sortedKeys(m map[string][]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EffectiveParams overlays a node's parameters on the top-level property
// defaults and adds the typeVersion under VersionKey.
func EffectiveParams(t *NodeType, params map[string]any, typeVersion *float64) map[string]any {
	out := make(map[string]any, len(t.Properties)+len(params)+1)
	for i := range t.Properties {
		p := &t.Properties[i]
		if _, seen := out[p.Name]; !seen && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	for k, val := range params {
		out[k] = val
	}
	if typeVersion != nil {
		out[VersionKey] = *typeVersion
	} else if maxV, ok := t.MaxVersion(); ok {
		out[VersionKey] = maxV
	}
	return out
}

// VisibleProperties returns the properties of t displayed for params. When
// several properties share a name, the first visible one wins.
func (v *Visibility) VisibleProperties(t *NodeType, params map[string]any) ([]*Property, error) {
	var out []*Property
	seen := make(map[string]bool)
	for i := range t.Properties {
		p := &t.Properties[i]
		if seen[p.Name] {
			continue
		}
		ok, err := v.Visible(p, params)
		if err != nil {
			return nil, err
		}
		if ok {
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out, nil
}
