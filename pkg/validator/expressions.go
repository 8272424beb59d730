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

package validator

import (
	"fmt"
	"strings"

	"github.com/tombee/flowsmith/pkg/workflow/expression"
)

// checkExpressions checks every string parameter leaf of every enabled node.
// Formatting problems and unknown node references are errors because the
// value would silently misbehave at runtime; JavaScript syntax problems are
// warnings since the runtime dialect is wider than what is parsed here.
func (v *Validator) checkExpressions(c *collector, g *graph) {
	for i := range g.wf.Nodes {
		n := &g.wf.Nodes[i]
		if n.Disabled {
			continue
		}
		expression.Walk("parameters", n.Parameters, func(path string, value any, _ bool) {
			s, ok := value.(string)
			if !ok {
				return
			}
			verdict := expression.Check(s)
			if !verdict.HasExpression && !verdict.HasPrefix {
				return
			}
			c.stats().ExpressionsValidated++

			is := nodeIssue(n)
			is.Field = path
			if !verdict.Valid {
				is.Message = fmt.Sprintf("Expression format error in %s: %s", path, verdict.Message())
				is.Details = map[string]any{"value": s, "problems": verdict.Problems}
				if verdict.Suggestion != "" {
					is.Suggestion = fmt.Sprintf("Use %q", verdict.Suggestion)
					is.Details["correctedValue"] = verdict.Suggestion
				}
				c.errorf(CodeExpressionFormat, CategorySyntactic, is)
				return
			}
			if !verdict.HasExpression {
				return
			}
			if missing := expression.UnknownReferences(s, g.names); len(missing) > 0 {
				e := is
				e.Message = fmt.Sprintf("Expression in %s references non-existent node(s): %s", path, strings.Join(missing, ", "))
				e.Details = map[string]any{"references": missing}
				c.errorf(CodeExpressionUnknown, CategoryReferential, e)
			}
			if err := expression.SyntaxError(s); err != nil {
				w := is
				w.Message = fmt.Sprintf("Expression in %s may not parse: %v", path, err)
				c.warnf(CodeExpressionSyntax, CategorySyntactic, w)
			}
		})
	}
}
