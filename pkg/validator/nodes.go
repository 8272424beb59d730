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
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/workflow"
)

const (
	maxNameLength = 100
	maxTries      = 10
	maxWaitMillis = 5 * 60 * 1000
	suggestLimit  = 3
)

// checkNodes runs the per-node structural rules.
func (v *Validator) checkNodes(c *collector, g *graph, in workflow.Input) {
	names := make(map[string]int, len(g.wf.Nodes))
	ids := make(map[string]int, len(g.wf.Nodes))

	for i := range g.wf.Nodes {
		n := &g.wf.Nodes[i]
		base := nodeIssue(n)

		switch {
		case strings.TrimSpace(n.Name) == "":
			is := base
			is.Field = "name"
			is.Message = fmt.Sprintf("Node at index %d has no name", i)
			c.errorf(CodeMissingName, CategoryStructural, is)
		case utf8.RuneCountInString(n.Name) > maxNameLength:
			is := base
			is.Field = "name"
			is.Message = fmt.Sprintf("Node name %q is longer than %d characters", truncate(n.Name, 40), maxNameLength)
			c.warnf(CodeLongName, CategoryAdvisory, is)
		}
		if first, dup := names[n.Name]; dup && n.Name != "" {
			is := base
			is.Field = "name"
			is.Message = fmt.Sprintf("Duplicate node name: %q", n.Name)
			is.Details = map[string]any{"firstIndex": first, "index": i}
			is.Suggestion = "Node names must be unique; connections are keyed by name"
			c.errorf(CodeDuplicateName, CategoryStructural, is)
		} else if n.Name != "" {
			names[n.Name] = i
		}

		if n.ID == "" {
			if !in.HasNodeIssue(i, "id") {
				is := base
				is.Field = "id"
				is.Message = fmt.Sprintf("Node %q has no id", n.Name)
				c.warnf(CodeMissingID, CategoryAdvisory, is)
			}
		} else if first, dup := ids[n.ID]; dup {
			is := base
			is.Field = "id"
			is.Message = fmt.Sprintf("Duplicate node ID: %q", n.ID)
			is.Details = map[string]any{"firstIndex": first, "index": i}
			c.errorf(CodeDuplicateID, CategoryStructural, is)
		} else {
			ids[n.ID] = i
		}

		if !in.HasNodeIssue(i, "position") {
			checkPosition(c, n)
		}

		if strings.TrimSpace(n.Type) == "" {
			if !in.HasNodeIssue(i, "type") {
				is := base
				is.Field = "type"
				is.Message = fmt.Sprintf("Node %q has no type", n.Name)
				c.errorf(CodeMissingType, CategoryStructural, is)
			}
			continue
		}

		t := g.types[i]
		if t == nil {
			v.reportUnknownType(c, n)
		} else {
			if g.trigger[i] && !n.Disabled {
				c.stats().TriggerNodes++
			}
			if !in.HasNodeIssue(i, "typeVersion") {
				checkTypeVersion(c, n, t)
			}
		}
		checkExecutionPolicy(c, n)
	}
}

func checkPosition(c *collector, n *workflow.Node) {
	is := nodeIssue(n)
	is.Field = "position"
	if len(n.Position) != 2 {
		is.Message = fmt.Sprintf("Node %q position must be a pair of numbers [x, y]", n.Name)
		is.Details = map[string]any{"length": len(n.Position)}
		c.errorf(CodeInvalidPosition, CategoryRange, is)
		return
	}
	for _, p := range n.Position {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			is.Message = fmt.Sprintf("Node %q position contains a non-finite value", n.Name)
			c.errorf(CodeInvalidPosition, CategoryRange, is)
			return
		}
	}
}

func (v *Validator) reportUnknownType(c *collector, n *workflow.Node) {
	is := nodeIssue(n)
	is.Field = "type"

	if full := catalog.FullForm(n.Type); full != n.Type && v.catalog != nil {
		if _, ok := v.catalog.Lookup(full); ok {
			is.Message = fmt.Sprintf("Invalid node type %q: use the full package prefix %q", n.Type, full)
			is.Suggestion = fmt.Sprintf("Set type to %q", full)
			is.Details = map[string]any{"fixedType": full}
			c.errorf(CodeInvalidTypeForm, CategoryReferential, is)
			return
		}
	}

	is.Message = fmt.Sprintf("Unknown node type: %q", n.Type)
	if s, ok := v.catalog.(catalog.Suggester); ok {
		if cands := s.Suggest(n.Type, suggestLimit); len(cands) > 0 {
			types := make([]string, len(cands))
			for i, cand := range cands {
				types[i] = cand.Type
			}
			is.Suggestion = "Did you mean: " + strings.Join(types, ", ") + "?"
			is.Details = map[string]any{"suggestions": cands}
		}
	}
	if is.Suggestion == "" {
		is.Suggestion = "Search the node catalog for the exact type identifier"
	}
	c.errorf(CodeUnknownType, CategoryReferential, is)
}

func checkTypeVersion(c *collector, n *workflow.Node, t *catalog.NodeType) {
	is := nodeIssue(n)
	is.Field = "typeVersion"
	maxV, versioned := t.MaxVersion()

	if n.TypeVersion == nil {
		if !versioned {
			return
		}
		is.Message = fmt.Sprintf("Node %q is missing typeVersion (latest for %s is %s)", n.Name, t.Name, FormatVersion(maxV))
		is.Suggestion = fmt.Sprintf("Add typeVersion: %s", FormatVersion(maxV))
		is.Details = map[string]any{"maxVersion": maxV}
		c.errorf(CodeMissingVersion, CategoryRange, is)
		return
	}

	cur := *n.TypeVersion
	switch {
	case cur < 0 || math.IsNaN(cur) || math.IsInf(cur, 0):
		is.Message = fmt.Sprintf("Node %q has invalid typeVersion %s: must be a non-negative number", n.Name, FormatVersion(cur))
		c.errorf(CodeNegativeVersion, CategoryRange, is)
	case !versioned:
		return
	case cur > maxV:
		is.Message = fmt.Sprintf("typeVersion %s exceeds maximum supported version %s for %s", FormatVersion(cur), FormatVersion(maxV), t.Name)
		is.Suggestion = fmt.Sprintf("Set typeVersion to %s", FormatVersion(maxV))
		is.Details = map[string]any{"currentVersion": cur, "maxVersion": maxV}
		c.errorf(CodeVersionExceeds, CategoryRange, is)
	case cur < minVersion(t):
		minV := minVersion(t)
		is.Message = fmt.Sprintf("typeVersion %s is below minimum supported version %s for %s", FormatVersion(cur), FormatVersion(minV), t.Name)
		is.Suggestion = fmt.Sprintf("Set typeVersion to %s", FormatVersion(maxV))
		is.Details = map[string]any{"currentVersion": cur, "minVersion": minV, "maxVersion": maxV}
		c.errorf(CodeVersionBelowMin, CategoryRange, is)
	case !t.HasVersion(cur):
		is.Message = fmt.Sprintf("typeVersion %s is not a declared version of %s (declared: %s)", FormatVersion(cur), t.Name, joinVersions(t.Versions))
		is.Suggestion = fmt.Sprintf("Use a declared version such as %s", FormatVersion(maxV))
		is.Details = map[string]any{"currentVersion": cur, "maxVersion": maxV}
		c.warnf(CodeVersionUndecl, CategoryRange, is)
	case cur < maxV:
		is.Message = fmt.Sprintf("Outdated typeVersion %s for %s; latest is %s", FormatVersion(cur), t.Name, FormatVersion(maxV))
		is.Suggestion = fmt.Sprintf("Consider upgrading to typeVersion %s", FormatVersion(maxV))
		is.Details = map[string]any{"currentVersion": cur, "maxVersion": maxV}
		c.warnf(CodeVersionOutdated, CategoryAdvisory, is)
	}
}

func minVersion(t *catalog.NodeType) float64 {
	v, _ := t.MinVersion()
	return v
}

func checkExecutionPolicy(c *collector, n *workflow.Node) {
	is := nodeIssue(n)

	if !n.OnError.Valid() {
		e := is
		e.Field = "onError"
		e.Message = fmt.Sprintf("Node %q has invalid onError value %q", n.Name, n.OnError)
		e.Details = map[string]any{"allowed": []string{
			string(workflow.OnErrorContinueRegular),
			string(workflow.OnErrorContinueError),
			string(workflow.OnErrorStop),
		}}
		c.errorf(CodeInvalidOnError, CategorySemantic, e)
	}

	if n.ContinueOnFail != nil {
		e := is
		e.Field = "continueOnFail"
		switch {
		case n.OnError != workflow.OnErrorUnset:
			e.Message = fmt.Sprintf("Node %q sets both continueOnFail and onError; use onError only", n.Name)
			e.Suggestion = "Remove continueOnFail"
			c.errorf(CodeOnErrorConflict, CategorySemantic, e)
		case *n.ContinueOnFail:
			e.Message = fmt.Sprintf("Node %q uses deprecated continueOnFail", n.Name)
			e.Suggestion = `Use onError: "continueRegularOutput" instead`
			c.warnf(CodeContinueOnFail, CategoryAdvisory, e)
		}
	}

	if n.MaxTries != nil {
		e := is
		e.Field = "maxTries"
		e.Details = map[string]any{"maxTries": *n.MaxTries}
		switch {
		case *n.MaxTries < 1:
			e.Message = fmt.Sprintf("Node %q has maxTries %d; must be at least 1", n.Name, *n.MaxTries)
			c.errorf(CodeInvalidMaxTries, CategoryRange, e)
		case *n.MaxTries > maxTries:
			e.Message = fmt.Sprintf("Node %q has maxTries %d; more than %d retries is rarely useful", n.Name, *n.MaxTries, maxTries)
			c.warnf(CodeHighMaxTries, CategoryAdvisory, e)
		}
	}

	if n.WaitBetweenTries != nil {
		e := is
		e.Field = "waitBetweenTries"
		e.Details = map[string]any{"waitBetweenTries": *n.WaitBetweenTries}
		switch {
		case *n.WaitBetweenTries < 0:
			e.Message = fmt.Sprintf("Node %q has negative waitBetweenTries", n.Name)
			c.errorf(CodeInvalidWait, CategoryRange, e)
		case *n.WaitBetweenTries > maxWaitMillis:
			e.Message = fmt.Sprintf("Node %q waits %dms between tries; more than 5 minutes blocks the execution", n.Name, *n.WaitBetweenTries)
			c.warnf(CodeLongWait, CategoryAdvisory, e)
		}
	}

	if !n.RetryOnFail && (n.MaxTries != nil || n.WaitBetweenTries != nil) {
		e := is
		e.Field = "retryOnFail"
		e.Message = fmt.Sprintf("Node %q sets retry settings but retryOnFail is not enabled", n.Name)
		e.Suggestion = "Set retryOnFail: true or remove maxTries/waitBetweenTries"
		c.warnf(CodeRetryIgnored, CategoryAdvisory, e)
	}
}

// FormatVersion renders a typeVersion the way it appears in workflow JSON.
func FormatVersion(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinVersions(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = FormatVersion(v)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
