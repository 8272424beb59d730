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
	"log/slog"
	"strings"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/workflow"
)

// externalCategories are node categories that call out to other systems.
var externalCategories = map[string]bool{
	"communication": true,
	"data":          true,
}

// checkNodeConfigs validates node parameters against the catalog. Disabled
// nodes and nodes of unknown type are skipped.
func (v *Validator) checkNodeConfigs(c *collector, g *graph, profile Profile) {
	for i := range g.wf.Nodes {
		n := &g.wf.Nodes[i]
		t := g.types[i]
		if n.Disabled || t == nil {
			continue
		}
		v.checkNodeConfig(c, n, t, profile)
	}
}

func (v *Validator) checkNodeConfig(c *collector, n *workflow.Node, t *catalog.NodeType, profile Profile) {
	params := catalog.EffectiveParams(t, n.Parameters, n.TypeVersion)
	visible, err := v.visibility.VisibleProperties(t, params)
	if err != nil {
		v.logger.Warn("display options could not be evaluated",
			slog.String("node_type", t.Name),
			slog.Any("error", err))
		return
	}
	shown := make(map[string]bool, len(visible))

	for _, p := range visible {
		shown[p.Name] = true
		if p.Type == catalog.TypeNotice {
			continue
		}
		value, set := n.Parameters[p.Name]
		if p.Required && missingValue(p, value, set) {
			is := nodeIssue(n)
			is.Field = "parameters." + p.Name
			is.Message = fmt.Sprintf("Node %q is missing required property %q", n.Name, displayName(p))
			is.Details = map[string]any{"property": p.Name}
			if len(p.Options) > 0 {
				is.Suggestion = fmt.Sprintf("Set %s to one of: %s", p.Name, optionList(p))
			}
			c.errorf(CodeMissingRequired, CategoryStructural, is)
			continue
		}
		if !set || !profile.atLeast(ProfileRuntime) {
			continue
		}
		problems, err := v.values.Check(p, value)
		if err != nil {
			v.logger.Warn("property schema could not be checked",
				slog.String("node_type", t.Name),
				slog.String("property", p.Name),
				slog.Any("error", err))
			continue
		}
		if len(problems) > 0 {
			is := nodeIssue(n)
			is.Field = "parameters." + p.Name
			is.Message = fmt.Sprintf("Invalid value for %q on node %q: %s", p.Name, n.Name, strings.Join(problems, "; "))
			is.Details = map[string]any{"property": p.Name, "value": value}
			if len(p.Options) > 0 {
				is.Suggestion = fmt.Sprintf("Valid values: %s", optionList(p))
			}
			c.errorf(CodeInvalidValue, CategoryRange, is)
		}
	}

	if profile.atLeast(ProfileAIFriendly) {
		checkUnknownParameters(c, n, t)
		checkCredentials(c, n, t)
	}
	if profile.atLeast(ProfileStrict) {
		checkUnusedParameters(c, n, t, shown)
		checkErrorHandling(c, n, t)
	}
}

// missingValue reports whether a required property has no usable value.
// An unset property falls back to its default.
func missingValue(p *catalog.Property, value any, set bool) bool {
	if !set {
		return emptyValue(p.Default)
	}
	return emptyValue(value)
}

func emptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		// resourceLocator values carry the selection under "value".
		if inner, ok := x["value"]; ok && x["__rl"] != nil {
			return emptyValue(inner)
		}
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

func checkUnknownParameters(c *collector, n *workflow.Node, t *catalog.NodeType) {
	if len(t.Properties) == 0 {
		return
	}
	for _, key := range workflow.SortedKeys(n.Parameters) {
		if _, ok := t.Property(key); ok {
			continue
		}
		is := nodeIssue(n)
		is.Field = "parameters." + key
		is.Message = fmt.Sprintf("Node %q has parameter %q which %s does not define", n.Name, key, t.Name)
		is.Details = map[string]any{"property": key}
		c.warnf(CodeUnknownProperty, CategoryAdvisory, is)
	}
}

func checkCredentials(c *collector, n *workflow.Node, t *catalog.NodeType) {
	for _, cred := range t.Credentials {
		if !cred.Required {
			continue
		}
		if _, ok := n.Credentials[cred.Name]; ok {
			continue
		}
		is := nodeIssue(n)
		is.Field = "credentials." + cred.Name
		is.Message = fmt.Sprintf("Node %q needs %s credentials before it can run", n.Name, cred.Name)
		is.Details = map[string]any{"credential": cred.Name}
		c.warnf(CodeMissingCredentials, CategoryAdvisory, is)
	}
}

func checkUnusedParameters(c *collector, n *workflow.Node, t *catalog.NodeType, shown map[string]bool) {
	for _, key := range workflow.SortedKeys(n.Parameters) {
		if shown[key] {
			continue
		}
		if _, defined := t.Property(key); !defined {
			continue
		}
		is := nodeIssue(n)
		is.Field = "parameters." + key
		is.Message = fmt.Sprintf("Parameter %q on node %q is not used with the current settings", key, n.Name)
		is.Details = map[string]any{"property": key}
		c.warnf(CodeUnusedProperty, CategoryAdvisory, is)
	}
}

func checkErrorHandling(c *collector, n *workflow.Node, t *catalog.NodeType) {
	if t.Trigger || (!externalCategories[t.Category] && len(t.Credentials) == 0) {
		return
	}
	if n.OnError != workflow.OnErrorUnset || n.RetryOnFail || n.ContinueOnFail != nil {
		return
	}
	is := nodeIssue(n)
	is.Field = "onError"
	is.Message = fmt.Sprintf("Node %q calls an external service without error handling", n.Name)
	is.Suggestion = "Set retryOnFail or onError for nodes that depend on external services"
	c.warnf(CodeNoErrorHandling, CategoryAdvisory, is)
}

func displayName(p *catalog.Property) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

func optionList(p *catalog.Property) string {
	vals := make([]string, len(p.Options))
	for i, o := range p.Options {
		vals[i] = fmt.Sprint(o.Value)
	}
	return strings.Join(vals, ", ")
}
