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

package autofix

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/diff"
	"github.com/tombee/flowsmith/pkg/validator"
	"github.com/tombee/flowsmith/pkg/workflow"
	"github.com/tombee/flowsmith/pkg/workflow/expression"
)

// FixType names a class of fix.
type FixType string

const (
	FixExpressionFormat FixType = "expression-format"
	FixTypeVersion      FixType = "typeversion-correction"
	FixErrorOutput      FixType = "error-output-config"
	FixNodeType         FixType = "node-type-correction"
	FixWebhookPath      FixType = "webhook-missing-path"
)

// AllFixTypes lists every fix type in summary order.
var AllFixTypes = []FixType{FixExpressionFormat, FixTypeVersion, FixErrorOutput, FixNodeType, FixWebhookPath}

// DefaultMaxFixes caps the fixes returned when Options.MaxFixes is zero.
const DefaultMaxFixes = 50

const (
	// closeMatch is the similarity at which a suggested node type is trusted
	// enough for a medium fix.
	closeMatch = 0.8
)

// Fix is one proposed change to one field of one node.
type Fix struct {
	NodeID      string     `json:"nodeId,omitempty"`
	NodeName    string     `json:"nodeName"`
	Field       string     `json:"field"`
	Type        FixType    `json:"type"`
	Before      any        `json:"before"`
	After       any        `json:"after"`
	Confidence  Confidence `json:"confidence"`
	Description string     `json:"description"`
	// Issue is the message of the finding the fix resolves.
	Issue string `json:"issue"`
}

// Options tunes fix generation.
type Options struct {
	// ConfidenceThreshold drops fixes below the tier. Zero means Medium.
	ConfidenceThreshold Confidence `json:"confidenceThreshold,omitempty"`
	// FixTypes restricts generation to the listed types. Empty means all.
	FixTypes []FixType `json:"fixTypes,omitempty"`
	// MaxFixes caps the number of fixes. Zero means DefaultMaxFixes.
	MaxFixes int `json:"maxFixes,omitempty"`
}

func (o Options) threshold() Confidence {
	if o.ConfidenceThreshold == 0 {
		return Medium
	}
	return o.ConfidenceThreshold
}

func (o Options) maxFixes() int {
	if o.MaxFixes <= 0 {
		return DefaultMaxFixes
	}
	return o.MaxFixes
}

func (o Options) wants(t FixType) bool {
	return len(o.FixTypes) == 0 || slices.Contains(o.FixTypes, t)
}

// Stats counts the returned fixes.
type Stats struct {
	Total        int                `json:"total"`
	ByType       map[FixType]int    `json:"byType"`
	ByConfidence map[Confidence]int `json:"byConfidence"`
}

// Result is the output of Generate. Operations holds one operation per
// node and may exceed diff.MaxOperations; diff.Chunk splits it.
type Result struct {
	Fixes      []Fix      `json:"fixes"`
	Operations diff.Batch `json:"operations"`
	Summary    string     `json:"summary"`
	Stats      Stats      `json:"stats"`
}

// Fixer generates fixes. It is safe for concurrent use.
type Fixer struct {
	catalog catalog.Catalog
	logger  *slog.Logger
	newID   func() string
}

// New creates a fixer. cat resolves node types for fixes that depend on
// them; it may be nil.
func New(cat catalog.Catalog) *Fixer {
	return &Fixer{
		catalog: cat,
		logger:  slog.Default(),
		newID:   uuid.NewString,
	}
}

// WithLogger sets a custom logger for the fixer.
func (f *Fixer) WithLogger(logger *slog.Logger) *Fixer {
	f.logger = logger
	return f
}

// WithIDGenerator sets the function that generates webhook paths.
func (f *Fixer) WithIDGenerator(fn func() string) *Fixer {
	f.newID = fn
	return f
}

// Generate proposes fixes for the findings of res and findings against wf.
// res may be nil when only expression findings are available.
func (f *Fixer) Generate(wf *workflow.Workflow, res *validator.Result, findings []expression.Finding, opts Options) *Result {
	var all []Fix
	all = append(all, expressionFixes(findings)...)
	if res != nil {
		for _, is := range res.Errors {
			if fix, ok := f.fixIssue(wf, is); ok {
				all = append(all, fix)
			}
		}
	}

	fixes := make([]Fix, 0, len(all))
	seen := make(map[string]bool, len(all))
	for _, fix := range all {
		key := fix.NodeName + "\x00" + fix.Field
		if seen[key] || !opts.wants(fix.Type) || fix.Confidence < opts.threshold() {
			continue
		}
		seen[key] = true
		fixes = append(fixes, fix)
		if len(fixes) == opts.maxFixes() {
			break
		}
	}

	out := &Result{
		Fixes:      fixes,
		Operations: operations(fixes),
		Stats:      stats(fixes),
	}
	out.Summary = summary(out)

	f.logger.Debug("fixes generated",
		slog.Int("candidates", len(all)),
		slog.Int("fixes", len(fixes)),
		slog.Int("operations", len(out.Operations)))
	return out
}

func expressionFixes(findings []expression.Finding) []Fix {
	var fixes []Fix
	for _, fd := range findings {
		if fd.Verdict.Suggestion == "" || !fd.Addressable {
			continue
		}
		fixes = append(fixes, Fix{
			NodeID:      fd.NodeID,
			NodeName:    fd.NodeName,
			Field:       fd.Path,
			Type:        FixExpressionFormat,
			Before:      fd.Value,
			After:       fd.Verdict.Suggestion,
			Confidence:  High,
			Description: fmt.Sprintf("Correct expression format at %s", fd.Path),
			Issue:       fd.Verdict.Message(),
		})
	}
	return fixes
}

func (f *Fixer) fixIssue(wf *workflow.Workflow, is validator.Issue) (Fix, bool) {
	fix := Fix{NodeID: is.NodeID, NodeName: is.NodeName, Issue: is.Message}
	if fix.NodeName == "" {
		return fix, false
	}

	switch is.Code {
	case validator.CodeVersionExceeds:
		maxV, ok := workflow.ToNumber(is.Details["maxVersion"])
		if !ok {
			return fix, false
		}
		fix.Type = FixTypeVersion
		fix.Field = "typeVersion"
		fix.Before = is.Details["currentVersion"]
		fix.After = maxV
		fix.Confidence = Medium
		fix.Description = fmt.Sprintf("Lower typeVersion to the supported maximum %s", validator.FormatVersion(maxV))

	case validator.CodeErrorOutputMissing:
		fix.Type = FixErrorOutput
		fix.Field = "onError"
		fix.Before = string(workflow.OnErrorContinueError)
		fix.After = nil
		fix.Confidence = Medium
		fix.Description = "Remove onError: continueErrorOutput because no error output is connected"

	case validator.CodeInvalidTypeForm:
		full, _ := is.Details["fixedType"].(string)
		if full == "" {
			return fix, false
		}
		fix.Type = FixNodeType
		fix.Field = "type"
		fix.Before = nodeType(wf, is.NodeName)
		fix.After = full
		fix.Confidence = High
		fix.Description = fmt.Sprintf("Use the full node type %q", full)

	case validator.CodeUnknownType:
		cands := suggestions(is.Details["suggestions"])
		if len(cands) == 0 {
			return fix, false
		}
		best := cands[0]
		fix.Type = FixNodeType
		fix.Field = "type"
		fix.Before = nodeType(wf, is.NodeName)
		fix.After = best.Type
		fix.Confidence = Low
		if best.Score >= closeMatch && (len(cands) == 1 || cands[1].Score < best.Score) {
			fix.Confidence = Medium
		}
		fix.Description = fmt.Sprintf("Replace unknown type with %q (similarity %.2f)", best.Type, best.Score)

	case validator.CodeMissingRequired:
		return f.webhookPathFix(wf, is, fix)

	default:
		return fix, false
	}
	return fix, true
}

// webhookPathFix gives a webhook-capable node missing its path a generated
// one. The same value becomes the node's webhookId.
func (f *Fixer) webhookPathFix(wf *workflow.Workflow, is validator.Issue, fix Fix) (Fix, bool) {
	if is.Field != "parameters.path" || f.catalog == nil || wf == nil {
		return fix, false
	}
	n, ok := wf.NodeByName(is.NodeName)
	if !ok {
		return fix, false
	}
	t, ok := f.catalog.Lookup(n.Type)
	if !ok || !t.Webhook {
		return fix, false
	}
	path := f.newID()
	fix.Type = FixWebhookPath
	fix.Field = is.Field
	fix.Before = n.Parameters["path"]
	fix.After = path
	fix.Confidence = Medium
	fix.Description = "Generate a unique webhook path and matching webhookId"
	return fix, true
}

func nodeType(wf *workflow.Workflow, name string) any {
	if wf == nil {
		return nil
	}
	if n, ok := wf.NodeByName(name); ok {
		return n.Type
	}
	return nil
}

// suggestions reads type suggestions from issue details, either as built by
// the validator or after a JSON round trip.
func suggestions(v any) []catalog.Suggestion {
	switch s := v.(type) {
	case []catalog.Suggestion:
		return s
	case []any:
		out := make([]catalog.Suggestion, 0, len(s))
		for _, e := range s {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			typ, _ := m["type"].(string)
			score, _ := workflow.ToNumber(m["score"])
			if typ != "" {
				out = append(out, catalog.Suggestion{Type: typ, Score: score})
			}
		}
		return out
	}
	return nil
}

// operations merges fixes into one updateNode per node, in order of each
// node's first fix.
func operations(fixes []Fix) diff.Batch {
	var ops diff.Batch
	byNode := map[string]int{}
	for _, fix := range fixes {
		i, ok := byNode[fix.NodeName]
		if !ok {
			i = len(ops)
			byNode[fix.NodeName] = i
			ops = append(ops, diff.UpdateNode{NodeRef: diff.ByName(fix.NodeName), Updates: map[string]any{}})
		}
		updates := ops[i].(diff.UpdateNode).Updates
		updates[fix.Field] = fix.After
		if fix.Type == FixWebhookPath {
			updates["webhookId"] = fix.After
		}
	}
	return ops
}

func stats(fixes []Fix) Stats {
	s := Stats{
		Total:        len(fixes),
		ByType:       map[FixType]int{},
		ByConfidence: map[Confidence]int{},
	}
	for _, fix := range fixes {
		s.ByType[fix.Type]++
		s.ByConfidence[fix.Confidence]++
	}
	return s
}

func summary(r *Result) string {
	if len(r.Fixes) == 0 {
		return "No fixes available"
	}
	parts := make([]string, 0, len(AllFixTypes))
	for _, t := range AllFixTypes {
		if n := r.Stats.ByType[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", t, n))
		}
	}
	return fmt.Sprintf("%s across %s (%s)",
		plural(len(r.Fixes), "fix", "fixes"),
		plural(len(r.Operations), "node", "nodes"),
		strings.Join(parts, ", "))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
