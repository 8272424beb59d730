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

// Severity says whether an issue blocks validity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category groups issues by the kind of problem.
type Category string

const (
	// CategoryStructural covers graph shape and required fields.
	CategoryStructural Category = "structural"
	// CategoryReferential covers unknown nodes, types and references.
	CategoryReferential Category = "referential"
	// CategorySemantic covers port, capability and error-output mismatches.
	CategorySemantic Category = "semantic"
	// CategoryRange covers typeVersion, position and numeric bounds.
	CategoryRange Category = "range"
	// CategorySyntactic covers expression formatting.
	CategorySyntactic Category = "syntactic"
	// CategoryAdvisory covers naming and best-practice hints.
	CategoryAdvisory Category = "advisory"
)

// Code identifies the rule that produced an issue.
type Code string

const (
	CodeInvalidStructure Code = "invalid_structure"
	CodeInvalidField     Code = "invalid_field"
	CodeEmptyWorkflow    Code = "empty_workflow"

	CodeMissingName      Code = "missing_node_name"
	CodeLongName         Code = "long_node_name"
	CodeDuplicateName    Code = "duplicate_node_name"
	CodeMissingID        Code = "missing_node_id"
	CodeDuplicateID      Code = "duplicate_node_id"
	CodeInvalidPosition  Code = "invalid_position"
	CodeMissingType      Code = "missing_node_type"
	CodeUnknownType      Code = "unknown_node_type"
	CodeInvalidTypeForm  Code = "invalid_type_prefix"
	CodeMissingVersion   Code = "missing_typeversion"
	CodeNegativeVersion  Code = "invalid_typeversion"
	CodeVersionExceeds   Code = "typeversion_exceeds_max"
	CodeVersionBelowMin  Code = "typeversion_below_min"
	CodeVersionUndecl    Code = "typeversion_undeclared"
	CodeVersionOutdated  Code = "typeversion_outdated"
	CodeInvalidOnError   Code = "invalid_on_error"
	CodeOnErrorConflict  Code = "on_error_conflict"
	CodeContinueOnFail   Code = "deprecated_continue_on_fail"
	CodeInvalidMaxTries  Code = "invalid_max_tries"
	CodeHighMaxTries     Code = "high_max_tries"
	CodeRetryIgnored     Code = "retry_settings_ignored"
	CodeInvalidWait      Code = "invalid_wait_between_tries"
	CodeLongWait         Code = "long_wait_between_tries"
	CodeUnknownSource    Code = "unknown_connection_source"
	CodeSourceByID       Code = "connection_source_uses_id"
	CodeUnknownTarget    Code = "unknown_connection_target"
	CodeTargetByID       Code = "connection_target_uses_id"
	CodeInvalidConn      Code = "invalid_connection"
	CodeSelfReference    Code = "self_referencing_connection"
	CodeNegativeIndex    Code = "negative_connection_index"
	CodeUnknownPort      Code = "unknown_port_type"
	CodePortMismatch     Code = "port_type_mismatch"
	CodeInputRejected    Code = "input_not_accepted"
	CodeOutputNotEmitted Code = "output_not_emitted"
	CodeOutputRange      Code = "output_index_out_of_range"
	CodeToolTarget       Code = "ai_tool_target_not_agent"
	CodeToolSource       Code = "ai_tool_source_not_tool"

	CodeErrorOutputMissing    Code = "error_output_missing"
	CodeErrorOutputUnexpected Code = "error_output_without_on_error"
	CodeErrorOutputMisplaced  Code = "error_output_misplaced"

	CodeSingleNode       Code = "single_node_not_trigger"
	CodeEmptyConnections Code = "empty_connections"
	CodeNoTrigger        Code = "no_trigger"
	CodeOrphanNode       Code = "orphaned_node"
	CodeCycle            Code = "workflow_cycle"

	CodeMissingRequired    Code = "missing_required_property"
	CodeInvalidValue       Code = "invalid_property_value"
	CodeUnknownProperty    Code = "unknown_property"
	CodeUnusedProperty     Code = "unused_property"
	CodeMissingCredentials Code = "missing_credentials"
	CodeNoErrorHandling    Code = "no_error_handling"

	CodeExpressionFormat  Code = "expression_format"
	CodeExpressionSyntax  Code = "expression_syntax"
	CodeExpressionUnknown Code = "expression_unknown_node"
)

// Issue is one error or warning. Node-scoped issues carry the node's name
// and id so a caller can point at the exact element.
type Issue struct {
	Code       Code           `json:"code"`
	Category   Category       `json:"category"`
	Severity   Severity       `json:"severity"`
	NodeID     string         `json:"nodeId,omitempty"`
	NodeName   string         `json:"nodeName,omitempty"`
	Field      string         `json:"field,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// Statistics are counted during validation. Disabled dimensions report zero.
type Statistics struct {
	TotalNodes           int `json:"totalNodes"`
	EnabledNodes         int `json:"enabledNodes"`
	TriggerNodes         int `json:"triggerNodes"`
	ValidConnections     int `json:"validConnections"`
	InvalidConnections   int `json:"invalidConnections"`
	ExpressionsValidated int `json:"expressionsValidated"`
}

// Result is the aggregated outcome of one validation call. It is built fresh
// for every call and not modified after it is returned.
type Result struct {
	Valid       bool       `json:"valid"`
	Errors      []Issue    `json:"errors"`
	Warnings    []Issue    `json:"warnings"`
	Statistics  Statistics `json:"statistics"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

// ErrorsWithCode returns the errors produced by a rule.
func (r Result) ErrorsWithCode(code Code) []Issue {
	var out []Issue
	for _, is := range r.Errors {
		if is.Code == code {
			out = append(out, is)
		}
	}
	return out
}

// WarningsWithCode returns the warnings produced by a rule.
func (r Result) WarningsWithCode(code Code) []Issue {
	var out []Issue
	for _, is := range r.Warnings {
		if is.Code == code {
			out = append(out, is)
		}
	}
	return out
}

// Issues returns errors followed by warnings.
func (r Result) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// collector accumulates issues for one call.
type collector struct {
	result Result
}

func newCollector() *collector {
	return &collector{result: Result{Errors: []Issue{}, Warnings: []Issue{}}}
}

func (c *collector) add(is Issue) {
	if is.Severity == SeverityError {
		c.result.Errors = append(c.result.Errors, is)
		return
	}
	is.Severity = SeverityWarning
	c.result.Warnings = append(c.result.Warnings, is)
}

func (c *collector) errorf(code Code, cat Category, is Issue) {
	is.Code, is.Category, is.Severity = code, cat, SeverityError
	c.add(is)
}

func (c *collector) warnf(code Code, cat Category, is Issue) {
	is.Code, is.Category, is.Severity = code, cat, SeverityWarning
	c.add(is)
}

func (c *collector) stats() *Statistics {
	return &c.result.Statistics
}

func (c *collector) finish() Result {
	c.result.Valid = len(c.result.Errors) == 0
	c.result.Suggestions = suggestionsFor(&c.result)
	return c.result
}
