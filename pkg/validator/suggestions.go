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

// suggestionRules map rule codes to a workflow-level hint. A hint is added
// once when any issue with one of its codes is present.
var suggestionRules = []struct {
	codes []Code
	text  string
}{
	{
		codes: []Code{CodeUnknownType, CodeInvalidTypeForm},
		text:  "Use the full node type identifier from the catalog, such as n8n-nodes-base.httpRequest",
	},
	{
		codes: []Code{CodeMissingVersion, CodeVersionExceeds, CodeVersionBelowMin},
		text:  "Set each node's typeVersion to a version the catalog declares; autofix can correct versions above the maximum",
	},
	{
		codes: []Code{CodeErrorOutputMissing, CodeErrorOutputMisplaced, CodeErrorOutputUnexpected},
		text:  "Error outputs use main[1]: set onError to continueErrorOutput and connect the error handler at main[1], keeping the success path at main[0]",
	},
	{
		codes: []Code{CodeExpressionFormat},
		text:  "Expressions must start with '=', for example ={{ $json.field }}",
	},
	{
		codes: []Code{CodeEmptyConnections, CodeOrphanNode},
		text:  "Connections are keyed by source node name: {\"Source\": {\"main\": [[{\"node\": \"Target\", \"type\": \"main\", \"index\": 0}]]}}",
	},
	{
		codes: []Code{CodeSourceByID, CodeTargetByID},
		text:  "Reference nodes in connections by name, not by id",
	},
	{
		codes: []Code{CodeNoTrigger, CodeSingleNode},
		text:  "Start the workflow with a trigger node such as a webhook, schedule or manual trigger",
	},
	{
		codes: []Code{CodeToolTarget, CodeToolSource},
		text:  "Connect tool nodes to an AI Agent through ai_tool connections",
	},
}

func suggestionsFor(r *Result) []string {
	present := make(map[Code]bool, len(r.Errors)+len(r.Warnings))
	for _, is := range r.Errors {
		present[is.Code] = true
	}
	for _, is := range r.Warnings {
		present[is.Code] = true
	}

	var out []string
	for _, rule := range suggestionRules {
		for _, code := range rule.codes {
			if present[code] {
				out = append(out, rule.text)
				break
			}
		}
	}
	return out
}
