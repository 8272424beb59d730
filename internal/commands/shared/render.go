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

package shared

import (
	"fmt"
	"io"

	"github.com/tombee/flowsmith/pkg/validator"
)

// PrintValidation writes a human-readable validation report headed by label.
func PrintValidation(w io.Writer, label string, res *validator.Result) {
	if res.Valid {
		fmt.Fprintf(w, "%s %s\n", RenderStatus(true, "VALID"), label)
	} else {
		fmt.Fprintf(w, "%s %s\n", RenderStatus(false, "INVALID"), label)
	}

	st := res.Statistics
	fmt.Fprintf(w, "  %s %d nodes (%d enabled, %d triggers), %d valid connections, %d expressions\n",
		RenderLabel("stats:"), st.TotalNodes, st.EnabledNodes, st.TriggerNodes,
		st.ValidConnections, st.ExpressionsValidated)

	for _, is := range res.Errors {
		fmt.Fprintf(w, "  %s\n", RenderError(formatIssue(is)))
		if is.Suggestion != "" {
			fmt.Fprintf(w, "      %s\n", RenderLabel(is.Suggestion))
		}
	}
	for _, is := range res.Warnings {
		fmt.Fprintf(w, "  %s\n", RenderWarn(formatIssue(is)))
		if is.Suggestion != "" {
			fmt.Fprintf(w, "      %s\n", RenderLabel(is.Suggestion))
		}
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(w, "  %s\n", RenderInfo(s))
	}
}

func formatIssue(is validator.Issue) string {
	where := is.NodeName
	if is.Field != "" {
		if where != "" {
			where += "."
		}
		where += is.Field
	}
	if where == "" {
		return fmt.Sprintf("[%s] %s", is.Code, is.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", is.Code, where, is.Message)
}
