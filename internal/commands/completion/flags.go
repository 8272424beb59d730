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

package completion

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/templates"
	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/catalog"
)

// maxNodeCompletions bounds node type suggestions.
const maxNodeCompletions = 50

// SafeCompletionWrapper wraps a completion function with panic recovery.
// Returns empty completion list on panic or error.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}

// CompleteProfiles provides completion for --profile flag values.
func CompleteProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			"minimal\tStructure and references only",
			"runtime\tProblems that break execution",
			"ai-friendly\tAdds AI tool and agent advice",
			"strict\tAdds best-practice warnings",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteConfidence provides completion for --confidence flag values.
func CompleteConfidence(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			autofix.High.String() + "\tOnly fixes that cannot change behavior",
			autofix.Medium.String() + "\tLikely correct fixes",
			autofix.Low.String() + "\tEvery proposed fix",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteFixTypes provides completion for --fix-types flag values.
func CompleteFixTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		out := make([]string, 0, len(autofix.AllFixTypes))
		for _, ft := range autofix.AllFixTypes {
			out = append(out, string(ft))
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteTemplates provides completion for template name arguments.
func CompleteTemplates(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		list, err := templates.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, t := range list {
			if strings.HasPrefix(t.Name, toComplete) {
				out = append(out, t.Name+"\t"+t.Title)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteNodeTypes provides completion for node type arguments from the
// built-in catalog.
func CompleteNodeTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		snap, err := catalog.Default()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, t := range snap.List() {
			if len(out) == maxNodeCompletions {
				break
			}
			if strings.HasPrefix(t.Name, toComplete) || strings.HasPrefix(catalog.LocalName(t.Name), toComplete) {
				out = append(out, t.Name+"\t"+t.DisplayName)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteWorkflowFiles restricts file completion to workflow documents.
func CompleteWorkflowFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"json", "yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}
