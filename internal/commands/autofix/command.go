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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/pkg/autofix"
	"github.com/tombee/flowsmith/pkg/validator"
)

// NewCommand creates the autofix command
func NewCommand() *cobra.Command {
	var (
		apply      bool
		confidence string
		fixTypes   []string
		maxFixes   int
		profile    string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "autofix <workflow>",
		Short: "Propose or apply fixes for common workflow problems",
		Long: `Autofix validates a workflow and proposes fixes for the problems it
knows how to repair: expressions missing their "=" prefix, typeVersions
outside the catalog range, misplaced error outputs, misspelled node types
and webhooks without a path.

Each fix carries a confidence. Only fixes at or above --confidence are
returned. Without --apply the fixes are only listed; with --apply they are
committed and the fixed workflow is written to stdout or --output.`,
		Example: `  # Example 1: Preview fixes
  flowsmith autofix workflow.json

  # Example 2: Apply only high confidence expression fixes in place
  flowsmith autofix workflow.json --apply --confidence high \
    --fix-types expression-format -o workflow.json

  # Example 3: Machine-readable preview
  flowsmith autofix workflow.json --json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(confidence, fixTypes, maxFixes)
			if err != nil {
				return err
			}
			var p validator.Profile
			if profile != "" {
				if p, err = validator.ParseProfile(profile); err != nil {
					return shared.NewUsageError("invalid --profile", err)
				}
			}
			return runAutofix(cmd, args[0], service.FixRequest{Options: opts, Profile: p, Apply: apply}, outputPath)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the fixes and write the fixed workflow")
	cmd.Flags().StringVar(&confidence, "confidence", "", "Minimum confidence: high, medium, low (default from config)")
	cmd.Flags().StringSliceVar(&fixTypes, "fix-types", nil, "Fix types to consider (default: all)")
	cmd.Flags().IntVar(&maxFixes, "max-fixes", autofix.DefaultMaxFixes, "Maximum number of fixes")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Validation profile used to find problems")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the fixed workflow to a file instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("profile", completion.CompleteProfiles)
	_ = cmd.RegisterFlagCompletionFunc("confidence", completion.CompleteConfidence)
	_ = cmd.RegisterFlagCompletionFunc("fix-types", completion.CompleteFixTypes)

	return cmd
}

func buildOptions(confidence string, fixTypes []string, maxFixes int) (autofix.Options, error) {
	var opts autofix.Options
	c, err := autofix.ParseConfidence(confidence)
	if err != nil {
		return opts, shared.NewUsageError("invalid --confidence", err)
	}
	opts.ConfidenceThreshold = c

	known := make(map[autofix.FixType]bool, len(autofix.AllFixTypes))
	names := make([]string, 0, len(autofix.AllFixTypes))
	for _, ft := range autofix.AllFixTypes {
		known[ft] = true
		names = append(names, string(ft))
	}
	for _, name := range fixTypes {
		ft := autofix.FixType(strings.TrimSpace(name))
		if !known[ft] {
			return opts, shared.NewUsageError(
				fmt.Sprintf("unknown fix type %q (expected one of %s)", name, strings.Join(names, ", ")), nil)
		}
		opts.FixTypes = append(opts.FixTypes, ft)
	}

	if maxFixes < 1 {
		return opts, shared.NewUsageError("--max-fixes must be at least 1", nil)
	}
	opts.MaxFixes = maxFixes
	return opts, nil
}

func runAutofix(cmd *cobra.Command, path string, req service.FixRequest, outputPath string) error {
	ctx := cmd.Context()

	data, err := shared.ReadInput(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	req.Workflow = data

	rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	res, err := rt.Service.GenerateFixes(ctx, req)
	if err != nil {
		return shared.NewInvalidWorkflowError("autofix failed", err)
	}
	failed := len(res.Errors) > 0

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		resp := struct {
			shared.JSONResponse
			Result *service.FixResult `json:"result"`
		}{shared.NewJSONResponse("autofix", !failed), res}
		if err := shared.EmitJSON(out, resp); err != nil {
			return err
		}
		if failed {
			return &shared.ExitError{Code: shared.ExitInvalidWorkflow}
		}
		return nil
	}

	if failed {
		for _, opErr := range res.Errors {
			cmd.PrintErrln(shared.RenderError(opErr.Error()))
		}
		return shared.NewInvalidWorkflowError("fixes could not be applied", nil)
	}

	if !req.Apply {
		printFixes(out, res.Result)
		return nil
	}

	if !shared.GetQuiet() {
		printFixes(cmd.ErrOrStderr(), res.Result)
	}
	if !res.Applied {
		return nil
	}
	encoded, err := json.MarshalIndent(res.Workflow, "", "  ")
	if err != nil {
		return shared.NewFailureError("failed to encode workflow", err)
	}
	return shared.WriteOutput(outputPath, append(encoded, '\n'), out)
}

func printFixes(w io.Writer, res *autofix.Result) {
	if len(res.Fixes) == 0 {
		fmt.Fprintln(w, shared.RenderOK("no fixes needed"))
		return
	}
	fmt.Fprintln(w, shared.RenderHeader(res.Summary))
	for _, f := range res.Fixes {
		fmt.Fprintf(w, "  %s %s.%s: %s\n",
			shared.RenderLabel("["+f.Confidence.String()+"/"+string(f.Type)+"]"),
			f.NodeName, f.Field, f.Description)
		fmt.Fprintf(w, "      %v -> %v\n", f.Before, f.After)
	}
}
