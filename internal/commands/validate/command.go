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

package validate

import (
	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/pkg/validator"
)

// FileResult is the outcome for one workflow file in --json output.
type FileResult struct {
	File string `json:"file"`
	*validator.Result
	Error string `json:"error,omitempty"`
}

// Response is the --json envelope of the validate command.
type Response struct {
	shared.JSONResponse
	Results []FileResult `json:"results"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	var (
		profile   string
		skipNodes bool
		skipConns bool
		skipExprs bool
		connsOnly bool
		exprsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "validate <workflow>...",
		Short: "Validate n8n workflow files",
		Long: `Validate checks n8n workflow files against the node catalog.

Node configuration, the connection graph and expressions are checked, and
every problem is reported with a code, a location and, where one is known,
a suggestion. Arguments may be files, "-" for stdin, or glob patterns
("workflows/**/*.json").

Profiles control how strict the checks are:
  minimal      structure and references only
  runtime      problems that break execution (default)
  ai-friendly  adds advisory warnings for AI tool and agent wiring
  strict       adds best-practice warnings such as missing error handling

Exit codes: 0 when every file is valid, 2 when any file is invalid.

See also: flowsmith autofix, flowsmith diff`,
		Example: `  # Example 1: Validate one workflow
  flowsmith validate workflow.json

  # Example 2: Validate a tree of workflows with the strict profile
  flowsmith validate 'workflows/**/*.json' --profile strict

  # Example 3: Check only the connection graph, as JSON
  flowsmith validate workflow.json --connections-only --json

  # Example 4: Validate from stdin
  cat workflow.yaml | flowsmith validate -`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(profile, skipNodes, skipConns, skipExprs)
			if err != nil {
				return err
			}
			mode := modeFull
			switch {
			case connsOnly && exprsOnly:
				return shared.NewUsageError("--connections-only and --expressions-only are mutually exclusive", nil)
			case connsOnly:
				mode = modeConnections
			case exprsOnly:
				mode = modeExpressions
			}
			return runValidate(cmd, args, opts, mode)
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Validation profile: minimal, runtime, ai-friendly, strict (default from config)")
	cmd.Flags().BoolVar(&skipNodes, "skip-nodes", false, "Skip node configuration checks")
	cmd.Flags().BoolVar(&skipConns, "skip-connections", false, "Skip connection graph checks")
	cmd.Flags().BoolVar(&skipExprs, "skip-expressions", false, "Skip expression checks")
	cmd.Flags().BoolVar(&connsOnly, "connections-only", false, "Check only the connection graph")
	cmd.Flags().BoolVar(&exprsOnly, "expressions-only", false, "Check only expressions")
	_ = cmd.RegisterFlagCompletionFunc("profile", completion.CompleteProfiles)

	return cmd
}

type mode int

const (
	modeFull mode = iota
	modeConnections
	modeExpressions
)

func buildOptions(profile string, skipNodes, skipConns, skipExprs bool) (validator.Options, error) {
	var opts validator.Options
	if profile != "" {
		p, err := validator.ParseProfile(profile)
		if err != nil {
			return opts, shared.NewUsageError("invalid --profile", err)
		}
		opts.Profile = p
	}
	enabled := func(skip bool) *bool {
		v := !skip
		return &v
	}
	opts.ValidateNodes = enabled(skipNodes)
	opts.ValidateConnections = enabled(skipConns)
	opts.ValidateExpressions = enabled(skipExprs)
	return opts, nil
}

func runValidate(cmd *cobra.Command, args []string, opts validator.Options, m mode) error {
	ctx := cmd.Context()

	paths, err := shared.ExpandPaths(args)
	if err != nil {
		return err
	}

	rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	out := cmd.OutOrStdout()
	resp := Response{JSONResponse: shared.NewJSONResponse("validate", true)}
	invalid := 0

	for _, path := range paths {
		data, err := shared.ReadInput(path, cmd.InOrStdin())
		if err != nil {
			invalid++
			resp.Results = append(resp.Results, FileResult{File: path, Error: err.Error()})
			if !shared.GetJSON() {
				cmd.PrintErrln(shared.RenderError(err.Error()))
			}
			continue
		}

		var res validator.Result
		switch m {
		case modeConnections:
			res, err = rt.Service.ValidateConnections(ctx, data)
		case modeExpressions:
			res, err = rt.Service.ValidateExpressions(ctx, data)
		default:
			res, err = rt.Service.ValidateWorkflow(ctx, data, opts)
		}
		if err != nil {
			return shared.NewFailureError("validation failed for "+path, err)
		}
		if !res.Valid {
			invalid++
		}
		resp.Results = append(resp.Results, FileResult{File: path, Result: &res})
		if !shared.GetJSON() {
			shared.PrintValidation(out, path, &res)
		}
	}

	resp.Success = invalid == 0
	if shared.GetJSON() {
		if err := shared.EmitJSON(out, resp); err != nil {
			return err
		}
	} else if len(paths) > 1 && !shared.GetQuiet() {
		cmd.Printf("\n%d of %d workflows valid\n", len(paths)-invalid, len(paths))
	}

	if invalid > 0 {
		// The report is already printed; only the exit code is left to set.
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow}
	}
	return nil
}
