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

package diff

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/pkg/validator"
)

// NewCommand creates the diff command
func NewCommand() *cobra.Command {
	var (
		validateOnly bool
		profile      string
		outputPath   string
	)

	cmd := &cobra.Command{
		Use:   "diff <workflow> <operations>",
		Short: "Apply a batch of diff operations to a workflow",
		Long: `Diff applies a batch of up to five operations to a workflow file and
validates the result. Operations are a JSON or YAML array such as:

  [
    {"type": "addNode", "node": {"name": "Notify", "type": "n8n-nodes-base.slack", "typeVersion": 2.2}},
    {"type": "addConnection", "source": "Webhook", "target": "Notify"}
  ]

The batch is atomic: if any operation fails, nothing is applied and the
failing operation is reported. With --validate-only the batch is checked
and the would-be workflow validated, but no workflow is written.

Either argument may be "-" to read from stdin, but not both.`,
		Example: `  # Example 1: Apply operations and print the new workflow
  flowsmith diff workflow.json ops.json

  # Example 2: Write the result back over the original
  flowsmith diff workflow.json ops.json -o workflow.json

  # Example 3: Dry-run a batch
  flowsmith diff workflow.json ops.json --validate-only`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completion.CompleteWorkflowFiles,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == shared.StdinPath && args[1] == shared.StdinPath {
				return shared.NewUsageError("workflow and operations cannot both be read from stdin", nil)
			}
			var p validator.Profile
			if profile != "" {
				parsed, err := validator.ParseProfile(profile)
				if err != nil {
					return shared.NewUsageError("invalid --profile", err)
				}
				p = parsed
			}
			return runDiff(cmd, args[0], args[1], validateOnly, p, outputPath)
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Check the batch without producing a workflow")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Validation profile for the result")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the new workflow to a file instead of stdout")
	_ = cmd.RegisterFlagCompletionFunc("profile", completion.CompleteProfiles)

	return cmd
}

func runDiff(cmd *cobra.Command, workflowPath, opsPath string, validateOnly bool, profile validator.Profile, outputPath string) error {
	ctx := cmd.Context()

	wfData, err := shared.ReadInput(workflowPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	opsData, err := shared.ReadInput(opsPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	ops, err := decodeOperations(opsData)
	if err != nil {
		return err
	}

	rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	res, err := rt.Service.ApplyOperations(ctx, service.DiffRequest{
		Workflow:     wfData,
		Operations:   ops,
		ValidateOnly: validateOnly,
		Profile:      profile,
	})
	if err != nil {
		return shared.NewInvalidWorkflowError("diff failed", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		resp := struct {
			shared.JSONResponse
			Result any `json:"result"`
		}{shared.NewJSONResponse("diff", res.Success()), res}
		if err := shared.EmitJSON(out, resp); err != nil {
			return err
		}
		if !res.Success() {
			return &shared.ExitError{Code: shared.ExitInvalidWorkflow}
		}
		return nil
	}

	if !res.Success() {
		for _, opErr := range res.Errors {
			cmd.PrintErrln(shared.RenderError(opErr.Error()))
			cmd.PrintErrln("    " + shared.RenderLabel(opErr.Suggestion()))
		}
		return &shared.ExitError{Code: shared.ExitInvalidWorkflow}
	}

	if validateOnly {
		if res.Validation != nil {
			shared.PrintValidation(out, workflowPath, res.Validation)
		}
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%d operations would apply", res.OperationsApplied)))
		return nil
	}

	data, err := json.MarshalIndent(res.Workflow, "", "  ")
	if err != nil {
		return shared.NewFailureError("failed to encode workflow", err)
	}
	if err := shared.WriteOutput(outputPath, append(data, '\n'), out); err != nil {
		return err
	}
	if !shared.GetQuiet() {
		cmd.PrintErrln(shared.RenderOK(fmt.Sprintf("applied %d operations", res.OperationsApplied)))
		if res.Validation != nil && !res.Validation.Valid {
			cmd.PrintErrln(shared.RenderWarn(fmt.Sprintf("result has %d validation errors; run flowsmith validate for details", len(res.Validation.Errors))))
		}
	}
	return nil
}

// decodeOperations passes JSON through untouched and converts a YAML
// sequence to plain values.
func decodeOperations(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}
	var ops []any
	if err := yaml.Unmarshal(trimmed, &ops); err != nil {
		return nil, shared.NewUsageError("operations must be a JSON or YAML array", err)
	}
	return ops, nil
}
