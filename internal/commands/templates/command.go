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

package templates

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/shared"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

// NewCommand creates the templates command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List and render starter workflow templates",
	}
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newGetCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List templates",
		Example:       `  flowsmith templates list --search slack`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			list, err := rt.Service.Templates(ctx, query)
			if err != nil {
				return shared.NewFailureError("failed to list templates", err)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Templates any `json:"templates"`
				}{shared.NewJSONResponse("templates list", true), list})
			}
			if len(list) == 0 {
				fmt.Fprintln(out, shared.RenderWarn("no templates found"))
				return nil
			}
			for _, t := range list {
				fmt.Fprintf(out, "%s %s\n", shared.Bold.Render(t.Name), shared.RenderLabel("("+t.Category+")"))
				fmt.Fprintf(out, "    %s\n", t.Description)
				if len(t.Tags) > 0 {
					fmt.Fprintf(out, "    %s %s\n", shared.RenderLabel("tags:"), strings.Join(t.Tags, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "search", "s", "", "Only list templates matching this text")
	return cmd
}

func newGetCommand() *cobra.Command {
	var (
		name       string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "get <template>",
		Short: "Render a template as a new workflow",
		Example: `  flowsmith templates get webhook-to-slack --name "Deploy alerts" -o alerts.json
  flowsmith templates get webhook-to-slack | flowsmith validate -`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteTemplates,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			data, err := rt.Service.Template(ctx, args[0], name)
			if err != nil {
				if flowerrors.TypeOf(err) == "not_found" {
					return shared.NewUsageError("unknown template", err)
				}
				return shared.NewFailureError("failed to render template", err)
			}
			return shared.WriteOutput(outputPath, append([]byte(data), '\n'), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the new workflow (default: the template's own name)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the workflow to a file instead of stdout")
	return cmd
}
