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

package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/service"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

func newSearchCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search node types by name or description",
		Example: `  flowsmith catalog search slack
  flowsmith catalog search "http request" --limit 5 --json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			hits, err := rt.Service.SearchNodes(ctx, args[0], limit)
			if err != nil {
				return serviceError(err)
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Nodes []service.NodeSummary `json:"nodes"`
				}{shared.NewJSONResponse("catalog search", true), hits})
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, shared.RenderWarn("no node types match "+args[0]))
				return nil
			}
			for _, h := range hits {
				fmt.Fprintf(out, "%s %s\n", shared.Bold.Render(h.Type), shared.RenderLabel(fmt.Sprintf("v%g", h.Latest)))
				if h.Description != "" {
					fmt.Fprintf(out, "    %s\n", h.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", service.DefaultSearchLimit, "Maximum number of results")
	return cmd
}

func newInfoCommand() *cobra.Command {
	var (
		detail string
		filter string
	)

	cmd := &cobra.Command{
		Use:   "info <node-type>",
		Short: "Show a node type's versions and properties",
		Long: `Info prints a node type as JSON. Short forms such as "slack" or
"nodes-base.slack" are resolved. --filter applies a jq expression to the
output.`,
		Example: `  flowsmith catalog info httpRequest
  flowsmith catalog info slack --detail full --filter '.properties[].name'`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteNodeTypes,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := shared.Bootstrap(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			info, err := rt.Service.NodeInfo(ctx, service.NodeInfoRequest{
				Type:   args[0],
				Detail: service.Detail(detail),
				Filter: filter,
			})
			if err != nil {
				return serviceError(err)
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return shared.NewFailureError("failed to encode node type", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&detail, "detail", string(service.DetailEssentials), "Detail level: essentials or full")
	cmd.Flags().StringVar(&filter, "filter", "", "jq expression applied to the output")
	return cmd
}

// serviceError maps service failures to exit codes.
func serviceError(err error) error {
	switch flowerrors.TypeOf(err) {
	case "validation", "not_found":
		return shared.NewUsageError("catalog query failed", err)
	}
	return shared.NewFailureError("catalog query failed", err)
}
