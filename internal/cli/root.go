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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/autofix"
	"github.com/tombee/flowsmith/internal/commands/catalog"
	"github.com/tombee/flowsmith/internal/commands/completion"
	"github.com/tombee/flowsmith/internal/commands/config"
	"github.com/tombee/flowsmith/internal/commands/diff"
	"github.com/tombee/flowsmith/internal/commands/serve"
	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/commands/templates"
	"github.com/tombee/flowsmith/internal/commands/validate"
	"github.com/tombee/flowsmith/internal/commands/version"
)

// Command groups shown in help output.
const (
	GroupWorkflows = "workflows"
	GroupCatalog   = "catalog"
	GroupServer    = "server"
	GroupOther     = "other"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root Cobra command with every subcommand
// registered.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flowsmith",
		Short: "flowsmith - validate, diff and fix n8n workflows",
		Long: `flowsmith checks n8n workflows against a catalog of node types, applies
small batches of edits to them, and proposes fixes for common mistakes.

Everything the CLI does is also available to AI assistants as MCP tools
through 'flowsmith serve'.

Run 'flowsmith validate workflow.json' to check a workflow.
Run 'flowsmith templates list' to see starter workflows.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, quiet, json, cfg := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(cfg, "config", "", "Path to config file (default: ~/.config/flowsmith/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddGroup(
		&cobra.Group{ID: GroupWorkflows, Title: "Workflow Commands:"},
		&cobra.Group{ID: GroupCatalog, Title: "Catalog Commands:"},
		&cobra.Group{ID: GroupServer, Title: "Server Commands:"},
		&cobra.Group{ID: GroupOther, Title: "Other Commands:"},
	)

	add := func(group string, sub *cobra.Command) {
		sub.GroupID = group
		cmd.AddCommand(sub)
	}
	add(GroupWorkflows, validate.NewCommand())
	add(GroupWorkflows, diff.NewCommand())
	add(GroupWorkflows, autofix.NewCommand())
	add(GroupCatalog, catalog.NewCommand())
	add(GroupCatalog, templates.NewCommand())
	add(GroupServer, serve.NewCommand())
	add(GroupOther, config.NewConfigCommand())
	add(GroupOther, completion.NewCommand())
	add(GroupOther, version.NewCommand())

	cmd.SetHelpCommand(NewHelpCommand(cmd))
	cmd.SetHelpCommandGroupID(GroupOther)
	cmd.CompletionOptions.DisableDefaultCmd = true

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
