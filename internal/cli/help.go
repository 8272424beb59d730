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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/flowsmith/internal/commands/shared"
)

const docsURL = "https://github.com/tombee/flowsmith#readme"

// CommandMetadata describes a command for --json help output
type CommandMetadata struct {
	Name        string            `json:"name"`
	Short       string            `json:"short"`
	Long        string            `json:"long,omitempty"`
	Usage       string            `json:"usage"`
	Group       string            `json:"group,omitempty"`
	Examples    string            `json:"examples,omitempty"`
	Flags       []FlagMetadata    `json:"flags,omitempty"`
	Subcommands []CommandMetadata `json:"subcommands,omitempty"`
}

// FlagMetadata describes a flag
type FlagMetadata struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
}

// HelpResponse is the JSON response of the help command
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandMetadata `json:"commands,omitempty"`
	Command     *CommandMetadata  `json:"command,omitempty"`
	GlobalFlags []FlagMetadata    `json:"global_flags,omitempty"`
	DocsURL     string            `json:"docs_url"`
}

// NewHelpCommand creates the help command. With --json it describes the
// whole command tree, which lets agents discover the CLI without scraping.
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Help provides detailed information about commands and their usage.

Run 'flowsmith help' to see all available commands.
Run 'flowsmith help <command>' to see detailed help for a specific command.
Add --json for a machine-readable description of the command tree.`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			var names []string
			for _, c := range rootCmd.Commands() {
				if c.IsAvailableCommand() {
					names = append(names, c.Name()+"\t"+c.Short)
				}
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := rootCmd
			if len(args) > 0 {
				found, rest, err := rootCmd.Find(args)
				if err != nil || len(rest) > 0 {
					return shared.NewUsageError(fmt.Sprintf("unknown command %q", args[0]), nil)
				}
				target = found
			}

			if !shared.GetJSON() {
				target.SetOut(cmd.OutOrStdout())
				return target.Help()
			}

			resp := HelpResponse{
				JSONResponse: shared.NewJSONResponse("help", true),
				GlobalFlags:  flagsOf(rootCmd.PersistentFlags()),
				DocsURL:      docsURL,
			}
			if target == rootCmd {
				for _, c := range rootCmd.Commands() {
					if c.IsAvailableCommand() {
						resp.Commands = append(resp.Commands, describe(c))
					}
				}
			} else {
				resp.Command = new(CommandMetadata)
				*resp.Command = describe(target)
				resp.JSONResponse.Command = "help " + target.CommandPath()
			}
			return shared.EmitJSON(cmd.OutOrStdout(), resp)
		},
	}
}

// describe returns the metadata of cmd and its available subcommands.
func describe(cmd *cobra.Command) CommandMetadata {
	meta := CommandMetadata{
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Group:    cmd.GroupID,
		Examples: cmd.Example,
		Flags:    flagsOf(cmd.LocalNonPersistentFlags()),
	}
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			meta.Subcommands = append(meta.Subcommands, describe(sub))
		}
	}
	return meta
}

func flagsOf(fs *pflag.FlagSet) []FlagMetadata {
	var flags []FlagMetadata
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, FlagMetadata{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		})
	})
	return flags
}
