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

package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long: `View flowsmith configuration.

Subcommands:
  show  - Display the effective configuration
  path  - Show config file location
  check - Load and validate the configuration`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigCheckCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration flowsmith would run with: the config file,
environment overrides and defaults merged. Use --json for machine-readable
output.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "path",
		Short:         "Show config file location",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConfigPath,
	}
}

func newConfigCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "check",
		Short:         "Load and validate the configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := shared.LoadConfig(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("configuration is valid"))
			return nil
		},
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, cfg)
	}

	if path := resolvedPath(); path != "" {
		fmt.Fprintf(out, "# %s\n", path)
	} else {
		fmt.Fprintln(out, "# no config file; defaults and environment")
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return shared.NewFailureError("failed to encode configuration", err)
	}
	return enc.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := resolvedPath()
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return shared.NewFailureError("failed to determine config path", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", p, shared.RenderLabel("(not found)"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// resolvedPath returns the config file that would be loaded, if any.
func resolvedPath() string {
	if path := shared.GetConfigPath(); path != "" {
		return path
	}
	return config.DefaultPath()
}
