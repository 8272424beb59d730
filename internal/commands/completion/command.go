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
	"fmt"

	"github.com/spf13/cobra"
)

// shells maps each supported shell to its script generator.
var shells = map[string]func(root *cobra.Command, cmd *cobra.Command) error{
	"bash": func(root, cmd *cobra.Command) error {
		return root.GenBashCompletionV2(cmd.OutOrStdout(), true)
	},
	"zsh": func(root, cmd *cobra.Command) error {
		return root.GenZshCompletion(cmd.OutOrStdout())
	},
	"fish": func(root, cmd *cobra.Command) error {
		return root.GenFishCompletion(cmd.OutOrStdout(), true)
	},
	"powershell": func(root, cmd *cobra.Command) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	},
}

// NewCommand creates the completion command for generating shell completion scripts.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for flowsmith.

Completions cover command names, flag values such as --profile and
--confidence, template names, node types from the active catalog, and
workflow files.`,
		Example: `  # Bash, current session
  source <(flowsmith completion bash)

  # Zsh, every session
  flowsmith completion zsh > "${fpath[1]}/_flowsmith"

  # Fish
  flowsmith completion fish > ~/.config/fish/completions/flowsmith.fish

  # PowerShell
  flowsmith completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		SilenceUsage:          true,
		SilenceErrors:         true,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, ok := shells[args[0]]
			if !ok {
				return fmt.Errorf("unsupported shell %q", args[0])
			}
			return gen(cmd.Root(), cmd)
		},
	}
}
