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

package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/diff"
)

// Info contains version metadata
type Info struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	BuildDate    string `json:"build_date"`
	GoVersion    string `json:"go_version"`
	CatalogNodes int    `json:"catalog_nodes"`
	MaxBatchOps  int    `json:"max_batch_operations"`
}

// NewCommand creates the version command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Show version information",
		Long:          `Display the flowsmith version, build details and the size of the built-in node catalog.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runVersion,
	}
}

func current() Info {
	v, c, b := shared.GetVersion()
	info := Info{
		Version:     v,
		Commit:      c,
		BuildDate:   b,
		GoVersion:   runtime.Version(),
		MaxBatchOps: diff.MaxOperations,
	}
	if snap, err := catalog.Default(); err == nil {
		info.CatalogNodes = snap.Len()
	}
	return info
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := current()

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "flowsmith version %s\n", info.Version)
	fmt.Fprintf(out, "  commit:        %s\n", info.Commit)
	fmt.Fprintf(out, "  build date:    %s\n", info.BuildDate)
	fmt.Fprintf(out, "  go:            %s\n", info.GoVersion)
	fmt.Fprintf(out, "  catalog nodes: %d\n", info.CatalogNodes)
	return nil
}
