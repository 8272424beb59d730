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
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tombee/flowsmith/internal/commands/shared"
	"github.com/tombee/flowsmith/internal/config"
	"github.com/tombee/flowsmith/pkg/catalog"
	"github.com/tombee/flowsmith/pkg/catalog/sqlite"
)

func newImportCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import [catalog-file]",
		Short: "Import node types into the catalog database",
		Long: `Import reads a JSON or YAML catalog file and upserts its node types into
the SQLite catalog database. Without a file the built-in catalog is
imported, which seeds a database that can then be extended.

Point catalog.sqlite_path in the configuration at the database to
validate against it.`,
		Example: `  # Seed a database from the built-in catalog
  flowsmith catalog import --db ~/.config/flowsmith/catalog.db

  # Add community nodes
  flowsmith catalog import community-nodes.yaml`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var types []catalog.NodeType
			source := "built-in catalog"
			if len(args) == 1 {
				source = args[0]
				data, err := shared.ReadInput(args[0], cmd.InOrStdin())
				if err != nil {
					return err
				}
				if types, err = catalog.Parse(data); err != nil {
					return shared.NewUsageError("invalid catalog "+source, err)
				}
			} else {
				snap, err := catalog.Default()
				if err != nil {
					return shared.NewFailureError("failed to load built-in catalog", err)
				}
				for _, t := range snap.List() {
					types = append(types, *t)
				}
			}

			store, path, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(ctx, types)
			if err != nil {
				return shared.NewFailureError("import failed", err)
			}
			total, err := store.Count(ctx)
			if err != nil {
				return shared.NewFailureError("failed to count node types", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(cmd.OutOrStdout(), struct {
					shared.JSONResponse
					Database string `json:"database"`
					Imported int    `json:"imported"`
					Total    int    `json:"total"`
				}{shared.NewJSONResponse("catalog import", true), path, n, total})
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(
				fmt.Sprintf("imported %d node types from %s into %s (%d total)", n, source, path, total)))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Catalog database path (default: catalog.sqlite_path or <config dir>/catalog.db)")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "remove <node-type>...",
		Short:         "Remove node types from the catalog database",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, _, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, name := range args {
				full := catalog.FullForm(name)
				t, err := store.Get(ctx, full)
				if err != nil {
					return shared.NewUsageError("cannot remove "+name, err)
				}
				if err := store.Delete(ctx, full); err != nil {
					return shared.NewFailureError("failed to remove "+name, err)
				}
				if !shared.GetQuiet() {
					fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("removed %s (%s)", t.DisplayName, full)))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Catalog database path (default: catalog.sqlite_path or <config dir>/catalog.db)")
	return cmd
}

// openStore resolves the database path from the flag, the configuration or
// the config directory, in that order.
func openStore(dbPath string) (*sqlite.Store, string, error) {
	if dbPath == "" {
		cfg, err := shared.LoadConfig()
		if err != nil {
			return nil, "", err
		}
		dbPath = cfg.Catalog.SQLitePath
	}
	if dbPath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, "", shared.NewFailureError("failed to locate config directory", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", shared.NewFailureError("failed to create config directory", err)
		}
		dbPath = filepath.Join(dir, "catalog.db")
	}
	store, err := sqlite.Open(sqlite.Config{Path: dbPath, WAL: true})
	if err != nil {
		return nil, "", shared.NewFailureError("failed to open catalog database", err)
	}
	return store, dbPath, nil
}
