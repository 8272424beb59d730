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

// Package catalog implements the catalog command group.
package catalog

import (
	"github.com/spf13/cobra"
)

// NewCommand creates the catalog command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the node type catalog",
		Long: `Catalog commands query the node types workflows are validated against
and manage the optional SQLite catalog database.

The catalog in use comes from the configuration: a catalog file
(catalog.path), a database (catalog.sqlite_path), or the catalog built
into flowsmith.`,
	}

	cmd.AddCommand(newSearchCommand())
	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newRemoveCommand())

	return cmd
}
