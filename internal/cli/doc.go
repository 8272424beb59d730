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

/*
Package cli builds the flowsmith command tree.

Individual commands live in the internal/commands subpackages; this package
wires them under one root, registers the persistent flags, and groups the
commands for help output.

# Command Tree

	flowsmith
	├── validate      Validate workflow files
	├── diff          Apply a batch of diff operations to a workflow
	├── autofix       Propose or apply fixes
	├── catalog       Search, inspect and manage node types
	├── templates     List and fetch starter workflows
	├── serve         Run the MCP and REST server
	├── config        Show and check configuration
	├── completion    Shell completion scripts
	├── version       Show version
	└── help          Show help (supports --json)

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	if err := cli.NewRootCommand().Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Exit Codes

  - 0: success
  - 1: general failure
  - 2: a workflow or operation batch failed validation
  - 3: invalid usage or configuration
*/
package cli
