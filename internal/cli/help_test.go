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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tombee/flowsmith/internal/commands/shared"
)

func runHelp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelpCommand_Text(t *testing.T) {
	out, err := runHelp(t, "help", "validate")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out, "--profile") {
		t.Errorf("expected validate flags in help, got:\n%s", out)
	}
}

func TestHelpCommand_JSONTree(t *testing.T) {
	out, err := runHelp(t, "help", "--json")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if resp.DocsURL == "" {
		t.Error("expected docs_url")
	}

	byName := map[string]CommandMetadata{}
	for _, c := range resp.Commands {
		byName[c.Name] = c
	}
	validate, ok := byName["validate"]
	if !ok {
		t.Fatal("validate missing from command list")
	}
	if validate.Group != GroupWorkflows {
		t.Errorf("expected group %q, got %q", GroupWorkflows, validate.Group)
	}

	catalog, ok := byName["catalog"]
	if !ok {
		t.Fatal("catalog missing from command list")
	}
	var subs []string
	for _, s := range catalog.Subcommands {
		subs = append(subs, s.Name)
	}
	if !strings.Contains(strings.Join(subs, ","), "search") {
		t.Errorf("expected catalog search subcommand, got %v", subs)
	}

	var global []string
	for _, f := range resp.GlobalFlags {
		global = append(global, f.Name)
	}
	if !strings.Contains(strings.Join(global, ","), "json") {
		t.Errorf("expected json in global flags, got %v", global)
	}
}

func TestHelpCommand_JSONSingle(t *testing.T) {
	out, err := runHelp(t, "help", "diff", "--json")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if resp.Command == nil || resp.Command.Name != "diff" {
		t.Fatalf("expected diff metadata, got %+v", resp.Command)
	}
	found := false
	for _, f := range resp.Command.Flags {
		if f.Name == "validate-only" {
			found = true
			if f.Type != "bool" {
				t.Errorf("expected bool flag, got %q", f.Type)
			}
		}
	}
	if !found {
		t.Error("expected validate-only flag")
	}
}

func TestHelpCommand_Unknown(t *testing.T) {
	_, err := runHelp(t, "help", "nope")
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if code := shared.ExitCode(err); code != shared.ExitUsage {
		t.Errorf("expected usage exit code, got %d", code)
	}
}
