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

package validate

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/flowsmith/internal/commands/shared"
)

const validWorkflow = `{
  "name": "Ping",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "typeVersion": 1, "position": [0, 0], "parameters": {}},
    {"id": "2", "name": "Done", "type": "n8n-nodes-base.noOp", "typeVersion": 1, "position": [200, 0], "parameters": {}}
  ],
  "connections": {"Start": {"main": [[{"node": "Done", "type": "main", "index": 0}]]}}
}`

const invalidWorkflow = `{
  "name": "Broken",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "typeVersion": 1, "position": [0, 0], "parameters": {}}
  ],
  "connections": {"Start": {"main": [[{"node": "Missing", "type": "main", "index": 0}]]}}
}`

func setup(t *testing.T) string {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return t.TempDir()
}

func writeWorkflow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create test workflow: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), err
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()

	if cmd.Use != "validate <workflow>..." {
		t.Errorf("unexpected use %q", cmd.Use)
	}
	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("expected usage and error printing to be silenced")
	}
	for _, name := range []string{"profile", "skip-nodes", "skip-connections", "skip-expressions", "connections-only", "expressions-only"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not defined", name)
		}
	}
}

func TestValidateValidWorkflow(t *testing.T) {
	dir := setup(t)
	path := writeWorkflow(t, dir, "valid.json", validWorkflow)

	out, err := execute(t, path)
	if err != nil {
		t.Fatalf("expected valid workflow to pass, got error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "[VALID]") {
		t.Errorf("expected [VALID] in output, got %q", out)
	}
}

func TestValidateInvalidWorkflow(t *testing.T) {
	dir := setup(t)
	path := writeWorkflow(t, dir, "broken.json", invalidWorkflow)

	out, err := execute(t, path)
	if shared.ExitCode(err) != shared.ExitInvalidWorkflow {
		t.Fatalf("expected exit code %d, got %v", shared.ExitInvalidWorkflow, err)
	}
	if !strings.Contains(out, "[INVALID]") {
		t.Errorf("expected [INVALID] in output, got %q", out)
	}
	if !strings.Contains(out, "unknown_connection_target") {
		t.Errorf("expected issue code in output, got %q", out)
	}
}

func TestValidateGlobJSON(t *testing.T) {
	dir := setup(t)
	writeWorkflow(t, dir, "a/valid.json", validWorkflow)
	writeWorkflow(t, dir, "b/c/broken.json", invalidWorkflow)
	_, _, jsonFlag, _ := shared.RegisterFlagPointers()
	*jsonFlag = true

	out, err := execute(t, filepath.Join(dir, "**", "*.json"))
	if shared.ExitCode(err) != shared.ExitInvalidWorkflow {
		t.Fatalf("expected exit code %d, got %v", shared.ExitInvalidWorkflow, err)
	}

	var resp struct {
		Command string `json:"command"`
		Success bool   `json:"success"`
		Results []struct {
			File  string `json:"file"`
			Valid bool   `json:"valid"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if resp.Command != "validate" || resp.Success {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	for _, r := range resp.Results {
		want := strings.HasSuffix(r.File, "valid.json") && !strings.HasSuffix(r.File, "broken.json")
		if r.Valid != want {
			t.Errorf("%s: valid = %v, want %v", r.File, r.Valid, want)
		}
	}
}

func TestValidateStdinConnectionsOnly(t *testing.T) {
	setup(t)
	cmd := NewCommand()
	var outBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(validWorkflow))
	cmd.SetArgs([]string{"-", "--connections-only"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(outBuf.String(), "[VALID] -") {
		t.Errorf("unexpected output %q", outBuf.String())
	}
}

func TestValidateFlagErrors(t *testing.T) {
	dir := setup(t)
	path := writeWorkflow(t, dir, "valid.json", validWorkflow)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown profile", []string{path, "--profile", "paranoid"}},
		{"exclusive modes", []string{path, "--connections-only", "--expressions-only"}},
		{"missing file", []string{filepath.Join(dir, "absent.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
