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

package autofix

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/internal/commands/shared"
)

const fixture = `{
  "name": "Orders",
  "nodes": [
    {"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "typeVersion": 2,
     "position": [0, 0], "parameters": {"path": "orders"}},
    {"id": "2", "name": "Fetch", "type": "n8n-nodes-base.httpRequest", "typeVersion": 4.2,
     "position": [200, 0], "parameters": {"url": "{{ $json.url }}"}}
  ],
  "connections": {
    "Webhook": {"main": [[{"node": "Fetch", "type": "main", "index": 0}]]}
  }
}`

func setup(t *testing.T) string {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "orders.json")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewCommand()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestAutofixPreview(t *testing.T) {
	path := setup(t)

	out, _, err := execute(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "expression-format")
	assert.Contains(t, out, "Fetch.")
	assert.Contains(t, out, "={{ $json.url }}")
}

func TestAutofixApplyToFile(t *testing.T) {
	path := setup(t)
	outPath := filepath.Join(filepath.Dir(path), "fixed.json")

	_, _, err := execute(t, path, "--apply", "-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var wf struct {
		Nodes []struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &wf))
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "={{ $json.url }}", wf.Nodes[1].Parameters["url"])
}

func TestAutofixFilteredJSON(t *testing.T) {
	path := setup(t)
	_, _, jsonFlag, _ := shared.RegisterFlagPointers()
	*jsonFlag = true

	out, _, err := execute(t, path, "--fix-types", "typeversion-correction")
	require.NoError(t, err)

	var resp struct {
		Command string `json:"command"`
		Success bool   `json:"success"`
		Result  struct {
			Fixes   []any `json:"fixes"`
			Applied bool  `json:"applied"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "autofix", resp.Command)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Result.Fixes)
	assert.False(t, resp.Result.Applied)
}

func TestAutofixFlagErrors(t *testing.T) {
	path := setup(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown confidence", []string{path, "--confidence", "certain"}},
		{"unknown fix type", []string{path, "--fix-types", "spelling"}},
		{"zero max fixes", []string{path, "--max-fixes", "0"}},
		{"unknown profile", []string{path, "--profile", "lax"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Equal(t, shared.ExitUsage, shared.ExitCode(err))
		})
	}
}
