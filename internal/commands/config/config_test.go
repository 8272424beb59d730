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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tombee/flowsmith/internal/commands/shared"
)

func setup(t *testing.T) string {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigShow(t *testing.T) {
	tests := []struct {
		name       string
		config     string
		wantErr    bool
		wantOutput []string
	}{
		{
			name:       "no config file",
			wantOutput: []string{"no config file", "transport: stdio", "call_timeout: 30s"},
		},
		{
			name: "file overrides defaults",
			config: `server:
  transport: http
validation:
  default_profile: strict
`,
			wantOutput: []string{"transport: http", "default_profile: strict"},
		},
		{
			name: "invalid transport",
			config: `server:
  transport: smoke-signals
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setup(t)
			if tt.config != "" {
				path := filepath.Join(dir, "flowsmith", "config.yaml")
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte(tt.config), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			out, err := execute(t, "show")
			if (err != nil) != tt.wantErr {
				t.Fatalf("show error = %v, wantErr %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestConfigPath(t *testing.T) {
	dir := setup(t)

	out, err := execute(t, "path")
	if err != nil {
		t.Fatalf("path failed: %v", err)
	}
	want := filepath.Join(dir, "flowsmith", "config.yaml")
	if !strings.Contains(out, want) || !strings.Contains(out, "(not found)") {
		t.Errorf("unexpected output %q", out)
	}

	explicit := filepath.Join(dir, "custom.yaml")
	_, _, _, configFlag := shared.RegisterFlagPointers()
	*configFlag = explicit
	out, err = execute(t, "path")
	if err != nil {
		t.Fatalf("path failed: %v", err)
	}
	if strings.TrimSpace(out) != explicit {
		t.Errorf("path = %q, want %q", out, explicit)
	}
}

func TestConfigCheck(t *testing.T) {
	setup(t)

	out, err := execute(t, "check")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "configuration is valid") {
		t.Errorf("unexpected output %q", out)
	}
}
