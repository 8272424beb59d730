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

package shared

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// StdinPath names standard input in file arguments.
const StdinPath = "-"

// ReadInput reads the file at path, or stdin when path is "-".
func ReadInput(path string, stdin io.Reader) ([]byte, error) {
	if path == StdinPath {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, NewFailureError("failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewUsageError(fmt.Sprintf("failed to read %s", path), err)
	}
	return data, nil
}

// ExpandPaths resolves file arguments. Arguments containing glob
// metacharacters, including "**", are expanded; other arguments are kept
// as given so a missing file reports its own error. Duplicates are dropped.
func ExpandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		if arg == StdinPath || !hasMeta(arg) {
			add(arg)
			continue
		}
		if !doublestar.ValidatePathPattern(arg) {
			return nil, NewUsageError(fmt.Sprintf("invalid glob pattern %q", arg), nil)
		}
		matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, NewUsageError(fmt.Sprintf("invalid glob pattern %q", arg), err)
		}
		if len(matches) == 0 {
			return nil, NewUsageError(fmt.Sprintf("no files match %q", arg), nil)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return paths, nil
}

func hasMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// WriteOutput writes data to path, or to w when path is empty or "-".
func WriteOutput(path string, data []byte, w io.Writer) error {
	if path == "" || path == StdinPath {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return NewFailureError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}
