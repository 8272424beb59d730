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

package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// MaxArrayGrowth bounds how far past the end of an array a path index may
// reach. Each skipped slot is filled with null.
const MaxArrayGrowth = 64

// step is one hop of a parsed path: a map key or an array index.
type step struct {
	key   string
	index int
	isKey bool
}

func (s step) String() string {
	if s.isKey {
		return s.key
	}
	return "[" + strconv.Itoa(s.index) + "]"
}

// segmentPattern matches "key", "key[0]", "key[0][1]" and "[0]".
var segmentPattern = regexp.MustCompile(`^([^\[\]]*)((?:\[\d+\])*)$`)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// parsePath splits a dotted, bracketed path such as "options.items[0].value".
func parsePath(path string) ([]step, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &PathError{Path: path, Reason: "path is empty"}
	}
	var steps []step
	for _, seg := range strings.Split(path, ".") {
		m := segmentPattern.FindStringSubmatch(seg)
		if m == nil {
			return nil, malformedSegment(seg)
		}
		if m[1] == "" && m[2] == "" {
			return nil, &PathError{Path: path, Reason: fmt.Sprintf("empty segment in path %q", path)}
		}
		if m[1] != "" {
			steps = append(steps, step{key: m[1], isKey: true})
		}
		for _, idx := range indexPattern.FindAllStringSubmatch(m[2], -1) {
			n, err := strconv.Atoi(idx[1])
			if err != nil {
				return nil, malformedSegment(seg)
			}
			steps = append(steps, step{index: n})
		}
	}
	return steps, nil
}

// renderPath joins steps back into path form.
func renderPath(steps []step) string {
	var b strings.Builder
	for i, s := range steps {
		if s.isKey && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// setPath writes value at steps below container, creating intermediate maps
// and arrays as needed, and returns the possibly reallocated container. A nil
// value deletes a map key. Traversing through a scalar is an error, never an
// overwrite. prefix is the already walked path, for messages.
func setPath(container any, steps []step, value any, prefix []step) (any, error) {
	if len(steps) == 0 {
		return value, nil
	}
	s := steps[0]
	here := append(append([]step{}, prefix...), s)

	if s.isKey {
		m, ok := container.(map[string]any)
		if !ok {
			if container != nil {
				return nil, traverseError(workflow.KindOf(container), renderPath(prefix))
			}
			m = map[string]any{}
		}
		if len(steps) == 1 {
			if value == nil {
				delete(m, s.key)
			} else {
				m[s.key] = value
			}
			return m, nil
		}
		child, err := setPath(m[s.key], steps[1:], value, here)
		if err != nil {
			return nil, err
		}
		m[s.key] = child
		return m, nil
	}

	arr, ok := container.([]any)
	if !ok {
		if container != nil {
			return nil, traverseError(workflow.KindOf(container), renderPath(prefix))
		}
		arr = []any{}
	}
	if s.index >= len(arr)+MaxArrayGrowth {
		return nil, &PathError{
			Path:   renderPath(here),
			Reason: fmt.Sprintf("array index %d at %s is more than %d past the end of the array (length %d)", s.index, renderPath(here), MaxArrayGrowth, len(arr)),
		}
	}
	for len(arr) <= s.index {
		arr = append(arr, nil)
	}
	child, err := setPath(arr[s.index], steps[1:], value, here)
	if err != nil {
		return nil, err
	}
	arr[s.index] = child
	return arr, nil
}
