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
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tombee/flowsmith/pkg/errors"
)

//go:embed data/nodes.json
var defaultCatalog []byte

var (
	defaultOnce     sync.Once
	defaultSnapshot *Snapshot
	defaultErr      error
)

// Default returns the snapshot built from the embedded catalog.
func Default() (*Snapshot, error) {
	defaultOnce.Do(func() {
		types, err := Parse(defaultCatalog)
		if err != nil {
			defaultErr = errors.Wrap(err, "parsing embedded catalog")
			return
		}
		defaultSnapshot, defaultErr = NewSnapshot(types)
	})
	return defaultSnapshot, defaultErr
}

// file is the on-disk catalog layout. A bare array of node types is also accepted.
type file struct {
	Nodes []NodeType `json:"nodes" yaml:"nodes"`
}

// Parse decodes a JSON or YAML catalog document.
func Parse(data []byte) ([]NodeType, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &errors.ParseError{Format: "catalog", Cause: fmt.Errorf("empty document")}
	}

	if trimmed[0] == '[' || trimmed[0] == '{' {
		if trimmed[0] == '[' {
			var types []NodeType
			if err := json.Unmarshal(trimmed, &types); err != nil {
				return nil, &errors.ParseError{Format: "json", Cause: err}
			}
			return types, nil
		}
		var f file
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, &errors.ParseError{Format: "json", Cause: err}
		}
		return f.Nodes, nil
	}

	var f file
	if err := yaml.Unmarshal(trimmed, &f); err != nil {
		var types []NodeType
		if err2 := yaml.Unmarshal(trimmed, &types); err2 != nil {
			return nil, &errors.ParseError{Format: "yaml", Cause: err}
		}
		return types, nil
	}
	return f.Nodes, nil
}

// LoadFile reads a catalog file and builds a snapshot.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading catalog %s", path)
	}
	types, err := Parse(data)
	if err != nil {
		var parseErr *errors.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Source = path
		}
		return nil, err
	}
	return NewSnapshot(types)
}
