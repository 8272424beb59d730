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
	"slices"
	"sort"
	"strings"
)

// Compile-time interface assertions.
var (
	_ Catalog   = (*Snapshot)(nil)
	_ Suggester = (*Snapshot)(nil)
)

// Snapshot is an immutable, in-memory catalog. It is safe for concurrent use.
type Snapshot struct {
	types map[string]*NodeType
	order []string
}

// NewSnapshot builds a snapshot from node type descriptors. Names must be
// non-empty and unique; versions are sorted ascending.
func NewSnapshot(types []NodeType) (*Snapshot, error) {
	s := &Snapshot{types: make(map[string]*NodeType, len(types))}
	for i := range types {
		t := types[i]
		if t.Name == "" {
			return nil, fmt.Errorf("node type at index %d has no name", i)
		}
		if _, dup := s.types[t.Name]; dup {
			return nil, fmt.Errorf("duplicate node type %q", t.Name)
		}
		t.Versions = slices.Clone(t.Versions)
		slices.Sort(t.Versions)
		t.Versions = slices.Compact(t.Versions)
		s.types[t.Name] = &t
		s.order = append(s.order, t.Name)
	}
	sort.Strings(s.order)
	return s, nil
}

// Len returns the number of node types.
func (s *Snapshot) Len() int {
	return len(s.order)
}

// List returns every node type in name order.
func (s *Snapshot) List() []*NodeType {
	out := make([]*NodeType, len(s.order))
	for i, name := range s.order {
		out[i] = s.types[name]
	}
	return out
}

// Lookup implements Catalog.
func (s *Snapshot) Lookup(nodeType string) (*NodeType, bool) {
	t, ok := s.types[nodeType]
	return t, ok
}

// IsToolCapable implements Catalog.
func (s *Snapshot) IsToolCapable(nodeType string) bool {
	t, ok := s.types[nodeType]
	return ok && t.ToolCapable
}

// IsTriggerCapable implements Catalog.
func (s *Snapshot) IsTriggerCapable(nodeType string) bool {
	t, ok := s.types[nodeType]
	return ok && t.Trigger
}

// MaxVersion implements Catalog.
func (s *Snapshot) MaxVersion(nodeType string) (float64, bool) {
	t, ok := s.types[nodeType]
	if !ok {
		return 0, false
	}
	return t.MaxVersion()
}

// Suggest returns up to limit known types similar to nodeType, best first.
// Scores are in [0, 1]; candidates below 0.5 are dropped.
func (s *Snapshot) Suggest(nodeType string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 3
	}
	if full := FullForm(nodeType); full != nodeType {
		if _, ok := s.types[full]; ok {
			return []Suggestion{{Type: full, Score: 1}}
		}
	}

	query := strings.ToLower(LocalName(nodeType))
	var out []Suggestion
	for _, name := range s.order {
		score := Similarity(query, strings.ToLower(LocalName(name)))
		if strings.EqualFold(nodeType, name) {
			score = 1
		}
		if score >= 0.5 {
			out = append(out, Suggestion{Type: name, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search returns node types matching query by name, display name or
// description, best matches first.
func (s *Snapshot) Search(query string, limit int) []*NodeType {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	type hit struct {
		t     *NodeType
		score int
	}
	var hits []hit
	for _, name := range s.order {
		t := s.types[name]
		local := strings.ToLower(LocalName(t.Name))
		display := strings.ToLower(t.DisplayName)
		score := 0
		switch {
		case local == q || display == q:
			score = 100
		case strings.HasPrefix(local, q) || strings.HasPrefix(display, q):
			score = 75
		case strings.Contains(local, q) || strings.Contains(display, q):
			score = 50
		case strings.Contains(strings.ToLower(t.Description), q):
			score = 25
		}
		if score > 0 {
			hits = append(hits, hit{t, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*NodeType, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out
}

// Similarity scores two strings by normalized edit distance, with a bonus
// when one contains the other.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	longest := max(len(a), len(b))
	score := 1 - float64(levenshtein(a, b))/float64(longest)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		score = max(score, 0.8)
	}
	return score
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
