package expression

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// Node reference patterns inside expression bodies.
var (
	// Matches $node["Name"] and $node['Name']
	nodeIndexPattern = regexp.MustCompile(`\$node\[\s*["']([^"']+)["']\s*\]`)
	// Matches $('Name') and $("Name")
	nodeCallPattern = regexp.MustCompile(`\$\(\s*["']([^"']+)["']\s*\)`)
	// Matches $items("Name")
	itemsCallPattern = regexp.MustCompile(`\$items\(\s*["']([^"']+)["']`)
)

// Bodies returns the trimmed bodies of every balanced {{ }} span in s.
func Bodies(s string) []string {
	res := scan(s)
	out := make([]string, 0, len(res.segments))
	for _, seg := range res.segments {
		out = append(out, strings.TrimSpace(seg.body))
	}
	return out
}

// NodeReferences extracts the unique node names referenced in an expression,
// sorted.
func NodeReferences(s string) []string {
	set := make(map[string]bool)
	for _, body := range Bodies(s) {
		for _, re := range []*regexp.Regexp{nodeIndexPattern, nodeCallPattern, itemsCallPattern} {
			for _, match := range re.FindAllStringSubmatch(body, -1) {
				if len(match) > 1 {
					set[match[1]] = true
				}
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownReferences returns the node names referenced by s that are not in known.
func UnknownReferences(s string, known map[string]bool) []string {
	var missing []string
	for _, name := range NodeReferences(s) {
		if !known[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// SyntaxError compiles each expression body as JavaScript without running it
// and returns the first parse error, or nil.
func SyntaxError(s string) error {
	for _, body := range Bodies(s) {
		if body == "" {
			continue
		}
		// Parenthesized so object literals parse as expressions.
		if _, err := goja.Compile("expression", "(\n"+body+"\n)", false); err != nil {
			return err
		}
	}
	return nil
}
