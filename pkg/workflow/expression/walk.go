package expression

import (
	"fmt"
	"sort"
	"strings"
)

// codeParameters hold raw source code; their braces are not expression markers.
var codeParameters = map[string]bool{
	"jsCode":           true,
	"pythonCode":       true,
	"functionCode":     true,
	"functionItemCode": true,
}

// IsCodeParameter reports whether key names a raw code parameter.
func IsCodeParameter(key string) bool {
	return codeParameters[key]
}

// Addressable reports whether key can be used as a path segment without
// escaping. Keys containing separators are still checked but cannot be
// patched by path.
func Addressable(key string) bool {
	return key != "" && !strings.ContainsAny(key, ".[]")
}

// Walk calls fn for every leaf under params in sorted key order. Paths are
// rooted at prefix, use '.' between keys and [i] for array elements, and
// addressable reports whether every key along the path is Addressable.
func Walk(prefix string, params map[string]any, fn func(path string, value any, addressable bool)) {
	walkValue(prefix, params, true, 0, fn)
}

func walkValue(path string, v any, addressable bool, depth int, fn func(string, any, bool)) {
	if depth > 64 {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if IsCodeParameter(k) {
				continue
			}
			child := k
			if path != "" {
				child = path + "." + k
			}
			walkValue(child, t[k], addressable && Addressable(k), depth+1, fn)
		}
	case []any:
		for i, e := range t {
			walkValue(fmt.Sprintf("%s[%d]", path, i), e, addressable, depth+1, fn)
		}
	default:
		fn(path, v, addressable)
	}
}
