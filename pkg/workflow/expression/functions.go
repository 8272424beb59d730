package expression

import (
	"fmt"
	"reflect"

	"github.com/tombee/flowsmith/pkg/workflow"
)

// containsFunc reports whether a collection holds an element.
// Usage: has(show0, params["resource"])
//
// Numbers compare by value regardless of their Go type, since JSON, YAML and
// in-code literals all produce different numeric types for the same value.
func containsFunc(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("has requires exactly 2 arguments, got %d", len(args))
	}

	collection, target := args[0], args[1]
	if collection == nil {
		return false, nil
	}

	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if looseEqual(v.Index(i).Interface(), target) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		if target == nil {
			return false, nil
		}
		key := reflect.ValueOf(target)
		if !key.Type().AssignableTo(v.Type().Key()) {
			return false, nil
		}
		return v.MapIndex(key).IsValid(), nil
	}
	return false, nil
}

func looseEqual(a, b any) bool {
	if af, ok := workflow.ToNumber(a); ok {
		bf, ok := workflow.ToNumber(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}
