package utils

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// TransientKeys are annotations added to response payloads that never
// take part in a structural comparison.
var TransientKeys = []string{"enabled", "_conflicts", "_sources"}

// StructuralEqual reports whether a and b have the same JSON structure.
// Keys listed in ignoreKeys are skipped on the outermost object only, so a
// nested key of the same name still counts. Null, empty arrays and empty
// objects compare equal to absent keys.
func StructuralEqual(a, b any, ignoreKeys ...string) bool {
	na, errA := normalize(a, ignoreKeys)
	nb, errB := normalize(b, ignoreKeys)
	if errA != nil || errB != nil {
		return false
	}
	return cmp.Equal(na, nb, cmpopts.EquateEmpty())
}

// StructuralDiff returns a human readable diff of a and b using the same
// rules as StructuralEqual. It is empty when the values are equal.
func StructuralDiff(a, b any, ignoreKeys ...string) string {
	na, errA := normalize(a, ignoreKeys)
	nb, errB := normalize(b, ignoreKeys)
	if errA != nil || errB != nil {
		return "values are not JSON encodable"
	}
	return cmp.Diff(na, nb, cmpopts.EquateEmpty())
}

// normalize converts v into the generic JSON representation
// (map[string]any, []any, float64, string, bool, nil) and drops ignoreKeys
// from the outermost object.
func normalize(v any, ignoreKeys []string) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if obj, ok := out.(map[string]any); ok {
		for _, k := range ignoreKeys {
			delete(obj, k)
		}
	}
	return prune(out), nil
}

// prune drops object entries holding null or an empty container.
func prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			child = prune(child)
			if isEmpty(child) {
				delete(t, k)
				continue
			}
			t[k] = child
		}
		return t
	case []any:
		for i := range t {
			t[i] = prune(t[i])
		}
		return t
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
