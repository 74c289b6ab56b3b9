package search

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Extract resolves a dotted path inside a decoded JSON value. An empty path
// returns the value unchanged. The walk is total: a missing key, a null, or
// a non-object step short-circuits to nil instead of failing, because
// provider response shapes are untrusted.
func Extract(v any, path string) any {
	if path == "" {
		return v
	}
	cur := v
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// stringValue renders an extracted scalar for display. Null, arrays, and
// objects render as the empty string.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
