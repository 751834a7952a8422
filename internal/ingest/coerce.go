package ingest

import (
	"strconv"
	"time"
)

// Transform-pass coercion helpers. The canonical value domain is JSON-native:
// nil, bool, string, float64, []any, map[string]any. Timestamps become epoch
// milliseconds as float64 so values survive a jsonb round trip unchanged.

// asString returns v as a string if it is one.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asNumber coerces v to float64, accepting numeric strings like "0.002".
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// asBool returns v as a bool if it is one.
func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asEpochMillis coerces v to epoch milliseconds. Accepts RFC 3339 strings and
// raw numbers (seconds are promoted to milliseconds by magnitude).
func asEpochMillis(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return 0, false
		}
		return float64(parsed.UnixMilli()), true
	case float64:
		// Values before the year 2286 in milliseconds exceed 1e10; smaller
		// numbers are epoch seconds.
		if t < 1e12 {
			return t * 1000, true
		}
		return t, true
	default:
		return 0, false
	}
}

// putString stores a non-empty string field, dropping null/absent values.
func putString(fields map[string]any, name string, v any) {
	if s, ok := asString(v); ok && s != "" {
		fields[name] = s
	}
}

// putNumber stores a numeric field, coercing numeric strings.
func putNumber(fields map[string]any, name string, v any) {
	if n, ok := asNumber(v); ok {
		fields[name] = n
	}
}

// putBool stores a bool field.
func putBool(fields map[string]any, name string, v any) {
	if b, ok := asBool(v); ok {
		fields[name] = b
	}
}

// putEpoch stores a timestamp field as epoch milliseconds.
func putEpoch(fields map[string]any, name string, v any) {
	if ms, ok := asEpochMillis(v); ok {
		fields[name] = ms
	}
}

// putStrings stores an array of strings, dropping non-string members.
func putStrings(fields map[string]any, name string, v any) {
	arr, ok := v.([]any)
	if !ok {
		return
	}
	out := make([]any, 0, len(arr))
	for _, member := range arr {
		if s, isStr := member.(string); isStr {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		fields[name] = out
	}
}

// child returns a nested object field for one-level flattening.
func child(item map[string]any, key string) (map[string]any, bool) {
	obj, ok := item[key].(map[string]any)
	return obj, ok
}
