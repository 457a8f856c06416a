package docstore

import "time"

// Typed accessors for field maps. Missing or mistyped fields read as
// zero values; callers that need to distinguish should inspect the map
// directly.

func String(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func Strings(fields map[string]any, key string) []string {
	var out []string
	for _, v := range anySlice(fields[key]) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func IntMap(fields map[string]any, key string) map[string]int64 {
	out := make(map[string]int64)
	m, ok := fields[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range m {
		out[k] = asInt64(v)
	}
	return out
}

func BoolMap(fields map[string]any, key string) map[string]bool {
	out := make(map[string]bool)
	m, ok := fields[key].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range m {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

func Time(fields map[string]any, key string) time.Time {
	t, _ := fields[key].(time.Time)
	return t
}

func ContainsString(vs []string, v string) bool {
	for _, e := range vs {
		if e == v {
			return true
		}
	}
	return false
}
