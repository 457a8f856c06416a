package docstore

import (
	"strings"
	"time"
)

// Merge operators. These are sentinel values placed in a field map
// passed to Set/Tx.Set with merge=true; each backend translates them to
// its native update operators.

type arrayUnion struct{ values []any }

// ArrayUnion appends each value to the target array field unless it is
// already present.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

type arrayRemove struct{ values []any }

// ArrayRemove removes every occurrence of each value from the target
// array field.
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

type increment struct{ delta int64 }

// Increment adds delta to the target numeric field, treating a missing
// field as zero.
func Increment(delta int64) any { return increment{delta: delta} }

type serverTimestamp struct{}

// ServerTimestamp resolves to the store's clock at write time.
var ServerTimestamp any = serverTimestamp{}

type deleteField struct{}

// Delete removes the target field. With a dotted path it removes a
// single map key.
var Delete any = deleteField{}

// applyMerge merges fields into dst in place, resolving operators and
// dotted field paths. now is the resolved server timestamp for this
// write. Used by the memory backend and by tests; the mongo backend
// translates the same operators to update documents instead.
func applyMerge(dst map[string]any, fields map[string]any, now time.Time) {
	for key, value := range fields {
		target, leaf := descend(dst, key)
		switch v := value.(type) {
		case arrayUnion:
			target[leaf] = unionValues(anySlice(target[leaf]), v.values)
		case arrayRemove:
			target[leaf] = removeValues(anySlice(target[leaf]), v.values)
		case increment:
			target[leaf] = asInt64(target[leaf]) + v.delta
		case serverTimestamp:
			target[leaf] = now
		case deleteField:
			delete(target, leaf)
		default:
			target[leaf] = value
		}
	}
}

// descend resolves a dotted field path against nested maps, creating
// intermediate maps as needed, and returns the map holding the final
// segment.
func descend(dst map[string]any, key string) (map[string]any, string) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := dst[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			dst[part] = next
		}
		dst = next
	}
	return dst, parts[len(parts)-1]
}

func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func unionValues(existing []any, add []any) []any {
	out := append([]any(nil), existing...)
	for _, v := range add {
		if !containsValue(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func removeValues(existing []any, remove []any) []any {
	out := make([]any, 0, len(existing))
	for _, v := range existing {
		if !containsValue(remove, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsValue(vs []any, v any) bool {
	for _, e := range vs {
		if e == v {
			return true
		}
	}
	return false
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
