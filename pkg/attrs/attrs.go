// Package attrs reads values back out of slog-style key/value attribute
// slices ([key1, value1, key2, value2, ...]).
package attrs

import "fmt"

// ExtractString returns the value for key when it is a string, or a
// fmt.Stringer rendered as a string. Returns empty string if the key is
// absent.
func ExtractString(attrs []any, key string) string {
	v, ok := lookup(attrs, key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

// Without returns a copy of attrs with every pair for key removed.
func Without(attrs []any, key string) []any {
	out := make([]any, 0, len(attrs))
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			continue
		}
		out = append(out, attrs[i], attrs[i+1])
	}
	return out
}

func lookup(attrs []any, key string) (any, bool) {
	for i := 0; i+1 < len(attrs); i += 2 {
		if k, ok := attrs[i].(string); ok && k == key {
			return attrs[i+1], true
		}
	}
	return nil, false
}
