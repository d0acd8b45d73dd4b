// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// NormalizeIDs trims whitespace and mention markup ("<@123>", "<@!123>")
// from transport user IDs, dropping empties and duplicates. Order is
// preserved.
//
// Example:
//
//	NormalizeIDs([]string{" 42 ", "<@!7>", "42", ""})
//	// Returns: []string{"42", "7"}
func NormalizeIDs(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		id := StripMention(v)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}

	return result
}

// StripMention returns the bare ID inside a user mention, or the trimmed
// input when it is not a mention.
func StripMention(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "<@") && strings.HasSuffix(v, ">") {
		v = strings.TrimSuffix(strings.TrimPrefix(v, "<@"), ">")
		v = strings.TrimPrefix(v, "!")
	}
	return strings.TrimSpace(v)
}
