// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits each value on commas, trims every element and drops
// empties and duplicates. Order of first appearance is preserved.
//
// Example:
//
//	SplitList("b1:9092, b2:9092", "b1:9092,")
//	// Returns: []string{"b1:9092", "b2:9092"}
func SplitList(values ...string) []string {
	return splitList(values, false)
}

// SplitListLower is like SplitList but lowercases each element, so
// "Pending,pending" collapses to one entry.
func SplitListLower(values ...string) []string {
	return splitList(values, true)
}

func splitList(values []string, lower bool) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if lower {
				part = strings.ToLower(part)
			}
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			result = append(result, part)
		}
	}
	return result
}
