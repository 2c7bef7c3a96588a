// Package sliceutil provides generic slice manipulation utilities.
package sliceutil

// Deduplicate removes duplicate items from a slice while preserving order.
// The keyFunc extracts a unique key from each item for comparison.
// Only the first occurrence of each key is kept.
//
// Example:
//
//	records := []directory.CourseRecord{{Program: "CS", Number: "136"}, {Program: "CS", Number: "136"}}
//	unique := sliceutil.Deduplicate(records, func(r directory.CourseRecord) string { return r.Program + r.Number })
//	// Result: [{Program: "CS", Number: "136"}]
func Deduplicate[T any, K comparable](items []T, keyFunc func(T) K) []T {
	if len(items) == 0 {
		return items
	}

	seen := make(map[K]struct{}, len(items))
	result := make([]T, 0, len(items))

	for _, item := range items {
		key := keyFunc(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}

	return result
}

// Unique is Deduplicate keyed on the items themselves.
func Unique[T comparable](items []T) []T {
	return Deduplicate(items, func(item T) T { return item })
}
