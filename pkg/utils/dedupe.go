package utils

// DedupePreserveOrder removes duplicates from a slice keeping the first
// occurrence of each value in its original position.
func DedupePreserveOrder[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
