package broadcast

// DefaultGroupSize bounds how many recipients are sent between group pauses.
const DefaultGroupSize = 50

// Partition splits items into contiguous groups of at most size elements,
// preserving order. The last group may be shorter. Empty input yields no groups.
func Partition[T any](items []T, size int) [][]T {
	if size < 1 {
		size = DefaultGroupSize
	}
	if len(items) == 0 {
		return nil
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end:end])
	}
	return groups
}
