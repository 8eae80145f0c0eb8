package cluster

import "time"

// Chunk splits items into consecutive fixed-size groups for paged display;
// the final group may be shorter. An empty input yields an empty result, and
// a non-positive size yields a single group. Stable under stable input
// ordering.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return [][]T{}
	}
	if size <= 0 {
		return [][]T{items}
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// FilterRecent keeps enriched records whose ID-encoded timestamp is at or
// after now minus the window. Records without a parseable timestamp are
// excluded: malformed records disappear from filtered views rather than
// counting as always recent.
func FilterRecent(records []Enriched, window time.Duration, now time.Time) []Enriched {
	cutoff := now.Add(-window)
	out := make([]Enriched, 0, len(records))
	for _, r := range records {
		ts, err := r.Timestamp()
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}
