package source

import "sort"

// MergeAndDedup concatenates the batches, sorts newest first and drops
// repeated titles. Sorting happens before dedup, so the newest copy of a
// title is the one kept. Ties keep their input order.
func MergeAndDedup(batches ...[]Item) []Item {
	var all []Item
	for _, b := range batches {
		all = append(all, b...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})

	seen := make(map[string]struct{}, len(all))
	out := make([]Item, 0, len(all))
	for _, it := range all {
		if _, ok := seen[it.Title]; ok {
			continue
		}
		seen[it.Title] = struct{}{}
		out = append(out, it)
	}
	return out
}
