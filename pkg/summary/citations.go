package summary

// ResolveRefs maps 1-based prompt indices to post ids. Out-of-range indices
// are silently dropped, order is preserved and duplicates are kept when the
// provider repeats an index. Pure function, no provider knowledge.
func ResolveRefs(refs []int, sources []Source) []string {
	var ids []string
	for _, ref := range refs {
		if ref < 1 || ref > len(sources) {
			continue
		}
		ids = append(ids, sources[ref-1].Post.ID)
	}
	return ids
}
