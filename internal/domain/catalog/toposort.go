package catalog

// SortParentFirst permutes records so that every record whose parent is
// also in the set appears after that parent. The store orders parent and
// child rows within one write batch, so hierarchical batches (DLC, demos)
// must arrive parent-first.
//
// Kahn's algorithm over the parent edges restricted to the given set.
// Edges to identifiers outside the set are not constraints, and records
// caught in a cycle are appended at the end rather than dropped: upstream
// data is not guaranteed acyclic, so the ordering is best-effort.
func SortParentFirst(records []Record) []Record {
	byID := make(map[int64]Record, len(records))
	for _, r := range records {
		byID[r.AppID()] = r
	}

	inDegree := make(map[int64]int, len(records))
	children := make(map[int64][]Record)
	for _, r := range records {
		id := r.AppID()
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
		if parent, ok := r.ParentID(); ok {
			if _, inSet := byID[parent]; inSet {
				inDegree[id]++
				children[parent] = append(children[parent], r)
			}
		}
	}

	frontier := make([]Record, 0, len(records))
	for _, r := range records {
		if inDegree[r.AppID()] == 0 {
			frontier = append(frontier, r)
		}
	}

	sorted := make([]Record, 0, len(records))
	emitted := make(map[int64]struct{}, len(records))
	for len(frontier) > 0 {
		r := frontier[0]
		frontier = frontier[1:]
		if _, done := emitted[r.AppID()]; done {
			continue
		}
		emitted[r.AppID()] = struct{}{}
		sorted = append(sorted, r)

		for _, child := range children[r.AppID()] {
			inDegree[child.AppID()]--
			if inDegree[child.AppID()] <= 0 {
				frontier = append(frontier, child)
			}
		}
	}

	// Cycle members never reach in-degree zero; emit them in input order.
	if len(sorted) < len(records) {
		for _, r := range records {
			if _, done := emitted[r.AppID()]; !done {
				emitted[r.AppID()] = struct{}{}
				sorted = append(sorted, r)
			}
		}
	}

	return sorted
}
