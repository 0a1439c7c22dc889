package constraints

// Partition greedily colours constraints into conflict-free batches. Each
// entry of particles lists one constraint's particles; the result lists, per
// batch, the indices of the constraints assigned to it. Constraints keep
// their relative order inside a batch.
func Partition(particles [][]int) [][]int {
	var batches [][]int
	// used[b] is the set of particles already claimed by batch b.
	var used []map[int]struct{}

	for ci, ps := range particles {
		placed := false
		for b := range batches {
			if !claims(used[b], ps) {
				continue
			}
			batches[b] = append(batches[b], ci)
			placed = true
			break
		}
		if placed {
			continue
		}
		set := make(map[int]struct{}, len(ps))
		claims(set, ps)
		used = append(used, set)
		batches = append(batches, []int{ci})
	}
	return batches
}

// claims adds ps to set if none of them is already present.
func claims(set map[int]struct{}, ps []int) bool {
	for _, p := range ps {
		if _, ok := set[p]; ok {
			return false
		}
	}
	for _, p := range ps {
		set[p] = struct{}{}
	}
	return true
}
