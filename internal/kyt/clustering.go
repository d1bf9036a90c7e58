package kyt

// ClusteringCoefficient measures how tightly interconnected the traced
// address adjacency is: let T be the number of ordered neighbor pairs
// (n1, n2) of some address a such that n2 is itself a predecessor of n1,
// and P the number of unordered neighbor pairs over every address with
// at least two neighbors. Returns T/P, or 0 if P is 0.
//
// This is the triangle-counting half of the upstream tracer's
// _calculate_clustering_coefficient, reimplemented here (not adapted
// from internal/metrics/clustering.go, which computes cluster-comparison
// metrics — Adjusted Rand Index / Variation of Information — a
// different notion of "clustering" entirely; that file's ARI/VI are
// unrelated to this formula).
func ClusteringCoefficient(adjacency map[string]map[string]bool) float64 {
	var triangles, pairs int

	for _, neighbors := range adjacency {
		if len(neighbors) < 2 {
			continue
		}
		list := make([]string, 0, len(neighbors))
		for n := range neighbors {
			list = append(list, n)
		}
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				pairs++
				n1, n2 := list[i], list[j]
				if adjacency[n1][n2] {
					triangles++
				}
				if adjacency[n2][n1] {
					triangles++
				}
			}
		}
	}

	if pairs == 0 {
		return 0
	}
	return float64(triangles) / float64(pairs)
}
