package vector

import "sort"

// Neighbor is one nearest-neighbour hit. Ordinal is the position of the
// matched vector in the input slice.
type Neighbor struct {
	Ordinal  int
	Distance float64
}

// NearestNeighbors returns the k vectors closest to query by cosine distance,
// ascending. Nil vectors are skipped. Equal distances break ties by ordinal
// so results are deterministic.
func NearestNeighbors(query []float32, vectors [][]float32, k int) []Neighbor {
	if k <= 0 || len(vectors) == 0 || len(query) == 0 {
		return nil
	}
	neighbors := make([]Neighbor, 0, len(vectors))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		neighbors = append(neighbors, Neighbor{Ordinal: i, Distance: CosineDistance(query, vec)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Ordinal < neighbors[j].Ordinal
	})
	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k]
}
