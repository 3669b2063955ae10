package embeddings

import (
	"sort"

	"github.com/siftlab/sift/internal/clusters"
)

// Grouping parameters for density-based clustering.
const (
	// DefaultEps is the maximum cosine distance between neighbors.
	DefaultEps = 0.3

	// DefaultMinSamples is the minimum neighborhood size for a core block.
	DefaultMinSamples = 2
)

// Group runs density-based clustering (DBSCAN over cosine distance) on the
// given blocks and returns one assignment per block. Blocks that belong to
// no dense region are assigned clusters.Noise.
func Group(blocks map[string]string, eps float64, minSamples int) []clusters.Assignment {
	if eps <= 0 {
		eps = DefaultEps
	}
	if minSamples < 1 {
		minSamples = DefaultMinSamples
	}

	ids := make([]string, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]string, len(ids))
	for i, id := range ids {
		docs[i] = blocks[id]
	}

	vecs := NewVectorizer().Vectors(docs)

	neighbors := func(i int) []int {
		var out []int
		for j := range vecs {
			if CosineDistance(vecs[i], vecs[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	const unvisited = -2
	labels := make([]int, len(ids))
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := range ids {
		if labels[i] != unvisited {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < minSamples {
			labels[i] = clusters.Noise
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		// Expand the cluster through density-reachable blocks.
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == clusters.Noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jn := neighbors(j)
			if len(jn) >= minSamples {
				queue = append(queue, jn...)
			}
		}
	}

	out := make([]clusters.Assignment, len(ids))
	for i, id := range ids {
		out[i] = clusters.Assignment{BlockID: id, ClusterID: labels[i]}
	}
	return out
}
