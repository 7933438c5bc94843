package community

import "github.com/OFFIS-RIT/kgraph/pkg/common"

const componentsMethod = "connected_components"

// ConnectedComponents assigns each node the key of its co-occurrence
// component. Isolated concepts form their own component. Keys are
// renumbered by Canonicalize, so only equality matters here.
func ConnectedComponents(g common.Graph) map[string]int64 {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.Label] = i
	}

	parent := make([]int, len(g.Nodes))
	for i := range parent {
		parent[i] = i
	}

	var find func(x int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(x, y int) {
		px, py := find(x), find(y)
		if px != py {
			parent[px] = py
		}
	}

	for _, e := range g.Edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if !okA || !okB {
			continue
		}
		union(a, b)
	}

	out := make(map[string]int64, len(g.Nodes))
	for i, n := range g.Nodes {
		out[n.Label] = int64(find(i))
	}
	return out
}
