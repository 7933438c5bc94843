package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// Expander grows a retrieved chunk set into its one-hop concept neighborhood.
type Expander struct {
	graph ConceptGraph
}

func NewExpander(graph ConceptGraph) *Expander {
	return &Expander{graph: graph}
}

// Expand returns the concepts mentioned by the chunks (seeds), their direct
// co-occurrence neighbors and the connecting edges. Seeds are ordered by
// frequency, then label; neighbors by label; edges by source and target.
func (e *Expander) Expand(ctx context.Context, results []common.ChunkResult) (common.Neighborhood, error) {
	hood := common.Neighborhood{
		Seeds:     []common.Concept{},
		Neighbors: []common.Concept{},
		Edges:     []common.CoOccurrence{},
	}
	if len(results) == 0 {
		return hood, nil
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Chunk.ID)
	}

	seeds, err := e.graph.ConceptsForChunks(ctx, ids)
	if err != nil {
		return hood, fmt.Errorf("failed to load chunk concepts: %w", err)
	}
	if len(seeds) == 0 {
		return hood, nil
	}

	seedSet := make(map[string]struct{}, len(seeds))
	labels := make([]string, 0, len(seeds))
	for _, c := range seeds {
		if _, ok := seedSet[c.Label]; ok {
			continue
		}
		seedSet[c.Label] = struct{}{}
		labels = append(labels, c.Label)
		hood.Seeds = append(hood.Seeds, c)
	}

	neighbors, edges, err := e.graph.Neighbors(ctx, labels)
	if err != nil {
		return hood, fmt.Errorf("failed to load concept neighbors: %w", err)
	}

	seenNeighbor := make(map[string]struct{}, len(neighbors))
	for _, n := range neighbors {
		if _, ok := seedSet[n.Label]; ok {
			continue
		}
		if _, ok := seenNeighbor[n.Label]; ok {
			continue
		}
		seenNeighbor[n.Label] = struct{}{}
		hood.Neighbors = append(hood.Neighbors, n)
	}

	seenEdge := make(map[[2]string]struct{}, len(edges))
	for _, edge := range edges {
		if edge.Source == edge.Target {
			continue
		}
		if edge.Target < edge.Source {
			edge.Source, edge.Target = edge.Target, edge.Source
		}
		key := [2]string{edge.Source, edge.Target}
		if _, ok := seenEdge[key]; ok {
			continue
		}
		seenEdge[key] = struct{}{}
		hood.Edges = append(hood.Edges, edge)
	}

	sort.SliceStable(hood.Seeds, func(i, j int) bool {
		if hood.Seeds[i].Freq != hood.Seeds[j].Freq {
			return hood.Seeds[i].Freq > hood.Seeds[j].Freq
		}
		return hood.Seeds[i].Label < hood.Seeds[j].Label
	})
	sort.Slice(hood.Neighbors, func(i, j int) bool {
		return hood.Neighbors[i].Label < hood.Neighbors[j].Label
	})
	sort.Slice(hood.Edges, func(i, j int) bool {
		if hood.Edges[i].Source != hood.Edges[j].Source {
			return hood.Edges[i].Source < hood.Edges[j].Source
		}
		return hood.Edges[i].Target < hood.Edges[j].Target
	})
	return hood, nil
}

// TopLabels returns the labels of the first n seeds.
func TopLabels(hood common.Neighborhood, n int) []string {
	out := make([]string, 0, min(n, len(hood.Seeds)))
	for _, c := range hood.Seeds {
		if len(out) == n {
			break
		}
		out = append(out, c.Label)
	}
	return out
}
