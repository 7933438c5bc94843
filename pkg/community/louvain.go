package community

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/simple"
)

var errNoEdges = errors.New("graph has no weighted edges")

// LouvainPartitioner runs weighted Louvain modularity optimization over the
// co-occurrence graph.
type LouvainPartitioner struct {
	Resolution float64
	Seed       uint64
}

func NewLouvainPartitioner() *LouvainPartitioner {
	return &LouvainPartitioner{Resolution: 1, Seed: 1}
}

func (p *LouvainPartitioner) Name() string { return "louvain" }

func (p *LouvainPartitioner) Partition(ctx context.Context, g common.Graph) (res PartitionResult) {
	if err := ctx.Err(); err != nil {
		return Fallback(err)
	}

	index := make(map[string]int64, len(g.Nodes))
	wg := simple.NewWeightedUndirectedGraph(0, 0)
	for i, n := range g.Nodes {
		index[n.Label] = int64(i)
		wg.AddNode(simple.Node(i))
	}

	edges := 0
	for _, e := range g.Edges {
		a, okA := index[e.Source]
		b, okB := index[e.Target]
		if !okA || !okB || a == b || e.Weight <= 0 {
			continue
		}
		wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(a), simple.Node(b), e.Weight))
		edges++
	}
	if edges == 0 {
		return Fallback(errNoEdges)
	}

	defer func() {
		if r := recover(); r != nil {
			res = Fallback(fmt.Errorf("louvain: %v", r))
		}
	}()

	resolution := p.Resolution
	if resolution <= 0 {
		resolution = 1
	}
	reduced := community.Modularize(wg, resolution, rand.NewPCG(p.Seed, p.Seed))

	assignment := make(map[string]int64, len(g.Nodes))
	for id, members := range reduced.Communities() {
		for _, node := range members {
			assignment[g.Nodes[node.ID()].Label] = int64(id)
		}
	}
	return PartitionedResult(assignment)
}
