package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/community"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var errGDSUnavailable = errors.New("graph data science procedures are not installed")

// GDSPartitioner runs Louvain inside Neo4j with the Graph Data Science
// library. It projects the stored CO_OCCURS graph into a temporary
// in-memory graph and drops it afterwards.
type GDSPartitioner struct {
	store *GraphNeo4jStorage
}

var _ community.Partitioner = (*GDSPartitioner)(nil)

func NewGDSPartitioner(s *GraphNeo4jStorage) *GDSPartitioner {
	return &GDSPartitioner{store: s}
}

func (p *GDSPartitioner) Name() string { return "gds_louvain" }

func (p *GDSPartitioner) Available(ctx context.Context) bool {
	records, err := p.store.read(ctx,
		`SHOW PROCEDURES YIELD name WHERE name = 'gds.louvain.stream' RETURN count(*) AS n`, nil)
	return err == nil && len(records) == 1 && asInt64(get(records[0], "n")) > 0
}

func (p *GDSPartitioner) Partition(ctx context.Context, g common.Graph) community.PartitionResult {
	if len(g.Edges) == 0 {
		return community.Fallback(errors.New("graph has no edges"))
	}
	if !p.Available(ctx) {
		return community.Fallback(errGDSUnavailable)
	}

	suffix, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 10)
	if err != nil {
		return community.Fallback(err)
	}
	name := "kgraph_concepts_" + suffix
	params := map[string]any{"name": name}

	defer func() {
		_ = p.store.write(context.WithoutCancel(ctx), statement{
			name:   "drop projection",
			cypher: `CALL gds.graph.drop($name, false) YIELD graphName RETURN graphName`,
			params: params,
		})
	}()

	err = p.store.write(ctx, statement{
		name: "project graph",
		cypher: `
MATCH (a:Concept)-[e:CO_OCCURS]->(b:Concept)
WITH gds.graph.project($name, a, b,
    {relationshipProperties: e {.weight}},
    {undirectedRelationshipTypes: ['*']}) AS g
RETURN g.graphName AS graph`,
		params: params,
	})
	if err != nil {
		return community.Fallback(fmt.Errorf("project graph: %w", err))
	}

	records, err := p.store.read(ctx, `
CALL gds.louvain.stream($name, {relationshipWeightProperty: 'weight'})
YIELD nodeId, communityId
RETURN gds.util.asNode(nodeId).label AS label, communityId AS community
`, params)
	if err != nil {
		return community.Fallback(fmt.Errorf("louvain stream: %w", err))
	}

	assignment := make(map[string]int64, len(records))
	for _, rec := range records {
		assignment[asString(get(rec, "label"))] = asInt64(get(rec, "community"))
	}
	return community.PartitionedResult(assignment)
}
