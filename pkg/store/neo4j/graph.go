package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

const documentReturn = `
RETURN d.id AS id, d.type AS type, d.name AS name, d.url AS url,
       d.bytes AS bytes, d.content_hash AS content_hash, d.created_at AS created_at
`

const conceptReturn = `
RETURN k.id AS id, k.label AS label, k.lemma AS lemma, k.freq AS freq, k.community AS community
ORDER BY label
`

const chunkReturn = `
RETURN c.id AS id, c.document_id AS document_id, c.seq AS seq, c.text AS text,
       c.start_offset AS start_offset, c.end_offset AS end_offset, score
ORDER BY score DESC, id
`

func (s *GraphNeo4jStorage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	records, err := s.read(ctx, `MATCH (d:Document {id: $id})`+documentReturn, map[string]any{"id": id})
	if err != nil {
		return common.Document{}, err
	}
	if len(records) == 0 {
		return common.Document{}, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return recordDocument(records[0]), nil
}

func (s *GraphNeo4jStorage) GetDocuments(ctx context.Context, ids []string) (map[string]common.Document, error) {
	ids = store.DedupeStrings(ids)
	out := make(map[string]common.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	records, err := s.read(ctx, `MATCH (d:Document) WHERE d.id IN $ids`+documentReturn, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		d := recordDocument(rec)
		out[d.ID] = d
	}
	return out, nil
}

func (s *GraphNeo4jStorage) VectorSearch(ctx context.Context, embedding []float32, k int) ([]common.ScoredChunk, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	records, err := s.read(ctx,
		`CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node AS c, score`+chunkReturn,
		map[string]any{"index": vectorIndex, "k": int64(k), "embedding": toFloat64s(embedding)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]common.ScoredChunk, 0, len(records))
	for _, rec := range records {
		out = append(out, common.ScoredChunk{
			Chunk: recordChunk(rec),
			Score: cosineFromIndexScore(asFloat64(get(rec, "score"))),
		})
	}
	return out, nil
}

func (s *GraphNeo4jStorage) KeywordSearch(ctx context.Context, query string, k int) ([]common.ScoredChunk, error) {
	q := luceneQuery(query)
	if q == "" || k <= 0 {
		return nil, nil
	}
	records, err := s.read(ctx,
		`CALL db.index.fulltext.queryNodes($index, $query) YIELD node AS c, score`+chunkReturn+` LIMIT $k`,
		map[string]any{"index": fulltextIndex, "query": q, "k": int64(k)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]common.ScoredChunk, 0, len(records))
	for _, rec := range records {
		out = append(out, common.ScoredChunk{Chunk: recordChunk(rec), Score: asFloat64(get(rec, "score"))})
	}
	return out, nil
}

// luceneQuery OR-s the content words of query. Apostrophes and hyphens are
// Lucene syntax, so compound words are split on them.
func luceneQuery(query string) string {
	seen := make(map[string]struct{})
	terms := make([]string, 0)
	split := strings.NewReplacer("'", " ", "’", " ", "-", " ")
	for _, w := range ai.Words(query) {
		if ai.IsStopword(w) {
			continue
		}
		for _, part := range strings.Fields(split.Replace(w)) {
			if ai.IsStopword(part) {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			terms = append(terms, part)
		}
	}
	sort.Strings(terms)
	return strings.Join(terms, " OR ")
}

func (s *GraphNeo4jStorage) ConceptsForChunks(ctx context.Context, chunkIDs []string) ([]common.Concept, error) {
	chunkIDs = store.DedupeStrings(chunkIDs)
	if len(chunkIDs) == 0 {
		return []common.Concept{}, nil
	}
	records, err := s.read(ctx,
		`MATCH (c:Chunk)-[:MENTIONS]->(k:Concept) WHERE c.id IN $ids WITH DISTINCT k`+conceptReturn,
		map[string]any{"ids": chunkIDs},
	)
	if err != nil {
		return nil, err
	}
	return recordConcepts(records), nil
}

func (s *GraphNeo4jStorage) Neighbors(ctx context.Context, labels []string) ([]common.Concept, []common.CoOccurrence, error) {
	labels = store.DedupeStrings(labels)
	if len(labels) == 0 {
		return []common.Concept{}, []common.CoOccurrence{}, nil
	}
	params := map[string]any{"labels": labels}

	edgeRecords, err := s.read(ctx, `
MATCH (a:Concept)-[e:CO_OCCURS]->(b:Concept)
WHERE a.label IN $labels OR b.label IN $labels
RETURN a.label AS source, b.label AS target, e.weight AS weight
ORDER BY source, target
`, params)
	if err != nil {
		return nil, nil, err
	}
	edges := make([]common.CoOccurrence, 0, len(edgeRecords))
	for _, rec := range edgeRecords {
		edges = append(edges, recordEdge(rec))
	}

	nodeRecords, err := s.read(ctx, `
MATCH (s:Concept)-[:CO_OCCURS]-(k:Concept)
WHERE s.label IN $labels AND NOT k.label IN $labels
WITH DISTINCT k`+conceptReturn, params)
	if err != nil {
		return nil, nil, err
	}
	return recordConcepts(nodeRecords), edges, nil
}

func (s *GraphNeo4jStorage) GetGraph(ctx context.Context) (common.Graph, error) {
	nodeRecords, err := s.read(ctx, `MATCH (k:Concept)`+conceptReturn, nil)
	if err != nil {
		return common.Graph{}, err
	}
	edgeRecords, err := s.read(ctx, `
MATCH (a:Concept)-[e:CO_OCCURS]->(b:Concept)
RETURN a.label AS source, b.label AS target, e.weight AS weight
ORDER BY source, target
`, nil)
	if err != nil {
		return common.Graph{}, err
	}
	g := common.Graph{Nodes: recordConcepts(nodeRecords), Edges: make([]common.CoOccurrence, 0, len(edgeRecords))}
	for _, rec := range edgeRecords {
		g.Edges = append(g.Edges, recordEdge(rec))
	}
	return g, nil
}

func (s *GraphNeo4jStorage) GetConcept(ctx context.Context, id string) (common.ConceptDetails, error) {
	records, err := s.read(ctx, `MATCH (k:Concept {id: $id})`+conceptReturn, map[string]any{"id": id})
	if err != nil {
		return common.ConceptDetails{}, err
	}
	if len(records) == 0 {
		return common.ConceptDetails{}, fmt.Errorf("concept %s: %w", id, common.ErrNotFound)
	}
	details := common.ConceptDetails{Concept: recordConcept(records[0]), Snippets: []common.Snippet{}}

	snippetRecords, err := s.read(ctx, `
MATCH (c:Chunk)-[:MENTIONS]->(k:Concept {id: $id})
MATCH (c)-[:PART_OF]->(d:Document)
RETURN c.text AS text, d.name AS doc_name, d.url AS doc_url
ORDER BY c.id
LIMIT $limit
`, map[string]any{"id": id, "limit": int64(store.MaxConceptSnippets)})
	if err != nil {
		return common.ConceptDetails{}, err
	}
	for _, rec := range snippetRecords {
		details.Snippets = append(details.Snippets, common.Snippet{
			Text:    asString(get(rec, "text")),
			DocName: asString(get(rec, "doc_name")),
			DocURL:  asString(get(rec, "doc_url")),
		})
	}
	return details, nil
}

func (s *GraphNeo4jStorage) WriteCommunities(ctx context.Context, assignment map[string]int64) error {
	rows := communityRows(assignment)
	return s.write(ctx,
		statement{name: "clear communities", cypher: `MATCH (k:Concept) WHERE k.community IS NOT NULL REMOVE k.community`},
		statement{
			name:   "write communities",
			cypher: `UNWIND $rows AS r MATCH (k:Concept {label: r.label}) SET k.community = r.community`,
			params: map[string]any{"rows": rows},
			skip:   len(rows) == 0,
		},
	)
}

func communityRows(assignment map[string]int64) []map[string]any {
	labels := make([]string, 0, len(assignment))
	for label := range assignment {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	rows := make([]map[string]any, 0, len(labels))
	for _, label := range labels {
		rows = append(rows, map[string]any{"label": label, "community": assignment[label]})
	}
	return rows
}

func (s *GraphNeo4jStorage) Stats(ctx context.Context) (common.Stats, error) {
	records, err := s.read(ctx, `
CALL { MATCH (d:Document) RETURN count(d) AS docs, coalesce(sum(d.bytes), 0) AS total_bytes }
CALL { MATCH (c:Chunk) RETURN count(c) AS chunks }
CALL { MATCH (k:Concept) RETURN count(k) AS concepts }
CALL { MATCH (:Concept)-[e:CO_OCCURS]->(:Concept) RETURN count(e) AS edges }
RETURN docs, chunks, concepts, edges, total_bytes
`, nil)
	if err != nil {
		return common.Stats{}, err
	}
	if len(records) == 0 {
		return common.Stats{}, nil
	}
	rec := records[0]
	return common.Stats{
		Documents:  asInt64(get(rec, "docs")),
		Chunks:     asInt64(get(rec, "chunks")),
		Concepts:   asInt64(get(rec, "concepts")),
		Edges:      asInt64(get(rec, "edges")),
		TotalBytes: asInt64(get(rec, "total_bytes")),
	}, nil
}

func recordConcepts(records []*neo4jRecord) []common.Concept {
	out := make([]common.Concept, 0, len(records))
	for _, rec := range records {
		out = append(out, recordConcept(rec))
	}
	return out
}
