package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
)

// The lock property write takes the node's write lock before the hash is
// read, so a concurrent save of the same document sees the committed hash.
const upsertDocumentCypher = `
MERGE (d:Document {id: $doc.id})
ON CREATE SET d.created_at = $doc.created_at
SET d.ingest_lock = true
REMOVE d.ingest_lock
WITH d
WHERE $doc.content_hash = '' OR d.content_hash IS NULL OR d.content_hash <> $doc.content_hash
SET d.type = $doc.type,
    d.name = $doc.name,
    d.url = $doc.url,
    d.bytes = $doc.bytes,
    d.content_hash = $doc.content_hash
RETURN d.id AS id
`

const deleteMentionsCypher = `
MATCH (c:Chunk {document_id: $doc_id})-[m:MENTIONS]->(:Concept)
DELETE m
`

const deleteStaleChunksCypher = `
MATCH (c:Chunk {document_id: $doc_id})
WHERE NOT c.id IN $ids
DETACH DELETE c
`

const upsertChunksCypher = `
MATCH (d:Document {id: $doc_id})
UNWIND $rows AS r
MERGE (c:Chunk {id: r.id})
SET c.document_id = $doc_id,
    c.seq = r.seq,
    c.text = r.text,
    c.start_offset = r.start_offset,
    c.end_offset = r.end_offset,
    c.embedding = r.embedding
MERGE (c)-[:PART_OF]->(d)
`

const upsertConceptsCypher = `
UNWIND $rows AS r
MERGE (k:Concept {label: r.label})
ON CREATE SET k.id = r.id, k.lemma = r.lemma, k.freq = 0
SET k.freq = coalesce(k.freq, 0) + r.delta
`

const mergeMentionsCypher = `
UNWIND $rows AS r
MATCH (c:Chunk {id: r.chunk_id})
MATCH (k:Concept {label: r.label})
MERGE (c)-[:MENTIONS]->(k)
`

const upsertCooccursCypher = `
UNWIND $rows AS r
MATCH (a:Concept {label: r.source})
MATCH (b:Concept {label: r.target})
MERGE (a)-[e:CO_OCCURS]->(b)
SET e.weight = coalesce(e.weight, 0) + r.weight
`

// SaveIngestion applies one document in a single write transaction.
// Frequency and weight updates are read-modify-write inside that
// transaction, and Neo4j locks the touched nodes and relationships until
// commit, so concurrent ingestions still sum correctly. An unchanged content
// hash stops the transaction after the document statement.
func (s *GraphNeo4jStorage) SaveIngestion(ctx context.Context, ing common.Ingestion) (bool, error) {
	doc := ing.Document
	if doc.ID == "" {
		return false, fmt.Errorf("%w: document id is empty", common.ErrInvalidInput)
	}

	logger.Debug("[Neo4j][SaveIngestion] Writing document", "doc_id", doc.ID, "chunks", len(ing.Chunks))

	written, err := s.writeGuarded(ctx, ingestionStatements(ing, time.Now())...)
	if err == nil && !written {
		logger.Debug("[Neo4j][SaveIngestion] Content unchanged", "doc_id", doc.ID)
	}
	return written, err
}

// ingestionStatements starts with the guarded document upsert; an unchanged
// content hash stops the transaction before anything else runs.
func ingestionStatements(ing common.Ingestion, now time.Time) []statement {
	doc := ing.Document
	created := doc.CreatedAt
	if created.IsZero() {
		created = now
	}
	chunkIDs := make([]string, len(ing.Chunks))
	for i, c := range ing.Chunks {
		chunkIDs[i] = c.ID
	}

	return []statement{
		{name: "upsert document", cypher: upsertDocumentCypher, guard: true, params: map[string]any{
			"doc": map[string]any{
				"id":           doc.ID,
				"type":         string(doc.Type),
				"name":         doc.Name,
				"url":          doc.URL,
				"bytes":        doc.Bytes,
				"content_hash": doc.ContentHash,
				"created_at":   created.UTC().Format(time.RFC3339Nano),
			},
		}},
		{name: "delete mentions", cypher: deleteMentionsCypher, params: map[string]any{"doc_id": doc.ID}},
		{name: "delete stale chunks", cypher: deleteStaleChunksCypher, params: map[string]any{
			"doc_id": doc.ID,
			"ids":    chunkIDs,
		}},
		{
			name:   "upsert chunks",
			cypher: upsertChunksCypher,
			params: map[string]any{"doc_id": doc.ID, "rows": chunkRows(ing.Chunks)},
			skip:   len(ing.Chunks) == 0,
		},
		{
			name:   "upsert concepts",
			cypher: upsertConceptsCypher,
			params: map[string]any{"rows": conceptRows(ing.Concepts)},
			skip:   len(ing.Concepts) == 0,
		},
		{
			name:   "merge mentions",
			cypher: mergeMentionsCypher,
			params: map[string]any{"rows": mentionRows(ing.Mentions)},
			skip:   len(ing.Mentions) == 0,
		},
		{
			name:   "upsert co-occurrences",
			cypher: upsertCooccursCypher,
			params: map[string]any{"rows": edgeRows(ing.CoOccurrences)},
			skip:   len(ing.CoOccurrences) == 0,
		},
	}
}

func chunkRows(chunks []common.Chunk) []map[string]any {
	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			embedding = toFloat64s(c.Embedding)
		}
		rows = append(rows, map[string]any{
			"id":           c.ID,
			"seq":          int64(c.Seq),
			"text":         c.Text,
			"start_offset": int64(c.Start),
			"end_offset":   int64(c.End),
			"embedding":    embedding,
		})
	}
	return rows
}

func conceptRows(concepts []common.ConceptIncrement) []map[string]any {
	rows := make([]map[string]any, 0, len(concepts))
	for _, c := range concepts {
		rows = append(rows, map[string]any{
			"id":    c.ID,
			"label": c.Label,
			"lemma": c.Lemma,
			"delta": c.Delta,
		})
	}
	return rows
}

func mentionRows(mentions []common.Mention) []map[string]any {
	rows := make([]map[string]any, 0, len(mentions))
	for _, m := range mentions {
		rows = append(rows, map[string]any{"chunk_id": m.ChunkID, "label": m.Label})
	}
	return rows
}

// edgeRows orients every edge from the smaller to the larger label and
// drops self pairs.
func edgeRows(edges []common.CoOccurrence) []map[string]any {
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		a, b := e.Source, e.Target
		if a == b {
			continue
		}
		if b < a {
			a, b = b, a
		}
		rows = append(rows, map[string]any{"source": a, "target": b, "weight": e.Weight})
	}
	return rows
}
