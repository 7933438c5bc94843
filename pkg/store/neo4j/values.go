package neo4j

import (
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func asOptionalInt64(v any) *int64 {
	if v == nil {
		return nil
	}
	n := asInt64(v)
	return &n
}

func get(rec *neo4jv5.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}

func recordConcept(rec *neo4jv5.Record) common.Concept {
	return common.Concept{
		ID:        asString(get(rec, "id")),
		Label:     asString(get(rec, "label")),
		Lemma:     asString(get(rec, "lemma")),
		Freq:      asInt64(get(rec, "freq")),
		Community: asOptionalInt64(get(rec, "community")),
	}
}

func recordEdge(rec *neo4jv5.Record) common.CoOccurrence {
	return common.CoOccurrence{
		Source: asString(get(rec, "source")),
		Target: asString(get(rec, "target")),
		Weight: asFloat64(get(rec, "weight")),
	}
}

func recordChunk(rec *neo4jv5.Record) common.Chunk {
	return common.Chunk{
		ID:         asString(get(rec, "id")),
		DocumentID: asString(get(rec, "document_id")),
		Seq:        int(asInt64(get(rec, "seq"))),
		Text:       asString(get(rec, "text")),
		Start:      int(asInt64(get(rec, "start_offset"))),
		End:        int(asInt64(get(rec, "end_offset"))),
	}
}

func recordDocument(rec *neo4jv5.Record) common.Document {
	d := common.Document{
		ID:          asString(get(rec, "id")),
		Type:        common.DocumentType(asString(get(rec, "type"))),
		Name:        asString(get(rec, "name")),
		URL:         asString(get(rec, "url")),
		Bytes:       asInt64(get(rec, "bytes")),
		ContentHash: asString(get(rec, "content_hash")),
	}
	if t, err := time.Parse(time.RFC3339Nano, asString(get(rec, "created_at"))); err == nil {
		d.CreatedAt = t
	}
	return d
}

// cosineFromIndexScore undoes the (1 + cos) / 2 scaling Neo4j applies to
// cosine vector index scores.
func cosineFromIndexScore(score float64) float64 {
	return 2*score - 1
}

type neo4jRecord = neo4jv5.Record
