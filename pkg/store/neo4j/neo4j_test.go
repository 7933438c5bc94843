package neo4j

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

func TestLuceneQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is machine learning?", "learning OR machine"},
		{"state-of-the-art AND NOT", "art OR state"},
		{"the and of", ""},
		{"Neural neural NEURAL", "neural"},
	}
	for _, tt := range tests {
		if got := luceneQuery(tt.in); got != tt.want {
			t.Errorf("luceneQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEdgeRowsOrientAndDropSelfPairs(t *testing.T) {
	got := edgeRows([]common.CoOccurrence{
		{Source: "b", Target: "a", Weight: 0.5},
		{Source: "c", Target: "c", Weight: 1},
		{Source: "a", Target: "c", Weight: 1},
	})
	want := []map[string]any{
		{"source": "a", "target": "b", "weight": 0.5},
		{"source": "a", "target": "c", "weight": 1.0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("edgeRows() = %v, want %v", got, want)
	}
}

func TestChunkRowsConvertEmbedding(t *testing.T) {
	rows := chunkRows([]common.Chunk{
		{ID: "d_0", Seq: 0, Text: "x", Start: 0, End: 1, Embedding: []float32{0.5, -1}},
		{ID: "d_1", Seq: 1, Text: "y", Start: 1, End: 2},
	})
	if got := rows[0]["embedding"]; !reflect.DeepEqual(got, []float64{0.5, -1}) {
		t.Fatalf("embedding = %#v", got)
	}
	if rows[1]["embedding"] != nil {
		t.Fatalf("expected nil embedding, got %#v", rows[1]["embedding"])
	}
	if rows[1]["end_offset"] != int64(2) {
		t.Fatalf("end_offset = %#v", rows[1]["end_offset"])
	}
}

func TestCommunityRowsSorted(t *testing.T) {
	got := communityRows(map[string]int64{"b": 1, "a": 0, "c": 1})
	want := []map[string]any{
		{"label": "a", "community": int64(0)},
		{"label": "b", "community": int64(1)},
		{"label": "c", "community": int64(1)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("communityRows() = %v, want %v", got, want)
	}
}

func TestValueConversions(t *testing.T) {
	if asInt64(int64(3)) != 3 || asInt64(2.0) != 2 || asInt64("x") != 0 {
		t.Fatalf("asInt64 conversions wrong")
	}
	if asFloat64(int64(2)) != 2 || asFloat64(0.25) != 0.25 || asFloat64(nil) != 0 {
		t.Fatalf("asFloat64 conversions wrong")
	}
	if asOptionalInt64(nil) != nil {
		t.Fatalf("expected nil community")
	}
	if c := asOptionalInt64(int64(4)); c == nil || *c != 4 {
		t.Fatalf("expected community 4, got %v", c)
	}
	if got := cosineFromIndexScore(1); got != 1 {
		t.Fatalf("cosineFromIndexScore(1) = %v", got)
	}
	if got := cosineFromIndexScore(0.5); got != 0 {
		t.Fatalf("cosineFromIndexScore(0.5) = %v", got)
	}
}

func TestSchemaStatements(t *testing.T) {
	without := schemaStatements(0)
	with := schemaStatements(384)
	if len(with) != len(without)+1 {
		t.Fatalf("expected one extra vector index statement")
	}
	last := with[len(with)-1]
	if !strings.Contains(last, "`vector.dimensions`: 384") || !strings.Contains(last, vectorIndex) {
		t.Fatalf("unexpected vector index statement %q", last)
	}
}

func TestIngestionStatements_DocumentUpsertGuardsTransaction(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stmts := ingestionStatements(common.Ingestion{
		Document: common.Document{ID: "doc", ContentHash: "h1"},
		Chunks:   []common.Chunk{{ID: "doc_0", Text: "graph"}},
	}, now)

	first := stmts[0]
	if !first.guard || first.cypher != upsertDocumentCypher || first.skip {
		t.Fatalf("expected the document upsert to lead as guard, got %q", first.name)
	}
	for _, st := range stmts[1:] {
		if st.guard {
			t.Fatalf("unexpected guard on %q", st.name)
		}
	}
	doc := first.params["doc"].(map[string]any)
	if doc["content_hash"] != "h1" || doc["created_at"] != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected document params %v", doc)
	}
	if !strings.Contains(upsertDocumentCypher, "d.content_hash <> $doc.content_hash") ||
		!strings.Contains(upsertDocumentCypher, "RETURN d.id") {
		t.Fatal("document upsert must only return a row for changed content")
	}

	var skipped []string
	for _, st := range stmts {
		if st.skip {
			skipped = append(skipped, st.name)
		}
	}
	want := []string{"upsert concepts", "merge mentions", "upsert co-occurrences"}
	if !reflect.DeepEqual(skipped, want) {
		t.Fatalf("skipped = %v, want %v", skipped, want)
	}
}
