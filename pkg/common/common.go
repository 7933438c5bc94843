package common

import "time"

// DocumentType distinguishes how a document entered the graph.
type DocumentType string

const (
	DocumentTypeFile DocumentType = "file"
	DocumentTypeURL  DocumentType = "url"
)

// Document is the provenance record for one ingested source. Its ID is
// derived from the source identity (file name or URL) so re-ingesting the
// same source addresses the same document.
type Document struct {
	ID          string       `json:"id"`
	Type        DocumentType `json:"type"`
	Name        string       `json:"name"`
	URL         string       `json:"url,omitempty"`
	Bytes       int64        `json:"bytes"`
	ContentHash string       `json:"content_hash"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Chunk is a contiguous window of a document's normalized text. Start and
// End are rune offsets into that text.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Embedding  []float32 `json:"-"`
}

// Concept is a normalized noun phrase or named entity shared across all
// documents. Freq counts the chunks that mention it.
type Concept struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Lemma     string    `json:"lemma"`
	Freq      int64     `json:"freq"`
	Community *int64    `json:"community,omitempty"`
	Embedding []float32 `json:"-"`
}

// Mention links a chunk to a concept it contains.
type Mention struct {
	ChunkID string `json:"chunk_id"`
	Label   string `json:"label"`
}

// CoOccurrence is an undirected weighted edge between two concept labels.
// Source is always lexicographically smaller than Target.
type CoOccurrence struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// ConceptIncrement is the frequency delta one ingestion contributes to a concept.
type ConceptIncrement struct {
	ID    string
	Label string
	Lemma string
	Delta int64
}

// Ingestion is everything a single document contributes to the graph. A
// store persists it all or nothing.
type Ingestion struct {
	Document      Document
	Chunks        []Chunk
	Concepts      []ConceptIncrement
	Mentions      []Mention
	CoOccurrences []CoOccurrence
}

// ChunkResult is a retrieved chunk together with its scores.
type ChunkResult struct {
	Chunk        Chunk   `json:"chunk"`
	VectorScore  float64 `json:"vector_score"`
	KeywordScore float64 `json:"keyword_score"`
	Score        float64 `json:"score"`
}

// ScoredChunk is a raw search hit as reported by a store.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Neighborhood is the one-hop concept context of a set of chunks.
type Neighborhood struct {
	Seeds     []Concept      `json:"seeds"`
	Neighbors []Concept      `json:"neighbors"`
	Edges     []CoOccurrence `json:"edges"`
}

// Source is a citation attached to an answer.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"doc_id"`
	DocName    string  `json:"doc_name,omitempty"`
	URL        string  `json:"url,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Answer is the result of a question against the graph.
type Answer struct {
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	NodesUsed []string `json:"nodes_used"`
}

// Graph is the full concept graph used for visualization and community detection.
type Graph struct {
	Nodes []Concept      `json:"nodes"`
	Edges []CoOccurrence `json:"edges"`
}

// Snippet is a chunk excerpt attached to concept details.
type Snippet struct {
	Text    string `json:"text"`
	DocName string `json:"doc_name"`
	DocURL  string `json:"doc_url,omitempty"`
}

// ConceptDetails is a concept together with chunks that mention it.
type ConceptDetails struct {
	Concept
	Snippets []Snippet `json:"snippets"`
}

// Stats are live counts over the stored graph.
type Stats struct {
	Documents  int64 `json:"docs"`
	Chunks     int64 `json:"chunks"`
	Concepts   int64 `json:"concepts"`
	Edges      int64 `json:"edges"`
	TotalBytes int64 `json:"total_bytes"`
}
