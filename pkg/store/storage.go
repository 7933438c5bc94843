package store

import (
	"context"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// GraphStorage persists the concept graph and exposes the search primitives
// used by retrieval. Implementations must apply concept frequency and
// co-occurrence weight increments additively so that concurrent ingestions
// commute.
type GraphStorage interface {
	// GetDocument returns common.ErrNotFound when no document has the id.
	GetDocument(ctx context.Context, id string) (common.Document, error)
	GetDocuments(ctx context.Context, ids []string) (map[string]common.Document, error)

	// SaveIngestion writes a document with everything derived from it in a
	// single transaction. The document is upserted, its chunks and mentions
	// replaced, and concept and edge increments added to stored values.
	// When the stored document already has the same content hash nothing is
	// written and it reports false. The hash is compared inside the write,
	// so concurrent saves of one source apply its increments once.
	SaveIngestion(ctx context.Context, ing common.Ingestion) (bool, error)

	VectorSearch(ctx context.Context, embedding []float32, k int) ([]common.ScoredChunk, error)
	KeywordSearch(ctx context.Context, query string, k int) ([]common.ScoredChunk, error)

	ConceptsForChunks(ctx context.Context, chunkIDs []string) ([]common.Concept, error)
	// Neighbors returns the one-hop co-occurrence neighbors of the given
	// labels and the edges connecting them.
	Neighbors(ctx context.Context, labels []string) ([]common.Concept, []common.CoOccurrence, error)

	GetGraph(ctx context.Context) (common.Graph, error)
	// GetConcept returns common.ErrNotFound for unknown ids.
	GetConcept(ctx context.Context, id string) (common.ConceptDetails, error)

	// WriteCommunities replaces the community label of every concept. Concepts
	// missing from the assignment are cleared.
	WriteCommunities(ctx context.Context, assignment map[string]int64) error

	Stats(ctx context.Context) (common.Stats, error)
	Close() error
}

// MaxConceptSnippets bounds the snippets returned with concept details.
const MaxConceptSnippets = 5
