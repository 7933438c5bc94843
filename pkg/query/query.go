package query

import (
	"context"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

// ChunkSearcher provides the two primitive searches fused by the Retriever.
type ChunkSearcher interface {
	VectorSearch(ctx context.Context, embedding []float32, k int) ([]common.ScoredChunk, error)
	KeywordSearch(ctx context.Context, query string, k int) ([]common.ScoredChunk, error)
}

// QueryEmbedder turns a question into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ConceptGraph reads concept mentions and co-occurrence neighborhoods.
type ConceptGraph interface {
	ConceptsForChunks(ctx context.Context, chunkIDs []string) ([]common.Concept, error)
	Neighbors(ctx context.Context, labels []string) ([]common.Concept, []common.CoOccurrence, error)
}

// DocumentReader resolves document metadata for answer sources.
type DocumentReader interface {
	GetDocuments(ctx context.Context, ids []string) (map[string]common.Document, error)
}
