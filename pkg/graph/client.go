package graph

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/loader"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

// Archiver keeps a copy of ingested raw content. It is optional.
type Archiver interface {
	PutDocument(ctx context.Context, doc common.Document, content []byte) error
}

// GraphClient runs the ingestion pipeline: normalize, chunk, extract
// concepts, aggregate co-occurrences, embed and persist.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	storage   store.GraphStorage
	extractor *ConceptExtractor
	embedder  *ai.EmbeddingClient
	budget    *BudgetGuard
	fetcher   loader.Fetcher
	archive   Archiver

	chunkSize      int
	chunkOverlap   int
	window         int
	parallelChunks int
	maxRetries     int
}

// NewGraphClientParams defines the configuration of a GraphClient.
//
// Storage, Tagger and Embedder are required. Fetcher is only needed for URL
// ingestion and Archive may be nil. Zero sizes select the defaults, except
// for ChunkOverlap where zero is a valid overlap and a negative value selects
// the default.
type NewGraphClientParams struct {
	Storage  store.GraphStorage
	Tagger   ai.ConceptTagger
	Embedder *ai.EmbeddingClient
	Budget   *BudgetGuard
	Fetcher  loader.Fetcher
	Archive  Archiver

	ChunkSize          int
	ChunkOverlap       int
	CooccurrenceWindow int
	MinConceptChars    int
	MaxConceptWords    int
	ParallelChunks     int
	MaxRetries         int
}

// NewGraphClient creates a GraphClient.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		Storage:  memory.New(),
//		Tagger:   phrase.NewTagger(5),
//		Embedder: embedder,
//		Budget:   graph.NewBudgetGuardMB(storage, 100),
//	})
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.Storage == nil {
		return nil, errors.New("graph storage is nil")
	}
	if params.Tagger == nil {
		return nil, errors.New("concept tagger is nil")
	}
	if params.Embedder == nil {
		return nil, errors.New("embedding client is nil")
	}

	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	overlap := params.ChunkOverlap
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		return nil, errors.New("chunk overlap must be smaller than chunk size")
	}
	window := params.CooccurrenceWindow
	if window <= 1 {
		window = DefaultCooccurrenceWindow
	}
	parallel := params.ParallelChunks
	if parallel <= 0 {
		parallel = 4
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	budget := params.Budget
	if budget == nil {
		budget = NewBudgetGuardMB(params.Storage, 100)
	}

	return &GraphClient{
		storage:        params.Storage,
		extractor:      NewConceptExtractor(params.Tagger, params.MinConceptChars, params.MaxConceptWords),
		embedder:       params.Embedder,
		budget:         budget,
		fetcher:        params.Fetcher,
		archive:        params.Archive,
		chunkSize:      chunkSize,
		chunkOverlap:   overlap,
		window:         window,
		parallelChunks: parallel,
		maxRetries:     maxRetries,
	}, nil
}

func (g *GraphClient) Budget() *BudgetGuard {
	return g.budget
}
