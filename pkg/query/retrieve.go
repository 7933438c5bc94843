package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

const (
	DefaultK     = 10
	DefaultAlpha = 0.7
)

// Retriever fuses vector and keyword search into one ranking.
type Retriever struct {
	searcher ChunkSearcher
	embedder QueryEmbedder
	tracer   Tracer
}

type RetrieverOption func(*Retriever)

func WithRetrieverTracer(t Tracer) RetrieverOption {
	return func(r *Retriever) {
		r.tracer = t
	}
}

func NewRetriever(searcher ChunkSearcher, embedder QueryEmbedder, opts ...RetrieverOption) *Retriever {
	r := &Retriever{searcher: searcher, embedder: embedder}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// Search returns at most k chunks ranked by alpha*vector + (1-alpha)*keyword,
// where a chunk missing from one side scores 0 there. Scores are normalized
// so the best result has 1. Ties keep vector-ranked chunks first, then
// keyword-only chunks in keyword order. A side whose weight is zero is not
// queried at all.
func (r *Retriever) Search(ctx context.Context, query string, k int, alpha float64) ([]common.ChunkResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", common.ErrInvalidInput)
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha %v is outside [0,1]", common.ErrInvalidInput, alpha)
	}
	if k <= 0 {
		k = DefaultK
	}

	var vector, keyword []common.ScoredChunk
	if alpha > 0 {
		emb, err := r.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector, err = r.searcher.VectorSearch(ctx, emb, k)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}
	}
	if alpha < 1 {
		var err error
		keyword, err = r.searcher.KeywordSearch(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("keyword search failed: %w", err)
		}
	}

	results := Fuse(vector, keyword, k, alpha)

	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Chunk.ID
	}
	RecordRetrievedChunkIDs(r.tracer, ids...)

	return results, nil
}

// Fuse merges two ranked hit lists. Negative similarities count as 0.
func Fuse(vector, keyword []common.ScoredChunk, k int, alpha float64) []common.ChunkResult {
	byID := make(map[string]int, len(vector)+len(keyword))
	results := make([]common.ChunkResult, 0, len(vector)+len(keyword))

	for _, hit := range vector {
		if _, ok := byID[hit.Chunk.ID]; ok {
			continue
		}
		byID[hit.Chunk.ID] = len(results)
		results = append(results, common.ChunkResult{Chunk: hit.Chunk, VectorScore: max(hit.Score, 0)})
	}
	for _, hit := range keyword {
		idx, ok := byID[hit.Chunk.ID]
		if !ok {
			idx = len(results)
			byID[hit.Chunk.ID] = idx
			results = append(results, common.ChunkResult{Chunk: hit.Chunk})
		}
		if results[idx].KeywordScore == 0 {
			results[idx].KeywordScore = max(hit.Score, 0)
		}
	}

	for i := range results {
		results[i].Score = alpha*results[i].VectorScore + (1-alpha)*results[i].KeywordScore
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	top := 0.0
	for _, res := range results {
		top = max(top, res.Score)
	}
	for i := range results {
		if top > 0 {
			results[i].Score /= top
		} else {
			results[i].Score = 0
		}
	}
	return results
}

// DedupeByDocument keeps at most maxPerDoc results per document, preserving order.
func DedupeByDocument(results []common.ChunkResult, maxPerDoc int) []common.ChunkResult {
	if maxPerDoc <= 0 {
		maxPerDoc = 3
	}
	counts := make(map[string]int)
	out := make([]common.ChunkResult, 0, len(results))
	for _, res := range results {
		doc := res.Chunk.DocumentID
		if counts[doc] >= maxPerDoc {
			continue
		}
		counts[doc]++
		out = append(out, res)
	}
	return out
}

const minSnippetChars = 20

// SelectBestSnippets returns up to limit distinct chunk texts longer than 20
// characters, in ranking order.
func SelectBestSnippets(results []common.ChunkResult, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for _, res := range results {
		text := strings.TrimSpace(res.Chunk.Text)
		if len([]rune(text)) <= minSnippetChars {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
		if len(out) == limit {
			break
		}
	}
	return out
}
