package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient wraps an Embedder with batching and a fixed vector
// dimension. Every vector it returns has exactly Dimension entries.
type EmbeddingClient struct {
	embedder  Embedder
	dimension int
	batchSize int
	parallel  int
}

// NewEmbeddingClientParams configures an EmbeddingClient.
type NewEmbeddingClientParams struct {
	Dimension int
	BatchSize int
	Parallel  int
}

func NewEmbeddingClient(embedder Embedder, params NewEmbeddingClientParams) (*EmbeddingClient, error) {
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	if params.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", common.ErrInvalidInput)
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 64
	}
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = 4
	}
	return &EmbeddingClient{
		embedder:  embedder,
		dimension: params.Dimension,
		batchSize: batch,
		parallel:  parallel,
	}, nil
}

func (c *EmbeddingClient) Dimension() int {
	return c.dimension
}

// EmbedQuery embeds a single text.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in batches of BatchSize. Output order matches input order.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(c.parallel)

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		eg.Go(func() error {
			inputs := make([][]byte, 0, end-start)
			for _, t := range texts[start:end] {
				inputs = append(inputs, []byte(t))
			}
			vecs, err := c.embedder.GenerateEmbeddings(ectx, inputs)
			if err != nil {
				return err
			}
			if len(vecs) != len(inputs) {
				return fmt.Errorf("embedding result size mismatch: got %d want %d", len(vecs), len(inputs))
			}
			for i, v := range vecs {
				if len(v) != c.dimension {
					return fmt.Errorf("%w: got %d want %d", common.ErrEmbeddingDimensionMismatch, len(v), c.dimension)
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
