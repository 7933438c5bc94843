package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	dim   int
	calls [][]string
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	f.mu.Lock()
	batch := make([]string, 0, len(inputs))
	for _, in := range inputs {
		batch = append(batch, string(in))
	}
	f.calls = append(f.calls, batch)
	f.mu.Unlock()

	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, f.dim)
		v[0] = float32(len(in))
		out[i] = v
	}
	return out, nil
}

func TestEmbedBatch_PreservesOrderAcrossBatches(t *testing.T) {
	fe := &fakeEmbedder{dim: 3}
	c, err := NewEmbeddingClient(fe, NewEmbeddingClientParams{Dimension: 3, BatchSize: 2})
	if err != nil {
		t.Fatalf("NewEmbeddingClient() error = %v", err)
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	out, err := c.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(out) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(out))
	}
	for i, v := range out {
		if int(v[0]) != len(texts[i]) {
			t.Fatalf("vector %d out of order: %v", i, v)
		}
	}
	if len(fe.calls) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(fe.calls))
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	c, err := NewEmbeddingClient(&fakeEmbedder{dim: 4}, NewEmbeddingClientParams{Dimension: 3})
	if err != nil {
		t.Fatalf("NewEmbeddingClient() error = %v", err)
	}
	_, err = c.EmbedQuery(context.Background(), "hello")
	if !errors.Is(err, common.ErrEmbeddingDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestNewEmbeddingClient_RejectsBadDimension(t *testing.T) {
	if _, err := NewEmbeddingClient(&fakeEmbedder{dim: 1}, NewEmbeddingClientParams{}); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}
