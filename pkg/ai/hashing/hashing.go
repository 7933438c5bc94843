// Package hashing provides a dependency free embedder based on feature
// hashing. It needs no model and no network, which makes it the default for
// local runs and tests. Similar texts share tokens and therefore buckets, so
// cosine similarity still ranks lexical overlap sensibly.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
)

// Embedder hashes unigrams and bigrams into a fixed number of buckets.
type Embedder struct {
	dim int
}

func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = 384
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(string(in))
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float64, e.dim)

	terms := make([]string, 0)
	for _, w := range ai.Words(text) {
		if ai.IsStopword(w) {
			continue
		}
		terms = append(terms, w)
	}
	for i, t := range terms {
		e.add(vec, t, 1)
		if i > 0 {
			e.add(vec, terms[i-1]+" "+t, 0.5)
		}
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *Embedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
