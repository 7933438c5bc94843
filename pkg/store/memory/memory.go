// Package memory is an in-process GraphStorage used for development, the
// CLI's offline mode and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"
)

type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if y < x {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// GraphMemoryStorage keeps the whole graph in maps guarded by one RWMutex.
// Each SaveIngestion runs under the write lock, which makes it atomic.
type GraphMemoryStorage struct {
	mu sync.RWMutex

	docs     map[string]common.Document
	chunks   map[string]common.Chunk
	concepts map[string]common.Concept // by label
	ids      map[string]string         // concept id -> label
	mentions map[string]map[string]struct{}
	edges    map[pairKey]float64
}

var _ store.GraphStorage = (*GraphMemoryStorage)(nil)

func New() *GraphMemoryStorage {
	return &GraphMemoryStorage{
		docs:     make(map[string]common.Document),
		chunks:   make(map[string]common.Chunk),
		concepts: make(map[string]common.Concept),
		ids:      make(map[string]string),
		mentions: make(map[string]map[string]struct{}),
		edges:    make(map[pairKey]float64),
	}
}

func (s *GraphMemoryStorage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return common.Document{}, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc, nil
}

func (s *GraphMemoryStorage) GetDocuments(ctx context.Context, ids []string) (map[string]common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]common.Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out[id] = doc
		}
	}
	return out, nil
}

func (s *GraphMemoryStorage) SaveIngestion(ctx context.Context, ing common.Ingestion) (bool, error) {
	if ing.Document.ID == "" {
		return false, fmt.Errorf("%w: document id is empty", common.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docID := ing.Document.ID
	prev, ok := s.docs[docID]
	if ok && ing.Document.ContentHash != "" && prev.ContentHash == ing.Document.ContentHash {
		return false, nil
	}
	if ok && !prev.CreatedAt.IsZero() {
		ing.Document.CreatedAt = prev.CreatedAt
	}
	s.docs[docID] = ing.Document

	keep := make(map[string]struct{}, len(ing.Chunks))
	for _, c := range ing.Chunks {
		keep[c.ID] = struct{}{}
	}
	for id, c := range s.chunks {
		if c.DocumentID != docID {
			continue
		}
		delete(s.mentions, id)
		if _, ok := keep[id]; !ok {
			delete(s.chunks, id)
		}
	}
	for _, c := range ing.Chunks {
		c.DocumentID = docID
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[c.ID] = c
	}

	for _, inc := range ing.Concepts {
		c, ok := s.concepts[inc.Label]
		if !ok {
			id := inc.ID
			if id == "" {
				id = util.ConceptID(inc.Label)
			}
			c = common.Concept{ID: id, Label: inc.Label, Lemma: inc.Lemma}
			s.ids[id] = inc.Label
		}
		c.Freq += inc.Delta
		s.concepts[inc.Label] = c
	}

	for _, m := range ing.Mentions {
		set, ok := s.mentions[m.ChunkID]
		if !ok {
			set = make(map[string]struct{})
			s.mentions[m.ChunkID] = set
		}
		set[m.Label] = struct{}{}
	}

	for _, e := range ing.CoOccurrences {
		if e.Source == e.Target {
			continue
		}
		s.edges[newPairKey(e.Source, e.Target)] += e.Weight
	}
	return true, nil
}

func (s *GraphMemoryStorage) VectorSearch(ctx context.Context, embedding []float32, k int) ([]common.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]common.ScoredChunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		hits = append(hits, common.ScoredChunk{Chunk: c, Score: store.CosineSimilarity(embedding, c.Embedding)})
	}
	return topK(hits, k), nil
}

// KeywordSearch scores chunks with BM25 over lowercase word tokens. Chunks
// matching no query term are omitted.
func (s *GraphMemoryStorage) KeywordSearch(ctx context.Context, query string, k int) ([]common.ScoredChunk, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	const k1, b = 1.2, 0.75
	type doc struct {
		chunk common.Chunk
		tf    map[string]int
		len   int
	}
	docs := make([]doc, 0, len(s.chunks))
	df := make(map[string]int, len(terms))
	total := 0
	for _, c := range s.chunks {
		words := ai.Words(c.Text)
		tf := make(map[string]int)
		for _, w := range words {
			if _, ok := terms[w]; ok {
				tf[w]++
			}
		}
		for t := range tf {
			df[t]++
		}
		docs = append(docs, doc{chunk: c, tf: tf, len: len(words)})
		total += len(words)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	avg := float64(total) / float64(len(docs))
	if avg == 0 {
		avg = 1
	}

	ordered := make([]string, 0, len(terms))
	for t := range terms {
		ordered = append(ordered, t)
	}
	sort.Strings(ordered)

	n := float64(len(docs))
	hits := make([]common.ScoredChunk, 0)
	for _, d := range docs {
		var score float64
		for _, t := range ordered {
			f, ok := d.tf[t]
			if !ok {
				continue
			}
			idf := math.Log(1 + (n-float64(df[t])+0.5)/(float64(df[t])+0.5))
			tf := float64(f)
			score += idf * tf * (k1 + 1) / (tf + k1*(1-b+b*float64(d.len)/avg))
		}
		if score > 0 {
			hits = append(hits, common.ScoredChunk{Chunk: d.chunk, Score: score})
		}
	}
	return topK(hits, k), nil
}

func queryTerms(query string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range ai.Words(query) {
		if ai.IsStopword(w) {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// topK orders hits by score desc, then chunk id, and truncates to k.
func topK(hits []common.ScoredChunk, k int) []common.ScoredChunk {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (s *GraphMemoryStorage) ConceptsForChunks(ctx context.Context, chunkIDs []string) ([]common.Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]common.Concept, 0)
	for _, id := range chunkIDs {
		for label := range s.mentions[id] {
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			if c, ok := s.concepts[label]; ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (s *GraphMemoryStorage) Neighbors(ctx context.Context, labels []string) ([]common.Concept, []common.CoOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seeds := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seeds[l] = struct{}{}
	}

	neighbors := make(map[string]common.Concept)
	edges := make([]common.CoOccurrence, 0)
	for key, w := range s.edges {
		_, inA := seeds[key.a]
		_, inB := seeds[key.b]
		if !inA && !inB {
			continue
		}
		edges = append(edges, common.CoOccurrence{Source: key.a, Target: key.b, Weight: w})
		if !inA {
			neighbors[key.a] = s.concepts[key.a]
		}
		if !inB {
			neighbors[key.b] = s.concepts[key.b]
		}
	}

	out := make([]common.Concept, 0, len(neighbors))
	for _, c := range neighbors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	sortEdges(edges)
	return out, edges, nil
}

func (s *GraphMemoryStorage) GetGraph(ctx context.Context) (common.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := common.Graph{
		Nodes: make([]common.Concept, 0, len(s.concepts)),
		Edges: make([]common.CoOccurrence, 0, len(s.edges)),
	}
	for _, c := range s.concepts {
		g.Nodes = append(g.Nodes, c)
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].Label < g.Nodes[j].Label })
	for key, w := range s.edges {
		g.Edges = append(g.Edges, common.CoOccurrence{Source: key.a, Target: key.b, Weight: w})
	}
	sortEdges(g.Edges)
	return g, nil
}

func (s *GraphMemoryStorage) GetConcept(ctx context.Context, id string) (common.ConceptDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	label, ok := s.ids[id]
	if !ok {
		return common.ConceptDetails{}, fmt.Errorf("concept %s: %w", id, common.ErrNotFound)
	}

	chunkIDs := make([]string, 0)
	for chunkID, set := range s.mentions {
		if _, ok := set[label]; ok {
			chunkIDs = append(chunkIDs, chunkID)
		}
	}
	sort.Strings(chunkIDs)

	details := common.ConceptDetails{Concept: s.concepts[label], Snippets: []common.Snippet{}}
	for _, chunkID := range chunkIDs {
		if len(details.Snippets) == store.MaxConceptSnippets {
			break
		}
		c := s.chunks[chunkID]
		doc := s.docs[c.DocumentID]
		details.Snippets = append(details.Snippets, common.Snippet{
			Text:    c.Text,
			DocName: doc.Name,
			DocURL:  doc.URL,
		})
	}
	return details, nil
}

func (s *GraphMemoryStorage) WriteCommunities(ctx context.Context, assignment map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for label, c := range s.concepts {
		if id, ok := assignment[label]; ok {
			c.Community = &id
		} else {
			c.Community = nil
		}
		s.concepts[label] = c
	}
	return nil
}

func (s *GraphMemoryStorage) Stats(ctx context.Context) (common.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := common.Stats{
		Documents: int64(len(s.docs)),
		Chunks:    int64(len(s.chunks)),
		Concepts:  int64(len(s.concepts)),
		Edges:     int64(len(s.edges)),
	}
	for _, d := range s.docs {
		st.TotalBytes += d.Bytes
	}
	return st, nil
}

func (s *GraphMemoryStorage) Close() error {
	return nil
}

func sortEdges(edges []common.CoOccurrence) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

// MentionCount returns the number of stored mention edges.
func (s *GraphMemoryStorage) MentionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.mentions {
		n += len(set)
	}
	return n
}

// Lookup returns a concept by label.
func (s *GraphMemoryStorage) Lookup(label string) (common.Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.concepts[strings.ToLower(label)]
	return c, ok
}
