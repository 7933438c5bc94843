package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gUtil "github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	loaderio "github.com/OFFIS-RIT/kgraph/pkg/loader/io"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// IngestResult summarizes one ingestion. Unchanged is set when the source
// content matched the stored document and nothing was written.
type IngestResult struct {
	DocumentID           string `json:"doc_id"`
	Filename             string `json:"filename,omitempty"`
	URL                  string `json:"url,omitempty"`
	ChunksCreated        int    `json:"chunks_created"`
	ConceptsExtracted    int    `json:"concepts_extracted"`
	CooccurrencesCreated int    `json:"cooccurrences_created"`
	BytesIngested        int64  `json:"bytes_ingested"`
	Unchanged            bool   `json:"unchanged,omitempty"`
}

type source struct {
	doc  common.Document
	raw  []byte
	text []byte
}

// IngestFile ingests an uploaded plain text file. The document id is derived
// from the file name, so uploading the same name again updates that document.
func (g *GraphClient) IngestFile(ctx context.Context, name string, content []byte) (IngestResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IngestResult{}, fmt.Errorf("%w: file name is empty", common.ErrInvalidInput)
	}
	if err := loaderio.CheckTextFile(name); err != nil {
		return IngestResult{}, err
	}

	src := source{
		doc: common.Document{
			ID:    gUtil.FileDocumentID(name),
			Type:  common.DocumentTypeFile,
			Name:  name,
			Bytes: int64(len(content)),
		},
		raw:  content,
		text: content,
	}
	res, err := g.ingest(ctx, src)
	res.Filename = name
	return res, err
}

// IngestURL fetches a page and ingests its readable text. The raw response
// size counts against the budget.
func (g *GraphClient) IngestURL(ctx context.Context, rawURL string) (IngestResult, error) {
	if g.fetcher == nil {
		return IngestResult{}, fmt.Errorf("%w: url ingestion is not configured", common.ErrUnsupportedSource)
	}
	rawURL = strings.TrimSpace(rawURL)

	fetched, err := g.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return IngestResult{URL: rawURL}, err
	}
	if strings.TrimSpace(fetched.Text) == "" {
		return IngestResult{URL: rawURL}, fmt.Errorf("%w: could not extract text from url", common.ErrExtractionEmpty)
	}

	src := source{
		doc: common.Document{
			ID:    gUtil.URLDocumentID(rawURL),
			Type:  common.DocumentTypeURL,
			Name:  rawURL,
			URL:   rawURL,
			Bytes: int64(len(fetched.Body)),
		},
		raw:  fetched.Body,
		text: []byte(fetched.Text),
	}
	res, err := g.ingest(ctx, src)
	res.URL = rawURL
	return res, err
}

func (g *GraphClient) ingest(ctx context.Context, src source) (IngestResult, error) {
	start := time.Now()
	doc := src.doc
	doc.ContentHash = gUtil.ContentHash(src.raw)
	res := IngestResult{DocumentID: doc.ID}

	// Cheap early exit; SaveIngestion repeats the hash check atomically.
	var previous int64
	existing, err := g.storage.GetDocument(ctx, doc.ID)
	switch {
	case err == nil:
		if existing.ContentHash == doc.ContentHash {
			logger.Info("[Ingest] Source unchanged, skipping", "doc_id", doc.ID, "name", doc.Name)
			res.Unchanged = true
			return res, nil
		}
		previous = existing.Bytes
	case !errors.Is(err, common.ErrNotFound):
		return res, fmt.Errorf("failed to look up document: %w", err)
	}

	if err := g.budget.Check(ctx, doc.Bytes-previous); err != nil {
		return res, err
	}

	text, err := Normalize(src.text)
	if err != nil {
		return res, err
	}
	spans, err := SplitIntoChunks(text, g.chunkSize, g.chunkOverlap)
	if err != nil {
		return res, err
	}
	if len(spans) == 0 {
		return res, fmt.Errorf("%w: document has no text after normalization", common.ErrExtractionEmpty)
	}
	chunks := spansToChunks(doc.ID, spans)

	perChunk, err := g.extractConcepts(ctx, chunks)
	if err != nil {
		return res, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := gUtil.RetryWithContext(ctx, g.maxRetries, func(ctx context.Context) ([][]float32, error) {
		return g.embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return res, fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	ing := buildIngestion(doc, chunks, perChunk, g.window)
	written, err := g.storage.SaveIngestion(ctx, ing)
	if err != nil {
		return res, fmt.Errorf("failed to save document: %w", err)
	}
	if !written {
		logger.Info("[Ingest] Source saved concurrently with the same content, skipping", "doc_id", doc.ID)
		res.Unchanged = true
		return res, nil
	}

	if g.archive != nil {
		if err := g.archive.PutDocument(ctx, doc, src.raw); err != nil {
			logger.Warn("[Ingest] Failed to archive document", "doc_id", doc.ID, "err", err)
		}
	}

	res.ChunksCreated = len(ing.Chunks)
	res.ConceptsExtracted = len(ing.Concepts)
	res.CooccurrencesCreated = len(ing.CoOccurrences)
	res.BytesIngested = doc.Bytes

	logger.Info(
		"[Ingest] Document ingested",
		"doc_id", doc.ID,
		"name", doc.Name,
		"chunks", res.ChunksCreated,
		"concepts", res.ConceptsExtracted,
		"edges", res.CooccurrencesCreated,
		"duration", time.Since(start),
	)
	return res, nil
}

// extractConcepts tags every chunk. Results are indexed by chunk position.
func (g *GraphClient) extractConcepts(ctx context.Context, chunks []common.Chunk) ([][]Concept, error) {
	out := make([][]Concept, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelChunks)
	for i, c := range chunks {
		eg.Go(func() error {
			concepts, err := gUtil.RetryWithContext(gCtx, g.maxRetries, func(ctx context.Context) ([]Concept, error) {
				return g.extractor.Extract(ctx, c.Text)
			})
			if err != nil {
				return fmt.Errorf("failed to extract concepts from chunk %d: %w", c.Seq, err)
			}
			out[i] = concepts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildIngestion assembles everything one document contributes. A concept's
// delta is the number of chunks mentioning it, since labels are unique per
// chunk. Concepts are sorted by label so stores lock rows in a stable order.
func buildIngestion(doc common.Document, chunks []common.Chunk, perChunk [][]Concept, window int) common.Ingestion {
	agg := NewCooccurrenceAggregator(window)
	increments := make(map[string]*common.ConceptIncrement)
	order := make([]string, 0)
	mentions := make([]common.Mention, 0)

	for i, concepts := range perChunk {
		for _, c := range concepts {
			inc, ok := increments[c.Label]
			if !ok {
				inc = &common.ConceptIncrement{
					ID:    gUtil.ConceptID(c.Label),
					Label: c.Label,
					Lemma: c.Lemma,
				}
				increments[c.Label] = inc
				order = append(order, c.Label)
			}
			inc.Delta++
			mentions = append(mentions, common.Mention{ChunkID: chunks[i].ID, Label: c.Label})
		}
		agg.Add(Labels(concepts))
	}

	sort.Strings(order)
	concepts := make([]common.ConceptIncrement, 0, len(order))
	for _, label := range order {
		concepts = append(concepts, *increments[label])
	}

	return common.Ingestion{
		Document:      doc,
		Chunks:        chunks,
		Concepts:      concepts,
		Mentions:      mentions,
		CoOccurrences: agg.Edges(),
	}
}
