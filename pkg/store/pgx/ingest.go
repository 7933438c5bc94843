package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// SaveIngestion writes one document and everything derived from it in a
// single transaction. Concept and edge rows are upserted additively, so
// concurrent ingestions of different documents commute. The document upsert
// returns no row when the stored content hash is unchanged; a concurrent
// save of the same source waits on the document row and then sees it.
func (s *GraphDBStorage) SaveIngestion(ctx context.Context, ing common.Ingestion) (bool, error) {
	doc := ing.Document
	if doc.ID == "" {
		return false, fmt.Errorf("%w: document id is empty", common.ErrInvalidInput)
	}

	logger.Debug(
		"[Graph][SaveIngestion] Writing document",
		"doc_id", doc.ID,
		"chunks", len(ing.Chunks),
		"concepts", len(ing.Concepts),
		"edges", len(ing.CoOccurrences),
	)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var url *string
	if doc.URL != "" {
		url = &doc.URL
	}
	var id string
	err = tx.QueryRow(ctx, upsertDocumentSQL, doc.ID, string(doc.Type), util.SanitizePostgresText(doc.Name), url, doc.Bytes, doc.ContentHash).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) {
		logger.Debug("[Graph][SaveIngestion] Content unchanged", "doc_id", doc.ID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert document: %w", err)
	}

	if err := s.replaceChunks(ctx, tx, doc.ID, ing.Chunks); err != nil {
		return false, err
	}
	if err := s.addConcepts(ctx, tx, ing.Concepts); err != nil {
		return false, err
	}
	if err := s.addMentions(ctx, tx, ing.Mentions); err != nil {
		return false, err
	}
	if err := s.addCooccurrences(ctx, tx, ing.CoOccurrences); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *GraphDBStorage) replaceChunks(ctx context.Context, tx pgxv5.Tx, docID string, chunks []common.Chunk) error {
	if _, err := tx.Exec(ctx, deleteDocumentMentionsSQL, docID); err != nil {
		return fmt.Errorf("delete mentions: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if _, err := tx.Exec(ctx, deleteStaleChunksSQL, docID, ids); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	return store.ChunkRange(len(chunks), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, c := range chunks[start:end] {
			var embedding any
			if len(c.Embedding) > 0 {
				embedding = pgvector.NewVector(c.Embedding)
			}
			batch.Queue(upsertChunkSQL, c.ID, docID, c.Seq, c.Text, c.Start, c.End, embedding)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
		return nil
	})
}

func (s *GraphDBStorage) addConcepts(ctx context.Context, tx pgxv5.Tx, concepts []common.ConceptIncrement) error {
	return store.ChunkRange(len(concepts), s.batchSize, func(start, end int) error {
		part := concepts[start:end]
		ids := make([]string, len(part))
		labels := make([]string, len(part))
		lemmas := make([]string, len(part))
		deltas := make([]int64, len(part))
		for i, c := range part {
			ids[i], labels[i], lemmas[i], deltas[i] = c.ID, c.Label, c.Lemma, c.Delta
		}
		if _, err := tx.Exec(ctx, upsertConceptsSQL, ids, labels, lemmas, deltas); err != nil {
			return fmt.Errorf("upsert concepts: %w", err)
		}
		return nil
	})
}

func (s *GraphDBStorage) addMentions(ctx context.Context, tx pgxv5.Tx, mentions []common.Mention) error {
	return store.ChunkRange(len(mentions), s.batchSize, func(start, end int) error {
		part := mentions[start:end]
		chunkIDs := make([]string, len(part))
		labels := make([]string, len(part))
		for i, m := range part {
			chunkIDs[i], labels[i] = m.ChunkID, m.Label
		}
		if _, err := tx.Exec(ctx, insertMentionsSQL, chunkIDs, labels); err != nil {
			return fmt.Errorf("insert mentions: %w", err)
		}
		return nil
	})
}

func (s *GraphDBStorage) addCooccurrences(ctx context.Context, tx pgxv5.Tx, edges []common.CoOccurrence) error {
	return store.ChunkRange(len(edges), s.batchSize, func(start, end int) error {
		part := edges[start:end]
		sources := make([]string, 0, len(part))
		targets := make([]string, 0, len(part))
		weights := make([]float64, 0, len(part))
		for _, e := range part {
			a, b := e.Source, e.Target
			if a == b {
				continue
			}
			if b < a {
				a, b = b, a
			}
			sources = append(sources, a)
			targets = append(targets, b)
			weights = append(weights, e.Weight)
		}
		if len(sources) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, upsertCooccursSQL, sources, targets, weights); err != nil {
			return fmt.Errorf("upsert co-occurrences: %w", err)
		}
		return nil
	})
}
