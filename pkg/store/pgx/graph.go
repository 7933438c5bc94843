package pgx

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (common.Document, error) {
	var d common.Document
	var typ string
	err := row.Scan(&d.ID, &typ, &d.Name, &d.URL, &d.Bytes, &d.ContentHash, &d.CreatedAt)
	d.Type = common.DocumentType(typ)
	return d, err
}

func scanConcept(row rowScanner) (common.Concept, error) {
	var c common.Concept
	err := row.Scan(&c.ID, &c.Label, &c.Lemma, &c.Freq, &c.Community)
	return c, err
}

func scanEdge(row rowScanner) (common.CoOccurrence, error) {
	var e common.CoOccurrence
	err := row.Scan(&e.Source, &e.Target, &e.Weight)
	return e, err
}

func (s *GraphDBStorage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	doc, err := scanDocument(s.conn.QueryRow(ctx, getDocumentSQL, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	return doc, err
}

func (s *GraphDBStorage) GetDocuments(ctx context.Context, ids []string) (map[string]common.Document, error) {
	ids = store.DedupeStrings(ids)
	out := make(map[string]common.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.conn.Query(ctx, getDocumentsSQL, ids)
	if err != nil {
		return nil, err
	}
	docs, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Document, error) {
		return scanDocument(row)
	})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

func (s *GraphDBStorage) queryConcepts(ctx context.Context, sql string, args ...any) ([]common.Concept, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Concept, error) {
		return scanConcept(row)
	})
}

func (s *GraphDBStorage) queryEdges(ctx context.Context, sql string, args ...any) ([]common.CoOccurrence, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.CoOccurrence, error) {
		return scanEdge(row)
	})
}

func (s *GraphDBStorage) ConceptsForChunks(ctx context.Context, chunkIDs []string) ([]common.Concept, error) {
	chunkIDs = store.DedupeStrings(chunkIDs)
	if len(chunkIDs) == 0 {
		return []common.Concept{}, nil
	}
	return s.queryConcepts(ctx, conceptsForChunksSQL, chunkIDs)
}

func (s *GraphDBStorage) Neighbors(ctx context.Context, labels []string) ([]common.Concept, []common.CoOccurrence, error) {
	labels = store.DedupeStrings(labels)
	if len(labels) == 0 {
		return []common.Concept{}, []common.CoOccurrence{}, nil
	}

	edges, err := s.queryEdges(ctx, neighborEdgesSQL, labels)
	if err != nil {
		return nil, nil, err
	}

	seeds := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seeds[l] = struct{}{}
	}
	others := make([]string, 0)
	for _, e := range edges {
		for _, l := range []string{e.Source, e.Target} {
			if _, ok := seeds[l]; !ok {
				others = append(others, l)
			}
		}
	}
	others = store.DedupeStrings(others)
	sort.Strings(others)
	if len(others) == 0 {
		return []common.Concept{}, edges, nil
	}

	neighbors, err := s.queryConcepts(ctx, conceptsByLabelSQL, others)
	if err != nil {
		return nil, nil, err
	}
	return neighbors, edges, nil
}

func (s *GraphDBStorage) GetGraph(ctx context.Context) (common.Graph, error) {
	nodes, err := s.queryConcepts(ctx, allConceptsSQL)
	if err != nil {
		return common.Graph{}, err
	}
	edges, err := s.queryEdges(ctx, allEdgesSQL)
	if err != nil {
		return common.Graph{}, err
	}
	return common.Graph{Nodes: nodes, Edges: edges}, nil
}

func (s *GraphDBStorage) GetConcept(ctx context.Context, id string) (common.ConceptDetails, error) {
	c, err := scanConcept(s.conn.QueryRow(ctx, getConceptSQL, id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.ConceptDetails{}, fmt.Errorf("concept %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return common.ConceptDetails{}, err
	}

	rows, err := s.conn.Query(ctx, conceptSnippetsSQL, id, store.MaxConceptSnippets)
	if err != nil {
		return common.ConceptDetails{}, err
	}
	snippets, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Snippet, error) {
		var sn common.Snippet
		err := row.Scan(&sn.Text, &sn.DocName, &sn.DocURL)
		return sn, err
	})
	if err != nil {
		return common.ConceptDetails{}, err
	}
	return common.ConceptDetails{Concept: c, Snippets: snippets}, nil
}

// WriteCommunities clears every label and writes the new assignment in one
// transaction, so readers never see a mix of two runs.
func (s *GraphDBStorage) WriteCommunities(ctx context.Context, assignment map[string]int64) error {
	labels := make([]string, 0, len(assignment))
	for label := range assignment {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	ids := make([]int64, len(labels))
	for i, label := range labels {
		ids[i] = assignment[label]
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, clearCommunitiesSQL); err != nil {
		return fmt.Errorf("clear communities: %w", err)
	}
	err = store.ChunkRange(len(labels), s.batchSize, func(start, end int) error {
		_, err := tx.Exec(ctx, writeCommunitiesSQL, labels[start:end], ids[start:end])
		return err
	})
	if err != nil {
		return fmt.Errorf("write communities: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *GraphDBStorage) Stats(ctx context.Context) (common.Stats, error) {
	var st common.Stats
	err := s.conn.QueryRow(ctx, statsSQL).Scan(&st.Documents, &st.Chunks, &st.Concepts, &st.Edges, &st.TotalBytes)
	return st, err
}
