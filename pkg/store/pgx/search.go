package pgx

import (
	"context"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// VectorSearch ranks chunks by cosine similarity using the pgvector <=>
// distance operator.
func (s *GraphDBStorage) VectorSearch(ctx context.Context, embedding []float32, k int) ([]common.ScoredChunk, error) {
	if len(embedding) == 0 || k <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, vectorSearchSQL, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	return collectScoredChunks(rows)
}

// KeywordSearch ranks chunks with ts_rank_cd. Query words are OR-ed so a
// chunk matching any content word is a candidate.
func (s *GraphDBStorage) KeywordSearch(ctx context.Context, query string, k int) ([]common.ScoredChunk, error) {
	tsq := tsQuery(query)
	if tsq == "" || k <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, keywordSearchSQL, tsq, k)
	if err != nil {
		return nil, err
	}
	return collectScoredChunks(rows)
}

// tsQuery turns free text into a to_tsquery expression of OR-ed terms.
// Words are alphanumeric tokens, so no tsquery operators leak through.
func tsQuery(query string) string {
	seen := make(map[string]struct{})
	terms := make([]string, 0)
	for _, w := range ai.Words(query) {
		if ai.IsStopword(w) {
			continue
		}
		w = strings.NewReplacer("'", "", "’", "", "-", " ").Replace(w)
		for _, part := range strings.Fields(w) {
			if ai.IsStopword(part) {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			terms = append(terms, part)
		}
	}
	sort.Strings(terms)
	return strings.Join(terms, " | ")
}

func collectScoredChunks(rows pgxv5.Rows) ([]common.ScoredChunk, error) {
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.ScoredChunk, error) {
		var sc common.ScoredChunk
		c := &sc.Chunk
		err := row.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Text, &c.Start, &c.End, &sc.Score)
		return sc, err
	})
}
