package pgx

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/kgraph/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTsQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is machine learning?", "learning | machine"},
		{"graph graph GRAPH", "graph"},
		{"the of and", ""},
		{"co-occurrence weights", "co | occurrence | weights"},
		{"it's 2024 (really) & | !", "2024 | really"},
		{"state-of-the-art", "art | state"},
	}
	for _, tt := range tests {
		if got := tsQuery(tt.in); got != tt.want {
			t.Errorf("tsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(...any) error { return r.err }

type fakeConn struct {
	rowErr error
	tx     *fakeTx
}

// fakeTx records statements; only the methods SaveIngestion reaches are
// implemented.
type fakeTx struct {
	pgxv5.Tx
	rowErr     error
	execs      int
	committed  bool
	rolledBack bool
}

func (t *fakeTx) QueryRow(context.Context, string, ...any) pgxv5.Row {
	return fakeRow{err: t.rowErr}
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	t.execs++
	return pgconn.CommandTag{}, nil
}

type fakeBatchResults struct {
	pgxv5.BatchResults
}

func (fakeBatchResults) Close() error { return nil }

func (t *fakeTx) SendBatch(context.Context, *pgxv5.Batch) pgxv5.BatchResults {
	t.execs++
	return fakeBatchResults{}
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

var errUnexpected = errors.New("unexpected call")

func (c *fakeConn) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errUnexpected
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgxv5.Rows, error) {
	return nil, errUnexpected
}

func (c *fakeConn) QueryRow(context.Context, string, ...any) pgxv5.Row {
	return fakeRow{err: c.rowErr}
}

func (c *fakeConn) Begin(context.Context) (pgxv5.Tx, error) {
	if c.tx != nil {
		return c.tx, nil
	}
	return nil, errUnexpected
}

func TestNotFoundMapping(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{rowErr: pgxv5.ErrNoRows})
	ctx := context.Background()

	if _, err := s.GetDocument(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("GetDocument error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetConcept(ctx, "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("GetConcept error = %v, want ErrNotFound", err)
	}
}

func TestEmptyInputsSkipQueries(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{})
	ctx := context.Background()

	if hits, err := s.KeywordSearch(ctx, "the and", 10); err != nil || hits != nil {
		t.Fatalf("KeywordSearch = %v, %v", hits, err)
	}
	if hits, err := s.VectorSearch(ctx, nil, 10); err != nil || hits != nil {
		t.Fatalf("VectorSearch = %v, %v", hits, err)
	}
	if cs, err := s.ConceptsForChunks(ctx, nil); err != nil || len(cs) != 0 {
		t.Fatalf("ConceptsForChunks = %v, %v", cs, err)
	}
	if docs, err := s.GetDocuments(ctx, []string{""}); err != nil || len(docs) != 0 {
		t.Fatalf("GetDocuments = %v, %v", docs, err)
	}
}

func TestSaveIngestionRequiresDocumentID(t *testing.T) {
	s := NewGraphDBStorageWithConnection(&fakeConn{})
	_, err := s.SaveIngestion(context.Background(), common.Ingestion{})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCloseRunsCloser(t *testing.T) {
	closed := false
	s := NewGraphDBStorageWithConnection(&fakeConn{}, WithCloser(func() { closed = true }))
	if err := s.Close(); err != nil || !closed {
		t.Fatalf("Close() = %v, closed = %v", err, closed)
	}
}

func TestSaveIngestion_UnchangedContentWritesNothing(t *testing.T) {
	tests := []struct {
		name        string
		rowErr      error
		wantWritten bool
		wantErr     bool
	}{
		{"hash unchanged", pgxv5.ErrNoRows, false, false},
		{"document written", nil, true, false},
		{"upsert fails", errUnexpected, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &fakeTx{rowErr: tt.rowErr}
			s := NewGraphDBStorageWithConnection(&fakeConn{tx: tx})
			ing := common.Ingestion{
				Document: common.Document{ID: "doc", Name: "doc.txt", ContentHash: "h1"},
				Chunks:   []common.Chunk{{ID: "doc_0", DocumentID: "doc", Text: "graph"}},
				Concepts: []common.ConceptIncrement{{ID: "c1", Label: "graph", Lemma: "graph", Delta: 1}},
			}
			written, err := s.SaveIngestion(context.Background(), ing)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SaveIngestion() error = %v", err)
			}
			if written != tt.wantWritten {
				t.Fatalf("written = %v, want %v", written, tt.wantWritten)
			}
			if !tt.wantWritten && (tx.execs != 0 || tx.committed) {
				t.Fatalf("expected no writes, got %d execs, committed %v", tx.execs, tx.committed)
			}
			if tt.wantWritten && (tx.execs == 0 || !tx.committed) {
				t.Fatalf("expected writes and commit, got %d execs, committed %v", tx.execs, tx.committed)
			}
			if !tx.rolledBack {
				t.Fatal("expected deferred rollback")
			}
		})
	}
}
