// Package neo4j stores the concept graph in Neo4j. Documents, chunks and
// concepts are nodes; PART_OF, MENTIONS and CO_OCCURS are relationships.
// Chunk search uses a vector index and a full-text index on chunk text.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgraph/pkg/logger"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

const (
	vectorIndex   = "chunk_embedding"
	fulltextIndex = "chunk_text"
)

type GraphNeo4jStorage struct {
	driver    neo4jv5.DriverWithContext
	database  string
	dimension int
}

var _ store.GraphStorage = (*GraphNeo4jStorage)(nil)

type NewGraphNeo4jStorageParams struct {
	URI      string
	User     string
	Password string
	Database string

	// Dimension of chunk embeddings, used for the vector index.
	Dimension   int
	Timeout     time.Duration
	MaxPoolSize int
}

// NewGraphNeo4jStorage connects, verifies connectivity and creates the
// schema. Schema failures are logged; the store still works without the
// indexes except for search.
func NewGraphNeo4jStorage(ctx context.Context, params NewGraphNeo4jStorageParams) (*GraphNeo4jStorage, error) {
	if params.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is required")
	}
	user := params.User
	if user == "" {
		user = "neo4j"
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := params.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	driver, err := neo4jv5.NewDriverWithContext(params.URI, neo4jv5.BasicAuth(user, params.Password, ""), func(cfg *neo4jv5.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := NewWithDriver(driver, params.Database, params.Dimension)
	s.EnsureSchema(ctx)
	return s, nil
}

// NewWithDriver wraps an existing driver without touching the schema.
func NewWithDriver(driver neo4jv5.DriverWithContext, database string, dimension int) *GraphNeo4jStorage {
	return &GraphNeo4jStorage{driver: driver, database: database, dimension: dimension}
}

// EnsureSchema creates constraints and indexes. It is best effort.
func (s *GraphNeo4jStorage) EnsureSchema(ctx context.Context) {
	session := s.session(ctx, neo4jv5.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range schemaStatements(s.dimension) {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			logger.Warn("[Neo4j] Schema init failed (continuing)", "err", err)
			continue
		}
		if _, err := res.Consume(ctx); err != nil {
			logger.Warn("[Neo4j] Schema init failed (continuing)", "err", err)
		}
	}
}

func schemaStatements(dimension int) []string {
	stmts := []string{
		`CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT concept_label_unique IF NOT EXISTS FOR (k:Concept) REQUIRE k.label IS UNIQUE`,
		`CREATE INDEX concept_id IF NOT EXISTS FOR (k:Concept) ON (k.id)`,
		`CREATE INDEX chunk_document IF NOT EXISTS FOR (c:Chunk) ON (c.document_id)`,
		`CREATE FULLTEXT INDEX ` + fulltextIndex + ` IF NOT EXISTS FOR (c:Chunk) ON EACH [c.text]`,
	}
	if dimension > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON c.embedding "+
				"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			vectorIndex, dimension,
		))
	}
	return stmts
}

func (s *GraphNeo4jStorage) session(ctx context.Context, mode neo4jv5.AccessMode) neo4jv5.SessionWithContext {
	return s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

// read runs one query in a managed read transaction.
func (s *GraphNeo4jStorage) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4jv5.Record, error) {
	session := s.session(ctx, neo4jv5.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4jv5.Record)
	return records, nil
}

// write runs each statement in order inside one managed write transaction.
func (s *GraphNeo4jStorage) write(ctx context.Context, stmts ...statement) error {
	_, err := s.writeGuarded(ctx, stmts...)
	return err
}

// writeGuarded is write, except that a guard statement returning no records
// ends the transaction early. It reports whether every statement ran.
func (s *GraphNeo4jStorage) writeGuarded(ctx context.Context, stmts ...statement) (bool, error) {
	session := s.session(ctx, neo4jv5.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			if st.skip {
				continue
			}
			res, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return false, fmt.Errorf("%s: %w", st.name, err)
			}
			if st.guard {
				records, err := res.Collect(ctx)
				if err != nil {
					return false, fmt.Errorf("%s: %w", st.name, err)
				}
				if len(records) == 0 {
					return false, nil
				}
				continue
			}
			if _, err := res.Consume(ctx); err != nil {
				return false, fmt.Errorf("%s: %w", st.name, err)
			}
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	applied, _ := out.(bool)
	return applied, nil
}

type statement struct {
	name   string
	cypher string
	params map[string]any
	skip   bool
	// guard statements must return a record for the rest to run.
	guard bool
}

func (s *GraphNeo4jStorage) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}
